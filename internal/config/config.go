package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"gridpoint-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	CompletionModel     string `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`

	ChunkMaxTokens     int     `envconfig:"CHUNK_MAX_TOKENS" default:"1000"`
	ChunkOverlapTokens int     `envconfig:"CHUNK_OVERLAP_TOKENS" default:"200"`
	RetrievalLimit     int     `envconfig:"RETRIEVAL_LIMIT" default:"5"`
	RetrievalThreshold float64 `envconfig:"RETRIEVAL_THRESHOLD" default:"0.3"`
	PromptTokenBudget  int     `envconfig:"PROMPT_TOKEN_BUDGET" default:"6000"`

	// Cloud folder sync credentials; each source is optional.
	GoogleDriveCredentialsFile string `envconfig:"GDRIVE_CREDENTIALS_FILE"`
	GoogleDriveTokenFile       string `envconfig:"GDRIVE_TOKEN_FILE"`
	DropboxAccessToken         string `envconfig:"DROPBOX_ACCESS_TOKEN"`

	// Bootstrap: create initial user and API key on startup
	InitUserEmail string `envconfig:"INIT_USER_EMAIL"`
	InitAPIKey    string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("GRIDPOINT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGoogleDrive() bool {
	return c.GoogleDriveCredentialsFile != "" && c.GoogleDriveTokenFile != ""
}

func (c *Config) HasDropbox() bool {
	return c.DropboxAccessToken != ""
}
