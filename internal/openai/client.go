package openai

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions is the output dimension of text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultCompletionModel is the model used for chat completions
	DefaultCompletionModel = openai.GPT4oMini
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// Message is one turn of conversation history passed to the completion model.
type Message struct {
	Role    string
	Content string
}

// API defines the raw OpenAI operations the client depends on
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateChatCompletion(ctx context.Context, system string, messages []Message) (string, error)
}

// Client wraps the OpenAI API with dimension checks and error classification
type Client struct {
	api             API
	embeddingModel  string
	completionModel string
	dimensions      int
}

// Adapter implements API against the real OpenAI service
type Adapter struct {
	client          *openai.Client
	embeddingModel  openai.EmbeddingModel
	completionModel string
}

func NewAdapter(apiKey, embeddingModel, completionModel string) *Adapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if completionModel == "" {
		completionModel = DefaultCompletionModel
	}
	return &Adapter{
		client:          openai.NewClient(apiKey),
		embeddingModel:  openai.EmbeddingModel(embeddingModel),
		completionModel: completionModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create one embedding
func (a *Adapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChatCompletion calls the OpenAI API for a chat completion
func (a *Adapter) CreateChatCompletion(ctx context.Context, system string, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.completionModel,
		Messages: chatMessages,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Config holds OpenAI client configuration
type Config struct {
	APIKey              string
	EmbeddingModel      string
	CompletionModel     string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	completionModel := cfg.CompletionModel
	if completionModel == "" {
		completionModel = DefaultCompletionModel
	}
	return &Client{
		api:             NewAdapter(cfg.APIKey, embeddingModel, completionModel),
		embeddingModel:  embeddingModel,
		completionModel: completionModel,
		dimensions:      dimensions,
	}
}

// NewClientWithAPI creates a client over a custom API implementation (for tests)
func NewClientWithAPI(api API, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:             api,
		embeddingModel:  DefaultEmbeddingModel,
		completionModel: DefaultCompletionModel,
		dimensions:      dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// Dimensions returns the expected embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text. Failures are
// wrapped as UpstreamError so callers can distinguish transient failures.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, domain.NewUpstreamError("embedding", isTransient(err), err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// Complete generates a completion for the given system prompt and messages.
// Failures are wrapped as UpstreamError with a transient flag.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyText
	}

	text, err := c.api.CreateChatCompletion(ctx, system, messages)
	if err != nil {
		return "", domain.NewUpstreamError("completion", isTransient(err), err)
	}

	return text, nil
}

// isTransient classifies an OpenAI API failure. Rate limits, server errors
// and transport failures are retryable; everything else is permanent.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		return apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Connection resets and DNS failures surface as plain transport errors.
	return apiErr == nil && reqErr == nil && !errors.Is(err, context.Canceled)
}
