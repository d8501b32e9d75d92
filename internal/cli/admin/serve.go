package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/api/handlers"
	"github.com/gridpoint-ai/gridpoint/internal/config"
	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/extract"
	"github.com/gridpoint-ai/gridpoint/internal/jobs"
	"github.com/gridpoint-ai/gridpoint/internal/openai"
	"github.com/gridpoint-ai/gridpoint/internal/repository"
	"github.com/gridpoint-ai/gridpoint/internal/server"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/gridpoint-ai/gridpoint/internal/sources"
	"github.com/gridpoint-ai/gridpoint/internal/storage"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the gridpoint API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background index worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	indexJobRepo := repository.NewIndexJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(userRepo, apiKeyRepo, uuidGen)

	if cfg.InitUserEmail != "" {
		if err := bootstrapInitialUser(ctx, cfg, userRepo, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial user: %w", err)
		}
	}

	var store objectStore = &noOpObjectStore{}
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		store = s3Client
	} else {
		log.Println("S3 not configured: document storage disabled")
	}

	chunker, err := service.NewChunker()
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}
	extractor := extract.New()

	var embeddingClient service.EmbeddingClient = &noOpEmbeddingClient{}
	var completionClient service.CompletionClient = &noOpCompletionClient{}
	if cfg.HasOpenAI() {
		aiClient := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      cfg.EmbeddingModel,
			CompletionModel:     cfg.CompletionModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		embeddingClient = aiClient
		completionClient = &completionAdapter{client: aiClient}
	} else {
		log.Println("OpenAI not configured: indexing and chat completions disabled")
	}

	chunkCfg := service.ChunkConfig{
		MaxTokens:     cfg.ChunkMaxTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
	}

	retriever := service.NewRetrieverService(chunkRepo, projectRepo, docRepo, embeddingClient, cfg.EmbeddingModel)
	composer := service.NewComposerService(chunker, cfg.PromptTokenBudget)
	chatSvc := service.NewChatService(retriever, composer, completionClient, conversationRepo, service.ChatConfig{
		RetrievalLimit:     cfg.RetrievalLimit,
		RetrievalThreshold: float32(cfg.RetrievalThreshold),
		HistoryTurns:       service.DefaultChatConfig().HistoryTurns,
	})

	indexer := service.NewIndexerService(docRepo, txRunner, chunker, extractor, embeddingClient, store, chunkCfg, cfg.EmbeddingModel)

	projectSvc := service.NewProjectService(projectRepo)
	ingestSvc := service.NewIngestService(docRepo, indexJobRepo, projectRepo, store, extractor)
	documentSvc := service.NewDocumentService(docRepo, indexJobRepo, projectRepo, store)

	var folderSources []service.FolderSource
	if cfg.HasGoogleDrive() {
		driveSrc, err := sources.NewGoogleDrive(ctx, cfg.GoogleDriveCredentialsFile, cfg.GoogleDriveTokenFile)
		if err != nil {
			log.Printf("google drive source unavailable: %v", err)
		} else {
			folderSources = append(folderSources, driveSrc)
			log.Println("google drive source connected")
		}
	}
	if cfg.HasDropbox() {
		folderSources = append(folderSources, sources.NewDropbox(cfg.DropboxAccessToken))
		log.Println("dropbox source connected")
	}

	var syncSvc handlers.SyncService
	if len(folderSources) > 0 {
		syncSvc = service.NewSyncService(docRepo, indexJobRepo, projectRepo, store, extractor, folderSources)
	}

	var indexWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if cfg.HasOpenAI() && !noWorker {
		processor := jobs.NewIndexWorker(indexJobRepo, indexer)
		indexWorker = jobs.NewWorker(processor, 10*time.Second)
		go indexWorker.Start(ctx)
		log.Println("index worker started")
	}

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		ProjectHandler:  handlers.NewProjectHandler(projectSvc),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, documentSvc, syncSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		QueryHandler:    handlers.NewQueryHandler(retriever),
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if indexWorker != nil {
		indexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// objectStore is the full storage surface the services need.
type objectStore interface {
	service.ObjectStore
	service.ObjectStoreSigner
}

type noOpObjectStore struct{}

func (s *noOpObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *noOpObjectStore) PutObject(ctx context.Context, key string, contentType string, data []byte) error {
	return fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *noOpObjectStore) DeleteObject(ctx context.Context, key string) error {
	return fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *noOpObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

type noOpEmbeddingClient struct{}

func (c *noOpEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewUpstreamError("embedding", false, fmt.Errorf("embedding provider not configured: OPENAI_API_KEY required"))
}

type noOpCompletionClient struct{}

func (c *noOpCompletionClient) Complete(ctx context.Context, system string, messages []service.ChatMessage) (string, error) {
	return "", domain.NewUpstreamError("completion", false, fmt.Errorf("completion provider not configured: OPENAI_API_KEY required"))
}

// completionAdapter bridges the chat service's message type to the OpenAI
// client's.
type completionAdapter struct {
	client *openai.Client
}

func (a *completionAdapter) Complete(ctx context.Context, system string, messages []service.ChatMessage) (string, error) {
	msgs := make([]openai.Message, len(messages))
	for i, m := range messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	return a.client.Complete(ctx, system, msgs)
}

func bootstrapInitialUser(ctx context.Context, cfg *config.Config, userRepo *repository.UserRepository, authSvc *service.AuthService) error {
	user, err := userRepo.GetByEmail(ctx, cfg.InitUserEmail)
	if err != nil && err != domain.ErrUserNotFound {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	if user == nil {
		user, err = authSvc.CreateUser(ctx, cfg.InitUserEmail)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("bootstrap: created user '%s' (id: %s)", user.Email, user.ID)
	} else {
		log.Printf("bootstrap: user '%s' already exists (id: %s)", user.Email, user.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid INIT_API_KEY format (expected 'gp_<64 hex chars>')")
		}

		existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
		if err == nil && existingKey != nil {
			log.Printf("bootstrap: API key already exists (id: %s)", existingKey.ID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, user.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
