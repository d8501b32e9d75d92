//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpoint-ai/gridpoint/internal/api/handlers"
	"github.com/gridpoint-ai/gridpoint/internal/extract"
	"github.com/gridpoint-ai/gridpoint/internal/jobs"
	"github.com/gridpoint-ai/gridpoint/internal/repository"
	"github.com/gridpoint-ai/gridpoint/internal/server"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/gridpoint-ai/gridpoint/internal/storage"
	"github.com/gridpoint-ai/gridpoint/internal/testutil"
)

const testEmbeddingModel = "text-embedding-3-small"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	UserID       string
	APIKeyToken  string
	HTTPClient   *http.Client

	authSvc *service.AuthService
}

// SetupE2EEnv creates a full E2E test environment with containers, a stub
// LLM, a background index worker, and the HTTP server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	chunker, err := service.NewChunker()
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "gridpoint-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, authSvc := startServer(t, pool, s3Client, chunker, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		authSvc:      authSvc,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a user and an API key for authenticated requests.
func (e *E2ETestEnv) Bootstrap() {
	user, err := e.authSvc.CreateUser(e.Ctx, "e2e@example.com")
	if err != nil {
		e.T.Fatalf("failed to create user: %v", err)
	}
	e.UserID = user.ID

	token, err := e.authSvc.CreateAPIKey(e.Ctx, user.ID, "e2e-test-key")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	e.APIKeyToken = token
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PATCH", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadDocument uploads a file through the multipart documents endpoint.
func (e *E2ETestEnv) UploadDocument(projectID, filename, contentType string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("project_id", projectID); err != nil {
		return nil, err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKeyToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires repositories, services, the index worker, and the HTTP
// server against the test containers.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, chunker *service.Chunker, port int) (string, func(), *service.AuthService) {
	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	extractor := extract.New()
	embedding := &stubEmbeddingClient{}
	completion := &stubCompletionClient{}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(userRepo, apiKeyRepo, uuidGen)
	projectSvc := service.NewProjectService(projectRepo)
	ingestSvc := service.NewIngestService(docRepo, jobRepo, projectRepo, s3Client, extractor)
	documentSvc := service.NewDocumentService(docRepo, jobRepo, projectRepo, s3Client)
	syncSvc := service.NewSyncService(docRepo, jobRepo, projectRepo, s3Client, extractor, nil)
	retrieverSvc := service.NewRetrieverService(chunkRepo, projectRepo, docRepo, embedding, testEmbeddingModel)
	composerSvc := service.NewComposerService(chunker, 6000)
	chatSvc := service.NewChatService(retrieverSvc, composerSvc, completion, convRepo, service.DefaultChatConfig())
	indexerSvc := service.NewIndexerService(docRepo, txRunner, chunker, extractor, embedding, s3Client, service.DefaultChunkConfig(), testEmbeddingModel)

	indexWorker := jobs.NewIndexWorker(jobRepo, indexerSvc)
	worker := jobs.NewWorker(indexWorker, 200*time.Millisecond)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	cfg := server.RouterConfig{
		AuthValidator:   authSvc,
		ProjectHandler:  handlers.NewProjectHandler(projectSvc),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, documentSvc, syncSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		QueryHandler:    handlers.NewQueryHandler(retrieverSvc),
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		cancelWorker()
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, authSvc
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubEmbeddingClient produces deterministic bag-of-words embeddings so
// similar texts land near each other without calling a provider.
type stubEmbeddingClient struct{}

func (c *stubEmbeddingClient) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 1536)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%1536]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

// stubCompletionClient echoes whether it saw grounding context, which is
// all the chat assertions need.
type stubCompletionClient struct{}

func (c *stubCompletionClient) Complete(_ context.Context, system string, messages []service.ChatMessage) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	if strings.Contains(system, "[1]") {
		return "Based on the provided documents: " + last, nil
	}
	return "Answering from general knowledge: " + last, nil
}
