package service

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/sources"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAPIKeyRepository is a mock implementation of APIKeyRepository
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*APIKeyPageResult, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*APIKeyPageResult), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProjectRepository is a mock implementation of ProjectRepositoryInterface
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) GetOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.Project, error) {
	args := m.Called(ctx, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*ProjectPageResult, error) {
	args := m.Called(ctx, ownerID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProjectPageResult), args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetBySourceRef(ctx context.Context, projectID string, sourceType domain.DocumentSourceType, sourceRef string) (*domain.Document, error) {
	args := m.Called(ctx, projectID, sourceType, sourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, projectID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) ClaimForIndexing(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount int, embeddingModel string) error {
	args := m.Called(ctx, id, chunkCount, embeddingModel)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkFailed(ctx context.Context, id string, detail string) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdateSourceRevision(ctx context.Context, id string, revision string) error {
	args := m.Called(ctx, id, revision)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) EmbeddingModels(ctx context.Context, ownerID string, projectIDs []string) ([]string, error) {
	args := m.Called(ctx, ownerID, projectIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

// MockIndexJobRepository is a mock implementation of IndexJobRepositoryInterface
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIndexJobRepository) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IndexJob, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexJob), args.Error(1)
}

// MockChunkSearchRepository is a mock implementation of ChunkSearchRepository
type MockChunkSearchRepository struct {
	mock.Mock
}

func (m *MockChunkSearchRepository) Search(ctx context.Context, embedding []float32, scope SearchScope, threshold float32, limit int) ([]*RetrievedChunk, error) {
	args := m.Called(ctx, embedding, scope, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RetrievedChunk), args.Error(1)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockCompletionClient is a mock implementation of CompletionClient
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	args := m.Called(ctx, system, messages)
	return args.String(0), args.Error(1)
}

// MockRetriever is a mock implementation of Retriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, input RetrieveInput) ([]*RetrievedChunk, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RetrievedChunk), args.Error(1)
}

// MockConversationRepository is a mock implementation of ConversationRepositoryInterface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, cc *domain.ConversationContext) error {
	args := m.Called(ctx, cc)
	return args.Error(0)
}

func (m *MockConversationRepository) ListRecent(ctx context.Context, ownerID, conversationID string, limit int) ([]*domain.ConversationContext, error) {
	args := m.Called(ctx, ownerID, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ConversationContext), args.Error(1)
}

// MockObjectStore is a mock implementation of ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockObjectStoreWriter is a mock implementation of ObjectStoreWriter
type MockObjectStoreWriter struct {
	mock.Mock
}

func (m *MockObjectStoreWriter) PutObject(ctx context.Context, key string, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockObjectStoreWriter) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStoreWriter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockTextExtractor is a mock implementation of TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(content []byte, contentType, filename string) (string, error) {
	args := m.Called(content, contentType, filename)
	return args.String(0), args.Error(1)
}

func (m *MockTextExtractor) Supported(contentType, filename string) bool {
	args := m.Called(contentType, filename)
	return args.Bool(0)
}

// MockFolderSource is a mock implementation of FolderSource
type MockFolderSource struct {
	mock.Mock
	sourceType domain.DocumentSourceType
}

func (m *MockFolderSource) Type() domain.DocumentSourceType {
	return m.sourceType
}

func (m *MockFolderSource) ListFolder(ctx context.Context, folder string) ([]sources.File, error) {
	args := m.Called(ctx, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sources.File), args.Error(1)
}

func (m *MockFolderSource) Download(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// stubTxRunner runs the transaction function against the given repositories
// without a real database transaction.
type stubTxRunner struct {
	docs   DocumentRepositoryInterface
	chunks ChunkRepositoryInterface
	jobs   IndexJobRepositoryInterface
	err    error
}

func (r *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(r)
}

func (r *stubTxRunner) Documents() DocumentRepositoryInterface { return r.docs }
func (r *stubTxRunner) Chunks() ChunkRepositoryInterface       { return r.chunks }
func (r *stubTxRunner) IndexJobs() IndexJobRepositoryInterface { return r.jobs }

// seqUUIDGenerator yields deterministic identifiers for assertions.
type seqUUIDGenerator struct {
	prefix string
	n      int
}

func (g *seqUUIDGenerator) NewString() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
