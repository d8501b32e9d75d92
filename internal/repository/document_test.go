//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/testutil"
)

type docFixtures struct {
	userRepo    *UserRepository
	projectRepo *ProjectRepository
	docRepo     *DocumentRepository
	user        *domain.User
	project     *domain.Project
}

func newDocFixtures(ctx context.Context, t *testing.T, userRepo *UserRepository, projectRepo *ProjectRepository, docRepo *DocumentRepository) *docFixtures {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	user := domain.NewUser(uuid.NewString(), uuid.NewString()+"@example.com", now)
	require.NoError(t, userRepo.Create(ctx, user))

	project := domain.NewProject(uuid.NewString(), user.ID, "Mesa Valley Solar", "", "solar", "", now)
	require.NoError(t, projectRepo.Create(ctx, project))

	return &docFixtures{
		userRepo:    userRepo,
		projectRepo: projectRepo,
		docRepo:     docRepo,
		user:        user,
		project:     project,
	}
}

func newTestDoc(f *docFixtures, sourceType domain.DocumentSourceType, sourceRef string, createdAt time.Time) *domain.Document {
	return domain.NewDocument(
		uuid.NewString(), f.project.ID, f.user.ID,
		sourceType, sourceRef, "site-survey.pdf",
		4096, "application/pdf", createdAt.Truncate(time.Microsecond),
	)
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeUpload, "", time.Now().UTC())
	require.NoError(t, f.docRepo.Create(ctx, doc))

	retrieved, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, domain.DocumentStatusPending, retrieved.Status)
	assert.Empty(t, retrieved.SourceRevision)
	assert.Empty(t, retrieved.EmbeddingModel)
	assert.Nil(t, retrieved.CompletedAt)
}

func TestDocumentRepository_GetBySourceRef(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeGoogleDrive, "gdrive:abc123", time.Now().UTC())
	doc.SourceRevision = "rev-7"
	require.NoError(t, f.docRepo.Create(ctx, doc))

	retrieved, err := f.docRepo.GetBySourceRef(ctx, f.project.ID, domain.SourceTypeGoogleDrive, "gdrive:abc123")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, "rev-7", retrieved.SourceRevision)

	_, err = f.docRepo.GetBySourceRef(ctx, f.project.ID, domain.SourceTypeDropbox, "gdrive:abc123")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ClaimForIndexing(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeUpload, "", time.Now().UTC())
	require.NoError(t, f.docRepo.Create(ctx, doc))

	require.NoError(t, f.docRepo.ClaimForIndexing(ctx, doc.ID))

	retrieved, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusProcessing, retrieved.Status)

	// A second claim while processing is rejected.
	err = f.docRepo.ClaimForIndexing(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyIndexing)

	// Missing document is reported as not found, not a conflict.
	err = f.docRepo.ClaimForIndexing(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeUpload, "", time.Now().UTC())
	require.NoError(t, f.docRepo.Create(ctx, doc))
	require.NoError(t, f.docRepo.ClaimForIndexing(ctx, doc.ID))

	require.NoError(t, f.docRepo.MarkCompleted(ctx, doc.ID, 17, "text-embedding-3-small"))

	retrieved, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, retrieved.Status)
	assert.Equal(t, 17, retrieved.ChunkCount)
	assert.Equal(t, "text-embedding-3-small", retrieved.EmbeddingModel)
	assert.NotNil(t, retrieved.CompletedAt)
}

func TestDocumentRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeUpload, "", time.Now().UTC())
	require.NoError(t, f.docRepo.Create(ctx, doc))

	require.NoError(t, f.docRepo.MarkFailed(ctx, doc.ID, "extractor: unsupported encoding"))

	retrieved, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, retrieved.Status)
	assert.Equal(t, "extractor: unsupported encoding", retrieved.ErrorDetail)
}

func TestDocumentRepository_UpdateSourceRevision(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeDropbox, "dbx:xyz", time.Now().UTC())
	doc.SourceRevision = "rev-1"
	require.NoError(t, f.docRepo.Create(ctx, doc))

	require.NoError(t, f.docRepo.UpdateSourceRevision(ctx, doc.ID, "rev-2"))

	retrieved, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "rev-2", retrieved.SourceRevision)
}

func TestDocumentRepository_ListByProject(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	now := time.Now().UTC()
	older := newTestDoc(f, domain.SourceTypeUpload, "", now)
	newer := newTestDoc(f, domain.SourceTypeUpload, "", now.Add(time.Second))
	require.NoError(t, f.docRepo.Create(ctx, older))
	require.NoError(t, f.docRepo.Create(ctx, newer))

	docs, err := f.docRepo.ListByProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, newer.ID, docs[0].ID)
	assert.Equal(t, older.ID, docs[1].ID)
}

func TestDocumentRepository_EmbeddingModels(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	now := time.Now().UTC()

	completed := newTestDoc(f, domain.SourceTypeUpload, "", now)
	require.NoError(t, f.docRepo.Create(ctx, completed))
	require.NoError(t, f.docRepo.ClaimForIndexing(ctx, completed.ID))
	require.NoError(t, f.docRepo.MarkCompleted(ctx, completed.ID, 3, "text-embedding-3-small"))

	// Pending documents have no embedding model and are excluded.
	pending := newTestDoc(f, domain.SourceTypeUpload, "", now)
	require.NoError(t, f.docRepo.Create(ctx, pending))

	models, err := f.docRepo.EmbeddingModels(ctx, f.user.ID, []string{f.project.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"text-embedding-3-small"}, models)
}

func TestDocumentRepository_CascadeOnProjectDelete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	f := newDocFixtures(ctx, t, NewUserRepository(pool), NewProjectRepository(pool), NewDocumentRepository(pool))

	doc := newTestDoc(f, domain.SourceTypeUpload, "", time.Now().UTC())
	require.NoError(t, f.docRepo.Create(ctx, doc))

	require.NoError(t, f.projectRepo.Delete(ctx, f.project.ID))

	_, err := f.docRepo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
