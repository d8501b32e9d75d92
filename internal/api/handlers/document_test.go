package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Status(ctx context.Context, ownerID, documentID string) (*service.DocumentStatus, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentStatus), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) RequestIndex(ctx context.Context, ownerID, documentID string) (*domain.IndexJob, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexJob), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	args := m.Called(ctx, ownerID, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	args := m.Called(ctx, ownerID, documentID)
	return args.Error(0)
}

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncFolder(ctx context.Context, input service.SyncInput) (*service.SyncResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-123",
		ProjectID:   "proj-789",
		OwnerID:     "user-456",
		SourceType:  domain.SourceTypeUpload,
		SourceRef:   "user-456/proj-789/doc-123",
		Filename:    "interconnection-study.pdf",
		SizeBytes:   2048,
		ContentType: "application/pdf",
		Status:      domain.DocumentStatusPending,
		CreatedAt:   now,
	}
}

func multipartUploadRequest(t *testing.T, projectID, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("project_id", projectID))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	return req.WithContext(ctx)
}

func TestDocumentHandler_Upload_Success(t *testing.T) {
	mockIngest := new(MockIngestService)
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(mockIngest, mockDocs, nil)

	expected := newTestDocument()
	mockIngest.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadInput) bool {
		return input.OwnerID == "user-456" &&
			input.ProjectID == "proj-789" &&
			input.Filename == "interconnection-study.pdf" &&
			string(input.Content) == "pdf bytes"
	})).Return(expected, nil)

	req := multipartUploadRequest(t, "proj-789", "interconnection-study.pdf", []byte("pdf bytes"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data DocumentResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "doc-123", resp.Data.ID)
	assert.Equal(t, "pending", resp.Data.Status)
	mockIngest.AssertExpectations(t)
}

func TestDocumentHandler_Upload_MissingProjectID(t *testing.T) {
	mockIngest := new(MockIngestService)
	handler := NewDocumentHandler(mockIngest, new(MockDocumentService), nil)

	req := multipartUploadRequest(t, "", "report.pdf", []byte("data"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "project_id is required")
	mockIngest.AssertNotCalled(t, "Upload")
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockIngest := new(MockIngestService)
	handler := NewDocumentHandler(mockIngest, new(MockDocumentService), nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("project_id", "proj-789"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
}

func TestDocumentHandler_Upload_UnsupportedType(t *testing.T) {
	mockIngest := new(MockIngestService)
	handler := NewDocumentHandler(mockIngest, new(MockDocumentService), nil)

	mockIngest.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFileType)

	req := multipartUploadRequest(t, "proj-789", "photo.png", []byte{0x89, 0x50})
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Get_Success(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	mockDocs.On("Get", mock.Anything, "user-456", "doc-123").Return(newTestDocument(), nil)

	req := requestWithUserID(http.MethodGet, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockDocs.AssertExpectations(t)
}

func TestDocumentHandler_Status_WithJob(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	doc := newTestDocument()
	job := domain.NewIndexJob("job-1", doc.ID, time.Now().UTC())
	mockDocs.On("Status", mock.Anything, "user-456", "doc-123").Return(&service.DocumentStatus{
		Document:  doc,
		LatestJob: job,
	}, nil)

	req := requestWithUserID(http.MethodGet, "/documents/doc-123/status", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Status(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data DocumentStatusResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Data.LatestJob)
	assert.Equal(t, "pending", resp.Data.LatestJob.Status)
}

func TestDocumentHandler_List_RequiresProjectID(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	req := requestWithUserID(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "project_id is required")
}

func TestDocumentHandler_List_Success(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	output := &service.ListDocumentsOutput{
		Items:   []*domain.Document{newTestDocument()},
		HasMore: false,
	}
	mockDocs.On("List", mock.Anything, mock.MatchedBy(func(input service.ListDocumentsInput) bool {
		return input.OwnerID == "user-456" && input.ProjectID == "proj-789"
	})).Return(output, nil)

	req := requestWithUserID(http.MethodGet, "/documents?project_id=proj-789", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data DocumentListResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp.Data.Items, 1)
	mockDocs.AssertExpectations(t)
}

func TestDocumentHandler_RequestIndex_Accepted(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	job := domain.NewIndexJob("job-2", "doc-123", time.Now().UTC())
	mockDocs.On("RequestIndex", mock.Anything, "user-456", "doc-123").Return(job, nil)

	req := requestWithUserID(http.MethodPost, "/documents/doc-123/index", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.RequestIndex(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockDocs.AssertExpectations(t)
}

func TestDocumentHandler_RequestIndex_AlreadyIndexing(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	mockDocs.On("RequestIndex", mock.Anything, "user-456", "doc-123").Return(nil, domain.ErrAlreadyIndexing)

	req := requestWithUserID(http.MethodPost, "/documents/doc-123/index", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.RequestIndex(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDocumentHandler_Download_Success(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	mockDocs.On("DownloadURL", mock.Anything, "user-456", "doc-123").Return("https://objects/signed", nil)

	req := requestWithUserID(http.MethodGet, "/documents/doc-123/download", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data DownloadResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "https://objects/signed", resp.Data.URL)
}

func TestDocumentHandler_Download_NotFound(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	mockDocs.On("DownloadURL", mock.Anything, "user-456", "doc-404").Return("", domain.ErrDocumentNotFound)

	req := requestWithUserID(http.MethodGet, "/documents/doc-404/download", nil)
	req = withURLParam(req, "id", "doc-404")
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockDocs := new(MockDocumentService)
	handler := NewDocumentHandler(new(MockIngestService), mockDocs, nil)

	mockDocs.On("Delete", mock.Anything, "user-456", "doc-123").Return(nil)

	req := requestWithUserID(http.MethodDelete, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockDocs.AssertExpectations(t)
}

func TestDocumentHandler_Sync_Success(t *testing.T) {
	mockSync := new(MockSyncService)
	handler := NewDocumentHandler(new(MockIngestService), new(MockDocumentService), mockSync)

	result := &service.SyncResult{
		Created:   2,
		Updated:   1,
		Skipped:   3,
		Documents: []*domain.Document{newTestDocument()},
	}
	mockSync.On("SyncFolder", mock.Anything, mock.MatchedBy(func(input service.SyncInput) bool {
		return input.OwnerID == "user-456" &&
			input.ProjectID == "proj-789" &&
			input.SourceType == domain.SourceTypeGoogleDrive &&
			input.Folder == "folder-abc"
	})).Return(result, nil)

	body := `{"project_id":"proj-789","source_type":"google_drive","folder":"folder-abc"}`
	req := requestWithUserID(http.MethodPost, "/documents/sync", []byte(body))
	w := httptest.NewRecorder()

	handler.Sync(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SyncResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Data.Created)
	assert.Equal(t, 1, resp.Data.Updated)
	assert.Equal(t, 3, resp.Data.Skipped)
	mockSync.AssertExpectations(t)
}

func TestDocumentHandler_Sync_NotConfigured(t *testing.T) {
	handler := NewDocumentHandler(new(MockIngestService), new(MockDocumentService), nil)

	body := `{"project_id":"proj-789","source_type":"dropbox","folder":"/reports"}`
	req := requestWithUserID(http.MethodPost, "/documents/sync", []byte(body))
	w := httptest.NewRecorder()

	handler.Sync(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestDocumentHandler_Sync_MissingSourceType(t *testing.T) {
	mockSync := new(MockSyncService)
	handler := NewDocumentHandler(new(MockIngestService), new(MockDocumentService), mockSync)

	body := `{"project_id":"proj-789"}`
	req := requestWithUserID(http.MethodPost, "/documents/sync", []byte(body))
	w := httptest.NewRecorder()

	handler.Sync(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "source_type is required")
	mockSync.AssertNotCalled(t, "SyncFolder")
}
