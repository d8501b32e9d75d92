package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds the in-memory portion of multipart parsing. Larger
// files spill to temp files; the body size itself is capped by middleware.
const maxUploadBytes = 32 << 20

type IngestService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
}

type DocumentService interface {
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	Status(ctx context.Context, ownerID, documentID string) (*service.DocumentStatus, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	RequestIndex(ctx context.Context, ownerID, documentID string) (*domain.IndexJob, error)
	DownloadURL(ctx context.Context, ownerID, documentID string) (string, error)
	Delete(ctx context.Context, ownerID, documentID string) error
}

type SyncService interface {
	SyncFolder(ctx context.Context, input service.SyncInput) (*service.SyncResult, error)
}

type DocumentHandler struct {
	ingest IngestService
	docs   DocumentService
	sync   SyncService
}

func NewDocumentHandler(ingest IngestService, docs DocumentService, sync SyncService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs, sync: sync}
}

type DocumentResponse struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	OwnerID        string `json:"owner_id"`
	SourceType     string `json:"source_type"`
	SourceRef      string `json:"source_ref,omitempty"`
	Filename       string `json:"filename"`
	SizeBytes      int64  `json:"size_bytes"`
	ContentType    string `json:"content_type,omitempty"`
	Status         string `json:"status"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ErrorDetail    string `json:"error_detail,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		OwnerID:        d.OwnerID,
		SourceType:     string(d.SourceType),
		SourceRef:      d.SourceRef,
		Filename:       d.Filename,
		SizeBytes:      d.SizeBytes,
		ContentType:    d.ContentType,
		Status:         string(d.Status),
		ChunkCount:     d.ChunkCount,
		EmbeddingModel: d.EmbeddingModel,
		ErrorDetail:    d.ErrorDetail,
		CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.CompletedAt != nil {
		resp.CompletedAt = d.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Upload accepts a multipart form with a "file" part and a "project_id" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	projectID := r.FormValue("project_id")
	if projectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")

	doc, err := h.ingest.Upload(r.Context(), service.UploadInput{
		OwnerID:     ownerID,
		ProjectID:   projectID,
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.docs.Get(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type IndexJobResponse struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func indexJobToResponse(j *domain.IndexJob) *IndexJobResponse {
	resp := &IndexJobResponse{
		ID:         j.ID,
		DocumentID: j.DocumentID,
		Status:     string(j.Status),
		Retries:    j.Retries,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type DocumentStatusResponse struct {
	Document  *DocumentResponse `json:"document"`
	LatestJob *IndexJobResponse `json:"latest_job,omitempty"`
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	status, err := h.docs.Status(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := DocumentStatusResponse{Document: documentToResponse(status.Document)}
	if status.LatestJob != nil {
		resp.LatestJob = indexJobToResponse(status.LatestJob)
	}

	api.Success(w, http.StatusOK, resp)
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.docs.List(r.Context(), service.ListDocumentsInput{
		OwnerID:   ownerID,
		ProjectID: projectID,
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *DocumentHandler) RequestIndex(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.docs.RequestIndex(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, indexJobToResponse(job))
}

type DownloadResponse struct {
	URL string `json:"url"`
}

// Download returns a time-limited URL for the document's original bytes.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.docs.DownloadURL(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadResponse{URL: url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.docs.Delete(r.Context(), ownerID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"status": "deleted"})
}

type SyncRequest struct {
	ProjectID  string `json:"project_id"`
	SourceType string `json:"source_type"`
	Folder     string `json:"folder"`
}

type SyncResponse struct {
	Created   int                 `json:"created"`
	Updated   int                 `json:"updated"`
	Skipped   int                 `json:"skipped"`
	Documents []*DocumentResponse `json:"documents"`
}

// Sync imports documents from a connected cloud folder into a project.
func (h *DocumentHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.sync == nil {
		api.Error(w, http.StatusNotImplemented, "folder sync not available")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProjectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if req.SourceType == "" {
		api.Error(w, http.StatusBadRequest, "source_type is required")
		return
	}

	result, err := h.sync.SyncFolder(r.Context(), service.SyncInput{
		OwnerID:    ownerID,
		ProjectID:  req.ProjectID,
		SourceType: domain.DocumentSourceType(req.SourceType),
		Folder:     req.Folder,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	documents := make([]*DocumentResponse, len(result.Documents))
	for i, d := range result.Documents {
		documents[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, SyncResponse{
		Created:   result.Created,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		Documents: documents,
	})
}
