package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/service"
)

type RetrieverService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]*service.RetrievedChunk, error)
}

// QueryHandler exposes raw similarity search without the chat pipeline, for
// callers that want scored chunks rather than a composed answer.
type QueryHandler struct {
	retriever RetrieverService
}

func NewQueryHandler(retriever RetrieverService) *QueryHandler {
	return &QueryHandler{retriever: retriever}
}

type QueryRequest struct {
	Query      string   `json:"query"`
	ProjectIDs []string `json:"project_ids"`
	K          int      `json:"k,omitempty"`
	Threshold  *float32 `json:"threshold,omitempty"`
}

type QueryResultResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

type QueryResponse struct {
	Results []QueryResultResponse `json:"results"`
}

const (
	defaultQueryK         = 5
	defaultQueryThreshold = 0.3
)

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	k := req.K
	if k == 0 {
		k = defaultQueryK
	}
	threshold := float32(defaultQueryThreshold)
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := h.retriever.Retrieve(r.Context(), service.RetrieveInput{
		OwnerID:    ownerID,
		Query:      req.Query,
		ProjectIDs: req.ProjectIDs,
		Limit:      k,
		Threshold:  threshold,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := QueryResponse{Results: make([]QueryResultResponse, len(results))}
	for i, res := range results {
		resp.Results[i] = QueryResultResponse{
			ChunkID:    res.Chunk.ID,
			DocumentID: res.Chunk.DocumentID,
			Filename:   res.DocumentFilename,
			ChunkIndex: res.Chunk.ChunkIndex,
			Content:    res.Chunk.Content,
			Score:      res.Score,
		}
	}

	api.Success(w, http.StatusOK, resp)
}
