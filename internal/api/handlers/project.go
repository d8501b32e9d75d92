package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProjectService interface {
	Create(ctx context.Context, input service.CreateProjectInput) (*domain.Project, error)
	Get(ctx context.Context, ownerID, projectID string) (*domain.Project, error)
	List(ctx context.Context, input service.ListProjectsInput) (*service.ListProjectsOutput, error)
	Update(ctx context.Context, input service.UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, ownerID, projectID string) error
}

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type CreateProjectRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Market      string            `json:"market"`
	Location    string            `json:"location"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Market      string            `json:"market"`
	Location    string            `json:"location"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ProjectResponse struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Market      string            `json:"market,omitempty"`
	Location    string            `json:"location,omitempty"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

func projectToResponse(p *domain.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Market:      p.Market,
		Location:    p.Location,
		Status:      string(p.Status),
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	input := service.CreateProjectInput{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Market:      req.Market,
		Location:    req.Location,
		Metadata:    req.Metadata,
	}

	project, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, projectToResponse(project))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	project, err := h.svc.Get(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectToResponse(project))
}

type ProjectListResponse struct {
	Items   []*ProjectResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
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

	output, err := h.svc.List(r.Context(), service.ListProjectsInput{
		OwnerID: ownerID,
		Cursor:  cursor,
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ProjectResponse, len(output.Items))
	for i, p := range output.Items {
		responses[i] = projectToResponse(p)
	}

	api.Success(w, http.StatusOK, ProjectListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateProjectInput{
		ProjectID:   id,
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Market:      req.Market,
		Location:    req.Location,
		Status:      domain.ProjectStatus(req.Status),
		Metadata:    req.Metadata,
	}

	project, err := h.svc.Update(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectToResponse(project))
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.svc.Delete(r.Context(), ownerID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"status": "deleted"})
}
