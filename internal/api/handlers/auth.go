package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/go-chi/chi/v5"
)

type AuthService interface {
	CreateUser(ctx context.Context, email string) (*domain.User, error)
	CreateAPIKey(ctx context.Context, userID, name string) (string, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateUserRequest struct {
	Email string `json:"email"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

type APIKeyResponse struct {
	ID        string `json:"id,omitempty"`
	Token     string `json:"token,omitempty"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
	RevokedAt string `json:"revoked_at,omitempty"`
}

func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		api.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req.Email)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CreateAPIKey issues a key for the authenticated user. The plaintext token
// is returned once and never stored.
func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), userID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, APIKeyResponse{
		Token: token,
		Name:  req.Name,
	})
}

type APIKeyListResponse struct {
	Items []*APIKeyResponse `json:"items"`
}

func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := h.svc.ListAPIKeys(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*APIKeyResponse, len(keys))
	for i, k := range keys {
		item := &APIKeyResponse{
			ID:        k.ID,
			Name:      k.Name,
			CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339),
		}
		if k.RevokedAt != nil {
			item.RevokedAt = k.RevokedAt.UTC().Format(time.RFC3339)
		}
		items[i] = item
	}

	api.Success(w, http.StatusOK, APIKeyListResponse{Items: items})
}

func (h *AuthHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.RevokeAPIKey(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"status": "revoked"})
}
