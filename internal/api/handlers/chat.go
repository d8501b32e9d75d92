package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/gridpoint-ai/gridpoint/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatResult, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message        string               `json:"message"`
	ProjectIDs     []string             `json:"project_ids,omitempty"`
	UseRAG         *bool                `json:"use_rag,omitempty"`
	ConversationID string               `json:"conversation_id,omitempty"`
	History        []ChatMessageRequest `json:"history,omitempty"`
}

type CitationResponse struct {
	Ordinal    int     `json:"ordinal"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float32 `json:"score"`
}

type ChatResponse struct {
	Response       string             `json:"response"`
	Citations      []CitationResponse `json:"citations"`
	Confidence     float32            `json:"confidence"`
	Grounded       bool               `json:"grounded"`
	ConversationID string             `json:"conversation_id"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	// RAG is on unless the caller explicitly turns it off.
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	history := make([]service.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		if m.Role != service.RoleUser && m.Role != service.RoleAssistant {
			api.Error(w, http.StatusBadRequest, "history roles must be user or assistant")
			return
		}
		history = append(history, service.ChatMessage{Role: m.Role, Content: m.Content})
	}

	result, err := h.svc.Chat(r.Context(), service.ChatInput{
		OwnerID:        ownerID,
		Message:        req.Message,
		ProjectIDs:     req.ProjectIDs,
		UseRAG:         useRAG,
		ConversationID: req.ConversationID,
		History:        history,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	citations := make([]CitationResponse, len(result.Citations))
	for i, c := range result.Citations {
		citations[i] = CitationResponse{
			Ordinal:    c.Ordinal,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Score:      c.Score,
		}
	}

	api.Success(w, http.StatusOK, ChatResponse{
		Response:       result.Response,
		Citations:      citations,
		Confidence:     result.Confidence,
		Grounded:       result.Grounded,
		ConversationID: result.ConversationID,
	})
}
