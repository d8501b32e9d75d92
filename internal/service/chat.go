package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// CompletionClient defines the interface for chat completions.
type CompletionClient interface {
	Complete(ctx context.Context, system string, messages []ChatMessage) (string, error)
}

// Retriever defines the retrieval interface the orchestrator depends on.
type Retriever interface {
	Retrieve(ctx context.Context, input RetrieveInput) ([]*RetrievedChunk, error)
}

// ConversationRepositoryInterface persists per-turn grounding records.
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, cc *domain.ConversationContext) error
	ListRecent(ctx context.Context, ownerID, conversationID string, limit int) ([]*domain.ConversationContext, error)
}

// ChatConfig tunes retrieval and history behavior per request defaults.
type ChatConfig struct {
	RetrievalLimit     int
	RetrievalThreshold float32
	HistoryTurns       int
}

// DefaultChatConfig provides the defaults used by the chat endpoint.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		RetrievalLimit:     5,
		RetrievalThreshold: 0.3,
		HistoryTurns:       10,
	}
}

// ChatInput represents one user message to the assistant.
type ChatInput struct {
	OwnerID        string
	Message        string
	ProjectIDs     []string
	UseRAG         bool
	ConversationID string
	History        []ChatMessage
}

// ChatResult is the assistant's answer with its grounding evidence.
type ChatResult struct {
	Response       string
	Citations      []Citation
	Confidence     float32
	Grounded       bool
	ConversationID string
}

// ChatService orchestrates retrieval, prompt composition, and completion.
type ChatService struct {
	retriever        Retriever
	composer         *ComposerService
	completion       CompletionClient
	conversationRepo ConversationRepositoryInterface
	uuidGen          UUIDGenerator
	cfg              ChatConfig
}

func NewChatService(
	retriever Retriever,
	composer *ComposerService,
	completion CompletionClient,
	conversationRepo ConversationRepositoryInterface,
	cfg ChatConfig,
) *ChatService {
	return &ChatService{
		retriever:        retriever,
		composer:         composer,
		completion:       completion,
		conversationRepo: conversationRepo,
		uuidGen:          &DefaultUUIDGenerator{},
		cfg:              cfg,
	}
}

// NewChatServiceWithUUIDGen creates a ChatService with a custom UUID
// generator (for testing).
func NewChatServiceWithUUIDGen(
	retriever Retriever,
	composer *ComposerService,
	completion CompletionClient,
	conversationRepo ConversationRepositoryInterface,
	cfg ChatConfig,
	uuidGen UUIDGenerator,
) *ChatService {
	s := NewChatService(retriever, composer, completion, conversationRepo, cfg)
	s.uuidGen = uuidGen
	return s
}

// Chat answers one user message. Retrieval runs when the caller opted in and
// provided a project scope; a retrieval failure degrades the answer to an
// ungrounded one rather than failing the request. A completion failure is
// retried once if the provider classified it transient, then surfaces as
// UPSTREAM_UNAVAILABLE.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Chat", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "chat",
	})
	defer span.End()

	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "message cannot be empty")
	}
	if input.OwnerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "owner ID is required")
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = s.uuidGen.NewString()
	}

	history := input.History
	if len(history) == 0 && input.ConversationID != "" && s.conversationRepo != nil {
		history = s.loadHistory(ctx, input.OwnerID, input.ConversationID)
	}

	results, err := s.retrieveContext(ctx, input)
	if err != nil {
		return nil, err
	}

	prompt, citations := s.composer.Compose(ComposeInput{
		Query:   input.Message,
		Results: results,
		History: history,
	})

	response, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &ChatResult{
		Response:       response,
		Citations:      citations,
		Grounded:       len(citations) > 0,
		ConversationID: conversationID,
	}
	if result.Grounded {
		result.Confidence = citations[0].Score
	}

	s.recordTurn(ctx, input, result)

	return result, nil
}

// retrieveContext runs retrieval when requested. Validation and authorization
// errors propagate; anything else degrades to an empty context.
func (s *ChatService) retrieveContext(ctx context.Context, input ChatInput) ([]*RetrievedChunk, error) {
	if !input.UseRAG || len(input.ProjectIDs) == 0 {
		return nil, nil
	}

	results, err := s.retriever.Retrieve(ctx, RetrieveInput{
		OwnerID:    input.OwnerID,
		Query:      input.Message,
		ProjectIDs: input.ProjectIDs,
		Limit:      s.cfg.RetrievalLimit,
		Threshold:  s.cfg.RetrievalThreshold,
	})
	if err != nil {
		if errors.Is(err, domain.ErrScopeForbidden) ||
			errors.Is(err, domain.ErrEmbeddingMismatch) ||
			errors.Is(err, domain.ErrEmptyQuery) ||
			errors.Is(err, domain.ErrInvalidResultLimit) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		telemetry.CaptureError(ctx, err)
		return nil, nil
	}
	return results, nil
}

func (s *ChatService) complete(ctx context.Context, prompt *Prompt) (string, error) {
	response, err := s.completion.Complete(ctx, prompt.System, prompt.Messages)
	if err == nil {
		return response, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if domain.IsTransient(err) {
		response, err = s.completion.Complete(ctx, prompt.System, prompt.Messages)
		if err == nil {
			return response, nil
		}
	}
	return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "completion provider failed", err)
}

func (s *ChatService) loadHistory(ctx context.Context, ownerID, conversationID string) []ChatMessage {
	turns, err := s.conversationRepo.ListRecent(ctx, ownerID, conversationID, s.cfg.HistoryTurns)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return nil
	}

	history := make([]ChatMessage, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history, ChatMessage{Role: RoleUser, Content: turn.Query})
		if turn.Response != "" {
			history = append(history, ChatMessage{Role: RoleAssistant, Content: turn.Response})
		}
	}
	return history
}

// recordTurn appends the exchange to the conversation log. Best effort: a
// logging failure never fails the chat.
func (s *ChatService) recordTurn(ctx context.Context, input ChatInput, result *ChatResult) {
	if s.conversationRepo == nil {
		return
	}

	chunkIDs := make([]string, len(result.Citations))
	for i, c := range result.Citations {
		chunkIDs[i] = c.ChunkID
	}

	cc := &domain.ConversationContext{
		ID:             s.uuidGen.NewString(),
		OwnerID:        input.OwnerID,
		ConversationID: result.ConversationID,
		Query:          input.Message,
		ChunkIDs:       chunkIDs,
		Response:       result.Response,
		ContextScore:   result.Confidence,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.conversationRepo.Create(ctx, cc); err != nil {
		telemetry.CaptureError(ctx, err)
	}
}
