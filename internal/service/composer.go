package service

import (
	"fmt"
	"strings"
)

const (
	// RoleUser and RoleAssistant mirror the chat completion roles.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	groundedSystemPrompt = `You are Gridpoint, an assistant for renewable energy project teams.
Answer using only the numbered context excerpts below. Cite excerpts inline
with their bracketed number, e.g. [1]. If the context does not contain the
answer, say so instead of guessing.`

	ungroundedSystemPrompt = `You are Gridpoint, an assistant for renewable energy project teams.
No project documents were available for this question, so answer from general
knowledge and say that the answer is not based on the project's documents.`
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// Citation maps an ordinal context marker to the chunk behind it.
type Citation struct {
	Ordinal    int
	ChunkID    string
	DocumentID string
	Score      float32
}

// Prompt is a fully composed completion request.
type Prompt struct {
	System   string
	Messages []ChatMessage
}

// ComposeInput carries everything the composer packs into a prompt.
type ComposeInput struct {
	Query   string
	Results []*RetrievedChunk
	History []ChatMessage
}

// ComposerService assembles completion prompts from retrieved chunks under a
// token budget. Composition never fails: when nothing fits the prompt simply
// carries no context.
type ComposerService struct {
	chunker     *Chunker
	tokenBudget int
}

func NewComposerService(chunker *Chunker, tokenBudget int) *ComposerService {
	if tokenBudget <= 0 {
		tokenBudget = 6000
	}
	return &ComposerService{
		chunker:     chunker,
		tokenBudget: tokenBudget,
	}
}

// Compose packs retrieved chunks into the system prompt in the order given
// (highest score first) until the token budget is reached; the first chunk
// that does not fit stops packing. Conversation history is kept within the
// remaining budget, dropping the oldest turns first. The final user message
// is always included.
func (s *ComposerService) Compose(input ComposeInput) (*Prompt, []Citation) {
	budget := s.tokenBudget
	budget -= s.chunker.CountTokens(input.Query)

	var contextBlocks []string
	var citations []Citation

	for _, result := range input.Results {
		ordinal := len(citations) + 1
		block := fmt.Sprintf("[%d] %s\n%s", ordinal, result.DocumentFilename, result.Chunk.Content)

		cost := s.chunker.CountTokens(block)
		if cost > budget {
			break
		}
		budget -= cost

		contextBlocks = append(contextBlocks, block)
		citations = append(citations, Citation{
			Ordinal:    ordinal,
			ChunkID:    result.Chunk.ID,
			DocumentID: result.Chunk.DocumentID,
			Score:      result.Score,
		})
	}

	system := ungroundedSystemPrompt
	if len(contextBlocks) > 0 {
		system = groundedSystemPrompt + "\n\nContext:\n\n" + strings.Join(contextBlocks, "\n\n")
	}

	history := s.truncateHistory(input.History, budget)

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: input.Query})

	return &Prompt{System: system, Messages: messages}, citations
}

// truncateHistory keeps the newest turns that fit the remaining budget.
func (s *ComposerService) truncateHistory(history []ChatMessage, budget int) []ChatMessage {
	if len(history) == 0 || budget <= 0 {
		return nil
	}

	kept := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := s.chunker.CountTokens(history[i].Content)
		if cost > budget {
			break
		}
		budget -= cost
		kept++
	}

	if kept == 0 {
		return nil
	}
	return history[len(history)-kept:]
}
