package domain

import "time"

// ConversationContext logs one retrieval-augmented exchange: the literal
// query, the chunks that were retrieved for it, and the literal response.
// Records are append-only and removed only by owner-initiated purge.
type ConversationContext struct {
	ID             string
	OwnerID        string
	ConversationID string
	Query          string
	ChunkIDs       []string // ordered as retrieved
	Response       string
	ContextScore   float32 // how much retrieved context contributed
	CreatedAt      time.Time
}
