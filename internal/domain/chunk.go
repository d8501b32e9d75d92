package domain

import "time"

// Chunk is a contiguous slice of a document's extracted text, the unit of
// embedding and retrieval. Chunks are immutable once written; chunk indices
// for a document are contiguous starting at 0.
type Chunk struct {
	ID         string
	DocumentID string
	ProjectID  string // denormalized for scoped vector queries
	OwnerID    string
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
	Metadata   map[string]string
	CreatedAt  time.Time
}
