package service

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

// chunkEncoding is the tokenizer family used by the embedding models.
const chunkEncoding = "cl100k_base"

// ChunkConfig controls token-window chunking of document text.
type ChunkConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// DefaultChunkConfig provides the defaults used for document indexing.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokens:     1000,
		OverlapTokens: 200,
	}
}

// ChunkSpan is one chunk of document text with its token count.
type ChunkSpan struct {
	Content    string
	TokenCount int
}

// Chunker splits text into overlapping token windows. It is pure and
// deterministic: the same text and config always produce the same spans.
type Chunker struct {
	enc *tiktoken.Tiktoken
}

// NewChunker creates a Chunker backed by the cl100k_base tokenizer.
func NewChunker() (*Chunker, error) {
	enc, err := tiktoken.GetEncoding(chunkEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", chunkEncoding, err)
	}
	return &Chunker{enc: enc}, nil
}

// Chunk splits text into windows of cfg.MaxTokens tokens, each window
// starting cfg.MaxTokens-cfg.OverlapTokens after the previous one. The final
// window is truncated to the remaining tokens. Empty or whitespace-only text
// yields no chunks.
func (c *Chunker) Chunk(text string, cfg ChunkConfig) ([]ChunkSpan, error) {
	if cfg.MaxTokens <= 0 || cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokens {
		return nil, domain.ErrInvalidChunkConfig
	}

	if strings.TrimSpace(text) == "" {
		return []ChunkSpan{}, nil
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return []ChunkSpan{}, nil
	}

	if len(tokens) <= cfg.MaxTokens {
		return []ChunkSpan{{Content: text, TokenCount: len(tokens)}}, nil
	}

	stride := cfg.MaxTokens - cfg.OverlapTokens
	spans := make([]ChunkSpan, 0, (len(tokens)+stride-1)/stride)

	for start := 0; start < len(tokens); start += stride {
		end := start + cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		spans = append(spans, ChunkSpan{
			Content:    c.enc.Decode(window),
			TokenCount: len(window),
		})

		if end >= len(tokens) {
			break
		}
	}

	return spans, nil
}

// CountTokens returns the cl100k_base token count of text.
func (c *Chunker) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
