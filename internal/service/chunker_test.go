package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	chunker, err := NewChunker()
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	return chunker
}

func TestChunker_InvalidConfig(t *testing.T) {
	chunker := newTestChunker(t)

	tests := []struct {
		name string
		cfg  ChunkConfig
	}{
		{"zero max tokens", ChunkConfig{MaxTokens: 0, OverlapTokens: 0}},
		{"negative overlap", ChunkConfig{MaxTokens: 100, OverlapTokens: -1}},
		{"overlap equals max", ChunkConfig{MaxTokens: 100, OverlapTokens: 100}},
		{"overlap exceeds max", ChunkConfig{MaxTokens: 100, OverlapTokens: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chunker.Chunk("some text", tt.cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
		})
	}
}

func TestChunker_EmptyText(t *testing.T) {
	chunker := newTestChunker(t)

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		spans, err := chunker.Chunk(text, DefaultChunkConfig())
		require.NoError(t, err)
		assert.Empty(t, spans)
	}
}

func TestChunker_ShortTextSingleSpan(t *testing.T) {
	chunker := newTestChunker(t)

	text := "Turbine foundations require geotechnical surveys before pouring."
	spans, err := chunker.Chunk(text, DefaultChunkConfig())
	require.NoError(t, err)

	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].Content)
	assert.Equal(t, chunker.CountTokens(text), spans[0].TokenCount)
}

func TestChunker_LongTextOverlappingWindows(t *testing.T) {
	chunker := newTestChunker(t)

	text := strings.Repeat("wind turbine blade inspection report section ", 100)
	cfg := ChunkConfig{MaxTokens: 50, OverlapTokens: 10}

	spans, err := chunker.Chunk(text, cfg)
	require.NoError(t, err)
	require.Greater(t, len(spans), 1)

	for i, span := range spans {
		assert.LessOrEqual(t, span.TokenCount, cfg.MaxTokens, "span %d over budget", i)
		assert.NotEmpty(t, span.Content)
	}

	// All windows except the last are full.
	for i := 0; i < len(spans)-1; i++ {
		assert.Equal(t, cfg.MaxTokens, spans[i].TokenCount)
	}

	// Total tokens covered equals the source token count: each window after
	// the first re-covers the overlap.
	total := 0
	for _, span := range spans {
		total += span.TokenCount
	}
	overlapCovered := (len(spans) - 1) * cfg.OverlapTokens
	assert.Equal(t, chunker.CountTokens(text), total-overlapCovered)
}

func TestChunker_Deterministic(t *testing.T) {
	chunker := newTestChunker(t)

	text := strings.Repeat("permit application status update ", 200)
	cfg := ChunkConfig{MaxTokens: 40, OverlapTokens: 8}

	first, err := chunker.Chunk(text, cfg)
	require.NoError(t, err)
	second, err := chunker.Chunk(text, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunker_CountTokens(t *testing.T) {
	chunker := newTestChunker(t)

	assert.Equal(t, 0, chunker.CountTokens(""))
	assert.Greater(t, chunker.CountTokens("interconnection agreement"), 0)
}
