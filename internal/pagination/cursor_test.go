package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

	encoded := EncodeCursor("doc-42", ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "doc-42", cursor.LastID)
	assert.True(t, cursor.Timestamp.Equal(ts))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{
			name:   "not base64",
			cursor: "!!!not-base64!!!",
		},
		{
			name:   "missing separator",
			cursor: base64.StdEncoding.EncodeToString([]byte("no-separator-here")),
		},
		{
			name:   "bad timestamp",
			cursor: base64.StdEncoding.EncodeToString([]byte("doc-1|yesterday")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestCreateNextCursor(t *testing.T) {
	type row struct {
		ID        string
		CreatedAt time.Time
	}

	now := time.Now().UTC()
	rows := []row{
		{ID: "a", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "b", CreatedAt: now.Add(-time.Minute)},
		{ID: "c", CreatedAt: now},
	}

	getID := func(r row) string { return r.ID }
	getTS := func(r row) time.Time { return r.CreatedAt }

	// Full page: cursor points at the last row.
	cursor := CreateNextCursor(rows, 3, getID, getTS)
	require.NotEmpty(t, cursor)
	decoded, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, "c", decoded.LastID)

	// Short page means no more results.
	assert.Empty(t, CreateNextCursor(rows, 5, getID, getTS))
	assert.Empty(t, CreateNextCursor([]row{}, 3, getID, getTS))
}
