// Package pagination implements opaque keyset cursors over (created_at, id)
// so list endpoints stay stable under concurrent inserts.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor marks the position of the last row of the previous page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// EncodeCursor packs a row position into an opaque string. An empty ID
// yields an empty cursor, meaning the first page.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(
		[]byte(lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)))
}

// DecodeCursor unpacks a cursor produced by EncodeCursor. An empty input
// decodes to a nil cursor; anything malformed is ErrInvalidCursor.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	id, stamp, found := strings.Cut(string(raw), "|")
	if !found {
		return nil, ErrInvalidCursor
	}

	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, Timestamp: ts}, nil
}

// CreateNextCursor derives the next-page cursor from a fetched page. A page
// shorter than the limit is the last one and yields an empty cursor.
func CreateNextCursor[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return EncodeCursor(getID(last), getTimestamp(last))
}
