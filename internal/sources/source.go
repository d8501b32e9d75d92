// Package sources provides connectors for cloud folders documents are
// synced from.
package sources

import (
	"context"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

// File describes one file found while listing a cloud folder.
type File struct {
	Ref         string // provider-native file identifier
	Name        string
	SizeBytes   int64
	ContentType string
	Revision    string // provider revision or content hash, used to skip unchanged files
	ModifiedAt  time.Time
}

// Source is a cloud storage provider documents can be pulled from.
type Source interface {
	Type() domain.DocumentSourceType
	ListFolder(ctx context.Context, folder string) ([]File, error)
	Download(ctx context.Context, ref string) ([]byte, error)
}
