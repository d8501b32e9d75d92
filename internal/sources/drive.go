package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

const (
	mimeTypeGoogleDoc = "application/vnd.google-apps.document"
	mimeTypeFolder    = "application/vnd.google-apps.folder"

	driveExportMime = "text/plain"

	// maxDriveFileSize bounds downloads from Drive (20MB).
	maxDriveFileSize = 20 * 1024 * 1024
)

// GoogleDriveSource syncs documents from a Google Drive folder.
type GoogleDriveSource struct {
	svc *drive.Service
}

// NewGoogleDrive creates a Drive source from OAuth credential and token files.
func NewGoogleDrive(ctx context.Context, credentialsFile, tokenFile string) (*GoogleDriveSource, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read Drive credentials: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Drive credentials: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read Drive token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to parse Drive token: %w", err)
	}

	return NewGoogleDriveWithTokenSource(ctx, oauthCfg.TokenSource(ctx, &token))
}

// NewGoogleDriveWithTokenSource creates a Drive source from an oauth2 token source.
func NewGoogleDriveWithTokenSource(ctx context.Context, ts oauth2.TokenSource) (*GoogleDriveSource, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &GoogleDriveSource{svc: svc}, nil
}

func (s *GoogleDriveSource) Type() domain.DocumentSourceType {
	return domain.SourceTypeGoogleDrive
}

// ListFolder lists the non-folder files directly inside a Drive folder.
func (s *GoogleDriveSource) ListFolder(ctx context.Context, folder string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folder)

	var out []File
	err := s.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, size, md5Checksum, modifiedTime)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if f.MimeType == mimeTypeFolder {
					continue
				}
				out = append(out, driveFileToFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("list Drive folder: %w", err))
	}

	return out, nil
}

// Download fetches a file's bytes; Google Docs are exported as plain text.
func (s *GoogleDriveSource) Download(ctx context.Context, ref string) ([]byte, error) {
	meta, err := s.svc.Files.Get(ref).Fields("id, mimeType").Context(ctx).Do()
	if err != nil {
		return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("get Drive file: %w", err))
	}

	var resp io.ReadCloser
	if meta.MimeType == mimeTypeGoogleDoc {
		r, err := s.svc.Files.Export(ref, driveExportMime).Context(ctx).Download()
		if err != nil {
			return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("export Drive file: %w", err))
		}
		resp = r.Body
	} else {
		r, err := s.svc.Files.Get(ref).Context(ctx).Download()
		if err != nil {
			return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("download Drive file: %w", err))
		}
		resp = r.Body
	}
	defer resp.Close()

	data, err := io.ReadAll(io.LimitReader(resp, maxDriveFileSize))
	if err != nil {
		return nil, fmt.Errorf("read Drive file content: %w", err)
	}

	return data, nil
}

func driveFileToFile(f *drive.File) File {
	contentType := f.MimeType
	if f.MimeType == mimeTypeGoogleDoc {
		contentType = driveExportMime
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(f.Name))
	}

	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	revision := f.Md5Checksum
	if revision == "" {
		revision = f.ModifiedTime
	}

	return File{
		Ref:         f.Id,
		Name:        f.Name,
		SizeBytes:   f.Size,
		ContentType: contentType,
		Revision:    revision,
		ModifiedAt:  modified,
	}
}
