package sources

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	dbxfiles "github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

// maxDropboxFileSize bounds downloads from Dropbox (20MB).
const maxDropboxFileSize = 20 * 1024 * 1024

// DropboxSource syncs documents from a Dropbox folder.
type DropboxSource struct {
	client dbxfiles.Client
}

// NewDropbox creates a Dropbox source from an access token.
func NewDropbox(accessToken string) *DropboxSource {
	return &DropboxSource{
		client: dbxfiles.New(dropbox.Config{Token: accessToken}),
	}
}

func (s *DropboxSource) Type() domain.DocumentSourceType {
	return domain.SourceTypeDropbox
}

// ListFolder lists the files directly inside a Dropbox folder. The folder is
// a Dropbox path such as "/Projects/Solar"; the empty string means the root.
func (s *DropboxSource) ListFolder(ctx context.Context, folder string) ([]File, error) {
	arg := dbxfiles.NewListFolderArg(folder)

	res, err := s.client.ListFolder(arg)
	if err != nil {
		return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("list Dropbox folder: %w", err))
	}

	var out []File
	for {
		for _, entry := range res.Entries {
			meta, ok := entry.(*dbxfiles.FileMetadata)
			if !ok {
				continue
			}
			out = append(out, dropboxFileToFile(meta))
		}

		if !res.HasMore {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err = s.client.ListFolderContinue(dbxfiles.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("continue Dropbox listing: %w", err))
		}
	}

	return out, nil
}

// Download fetches a file's bytes by Dropbox path or file id.
func (s *DropboxSource) Download(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, content, err := s.client.Download(dbxfiles.NewDownloadArg(ref))
	if err != nil {
		return nil, domain.NewUpstreamError("storage", true, fmt.Errorf("download Dropbox file: %w", err))
	}
	defer content.Close()

	if meta.Size > maxDropboxFileSize {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument,
			fmt.Sprintf("file %s exceeds the %d byte limit", meta.Name, maxDropboxFileSize))
	}

	data, err := io.ReadAll(io.LimitReader(content, maxDropboxFileSize))
	if err != nil {
		return nil, fmt.Errorf("read Dropbox file content: %w", err)
	}

	return data, nil
}

func dropboxFileToFile(meta *dbxfiles.FileMetadata) File {
	contentType := mime.TypeByExtension(filepath.Ext(meta.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return File{
		Ref:         meta.PathDisplay,
		Name:        meta.Name,
		SizeBytes:   int64(meta.Size),
		ContentType: contentType,
		Revision:    meta.Rev,
		ModifiedAt:  meta.ServerModified,
	}
}
