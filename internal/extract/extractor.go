// Package extract converts raw document bytes into plain text for chunking.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor dispatches on content type to a format-specific text extractor.
type Extractor struct{}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{}
}

// Supported reports whether the given content type or filename extension is handled.
func (e *Extractor) Supported(contentType, filename string) bool {
	switch normalizeType(contentType, filename) {
	case mimePDF, mimeDOCX, "text/plain", "text/markdown", "text/csv":
		return true
	}
	return false
}

// Extract returns the plain text of a document. Unsupported formats fail
// with ErrUnsupportedFileType; a valid file with no text content yields an
// empty string, not an error.
func (e *Extractor) Extract(content []byte, contentType, filename string) (string, error) {
	switch normalizeType(contentType, filename) {
	case mimePDF:
		return pdfText(content)
	case mimeDOCX:
		return docxText(content)
	case "text/plain", "text/markdown", "text/csv":
		return strings.TrimSpace(string(content)), nil
	default:
		return "", domain.NewDomainErrorWithCause(
			domain.ErrCodeInvalidArgument,
			"unsupported file type",
			domain.ErrUnsupportedFileType,
		)
	}
}

// normalizeType resolves a usable content type, falling back to the file
// extension when the declared type is missing or generic.
func normalizeType(contentType, filename string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case mimePDF, mimeDOCX, "text/plain", "text/markdown", "text/csv":
		return ct
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	}

	return ct
}
