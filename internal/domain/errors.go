package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeAlreadyIndexing     = "ALREADY_INDEXING"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeEmbeddingMismatch   = "EMBEDDING_MISMATCH"
	ErrCodeIndexFailed         = "INDEX_FAILED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidChunkConfig  = NewDomainError(ErrCodeInvalidArgument, "chunk max tokens must exceed overlap tokens and both must be non-negative")
	ErrEmptyQuery          = NewDomainError(ErrCodeInvalidArgument, "query text cannot be empty")
	ErrInvalidResultLimit  = NewDomainError(ErrCodeInvalidArgument, "result limit must be positive")
	ErrInvalidSourceType   = NewDomainError(ErrCodeInvalidArgument, "invalid document source type")
	ErrUnsupportedFileType = NewDomainError(ErrCodeInvalidArgument, "unsupported file type")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrProjectNotFound      = NewDomainError(ErrCodeNotFound, "project not found")
	ErrUserNotFound         = NewDomainError(ErrCodeNotFound, "user not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
)

// Already exists errors
var (
	ErrUserAlreadyExists    = NewDomainError(ErrCodeAlreadyExists, "user already exists")
	ErrProjectAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "project already exists")
	ErrAPIKeyAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked  = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey  = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrNotOwner       = NewDomainError(ErrCodeForbidden, "resource is owned by another user")
	ErrScopeForbidden = NewDomainError(ErrCodeForbidden, "project scope contains projects not owned by caller")
)

// Indexing and retrieval errors
var (
	ErrAlreadyIndexing     = NewDomainError(ErrCodeAlreadyIndexing, "document is already being indexed")
	ErrUpstreamUnavailable = NewDomainError(ErrCodeUpstreamUnavailable, "upstream provider call failed")
	ErrEmbeddingMismatch   = NewDomainError(ErrCodeEmbeddingMismatch, "query embedding does not match the indexed embedding model")
)

// UpstreamError wraps a provider failure with a transient/permanent
// distinction that callers use to decide retry eligibility.
type UpstreamError struct {
	Provider  string // "embedding", "completion", "storage"
	Transient bool
	Err       error
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s provider failed (%s): %v", e.Provider, kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(provider string, transient bool, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Transient: transient, Err: err}
}

// IsTransient reports whether err is an upstream failure worth retrying.
func IsTransient(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Transient
	}
	return false
}
