package domain

import "fmt"

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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Video pipeline error codes
const (
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeNoTranscript          = "NO_TRANSCRIPT"
	ErrCodeVideoPrivate          = "VIDEO_PRIVATE"
	ErrCodeVideoAgeRestricted    = "VIDEO_AGE_RESTRICTED"
	ErrCodeTranscriptFetchFailed = "TRANSCRIPT_FETCH_FAILED"
	ErrCodeEmbeddingFailed       = "EMBEDDING_FAILED"
	ErrCodeTimeout               = "TIMEOUT"
	ErrCodeUpstreamError         = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField    = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidTranscriptSource = NewDomainError(ErrCodeValidation, "invalid transcript source")
	ErrEmptyQuestion           = NewDomainError(ErrCodeValidation, "question must not be empty")
)

// Not found errors
var (
	ErrAnalysisNotFound = NewDomainError(ErrCodeNotFound, "video analysis not found")
	ErrOwnerNotFound    = NewDomainError(ErrCodeNotFound, "owner not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrOwnerAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "owner already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Video pipeline errors
var (
	ErrInvalidVideoURL           = NewDomainError(ErrCodeInvalidURL, "could not extract a video ID from the provided URL")
	ErrNoTranscriptAvailable     = NewDomainError(ErrCodeNoTranscript, "this video has no transcript available")
	ErrVideoPrivateOrUnavailable = NewDomainError(ErrCodeVideoPrivate, "this video is private or unavailable")
	ErrVideoAgeRestricted        = NewDomainError(ErrCodeVideoAgeRestricted, "this video is age-restricted and its transcript cannot be fetched")
	ErrTranscriptFetchFailed     = NewDomainError(ErrCodeTranscriptFetchFailed, "failed to fetch the video transcript")
	ErrEmbeddingFailed           = NewDomainError(ErrCodeEmbeddingFailed, "failed to generate embeddings for the transcript")
	ErrUpstreamTimeout           = NewDomainError(ErrCodeTimeout, "the upstream service took too long to respond")
	ErrUpstreamService           = NewDomainError(ErrCodeUpstreamError, "an upstream service returned an unexpected response")
)
