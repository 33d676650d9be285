package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy. Match with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrTransport          = errors.New("transport failure")
	ErrEmptyResponse      = errors.New("empty or blocked response")
	ErrAllModelsExhausted = errors.New("all models exhausted")
	ErrChunkFailed        = errors.New("chunk terminal failure")
	ErrExtraction         = errors.New("extraction failure")
	ErrNothingToAssemble  = errors.New("nothing to assemble")
	ErrNotFound           = errors.New("resource not found")
	ErrDatabase           = errors.New("database error")
)

// ChunkError is the terminal failure of one chunk. Its message is the cause's
// so chunk records read the same; it matches ErrChunkFailed and the cause.
type ChunkError struct {
	ChunkID int
	Err     error
}

func (e *ChunkError) Error() string {
	if e.Err == nil {
		return ErrChunkFailed.Error()
	}
	return e.Err.Error()
}

func (e *ChunkError) Unwrap() []error { return []error{ErrChunkFailed, e.Err} }

// Error codes carried by AppError.
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeExtraction = "EXTRACTION_ERROR"
	CodeAssembly   = "ASSEMBLY_ERROR"
	CodeStorage    = "STORAGE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError reports invalid settings or a missing credential. Never retried.
func ConfigError(message string) *AppError {
	return NewAppError(CodeConfig, message, ErrConfiguration)
}

// ConfigErrorf is ConfigError with formatting.
func ConfigErrorf(format string, args ...any) *AppError {
	return ConfigError(fmt.Sprintf(format, args...))
}

// ExtractionError wraps a failure to read text out of the source document.
func ExtractionError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtraction
	} else {
		cause = fmt.Errorf("%w: %w", ErrExtraction, cause)
	}
	return NewAppError(CodeExtraction, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the scheduler may re-attempt a chunk after err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllModelsExhausted)
}
