package service

import (
	"errors"
	"fmt"

	"github.com/zentala/bookmark-index/types"
)

// Sentinel errors for consistent error handling.
var (
	ErrNotInitialized     = errors.New("index service not initialized")
	ErrClosed             = errors.New("index service closed")
	ErrIndexingInProgress = errors.New("indexing operation already in progress")
	ErrEmptyQuery         = errors.New("empty search query")
	ErrInvalidLimit       = errors.New("result limit must be positive")
	ErrUnknownProvider    = errors.New("unknown embedding provider")
	ErrMissingCredential  = errors.New("missing embedding provider credential")
)

// ConfigError reports an unusable setting passed to Initialize.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProviderError wraps a failure of an embedding backend.
type ProviderError struct {
	Kind string
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(kind, op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: kind, Op: op, Err: err}
}

// GenerationError aborts an indexing pass part way through batched
// embedding. Completed holds the documents embedded before the failure;
// they are not persisted.
type GenerationError struct {
	Completed []types.IndexedDocument
	Scheduled int
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("embedding generation failed after %d of %d documents: %v",
		len(e.Completed), e.Scheduled, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
