package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

var ErrUnknownStoreKind = errors.New("unknown store kind")

// StorageError wraps a failure of a persistent store operation.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}

// EmbeddingStore is the durable home of indexed bookmark documents.
//
// SaveAll replaces the whole content of the store. Implementations open
// their underlying handle lazily, on the first call that needs it, and
// Close only releases that handle: a later call opens it again.
type EmbeddingStore interface {
	LoadAll(ctx context.Context) ([]types.IndexedDocument, error)
	Clear(ctx context.Context) error
	SaveAll(ctx context.Context, docs []types.IndexedDocument) error
	Stats(ctx context.Context) (types.StoreStats, error)
	Close() error
}

// NewStore builds the store selected by cfg.Kind. No connection is made
// until the store is first used.
func NewStore(cfg config.StoreConfig, logger *log.Logger) (EmbeddingStore, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	switch cfg.Kind {
	case config.StoreBolt:
		return NewBoltStore(cfg.Path), nil
	case config.StorePostgres:
		return NewPostgresStore(cfg.Postgres)
	case config.StoreRedis:
		return NewRedisStore(cfg.Redis), nil
	case config.StoreWeaviate:
		return NewWeaviateStore(cfg.Weaviate, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreKind, cfg.Kind)
	}
}

// DedupeDocuments keeps the last document for every id, in the position of
// its first occurrence.
func DedupeDocuments(docs []types.IndexedDocument) []types.IndexedDocument {
	pos := make(map[string]int, len(docs))
	out := make([]types.IndexedDocument, 0, len(docs))
	for _, doc := range docs {
		if i, ok := pos[doc.ID]; ok {
			out[i] = doc
			continue
		}
		pos[doc.ID] = len(out)
		out = append(out, doc)
	}
	return out
}
