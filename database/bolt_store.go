package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zentala/bookmark-index/types"
	bolt "go.etcd.io/bbolt"
)

const boltBackend = "bolt"

var documentsBucket = []byte("documents")

// BoltStore keeps documents in a single bbolt file, one JSON value per
// bookmark id. SaveAll runs in one read-write transaction, so readers see
// either the old or the new set.
type BoltStore struct {
	path string

	mu sync.Mutex
	db *bolt.DB
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

func (s *BoltStore) handle() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, storageError(boltBackend, "open", fmt.Errorf("create data dir: %w", err))
	}
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, storageError(boltBackend, "open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, storageError(boltBackend, "open", err)
	}
	s.db = db
	return db, nil
}

func (s *BoltStore) LoadAll(ctx context.Context) ([]types.IndexedDocument, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var docs []types.IndexedDocument
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var doc types.IndexedDocument
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode document %q: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, storageError(boltBackend, "load", err)
	}
	return docs, nil
}

func (s *BoltStore) Clear(ctx context.Context) error {
	return s.SaveAll(ctx, nil)
}

func (s *BoltStore) SaveAll(ctx context.Context, docs []types.IndexedDocument) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(documentsBucket) != nil {
			if err := tx.DeleteBucket(documentsBucket); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(documentsBucket)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode document %q: %w", doc.ID, err)
			}
			if err := b.Put([]byte(doc.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	return storageError(boltBackend, "save", err)
}

func (s *BoltStore) Stats(ctx context.Context) (types.StoreStats, error) {
	docs, err := s.LoadAll(ctx)
	if err != nil {
		return types.StoreStats{}, err
	}
	return types.ComputeStoreStats(docs), nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return storageError(boltBackend, "close", err)
}
