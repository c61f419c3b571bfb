package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

const postgresBackend = "postgres"

var tableNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore keeps documents in one table. SaveAll deletes and rewrites
// the table inside a single transaction.
type PostgresStore struct {
	dsn   string
	table string

	mu       sync.Mutex
	db       *sql.DB
	migrated bool
}

func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	table := cfg.Table
	if table == "" {
		table = "bookmark_embeddings"
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name %q", table)
	}
	return &PostgresStore{dsn: cfg.DSN, table: table}, nil
}

// NewPostgresStoreWithDB wraps an already opened database handle.
func NewPostgresStoreWithDB(db *sql.DB, table string) (*PostgresStore, error) {
	s, err := NewPostgresStore(config.PostgresConfig{Table: table})
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *PostgresStore) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		db, err := sql.Open("postgres", s.dsn)
		if err != nil {
			return nil, storageError(postgresBackend, "open", err)
		}
		s.db = db
	}
	if !s.migrated {
		if _, err := s.db.ExecContext(ctx, s.schemaSQL()); err != nil {
			return nil, storageError(postgresBackend, "migrate", err)
		}
		s.migrated = true
	}
	return s.db, nil
}

func (s *PostgresStore) schemaSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  embedding REAL[] NOT NULL DEFAULT '{}',
  page_content TEXT NOT NULL,
  metadata JSONB NOT NULL,
  last_updated TIMESTAMPTZ NOT NULL
)`, s.table)
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]types.IndexedDocument, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, embedding, page_content, metadata, last_updated FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, storageError(postgresBackend, "load", err)
	}
	defer rows.Close()

	var docs []types.IndexedDocument
	for rows.Next() {
		var (
			doc       types.IndexedDocument
			embedding pq.Float32Array
			metadata  []byte
		)
		if err := rows.Scan(&doc.ID, &embedding, &doc.PageContent, &metadata, &doc.LastUpdated); err != nil {
			return nil, storageError(postgresBackend, "load", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, storageError(postgresBackend, "load", fmt.Errorf("decode metadata %q: %w", doc.ID, err))
		}
		if len(embedding) > 0 {
			doc.Embedding = []float32(embedding)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(postgresBackend, "load", err)
	}
	return docs, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	return storageError(postgresBackend, "clear", err)
}

func (s *PostgresStore) SaveAll(ctx context.Context, docs []types.IndexedDocument) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(postgresBackend, "save", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return storageError(postgresBackend, "save", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, embedding, page_content, metadata, last_updated)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  embedding = EXCLUDED.embedding,
  page_content = EXCLUDED.page_content,
  metadata = EXCLUDED.metadata,
  last_updated = EXCLUDED.last_updated`, s.table)
	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return storageError(postgresBackend, "save", fmt.Errorf("encode metadata %q: %w", doc.ID, err))
		}
		embedding := pq.Float32Array(doc.Embedding)
		if embedding == nil {
			embedding = pq.Float32Array{}
		}
		if _, err := tx.ExecContext(ctx, insert, doc.ID, embedding, doc.PageContent, metadata, doc.LastUpdated); err != nil {
			return storageError(postgresBackend, "save", err)
		}
	}

	return storageError(postgresBackend, "save", tx.Commit())
}

func (s *PostgresStore) Stats(ctx context.Context) (types.StoreStats, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return types.StoreStats{}, err
	}

	var (
		stats       types.StoreStats
		lastUpdated sql.NullTime
	)
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), MAX(last_updated), COUNT(*) FILTER (WHERE cardinality(embedding) = 0) FROM %s`, s.table))
	if err := row.Scan(&stats.Count, &lastUpdated, &stats.MissingEmbedding); err != nil {
		return types.StoreStats{}, storageError(postgresBackend, "stats", err)
	}
	if lastUpdated.Valid {
		stats.LastUpdated = lastUpdated.Time.In(time.UTC)
	}
	return stats, nil
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.migrated = false
	return storageError(postgresBackend, "close", err)
}
