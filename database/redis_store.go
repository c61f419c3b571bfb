package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

const redisBackend = "redis"

// RedisStore keeps documents in one hash (field = bookmark id). SaveAll
// fills a scratch key and renames it over the live key inside MULTI/EXEC.
type RedisStore struct {
	cfg config.RedisConfig

	mu     sync.Mutex
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	if cfg.Key == "" {
		cfg.Key = "bookmark-index:documents"
	}
	return &RedisStore{cfg: cfg}
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	s := NewRedisStore(config.RedisConfig{Key: key})
	s.client = client
	return s
}

func (s *RedisStore) handle(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Addr,
		Password: s.cfg.Password,
		DB:       s.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storageError(redisBackend, "open", err)
	}
	s.client = client
	return client, nil
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]types.IndexedDocument, error) {
	client, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	values, err := client.HGetAll(ctx, s.cfg.Key).Result()
	if err != nil {
		return nil, storageError(redisBackend, "load", err)
	}

	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]types.IndexedDocument, 0, len(ids))
	for _, id := range ids {
		var doc types.IndexedDocument
		if err := json.Unmarshal([]byte(values[id]), &doc); err != nil {
			return nil, storageError(redisBackend, "load", fmt.Errorf("decode document %q: %w", id, err))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	client, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return storageError(redisBackend, "clear", client.Del(ctx, s.cfg.Key).Err())
}

func (s *RedisStore) SaveAll(ctx context.Context, docs []types.IndexedDocument) error {
	client, err := s.handle(ctx)
	if err != nil {
		return err
	}

	fields := make([]interface{}, 0, len(docs)*2)
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return storageError(redisBackend, "save", fmt.Errorf("encode document %q: %w", doc.ID, err))
		}
		fields = append(fields, doc.ID, string(data))
	}

	scratch := s.cfg.Key + ":pending:" + uuid.NewString()
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) == 0 {
			pipe.Del(ctx, s.cfg.Key)
			return nil
		}
		pipe.HSet(ctx, scratch, fields...)
		pipe.Rename(ctx, scratch, s.cfg.Key)
		return nil
	})
	return storageError(redisBackend, "save", err)
}

func (s *RedisStore) Stats(ctx context.Context) (types.StoreStats, error) {
	docs, err := s.LoadAll(ctx)
	if err != nil {
		return types.StoreStats{}, err
	}
	return types.ComputeStoreStats(docs), nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return storageError(redisBackend, "close", err)
}
