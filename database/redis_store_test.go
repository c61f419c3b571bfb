package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

// newTestRedisStore needs a live server; set BOOKMARK_INDEX_REDIS_ADDR to run.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("BOOKMARK_INDEX_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKMARK_INDEX_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	key := "bookmark-index-test:" + uuid.NewString()
	store := NewRedisStoreWithClient(client, key)
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		store.Close()
	})
	return store
}

func TestRedisStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	docs := []types.IndexedDocument{
		testDocument("b", []float32{0, 1}),
		testDocument("a", []float32{1, 0}),
	}
	if err := store.SaveAll(ctx, docs); err != nil {
		t.Fatalf("SaveAll error = %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error = %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Fatalf("LoadAll = %+v, want a, b", loaded)
	}

	if err := store.SaveAll(ctx, docs[:1]); err != nil {
		t.Fatalf("SaveAll error = %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error = %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("Count after replace = %d, want 1", stats.Count)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear error = %v", err)
	}
	loaded, err = store.LoadAll(ctx)
	if err != nil || len(loaded) != 0 {
		t.Errorf("LoadAll after Clear = %v, %v", loaded, err)
	}
}

func TestRedisStore_SaveAllEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	if err := store.SaveAll(ctx, []types.IndexedDocument{testDocument("a", []float32{1})}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAll(ctx, nil); err != nil {
		t.Fatalf("SaveAll(nil) error = %v", err)
	}
	loaded, err := store.LoadAll(ctx)
	if err != nil || len(loaded) != 0 {
		t.Errorf("LoadAll = %v, %v, want empty", loaded, err)
	}
}

func TestRedisStore_OpenError(t *testing.T) {
	store := NewRedisStore(config.RedisConfig{Addr: "127.0.0.1:1"})
	if _, err := store.LoadAll(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}
