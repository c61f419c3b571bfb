package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

const (
	weaviateBackend = "weaviate"

	BATCH_SIZE = 200
	PAGE_SIZE  = 500
)

// bookmarkNamespace seeds the deterministic object ids derived from
// bookmark ids.
var bookmarkNamespace = uuid.MustParse("6f1f2d0e-4b8a-4c55-9a53-3d6a2b7c9e10")

var documentFields = []graphql.Field{
	{Name: "bookmarkId"},
	{Name: "pageContent"},
	{Name: "title"},
	{Name: "url"},
	{Name: "folderPath"},
	{Name: "description"},
	{Name: "tags"},
	{Name: "lastModified"},
	{Name: "lastUpdated"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "vector"}}},
}

// WeaviateStore keeps documents as objects of one class with self-provided
// vectors. Weaviate has no multi-object transaction, so every SaveAll writes
// a fresh staging class and then points a one-object pointer class at it.
// Readers follow the pointer; a failed write drops its staging class and
// leaves the live one untouched.
type WeaviateStore struct {
	cfg    config.WeaviateConfig
	logger *log.Logger

	mu     sync.Mutex
	client *weaviate.Client
	active string
}

func NewWeaviateStore(cfg config.WeaviateConfig, logger *log.Logger) *WeaviateStore {
	if cfg.Class == "" {
		cfg.Class = "Bookmark"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[WEAVIATE] ", log.LstdFlags)
	}
	return &WeaviateStore{cfg: cfg, logger: logger}
}

func (s *WeaviateStore) classObject(name string) *models.Class {
	return &models.Class{
		Class: name,
		Properties: []*models.Property{
			{Name: "bookmarkId", DataType: []string{"text"}},
			{Name: "pageContent", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "url", DataType: []string{"text"}},
			{Name: "folderPath", DataType: []string{"text"}},
			{Name: "description", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "lastModified", DataType: []string{"text"}},
			{Name: "lastUpdated", DataType: []string{"text"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
}

// pointerClass holds a single object naming the live document class.
func (s *WeaviateStore) pointerClass() string {
	return s.cfg.Class + "Active"
}

func (s *WeaviateStore) pointerClassObject() *models.Class {
	return &models.Class{
		Class: s.pointerClass(),
		Properties: []*models.Property{
			{Name: "className", DataType: []string{"text"}},
		},
		Vectorizer: "none",
	}
}

func (s *WeaviateStore) stagingClass() string {
	return s.cfg.Class + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// handle returns the client and the live class, connecting and resolving
// the pointer on first use.
func (s *WeaviateStore) handle(ctx context.Context) (*weaviate.Client, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, s.active, nil
	}

	var scheme string
	if strings.Contains(s.cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(s.cfg.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if s.cfg.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: s.cfg.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     s.cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, "", storageError(weaviateBackend, "open", err)
	}

	schema, err := client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, "", storageError(weaviateBackend, "open", fmt.Errorf("get schema: %w", err))
	}
	classes := make(map[string]bool, len(schema.Classes))
	for _, class := range schema.Classes {
		classes[class.Class] = true
	}

	if !classes[s.pointerClass()] {
		if err := client.Schema().ClassCreator().WithClass(s.pointerClassObject()).Do(ctx); err != nil {
			return nil, "", storageError(weaviateBackend, "open", fmt.Errorf("create class %s: %w", s.pointerClass(), err))
		}
	}
	active, err := s.readPointer(ctx, client)
	if err != nil {
		return nil, "", err
	}
	if active == "" {
		active = s.cfg.Class
	}
	if !classes[active] {
		if err := client.Schema().ClassCreator().WithClass(s.classObject(active)).Do(ctx); err != nil {
			return nil, "", storageError(weaviateBackend, "open", fmt.Errorf("create class %s: %w", active, err))
		}
	}

	s.client = client
	s.active = active
	return client, active, nil
}

func (s *WeaviateStore) readPointer(ctx context.Context, client *weaviate.Client) (string, error) {
	result, err := client.GraphQL().Get().
		WithClassName(s.pointerClass()).
		WithFields(graphql.Field{Name: "className"}).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", storageError(weaviateBackend, "open", fmt.Errorf("read active class: %w", err))
	}
	if len(result.Errors) > 0 {
		return "", storageError(weaviateBackend, "open", fmt.Errorf("graphql: %s", result.Errors[0].Message))
	}
	get, _ := result.Data["Get"].(map[string]interface{})
	items, _ := get[s.pointerClass()].([]interface{})
	if len(items) == 0 {
		return "", nil
	}
	obj, _ := items[0].(map[string]interface{})
	return stringValue(obj["className"]), nil
}

func (s *WeaviateStore) writePointer(ctx context.Context, client *weaviate.Client, class string) error {
	// Batch writes upsert by id, so the pointer stays a single object.
	res, err := client.Batch().ObjectsBatcher().WithObjects(&models.Object{
		Class:      s.pointerClass(),
		ID:         ObjectID(s.pointerClass()),
		Properties: map[string]interface{}{"className": class},
	}).Do(ctx)
	if err != nil {
		return storageError(weaviateBackend, "save", fmt.Errorf("switch active class: %w", err))
	}
	return batchResultError(res)
}

func (s *WeaviateStore) dropClass(ctx context.Context, client *weaviate.Client, class string) {
	if err := client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
		s.logger.Printf("Failed to drop class %s: %v", class, err)
	}
}

// ReInit replaces the live class with an empty one.
func (s *WeaviateStore) ReInit(ctx context.Context) error {
	return s.SaveAll(ctx, nil)
}

func (s *WeaviateStore) Clear(ctx context.Context) error {
	return s.ReInit(ctx)
}

// SaveAll writes docs into a staging class and switches the pointer to it
// once every batch succeeded. The previous class is dropped afterwards.
func (s *WeaviateStore) SaveAll(ctx context.Context, docs []types.IndexedDocument) error {
	client, previous, err := s.handle(ctx)
	if err != nil {
		return err
	}

	staging := s.stagingClass()
	if err := client.Schema().ClassCreator().WithClass(s.classObject(staging)).Do(ctx); err != nil {
		return storageError(weaviateBackend, "save", fmt.Errorf("create class %s: %w", staging, err))
	}
	if err := s.BatchInsertDocuments(ctx, client, staging, DedupeDocuments(docs)); err != nil {
		s.dropClass(ctx, client, staging)
		return err
	}
	if err := s.writePointer(ctx, client, staging); err != nil {
		s.dropClass(ctx, client, staging)
		return err
	}

	s.mu.Lock()
	s.active = staging
	s.mu.Unlock()

	s.dropClass(ctx, client, previous)
	return nil
}

func (s *WeaviateStore) BatchInsertDocuments(ctx context.Context, client *weaviate.Client, class string, docs []types.IndexedDocument) error {
	total := len(docs)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			obj := &models.Object{
				Class:      class,
				ID:         ObjectID(docs[j].ID),
				Properties: documentProperties(docs[j]),
			}
			if docs[j].HasEmbedding() {
				obj.Vector = docs[j].Embedding
			}
			batcher = batcher.WithObjects(obj)
		}

		res, err := batcher.Do(ctx)
		if err != nil {
			return storageError(weaviateBackend, "save", fmt.Errorf("insert batch %d-%d: %w", i, end, err))
		}
		if err := batchResultError(res); err != nil {
			return err
		}

		s.logger.Printf("Inserted batch %d-%d of %d documents", i, end, total)
	}
	return nil
}

func batchResultError(res []models.ObjectsGetResponse) error {
	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return storageError(weaviateBackend, "save",
				fmt.Errorf("insert object %s: %s", r.ID, r.Result.Errors.Error[0].Message))
		}
	}
	return nil
}

func (s *WeaviateStore) LoadAll(ctx context.Context) ([]types.IndexedDocument, error) {
	client, class, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	var docs []types.IndexedDocument
	after := ""
	for {
		getBuilder := client.GraphQL().Get().
			WithClassName(class).
			WithFields(documentFields...).
			WithLimit(PAGE_SIZE)
		if after != "" {
			getBuilder = getBuilder.WithAfter(after)
		}
		result, err := getBuilder.Do(ctx)
		if err != nil {
			return nil, storageError(weaviateBackend, "load", err)
		}
		if len(result.Errors) > 0 {
			return nil, storageError(weaviateBackend, "load", fmt.Errorf("graphql: %s", result.Errors[0].Message))
		}

		page, lastID := parseObjects(class, result.Data)
		docs = append(docs, page...)
		if len(page) < PAGE_SIZE || lastID == "" {
			break
		}
		after = lastID
	}
	return docs, nil
}

func parseObjects(class string, data map[string]models.JSONObject) ([]types.IndexedDocument, string) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, ""
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil, ""
	}

	var (
		docs   []types.IndexedDocument
		lastID string
	)
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		doc := types.IndexedDocument{
			ID:          stringValue(obj["bookmarkId"]),
			PageContent: stringValue(obj["pageContent"]),
			Metadata: types.DocumentMetadata{
				BookmarkID:   stringValue(obj["bookmarkId"]),
				Title:        stringValue(obj["title"]),
				URL:          stringValue(obj["url"]),
				FolderPath:   stringValue(obj["folderPath"]),
				Description:  stringValue(obj["description"]),
				Tags:         parseStringArray(obj["tags"]),
				LastModified: parseTime(obj["lastModified"]),
			},
			LastUpdated: parseTime(obj["lastUpdated"]),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			lastID = stringValue(additional["id"])
			doc.Embedding = parseVector(additional["vector"])
		}
		docs = append(docs, doc)
	}
	return docs, lastID
}

func (s *WeaviateStore) Stats(ctx context.Context) (types.StoreStats, error) {
	docs, err := s.LoadAll(ctx)
	if err != nil {
		return types.StoreStats{}, err
	}
	return types.ComputeStoreStats(docs), nil
}

func (s *WeaviateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.active = ""
	return nil
}

// ObjectID maps a bookmark id to its stable Weaviate object id.
func ObjectID(bookmarkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(bookmarkNamespace, []byte(bookmarkID)).String())
}

func documentProperties(doc types.IndexedDocument) map[string]interface{} {
	tags := doc.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"bookmarkId":   doc.ID,
		"pageContent":  doc.PageContent,
		"title":        doc.Metadata.Title,
		"url":          doc.Metadata.URL,
		"folderPath":   doc.Metadata.FolderPath,
		"description":  doc.Metadata.Description,
		"tags":         tags,
		"lastModified": formatTime(doc.Metadata.LastModified),
		"lastUpdated":  formatTime(doc.LastUpdated),
	}
}

// Helper functions
func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseStringArray(v interface{}) []string {
	if v == nil {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func parseVector(v interface{}) []float32 {
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return nil
	}
	vec := make([]float32, 0, len(arr))
	for _, item := range arr {
		if f, ok := item.(float64); ok {
			vec = append(vec, float32(f))
		}
	}
	return vec
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
