package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zentala/bookmark-index/types"
)

func newTestProcessor(store *memoryStore, provider EmbeddingProvider, confirmer Confirmer) *BookmarkProcessor {
	return NewBookmarkProcessor(store, provider, confirmer, ProcessorConfig{}, discardLogger(), nil)
}

func flatTree(n int) []types.BookmarkNode {
	children := make([]types.BookmarkNode, n)
	for i := range children {
		children[i] = leaf(fmt.Sprintf("id-%02d", i), fmt.Sprintf("Bookmark number %d", i), fmt.Sprintf("https://example.com/page/%d", i))
	}
	return []types.BookmarkNode{folder("Bulk", children...)}
}

func TestFlatten_FolderPaths(t *testing.T) {
	got := Flatten(sampleTree("Quarterly Report"), 0, time.Now(), discardLogger())

	want := []struct{ id, path string }{
		{"b1", "Work/Docs"},
		{"b2", "Work"},
		{"b3", "Personal"},
		{"b4", "Personal"},
	}
	if len(got) != len(want) {
		t.Fatalf("Flatten = %d leaves, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].FolderPath != w.path {
			t.Errorf("leaf %d = (%s, %q), want (%s, %q)", i, got[i].ID, got[i].FolderPath, w.id, w.path)
		}
	}
}

func TestFlatten_CarriesExtendedFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	node := leaf("x", "X", "https://x.io")
	node.Extended = &types.BookmarkExtended{Description: "about x", Tags: []string{"a", "b"}, LastModified: modified}
	bare := leaf("y", "Y", "https://y.io")
	zero := leaf("z", "Z", "https://z.io")
	zero.Extended = &types.BookmarkExtended{Description: "no time"}

	got := Flatten([]types.BookmarkNode{node, bare, zero}, 0, now, nil)
	if len(got) != 3 || got[0].Description != "about x" || !reflect.DeepEqual(got[0].Tags, []string{"a", "b"}) {
		t.Fatalf("Flatten = %+v", got)
	}
	if got[0].FolderPath != "" {
		t.Errorf("top-level FolderPath = %q, want empty", got[0].FolderPath)
	}
	if !got[0].LastModified.Equal(modified) {
		t.Errorf("LastModified = %v, want %v from extended metadata", got[0].LastModified, modified)
	}
	for _, b := range got[1:] {
		if !b.LastModified.Equal(now) {
			t.Errorf("%s LastModified = %v, want now (%v)", b.ID, b.LastModified, now)
		}
	}
}

func TestFlatten_Cap(t *testing.T) {
	got := Flatten(sampleTree("Quarterly Report"), 2, time.Now(), discardLogger())
	if len(got) != 2 || got[0].ID != "b1" || got[1].ID != "b2" {
		t.Errorf("Flatten with cap 2 = %+v, want b1, b2", got)
	}
}

func TestFlatten_CapStopsTraversal(t *testing.T) {
	// Past the cap sit a leaf without id and a duplicate; visiting either
	// would be logged.
	tree := []types.BookmarkNode{
		leaf("a", "A", "https://a.io"),
		leaf("b", "B", "https://b.io"),
		leaf("", "No id", "https://noid.io"),
		folder("Later", leaf("a", "A again", "https://a.io/again")),
	}
	var logs bytes.Buffer
	got := Flatten(tree, 2, time.Now(), log.New(&logs, "", 0))
	if len(got) != 2 {
		t.Fatalf("Flatten = %d leaves, want 2", len(got))
	}
	if logs.Len() != 0 {
		t.Errorf("nodes past the cap were visited: %q", logs.String())
	}

	logs.Reset()
	Flatten(tree, 0, time.Now(), log.New(&logs, "", 0))
	if !strings.Contains(logs.String(), "duplicate") {
		t.Errorf("uncapped walk log = %q, want a duplicate skip", logs.String())
	}
}

func TestFlatten_SkipsMissingAndDuplicateIDs(t *testing.T) {
	tree := []types.BookmarkNode{
		leaf("", "No id", "https://noid.io"),
		leaf("dup", "First", "https://first.io"),
		folder("F", leaf("dup", "Second", "https://second.io")),
	}
	got := Flatten(tree, 0, time.Now(), discardLogger())
	if len(got) != 1 || got[0].Title != "First" {
		t.Errorf("Flatten = %+v, want only the first dup", got)
	}
}

func TestBuildPageContent(t *testing.T) {
	b := types.FlattenedBookmark{
		ID:          "b1",
		Title:       "Quarterly Report",
		URL:         "https://intranet.example.com/q",
		FolderPath:  "Work/Docs",
		Description: "Numbers for the board",
		Tags:        []string{"Finance", "Q3"},
	}
	got := BuildPageContent(b)

	for _, part := range []string{"quarterly report", "https://intranet.example.com/q", "work/docs", "numbers for the board", "finance q3", "board"} {
		if !strings.Contains(got, part) {
			t.Errorf("page content %q missing %q", got, part)
		}
	}
	if got != strings.ToLower(got) {
		t.Errorf("page content not normalized: %q", got)
	}
	if BuildPageContent(b) != got {
		t.Error("BuildPageContent not deterministic")
	}
}

func TestClassify(t *testing.T) {
	bookmarks := Flatten(sampleTree("Quarterly Report"), 0, time.Now(), nil)
	existing := []types.IndexedDocument{
		{ID: "b1", Embedding: []float32{1}, PageContent: BuildPageContent(bookmarks[0])},
		{ID: "b2", Embedding: []float32{1}, PageContent: "outdated"},
		{ID: "b3", PageContent: BuildPageContent(bookmarks[2])},
	}

	c := Classify(bookmarks, existing, false)
	ids := func(bs []types.FlattenedBookmark) []string {
		out := []string{}
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}
	if got := ids(c.New); !reflect.DeepEqual(got, []string{"b4"}) {
		t.Errorf("New = %v, want [b4]", got)
	}
	if got := ids(c.Stale); !reflect.DeepEqual(got, []string{"b2", "b3"}) {
		t.Errorf("Stale = %v, want [b2 b3]", got)
	}
	if got := ids(c.Unchanged); !reflect.DeepEqual(got, []string{"b1"}) {
		t.Errorf("Unchanged = %v, want [b1]", got)
	}

	forced := Classify(bookmarks, existing, true)
	if len(forced.Unchanged) != 0 || len(forced.Stale) != 3 {
		t.Errorf("forced Classify = %+v", forced)
	}
}

func TestClassify_IgnoresLastModifiedAlone(t *testing.T) {
	bookmarks := Flatten(sampleTree("Quarterly Report"), 0, time.Now(), nil)[:1]
	existing := []types.IndexedDocument{{ID: "b1", Embedding: []float32{1}, PageContent: BuildPageContent(bookmarks[0])}}
	bookmarks[0].LastModified = bookmarks[0].LastModified.AddDate(1, 0, 0)

	if c := Classify(bookmarks, existing, false); len(c.Unchanged) != 1 {
		t.Errorf("lastModified change alone reclassified bookmark: %+v", c)
	}
}

func TestProcess_IndexesNewBookmarks(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	provider := newRecordingProvider()
	confirmer := &recordingConfirmer{answer: true}
	p := newTestProcessor(store, provider, confirmer)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	result, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process error = %v", err)
	}
	want := types.IndexSummary{New: 4, Embedded: 4, Total: 4}
	if result.Summary != want {
		t.Errorf("Summary = %+v, want %+v", result.Summary, want)
	}
	if len(confirmer.asked) != 1 || len(confirmer.asked[0]) != 4 {
		t.Errorf("confirmer asked %d times", len(confirmer.asked))
	}
	docs := store.snapshot()
	if len(docs) != 4 || store.saves != 1 {
		t.Fatalf("store has %d docs after %d saves", len(docs), store.saves)
	}
	for _, doc := range docs {
		if !doc.HasEmbedding() || doc.LastUpdated.IsZero() || doc.Metadata.BookmarkID != doc.ID {
			t.Errorf("incomplete document %+v", doc)
		}
		if !doc.Metadata.LastModified.Equal(now) {
			t.Errorf("doc %s LastModified = %v, want %v", doc.ID, doc.Metadata.LastModified, now)
		}
	}
}

func TestProcess_IdempotentReindex(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	provider := newRecordingProvider()
	confirmer := &recordingConfirmer{answer: true}
	p := newTestProcessor(store, provider, confirmer)

	if _, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	before := store.snapshot()
	calls := provider.calls()

	result, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{})
	if err != nil {
		t.Fatalf("second Process error = %v", err)
	}
	if result.Summary.Unchanged != 4 || result.Summary.Embedded != 0 {
		t.Errorf("second Summary = %+v", result.Summary)
	}
	if provider.calls() != calls {
		t.Errorf("provider called again: %d calls, want %d", provider.calls(), calls)
	}
	if len(confirmer.asked) != 1 {
		t.Errorf("confirmer asked %d times, want 1", len(confirmer.asked))
	}
	if !reflect.DeepEqual(store.snapshot(), before) || store.saves != 1 {
		t.Error("store changed on an idempotent pass")
	}
}

func TestProcess_DetectsChangedBookmark(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	confirmer := &recordingConfirmer{answer: true}
	p := newTestProcessor(store, newRecordingProvider(), confirmer)

	if _, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	result, err := p.Process(ctx, sampleTree("Q3 Report"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process error = %v", err)
	}

	if result.Summary.Stale != 1 || result.Summary.Unchanged != 3 || result.Summary.Embedded != 1 {
		t.Errorf("Summary = %+v", result.Summary)
	}
	asked := confirmer.asked[len(confirmer.asked)-1]
	if len(asked) != 1 || asked[0].ID != "b1" || asked[0].Title != "Q3 Report" {
		t.Errorf("confirmer asked about %+v, want b1", asked)
	}
	for _, doc := range store.snapshot() {
		if doc.ID == "b1" && doc.Metadata.Title != "Q3 Report" {
			t.Errorf("stored b1 title = %q", doc.Metadata.Title)
		}
	}
	if n := len(store.snapshot()); n != 4 {
		t.Errorf("store has %d docs, want 4", n)
	}
}

func TestProcess_DeclineLeavesStoreIdentical(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	p := newTestProcessor(store, newRecordingProvider(), AlwaysConfirm)
	if _, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	before := store.snapshot()
	saves := store.saves

	provider := newRecordingProvider()
	p = newTestProcessor(store, provider, &recordingConfirmer{answer: false})
	result, err := p.Process(ctx, sampleTree("Q3 Report"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process error = %v", err)
	}
	if !result.Summary.Declined {
		t.Error("Summary.Declined = false, want true")
	}
	if !reflect.DeepEqual(result.Documents, before) {
		t.Error("declined pass did not return the original documents")
	}
	if provider.calls() != 0 {
		t.Errorf("provider called %d times after decline", provider.calls())
	}
	if store.saves != saves || !reflect.DeepEqual(store.snapshot(), before) {
		t.Error("store changed after decline")
	}
}

func TestProcess_ConfirmerOverride(t *testing.T) {
	store := &memoryStore{}
	p := newTestProcessor(store, newRecordingProvider(), AlwaysConfirm)

	result, err := p.Process(context.Background(), sampleTree("Quarterly Report"), ProcessOptions{
		Confirmer: &recordingConfirmer{answer: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Summary.Declined || store.saves != 0 {
		t.Errorf("override ignored: %+v, saves %d", result.Summary, store.saves)
	}
}

func TestProcess_NoConfirmerProceeds(t *testing.T) {
	store := &memoryStore{}
	p := newTestProcessor(store, newRecordingProvider(), nil)

	result, err := p.Process(context.Background(), sampleTree("Quarterly Report"), ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.Embedded != 4 {
		t.Errorf("Embedded = %d, want 4", result.Summary.Embedded)
	}
}

func TestProcess_Batches(t *testing.T) {
	store := &memoryStore{}
	provider := newRecordingProvider()
	p := newTestProcessor(store, provider, AlwaysConfirm)

	if _, err := p.Process(context.Background(), flatTree(25), ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(provider.batches, []int{10, 10, 5}) {
		t.Errorf("batches = %v, want [10 10 5]", provider.batches)
	}
}

func TestProcess_MidPassFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	provider := newRecordingProvider()
	provider.failOnDoc = 2
	p := newTestProcessor(store, provider, AlwaysConfirm)

	_, err := p.Process(ctx, flatTree(25), ProcessOptions{})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Process error = %v, want GenerationError", err)
	}
	if len(genErr.Completed) != 10 || genErr.Scheduled != 25 {
		t.Errorf("GenerationError = %d of %d, want 10 of 25", len(genErr.Completed), genErr.Scheduled)
	}
	if !errors.Is(err, errProviderDown) {
		t.Errorf("error does not wrap provider failure: %v", err)
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("error does not carry ProviderError: %v", err)
	}
	if store.saves != 0 || len(store.snapshot()) != 0 {
		t.Errorf("store written on failure: saves %d", store.saves)
	}
}

func TestProcess_StorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := &memoryStore{saveErr: boom}
	p := newTestProcessor(store, newRecordingProvider(), AlwaysConfirm)

	if _, err := p.Process(context.Background(), sampleTree("Quarterly Report"), ProcessOptions{}); !errors.Is(err, boom) {
		t.Errorf("Process error = %v, want %v", err, boom)
	}
}

func TestProcess_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &memoryStore{}
	provider := newRecordingProvider()
	approve := ConfirmFunc(func(context.Context, []types.FlattenedBookmark) (bool, error) {
		return true, nil
	})
	p := NewBookmarkProcessor(store, &cancellingProvider{recordingProvider: provider, cancel: cancel}, approve,
		ProcessorConfig{BatchSize: 5}, discardLogger(), nil)

	_, err := p.Process(ctx, flatTree(12), ProcessOptions{})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Process error = %v, want cancelled GenerationError", err)
	}
	if provider.calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls())
	}
	if store.saves != 0 {
		t.Error("store written after cancellation")
	}
}

// cancellingProvider cancels the pass after its first successful batch.
type cancellingProvider struct {
	*recordingProvider
	cancel context.CancelFunc
}

func (p *cancellingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.recordingProvider.EmbedDocuments(ctx, texts)
	p.cancel()
	return vectors, err
}

func TestProcess_Cap(t *testing.T) {
	store := &memoryStore{}
	provider := newRecordingProvider()
	p := NewBookmarkProcessor(store, provider, AlwaysConfirm, ProcessorConfig{MaxBookmarks: 3}, discardLogger(), nil)

	result, err := p.Process(context.Background(), flatTree(20), ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.New != 3 || provider.embedded() != 3 {
		t.Errorf("capped pass embedded %d (summary %+v), want 3", provider.embedded(), result.Summary)
	}
}

func TestProcess_KeepsDocumentsMissingFromTree(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	p := newTestProcessor(store, newRecordingProvider(), AlwaysConfirm)

	if _, err := p.Process(ctx, sampleTree("Quarterly Report"), ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	extra := []types.BookmarkNode{leaf("b9", "New Thing", "https://new.example.com")}
	result, err := p.Process(ctx, extra, ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.Total != 5 || len(store.snapshot()) != 5 {
		t.Errorf("Total = %d, store = %d, want 5", result.Summary.Total, len(store.snapshot()))
	}
	last := store.snapshot()[4]
	if last.ID != "b9" {
		t.Errorf("new document appended at %q, want b9 last", last.ID)
	}
}
