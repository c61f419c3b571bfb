package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordsPassesAndSearches(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	store := &memoryStore{}
	s, _ := newTestService(t, store, WithMetrics(metrics))
	if err := s.Initialize(ctx, "", ""); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.AddBookmarks(ctx, sampleTree("Quarterly Report")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddBookmarks(ctx, sampleTree("Quarterly Report")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SimilaritySearch(ctx, "report", 2); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.DocumentsEmbedded); got != 4 {
		t.Errorf("documents embedded = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.Passes.WithLabelValues(OutcomeIndexed)); got != 1 {
		t.Errorf("indexed passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Passes.WithLabelValues(OutcomeUnchanged)); got != 1 {
		t.Errorf("unchanged passes = %v, want 1", got)
	}
	// One document batch and one query.
	if got := testutil.ToFloat64(metrics.ProviderCalls); got != 2 {
		t.Errorf("provider calls = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.SearchLatency); got != 1 {
		t.Errorf("search latency series = %d, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg, "bookmark_index_documents_embedded_total"); err != nil || n != 1 {
		t.Errorf("registered series = %d, %v", n, err)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.providerCall(nil)
	m.embedded(3)
	m.pass(OutcomeFailed)
	m.observeSearch(0.1)
}
