package neo4j

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

type runnerFake struct {
	rows   []Row
	err    error
	params map[string]any
	calls  int
}

func (f *runnerFake) Run(_ context.Context, _ string, params map[string]any) ([]Row, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func TestSearchTripletsRanksByTermCoverage(t *testing.T) {
	runner := &runnerFake{rows: []Row{
		{"id": "r1", "subject": "Vincent van Gogh", "predicate": "PAINTED", "object": "Sunflowers"},
		{"id": "r2", "subject": "Vincent van Gogh", "predicate": "BORN_IN", "object": "Zundert"},
		{"id": "r3", "subject": nil, "predicate": "KNOWS", "object": "Gauguin"},
	}}
	store := NewStore(runner, Options{})

	fragments, err := store.SearchTriplets(context.Background(), "ART_GRAPH", "Where was Van Gogh born?", 2)
	if err != nil {
		t.Fatalf("SearchTriplets() error = %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if fragments[0].ID != "r2" {
		t.Fatalf("expected born-in triplet first, got %+v", fragments[0])
	}
	if fragments[0].Content != "Vincent van Gogh born in Zundert" {
		t.Fatalf("unexpected content %q", fragments[0].Content)
	}

	terms, _ := runner.params["terms"].([]string)
	if len(terms) != 5 {
		t.Fatalf("expected 5 search terms, got %v", terms)
	}
	if runner.params["category"] != "ART_GRAPH" {
		t.Fatalf("expected category param ART_GRAPH, got %v", runner.params["category"])
	}
	if fragments[0].Category != "ART_GRAPH" {
		t.Fatalf("expected fragment category ART_GRAPH, got %q", fragments[0].Category)
	}
	if runner.params["candidates"] != int64(8) {
		t.Fatalf("expected candidate limit 8, got %v", runner.params["candidates"])
	}
}

func TestSearchTripletsShortQuerySkipsRunner(t *testing.T) {
	runner := &runnerFake{}
	fragments, err := NewStore(runner, Options{}).SearchTriplets(context.Background(), "ART_GRAPH", "is a", 5)
	if err != nil {
		t.Fatalf("SearchTriplets() error = %v", err)
	}
	if len(fragments) != 0 || runner.calls != 0 {
		t.Fatalf("expected no query for stop-word-only input")
	}
}

func TestSearchTripletsWrapsRetrievalError(t *testing.T) {
	runner := &runnerFake{err: errors.New("syntax error")}
	_, err := NewStore(runner, Options{}).SearchTriplets(context.Background(), "ART_GRAPH", "van gogh", 5)
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("plain error must not be temporary: %v", err)
	}
}

func TestSearchTripletsPassesCancellationThrough(t *testing.T) {
	runner := &runnerFake{err: context.Canceled}
	_, err := NewStore(runner, Options{}).SearchTriplets(context.Background(), "ART_GRAPH", "van gogh", 5)
	if !errors.Is(err, context.Canceled) || domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected bare cancellation, got %v", err)
	}
}
