package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

func fixedRetriever(fragments ...domain.Fragment) ports.Retriever {
	return ports.RetrieverFunc(func(context.Context, string) ([]domain.Fragment, error) {
		return fragments, nil
	})
}

func TestFuseCandidatesRRFPrefersSharedFragments(t *testing.T) {
	semantic := []domain.Fragment{{ID: "a", Content: "alpha"}, {ID: "b", Content: "beta"}}
	lexical := []domain.Fragment{{ID: "b"}, {ID: "c", Content: "gamma"}}

	fused := fuseCandidatesRRF(semantic, lexical, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused fragments, got %d", len(fused))
	}
	if fused[0].ID != "b" {
		t.Fatalf("expected fragment present in both lists first, got %s", fused[0].ID)
	}
	if fused[0].Content != "beta" {
		t.Fatalf("expected richer fragment content to be kept, got %q", fused[0].Content)
	}
	want := 1.0/62 + 1.0/61
	if diff := fused[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected rrf score %f, got %f", want, fused[0].Score)
	}
}

func TestFuseCandidatesRRFKeysBySourceAndContentWithoutID(t *testing.T) {
	semantic := []domain.Fragment{{Source: "a.txt", Content: "same"}}
	lexical := []domain.Fragment{{Source: "a.txt", Content: "same"}, {Source: "b.txt", Content: "same"}}

	fused := fuseCandidatesRRF(semantic, lexical, 0)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused fragments, got %d", len(fused))
	}
	if fused[0].Source != "a.txt" {
		t.Fatalf("expected a.txt first, got %s", fused[0].Source)
	}
}

func TestHybridRetrieverLimitsResult(t *testing.T) {
	retriever := NewHybridRetriever(
		fixedRetriever(domain.Fragment{ID: "a", Content: "van gogh"}, domain.Fragment{ID: "b", Content: "arles"}),
		fixedRetriever(domain.Fragment{ID: "c", Content: "sunflowers"}, domain.Fragment{ID: "a"}),
		HybridConfig{Candidates: 10, RerankTopN: 3, Limit: 2},
	)

	got, err := retriever.Retrieve(context.Background(), "van gogh")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(got))
	}
	if got[0].ID != "a" {
		t.Fatalf("expected fragment a first, got %s", got[0].ID)
	}
}

func TestHybridRetrieverPropagatesError(t *testing.T) {
	failing := ports.RetrieverFunc(func(context.Context, string) ([]domain.Fragment, error) {
		return nil, errors.New("postgres down")
	})
	retriever := NewHybridRetriever(fixedRetriever(), failing, HybridConfig{})

	_, err := retriever.Retrieve(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "lexical retrieve") {
		t.Fatalf("expected lexical retrieve error, got %v", err)
	}
}
