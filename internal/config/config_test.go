package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"RRR_CONCURRENCY", "RRR_DISPATCH", "RRR_VERBOSE", "API_QUEUE_WAIT", "RAG_FUSION_RRF_K"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Concurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.Dispatch != DispatchLocal {
		t.Fatalf("expected local dispatch, got %q", cfg.Dispatch)
	}
	if cfg.Verbose {
		t.Fatalf("expected verbose off by default")
	}
	if cfg.APIQueueWait != 250*time.Millisecond {
		t.Fatalf("expected default queue wait 250ms, got %s", cfg.APIQueueWait)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RRR_CONCURRENCY", "8")
	t.Setenv("RRR_DISPATCH", "nats")
	t.Setenv("RRR_VERBOSE", "true")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_OPEN_TIMEOUT", "5s")

	cfg := Load()
	if cfg.Concurrency != 8 || cfg.Dispatch != DispatchNATS || !cfg.Verbose {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %f", cfg.APIRateLimitRPS)
	}
	if cfg.Resilience.BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("expected breaker timeout 5s, got %s", cfg.Resilience.BreakerOpenTimeout)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RRR_CONCURRENCY", "many")
	t.Setenv("API_QUEUE_WAIT", "soon")

	cfg := Load()
	if cfg.Concurrency != 4 || cfg.APIQueueWait != 250*time.Millisecond {
		t.Fatalf("expected fallbacks, got concurrency=%d wait=%s", cfg.Concurrency, cfg.APIQueueWait)
	}
}

const validCategories = `
categories:
  - name: van_gogh
    description: Life and work of Vincent van Gogh
    retriever: {kind: vector, collection: van_gogh, top_k: 4, rewrite: HyDE}
  - name: AMSTERDAM
    description: The city of Amsterdam
    retriever: {kind: hybrid, collection: amsterdam}
  - name: ART_GRAPH
    description: Relations between painters and places
    retriever: {kind: graph}
`

func TestLoadCategoriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	if err := os.WriteFile(path, []byte(validCategories), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	specs, err := LoadCategories(path)
	if err != nil {
		t.Fatalf("LoadCategories() error = %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(specs))
	}
	if specs[0].Name != "VAN_GOGH" || specs[0].Retriever.Rewrite != "hyde" || specs[0].Retriever.TopK != 4 {
		t.Fatalf("unexpected first category %+v", specs[0])
	}
	collections := Collections(specs)
	if len(collections) != 2 || collections["AMSTERDAM"] != "amsterdam" {
		t.Fatalf("unexpected collections %v", collections)
	}
}

func TestParseCategoriesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":              "categories: []",
		"unknown field":      "categories:\n  - name: A\n    description: d\n    retriever: {kind: graph}\n    weight: 2\n",
		"missing name":       "categories:\n  - description: d\n    retriever: {kind: graph}\n",
		"bracket in name":    "categories:\n  - name: A]B\n    description: d\n    retriever: {kind: graph}\n",
		"unknown kind":       "categories:\n  - name: A\n    description: d\n    retriever: {kind: sql}\n",
		"vector without col": "categories:\n  - name: A\n    description: d\n    retriever: {kind: vector}\n",
		"unknown rewrite":    "categories:\n  - name: A\n    description: d\n    retriever: {kind: graph, rewrite: magic}\n",
		"duplicate":          "categories:\n  - name: A\n    description: d\n    retriever: {kind: graph}\n  - name: a\n    description: d\n    retriever: {kind: graph}\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCategories([]byte(raw))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
