package usecase

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

type HybridConfig struct {
	Candidates int
	RRFK       int
	RerankTopN int
	Limit      int
}

// HybridRetriever fuses a semantic and a lexical retriever with reciprocal
// rank fusion, then reranks the head by query token overlap.
type HybridRetriever struct {
	semantic ports.Retriever
	lexical  ports.Retriever
	cfg      HybridConfig
}

func NewHybridRetriever(semantic, lexical ports.Retriever, cfg HybridConfig) *HybridRetriever {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	return &HybridRetriever{
		semantic: semantic,
		lexical:  lexical,
		cfg:      cfg,
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	var semantic, lexical []domain.Fragment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := r.semantic.Retrieve(gctx, query)
		if err != nil {
			return fmt.Errorf("semantic retrieve: %w", err)
		}
		semantic = trimCandidates(out, r.cfg.Candidates)
		return nil
	})
	g.Go(func() error {
		out, err := r.lexical.Retrieve(gctx, query)
		if err != nil {
			return fmt.Errorf("lexical retrieve: %w", err)
		}
		lexical = trimCandidates(out, r.cfg.Candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseCandidatesRRF(semantic, lexical, r.cfg.RRFK)
	if r.cfg.RerankTopN > 0 {
		fused = rerankHybridCandidates(query, fused, r.cfg.RerankTopN)
	}
	return trimCandidates(fused, r.cfg.Limit), nil
}

type fusedCandidate struct {
	fragment domain.Fragment
	score    float64
}

func fuseCandidatesRRF(semantic, lexical []domain.Fragment, rrfK int) []domain.Fragment {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(semantic)+len(lexical))
	addList := func(fragments []domain.Fragment) {
		for rank, fragment := range fragments {
			key := fragmentKey(fragment)
			candidate := acc[key]
			candidate.fragment = preferRicherFragment(candidate.fragment, fragment)
			candidate.score += 1.0 / float64(rrfK+rank+1)
			acc[key] = candidate
		}
	}

	addList(semantic)
	addList(lexical)

	out := make([]domain.Fragment, 0, len(acc))
	for _, c := range acc {
		fragment := c.fragment
		fragment.Score = c.score
		out = append(out, fragment)
	}

	sortFragments(out)
	return out
}

func sortFragments(fragments []domain.Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].Score != fragments[j].Score {
			return fragments[i].Score > fragments[j].Score
		}
		if fragments[i].ID != fragments[j].ID {
			return fragments[i].ID < fragments[j].ID
		}
		return fragments[i].Source < fragments[j].Source
	})
}

func trimCandidates(fragments []domain.Fragment, limit int) []domain.Fragment {
	if limit <= 0 || len(fragments) <= limit {
		return fragments
	}
	return fragments[:limit]
}

func fragmentKey(fragment domain.Fragment) string {
	if fragment.ID != "" {
		return fragment.ID
	}
	return fmt.Sprintf("%s|%s", fragment.Source, fragment.Content)
}

func preferRicherFragment(current, candidate domain.Fragment) domain.Fragment {
	if current.ID == "" && current.Source == "" && current.Content == "" {
		return candidate
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Source == "" && candidate.Source != "" {
		current.Source = candidate.Source
	}
	if current.Category == "" && candidate.Category != "" {
		current.Category = candidate.Category
	}
	if current.ID == "" && candidate.ID != "" {
		current.ID = candidate.ID
	}
	return current
}
