package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

const (
	RewriteNone     = ""
	RewriteHyDE     = "hyde"
	RewriteStepBack = "stepback"
)

// WithRewrite decorates inner with the named query-rewriting strategy.
func WithRewrite(strategy string, completion ports.TextCompletion, inner ports.Retriever) (ports.Retriever, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case RewriteNone, "none":
		return inner, nil
	case RewriteHyDE:
		return NewHyDERetriever(completion, inner), nil
	case RewriteStepBack, "step-back", "step_back":
		return NewStepBackRetriever(completion, inner), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "rewrite strategy", fmt.Errorf("unsupported strategy %q", strategy))
	}
}

// HyDERetriever searches with a hypothetical answer passage instead of the
// raw question.
type HyDERetriever struct {
	completion ports.TextCompletion
	inner      ports.Retriever
}

func NewHyDERetriever(completion ports.TextCompletion, inner ports.Retriever) *HyDERetriever {
	return &HyDERetriever{completion: completion, inner: inner}
}

func (r *HyDERetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	passage, err := r.completion.Complete(ctx, buildHyDEPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("hyde passage: %w", err)
	}
	passage = strings.TrimSpace(passage)
	if passage == "" {
		passage = query
	}
	return r.inner.Retrieve(ctx, passage)
}

// StepBackRetriever retrieves for the original question and for a more
// generic step-back question. Original results come first; duplicates by
// fragment key are dropped.
type StepBackRetriever struct {
	completion ports.TextCompletion
	inner      ports.Retriever
}

func NewStepBackRetriever(completion ports.TextCompletion, inner ports.Retriever) *StepBackRetriever {
	return &StepBackRetriever{completion: completion, inner: inner}
}

func (r *StepBackRetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	direct, err := r.inner.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	stepBack, err := r.completion.Complete(ctx, buildStepBackPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("step-back question: %w", err)
	}
	stepBack = strings.TrimSpace(stepBack)
	if stepBack == "" || strings.EqualFold(stepBack, strings.TrimSpace(query)) {
		return direct, nil
	}

	background, err := r.inner.Retrieve(ctx, stepBack)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(direct)+len(background))
	out := make([]domain.Fragment, 0, len(direct)+len(background))
	for _, list := range [][]domain.Fragment{direct, background} {
		for _, fragment := range list {
			key := fragmentKey(fragment)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, fragment)
		}
	}
	return out, nil
}
