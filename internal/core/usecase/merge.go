package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

type AnswerMerger struct {
	completion ports.TextCompletion
}

func NewAnswerMerger(completion ports.TextCompletion) *AnswerMerger {
	return &AnswerMerger{completion: completion}
}

// Merge validates and combines per-sub-question answers. An empty answers
// slice is still sent to the completion capability as an empty block.
func (m *AnswerMerger) Merge(ctx context.Context, query string, answers []string) (string, error) {
	raw, err := m.completion.Complete(ctx, buildMergePrompt(query, answers))
	if err != nil {
		return "", wrapCompletionError("merge answers", err)
	}
	return strings.TrimSpace(raw), nil
}
