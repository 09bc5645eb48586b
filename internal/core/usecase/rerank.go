package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// overlapReranker rescores the head of a fused candidate list. The fused rank
// score is min-max normalized and blended with how many question tokens the
// fragment text and its source name cover.
type overlapReranker struct {
	fusedWeight   float64
	contentWeight float64
	sourceWeight  float64
}

var defaultReranker = overlapReranker{fusedWeight: 0.60, contentWeight: 0.30, sourceWeight: 0.10}

func rerankHybridCandidates(question string, fused []domain.Fragment, topN int) []domain.Fragment {
	return defaultReranker.rerank(question, fused, topN)
}

// rerank returns a new slice: the first topN candidates rescored and sorted,
// followed by the untouched tail.
func (r overlapReranker) rerank(question string, fused []domain.Fragment, topN int) []domain.Fragment {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	out := make([]domain.Fragment, len(fused))
	copy(out, fused)
	head := out[:topN]

	questionTokens := toTokenSet(question)
	lo, hi := scoreBounds(head)
	for i := range head {
		head[i].Score = r.fusedWeight*normalizeScore(head[i].Score, lo, hi) +
			r.contentWeight*tokenOverlap(questionTokens, toTokenSet(head[i].Content)) +
			r.sourceWeight*tokenOverlap(questionTokens, toTokenSet(head[i].Source))
	}
	sortFragments(head)
	return out
}

func scoreBounds(fragments []domain.Fragment) (lo, hi float64) {
	lo, hi = fragments[0].Score, fragments[0].Score
	for _, f := range fragments[1:] {
		lo = min(lo, f.Score)
		hi = max(hi, f.Score)
	}
	return lo, hi
}

func normalizeScore(v, lo, hi float64) float64 {
	if hi <= lo {
		if v > 0 {
			return 1
		}
		return 0
	}
	return (v - lo) / (hi - lo)
}

// tokenOverlap is the share of query tokens present in the candidate set.
func tokenOverlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
