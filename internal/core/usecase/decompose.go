package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

type QueryDecomposer struct {
	completion ports.TextCompletion
	categories []domain.Category
}

func NewQueryDecomposer(completion ports.TextCompletion, categories []domain.Category) *QueryDecomposer {
	copied := make([]domain.Category, len(categories))
	copy(copied, categories)
	return &QueryDecomposer{
		completion: completion,
		categories: copied,
	}
}

// Decompose asks the completion capability to split query into categorized
// sub-questions and parses its answer.
func (d *QueryDecomposer) Decompose(ctx context.Context, query string) ([]domain.SubQuestion, error) {
	raw, err := d.completion.Complete(ctx, buildDecompositionPrompt(query, d.categories))
	if err != nil {
		return nil, wrapCompletionError("decompose query", err)
	}
	subQuestions, err := ParseSubQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("decompose query: %w", err)
	}
	return subQuestions, nil
}

// ParseSubQuestions parses the comma separated [Category]Question format.
//
// Tolerated deviations: whitespace around items, quotes around the whole
// response, newlines as item separators and `\,` inside a question. Every
// other item must open with '['; a bare comma inside a question is a format
// error rather than a guess about which item it belongs to. Empty items are
// skipped. Category tokens are upper-cased and exact duplicate sub-questions
// are dropped.
func ParseSubQuestions(raw string) ([]domain.SubQuestion, error) {
	text := trimResponseQuotes(strings.TrimSpace(raw))
	if text == "" {
		return []domain.SubQuestion{}, nil
	}

	out := make([]domain.SubQuestion, 0, 4)
	for _, item := range splitItems(text) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, "[") {
			return nil, &domain.DecompositionFormatError{Item: item, Reason: "item does not start with '['"}
		}

		subQuestion, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, subQuestion)
	}

	return dedupeSubQuestions(out), nil
}

func parseItem(item string) (domain.SubQuestion, error) {
	// Strip the leading '[' then split once on the first ']'.
	body := item[1:]
	categoryToken, question, found := strings.Cut(body, "]")
	if !found {
		return domain.SubQuestion{}, &domain.DecompositionFormatError{Item: item, Reason: "missing ']' separator"}
	}
	category := NormalizeCategory(categoryToken)
	if category == "" {
		return domain.SubQuestion{}, &domain.DecompositionFormatError{Item: item, Reason: "empty category"}
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.SubQuestion{}, &domain.DecompositionFormatError{Item: item, Reason: "empty question"}
	}
	return domain.SubQuestion{Category: category, Text: question}, nil
}

// NormalizeCategory is the single place category tokens are canonicalized.
func NormalizeCategory(token string) string {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, `"'`+"`")
	return strings.ToUpper(strings.TrimSpace(token))
}

// splitItems splits on ',' and newlines, unescaping `\,`.
func splitItems(text string) []string {
	items := make([]string, 0, 4)
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && runes[i+1] == ',':
			b.WriteRune(',')
			i++
		case r == ',' || r == '\n':
			items = append(items, b.String())
			b.Reset()
		case r == '\r':
		default:
			b.WriteRune(r)
		}
	}
	return append(items, b.String())
}

func trimResponseQuotes(text string) string {
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first != last || !strings.ContainsRune(`"'`+"`", rune(first)) {
			break
		}
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

func dedupeSubQuestions(in []domain.SubQuestion) []domain.SubQuestion {
	seen := make(map[domain.SubQuestion]struct{}, len(in))
	out := in[:0]
	for _, sq := range in {
		if _, ok := seen[sq]; ok {
			continue
		}
		seen[sq] = struct{}{}
		out = append(out, sq)
	}
	return out
}

func wrapCompletionError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ContextError(operation, err)
	}
	if domain.IsKind(err, domain.ErrCompletion) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(domain.ErrCompletion, operation, err)
}
