package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/resilience"
)

// tripletQuery is scoped to the category property of the subject node, so
// several graph categories can share one database.
const tripletQuery = `
MATCH (s)-[r]->(o)
WHERE s.category = $category
	AND any(term IN $terms WHERE toLower(s.name) CONTAINS term OR toLower(o.name) CONTAINS term)
RETURN elementId(r) AS id, s.name AS subject, type(r) AS predicate, o.name AS object
LIMIT $candidates`

// Row is one result record keyed by column name.
type Row map[string]any

// Runner executes a read query. The driver-backed implementation lives in
// driver.go.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
}

// Store implements ports.GraphStore over (subject)-[predicate]->(object)
// triplets whose nodes carry name and category properties.
type Store struct {
	runner   Runner
	executor *resilience.Executor
	// candidateFactor widens the Cypher LIMIT so ranking happens over more
	// triplets than are returned.
	candidateFactor int
}

type Options struct {
	ResilienceExecutor *resilience.Executor
}

func NewStore(runner Runner, options Options) *Store {
	return &Store{
		runner:          runner,
		executor:        options.ResilienceExecutor,
		candidateFactor: 4,
	}
}

func (s *Store) SearchTriplets(ctx context.Context, category, query string, limit int) ([]domain.Fragment, error) {
	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []domain.Fragment{}, nil
	}

	params := map[string]any{
		"category":   category,
		"terms":      terms,
		"candidates": int64(limit * s.candidateFactor),
	}

	var rows []Row
	call := func(callCtx context.Context) error {
		var err error
		rows, err = s.runner.Run(callCtx, tripletQuery, params)
		return err
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "neo4j.search_triplets", call, classifyNeo4jError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapRetrievalError(err)
	}

	fragments := make([]domain.Fragment, 0, len(rows))
	for _, row := range rows {
		subject := rowString(row, "subject")
		object := rowString(row, "object")
		if subject == "" || object == "" {
			continue
		}
		content := fmt.Sprintf("%s %s %s", subject, predicateText(rowString(row, "predicate")), object)
		fragments = append(fragments, domain.Fragment{
			ID:       rowString(row, "id"),
			Content:  content,
			Score:    termCoverage(terms, content),
			Source:   "neo4j",
			Category: category,
		})
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Score > fragments[j].Score
	})
	if len(fragments) > limit {
		fragments = fragments[:limit]
	}
	return fragments, nil
}

func queryTerms(query string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, field := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(field)) < 3 {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}

func termCoverage(terms []string, content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// predicateText renders BORN_IN as "born in".
func predicateText(predicate string) string {
	return strings.ToLower(strings.ReplaceAll(predicate, "_", " "))
}

func rowString(row Row, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
