package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

type queryServiceFake struct {
	result *domain.QueryResult
	err    error
	got    string
}

func (f *queryServiceFake) Query(_ context.Context, text string) (*domain.QueryResult, error) {
	f.got = text
	return f.result, f.err
}

type categoriesFake []domain.Category

func (f categoriesFake) Categories() []domain.Category { return f }

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = queryToolName
	req.Params.Arguments = args
	return req
}

func textAt(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	if len(result.Content) <= i {
		t.Fatalf("expected at least %d content items, got %d", i+1, len(result.Content))
	}
	switch c := result.Content[i].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("content %d is %T, not text", i, result.Content[i])
		return ""
	}
}

func TestHandleQueryReturnsAnswerAndResult(t *testing.T) {
	service := &queryServiceFake{result: &domain.QueryResult{
		Query:  "Tell me about Van Gogh",
		Answer: "He was a Dutch painter.",
		SubAnswers: []domain.SubAnswer{
			{SubQuestion: domain.SubQuestion{Category: "VAN_GOGH", Text: "Who is Van Gogh?"}, Answer: "A painter."},
		},
	}}

	result, err := HandleQuery(service)(context.Background(), callRequest(map[string]any{"query": "Tell me about Van Gogh"}))
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result)
	}
	if service.got != "Tell me about Van Gogh" {
		t.Fatalf("unexpected query forwarded: %q", service.got)
	}
	if got := textAt(t, result, 0); got != "He was a Dutch painter." {
		t.Fatalf("unexpected answer text: %q", got)
	}

	var decoded domain.QueryResult
	if err := json.Unmarshal([]byte(textAt(t, result, 1)), &decoded); err != nil {
		t.Fatalf("decode result json: %v", err)
	}
	if len(decoded.SubAnswers) != 1 || decoded.SubAnswers[0].Category != "VAN_GOGH" {
		t.Fatalf("unexpected decoded result: %+v", decoded)
	}
}

func TestHandleQueryRequiresQuery(t *testing.T) {
	service := &queryServiceFake{}
	for _, args := range []map[string]any{{}, {"query": "   "}, {"query": 12}} {
		result, err := HandleQuery(service)(context.Background(), callRequest(args))
		if err != nil {
			t.Fatalf("HandleQuery() error = %v", err)
		}
		if !result.IsError {
			t.Fatalf("expected tool error for args %v", args)
		}
	}
	if service.got != "" {
		t.Fatalf("service must not be called without a query")
	}
}

func TestHandleQueryReportsServiceErrorAsToolError(t *testing.T) {
	service := &queryServiceFake{err: domain.WrapError(domain.ErrCompletion, "merge", errors.New("model unavailable"))}

	result, err := HandleQuery(service)(context.Background(), callRequest(map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error result")
	}
}

func TestHandleCategoriesListsNames(t *testing.T) {
	result, err := HandleCategories(categoriesFake{
		{Name: "VAN_GOGH", Description: "The painter"},
		{Name: "AMSTERDAM", Description: "The city"},
	})(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("HandleCategories() error = %v", err)
	}
	if got := textAt(t, result, 0); got != "VAN_GOGH: The painter\nAMSTERDAM: The city" {
		t.Fatalf("unexpected categories text: %q", got)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(&queryServiceFake{}, categoriesFake{})
	if s == nil {
		t.Fatalf("expected server")
	}
}
