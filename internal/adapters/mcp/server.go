// Package mcpadapter exposes the query service as Model Context Protocol
// tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

const (
	ServerName    = "rrr-query-engine"
	ServerVersion = "1.0.0"

	queryToolName      = "rrr_query"
	categoriesToolName = "rrr_categories"
)

var queryToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Natural-language question. It may span several knowledge categories."
		}
	},
	"required": ["query"]
}`)

var categoriesToolSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// NewServer registers the query and category tools on a new MCP server.
func NewServer(service ports.QueryService, categories ports.CategoryLister) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))

	s.AddTool(
		mcp.NewToolWithRawSchema(queryToolName, "Answer a question by decomposing it into per-category sub-questions, retrieving context for each and merging the answers", queryToolSchema),
		HandleQuery(service),
	)
	s.AddTool(
		mcp.NewToolWithRawSchema(categoriesToolName, "List the knowledge categories questions can be routed to", categoriesToolSchema),
		HandleCategories(categories),
	)
	return s
}

// HandleQuery runs the query and returns the final answer followed by the
// full result as JSON.
func HandleQuery(service ports.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query argument is required"), nil
		}

		result, err := service.Query(ctx, query)
		if err != nil {
			slog.WarnContext(ctx, "mcp_query_failed", "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(result.Answer),
				mcp.NewTextContent(string(payload)),
			},
		}, nil
	}
}

func HandleCategories(categories ports.CategoryLister) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list := []domain.Category{}
		if categories != nil {
			list = append(list, categories.Categories()...)
		}
		lines := make([]string, 0, len(list))
		for _, c := range list {
			lines = append(lines, c.Name+": "+c.Description)
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
	}
}
