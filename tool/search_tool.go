package tool

import (
	"fmt"

	"github.com/lorekeep/lorekeep/search"
)

// webSearchTool searches the web through the bound search client.
type webSearchTool struct{}

// NewWebSearchTool constructs the web search tool.
func NewWebSearchTool() Tool { return &webSearchTool{} }

func (t *webSearchTool) Name() string { return "web_search" }

func (t *webSearchTool) Description() string {
	return "Search the web. Returns titles, URLs and snippets; record anything factual " +
		"you learn with write_to_buffer."
}

func (t *webSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search query"},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default: 10)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *webSearchTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	if tc.Search() == nil {
		return nil, NewToolError(t.Name(), "no search client configured", "UNAVAILABLE")
	}
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	maxResults := 10
	if mr, err := floatArg(args, "max_results", 10); err != nil {
		return nil, err
	} else if mr > 0 {
		maxResults = int(mr)
	}

	results, err := tc.Search().Search(tc.Context(), query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return search.FormatResults(query, results), nil
}
