// Package search provides the web search collaborator used by research
// agents. The default client scrapes the DuckDuckGo HTML endpoint, which
// needs no API key; a StaticClient serves canned results for tests.
package search

import "context"

// Result represents a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client is the search abstraction handed to research tooling.
type Client interface {
	// Search returns up to maxResults results for the query. An empty
	// result slice is not an error.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// StaticClient serves a fixed result set per query. Useful for tests and
// offline runs.
type StaticClient struct {
	// Results maps queries to their canned results. Queries with no entry
	// return the Fallback slice.
	Results  map[string][]Result
	Fallback []Result
}

var _ Client = (*StaticClient)(nil)

// Search implements Client.
func (c *StaticClient) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	results, ok := c.Results[query]
	if !ok {
		results = c.Fallback
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	out := make([]Result, len(results))
	copy(out, results)
	return out, nil
}
