package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleHTML = `
<html><body>
<div class="serp__results">
  <div class="result results_links results_links_deep web-result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go Documentation</a>
    <a class="result__snippet" href="https://go.dev/doc/">Official <b>Go</b> documentation and guides.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
    <a class="result__snippet" href="https://go.dev/blog/">News from the <b>Go</b> project.</a>
  </div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := parseResults(sampleHTML, 10)
	if err != nil {
		t.Fatalf("parseResults() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Go Documentation" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/doc/" {
		t.Errorf("redirect URL not unwrapped: %q", results[0].URL)
	}
	if !strings.Contains(results[0].Snippet, "documentation") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestParseResultsRespectsMax(t *testing.T) {
	results, err := parseResults(sampleHTML, 1)
	if err != nil {
		t.Fatalf("parseResults() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("query param = %q, want golang", got)
		}
		w.Write([]byte(sampleHTML))
	}))
	defer srv.Close()

	client := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.Endpoint = srv.URL + "/html/"
	})
	results, err := client.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestDuckDuckGoSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.Endpoint = srv.URL + "/html/"
	})
	if _, err := client.Search(context.Background(), "golang", 5); err == nil {
		t.Fatal("expected error on HTTP 429")
	}

	if _, err := client.Search(context.Background(), "", 5); err == nil {
		t.Fatal("expected error on empty query")
	}
}

func TestStaticClient(t *testing.T) {
	c := &StaticClient{
		Results: map[string][]Result{
			"golang": {{Title: "Go", URL: "https://go.dev"}},
		},
		Fallback: []Result{{Title: "fallback", URL: "https://example.com"}},
	}

	got, err := c.Search(context.Background(), "golang", 10)
	if err != nil || len(got) != 1 || got[0].Title != "Go" {
		t.Fatalf("Search(golang) = %v, %v", got, err)
	}

	got, err = c.Search(context.Background(), "unknown", 10)
	if err != nil || len(got) != 1 || got[0].Title != "fallback" {
		t.Fatalf("Search(unknown) = %v, %v", got, err)
	}
}

func TestFormatResults(t *testing.T) {
	out := FormatResults("golang", []Result{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}})
	if !strings.Contains(out, "Go") || !strings.Contains(out, "https://go.dev") {
		t.Errorf("FormatResults() = %q", out)
	}
	if FormatResults("x", nil) != "No results found for: x" {
		t.Error("empty results should report no results")
	}
}
