package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSearch(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{"title": "First", "url": "https://a.test", "content": "snippet a", "raw_content": "full page a"},
				{"title": "No raw", "url": "https://b.test", "content": "snippet b", "raw_content": ""},
				{"title": "Orphan", "url": "", "content": "skipped"},
				{"title": "Overflow", "url": "https://c.test", "content": "snippet c"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL
	c.MaxResults = 2

	docs, err := c.Search(context.Background(), "golang scheduler")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotBody["query"] != "golang scheduler" {
		t.Errorf("request query = %v", gotBody["query"])
	}
	if gotBody["search_depth"] != "advanced" {
		t.Errorf("request search_depth = %v", gotBody["search_depth"])
	}
	if gotBody["include_raw_content"] != true {
		t.Errorf("request include_raw_content = %v", gotBody["include_raw_content"])
	}

	if len(docs) != 2 {
		t.Fatalf("Search() returned %d docs, want 2 (capped at MaxResults)", len(docs))
	}
	if docs[0].Content != "full page a" {
		t.Errorf("docs[0].Content = %q, want raw content preferred", docs[0].Content)
	}
	if docs[1].Content != "snippet b" {
		t.Errorf("docs[1].Content = %q, want content fallback", docs[1].Content)
	}
	if docs[0].URL != "https://a.test" || docs[1].URL != "https://b.test" {
		t.Errorf("doc URLs = %q, %q", docs[0].URL, docs[1].URL)
	}
}

func TestClientSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatal("Search() expected error on non-200 response")
	}
}

func TestClientSearchMissingAPIKey(t *testing.T) {
	c := NewClient("   ")
	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatal("Search() expected error without API key")
	}
}

func TestClientSearchMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatal("Search() expected decode error")
	}
}
