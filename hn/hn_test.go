package hn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClientWithBaseURL(server.Client(), server.URL)
	return server, client
}

func TestSearchByDate_Success(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search_by_date" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "claude OR cursor" {
			t.Errorf("unexpected query: %s", q.Get("query"))
		}
		if q.Get("page") != "2" || q.Get("hitsPerPage") != "50" {
			t.Errorf("unexpected paging: page=%s hitsPerPage=%s", q.Get("page"), q.Get("hitsPerPage"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{"objectID": "101", "title": "Claude is great", "author": "pg", "points": 12, "num_comments": 3, "created_at": "2025-01-02T03:04:05.000Z"},
				{"objectID": "102", "comment_text": "Cursor <i>rocks</i>", "story_title": "Editors", "points": nil},
			},
			"page":    2,
			"nbPages": 5,
		})
	})

	res, err := client.SearchByDate(context.Background(), "claude OR cursor", 2, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(res.Hits))
	}
	if res.Hits[0].ObjectID != "101" || res.Hits[0].Points != 12 || res.Hits[0].NumComments != 3 {
		t.Errorf("unexpected first hit: %+v", res.Hits[0])
	}
	if res.Hits[1].Points != 0 {
		t.Errorf("expected null points to decode as 0, got %d", res.Hits[1].Points)
	}
	if res.NbPages != 5 {
		t.Errorf("expected nbPages 5, got %d", res.NbPages)
	}
}

func TestSearchByDate_ServerError(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.SearchByDate(context.Background(), "q", 0, 50); err == nil {
		t.Fatal("expected error for server error")
	}
}

func TestSearchByDate_InvalidJSON(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	if _, err := client.SearchByDate(context.Background(), "q", 0, 50); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestSearchByDate_ContextCancelled(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.SearchByDate(ctx, "q", 0, 50); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient(nil).(*httpClient)
	if c.baseURL != BaseURL {
		t.Errorf("expected base URL %s, got %s", BaseURL, c.baseURL)
	}
	if c.client != http.DefaultClient {
		t.Error("expected default HTTP client")
	}
}
