package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

var testCreds = Credentials{ClientID: "id", ClientSecret: "secret", UserAgent: "aisentinel-test/1.0"}

type fakeReddit struct {
	tokenCalls  int32
	searchCalls int32
	failSearch  bool
}

func (f *fakeReddit) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/access_token":
			atomic.AddInt32(&f.tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", user)
			assert.Equal(t, "secret", pass)
			r.ParseForm()
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 3600})

		case r.URL.Path == "/r/OpenAI/search":
			atomic.AddInt32(&f.searchCalls, 1)
			assert.Equal(t, "bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "aisentinel-test/1.0", r.Header.Get("User-Agent"))
			assert.Equal(t, "new", r.URL.Query().Get("sort"))
			assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
			if f.failSearch {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte(`{"kind":"Listing","data":{"after":null,"children":[
				{"kind":"t3","data":{"id":"p1","subreddit":"OpenAI","title":"ChatGPT keeps forgetting context","selftext":"anyone else?","author":"u1","url":"https://reddit.com/p1","score":10,"num_comments":2,"created_utc":1735689600}},
				{"kind":"t3","data":{"id":"p2","subreddit":"OpenAI","title":"Unrelated meme","selftext":"","author":"u2","created_utc":1735689600}}
			]}}`))

		case r.URL.Path == "/r/OpenAI/comments/p1":
			w.Write([]byte(`[
				{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1"}}]}},
				{"kind":"Listing","data":{"children":[
					{"kind":"t1","data":{"id":"c1","subreddit":"OpenAI","body":"Claude handles long context better","author":"u3","score":4,"created_utc":1735693200,
						"replies":{"kind":"Listing","data":{"children":[
							{"kind":"t1","data":{"id":"c2","subreddit":"OpenAI","body":"agreed, claude is great","author":"u4","score":1,"created_utc":1735696800,"replies":""}},
							{"kind":"more","data":{"count":3}}
						]}}}},
					{"kind":"t1","data":{"id":"c3","subreddit":"OpenAI","body":"lol","author":"u5","score":0,"created_utc":1735696800,"replies":""}}
				]}}
			]`))

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestCollector(t *testing.T, f *fakeReddit, creds Credentials, cfg Config) *Collector {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	client := NewClientWithBaseURLs(server.Client(), server.URL, server.URL, creds)
	c := NewCollector(client, cfg)
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestCollect_PostsAndComments(t *testing.T) {
	f := &fakeReddit{}
	c := newTestCollector(t, f, testCreds, Config{
		Subreddits:      []string{"OpenAI"},
		QueryTerms:      []string{"chatgpt", "claude"},
		Limit:           10,
		IncludeComments: true,
	})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	post := got[0]
	assert.Equal(t, "p1", post.ID)
	assert.Equal(t, mention.KindPost, post.Kind)
	assert.Equal(t, taxonomy.Reddit, post.Source)
	assert.Equal(t, "ChatGPT keeps forgetting context\n\nanyone else?", post.Text)
	assert.Equal(t, "ChatGPT", post.Tool)
	assert.Equal(t, "OpenAI", post.Subreddit)
	assert.Equal(t, 10, post.Points)
	assert.Equal(t, 2, post.Comments)
	assert.True(t, post.CreatedAt.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "c1", got[1].ID)
	assert.Equal(t, mention.KindComment, got[1].Kind)
	assert.Equal(t, "Claude", got[1].Tool)
	assert.Equal(t, "c2", got[2].ID, "nested reply should be flattened")

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls), "token should be cached")
}

func TestCollect_WithoutComments(t *testing.T) {
	f := &fakeReddit{}
	c := newTestCollector(t, f, testCreds, Config{
		Subreddits: []string{"OpenAI"},
		QueryTerms: []string{"chatgpt"},
	})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestCollect_NoCredentials(t *testing.T) {
	f := &fakeReddit{}
	c := newTestCollector(t, f, Credentials{ClientID: "id"}, Config{Subreddits: []string{"OpenAI"}})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(&f.tokenCalls))
}

func TestCollect_SearchFailureReturnsPartial(t *testing.T) {
	f := &fakeReddit{failSearch: true}
	c := newTestCollector(t, f, testCreds, Config{Subreddits: []string{"OpenAI", "OpenAI"}})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.searchCalls), "collection stops at the first failure")
}

func TestClient_TokenRefreshAfterExpiry(t *testing.T) {
	f := &fakeReddit{}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	client := NewClientWithBaseURLs(server.Client(), server.URL, server.URL, testCreds)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	_, err := client.accessToken(context.Background())
	require.NoError(t, err)
	_, err = client.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))

	now = now.Add(2 * time.Hour)
	_, err = client.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.tokenCalls))
}

func TestClient_NoCredentials(t *testing.T) {
	client := NewClient(nil, Credentials{})
	_, err := client.Search(context.Background(), "OpenAI", "q", 5)
	assert.ErrorIs(t, err, ErrNoCredentials)
}
