package twitter

import (
	"context"
	"encoding/json"
	"fmt"
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

func newTestCollector(t *testing.T, handler http.HandlerFunc, cfg Config) *Collector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewCollectorWithBaseURL(server.Client(), server.URL, cfg)
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func page(ids []string, next string) map[string]any {
	data := make([]map[string]any, len(ids))
	for i, id := range ids {
		data[i] = map[string]any{
			"id":         id,
			"text":       "Trying Claude for code review " + id,
			"author_id":  "u" + id,
			"created_at": "2025-05-01T12:00:00.000Z",
			"lang":       "en",
			"public_metrics": map[string]int{
				"like_count": 5, "retweet_count": 2, "reply_count": 1, "quote_count": 0,
			},
		}
	}
	return map[string]any{"data": data, "meta": map[string]any{"next_token": next, "result_count": len(ids)}}
}

func TestCollect_NoTokenYieldsNothing(t *testing.T) {
	var calls int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, Config{})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestCollect_PaginatesUntilLimit(t *testing.T) {
	var tokens []string
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("max_results"))
		assert.Equal(t, "created_at,public_metrics,author_id,lang", q.Get("tweet.fields"))
		tokens = append(tokens, q.Get("next_token"))

		switch q.Get("next_token") {
		case "":
			json.NewEncoder(w).Encode(page([]string{"1", "2", "3"}, "p2"))
		case "p2":
			json.NewEncoder(w).Encode(page([]string{"4", "5", "6"}, "p3"))
		default:
			t.Errorf("unexpected page %s", q.Get("next_token"))
		}
	}, Config{BearerToken: "secret", Limit: 5})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, []string{"", "p2"}, tokens)

	m := got[0]
	assert.Equal(t, "1", m.ID)
	assert.Equal(t, taxonomy.Twitter, m.Source)
	assert.Equal(t, mention.KindTweet, m.Kind)
	assert.Equal(t, "Claude", m.Tool)
	assert.Equal(t, taxonomy.Text, m.Category)
	assert.Equal(t, 5, m.Likes)
	assert.Equal(t, 2, m.Reposts)
	assert.Equal(t, 1, m.Replies)
	assert.Equal(t, "en", m.Lang)
	assert.True(t, m.CreatedAt.Equal(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestCollect_StopsWithoutNextToken(t *testing.T) {
	var calls int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(page([]string{"1"}, ""))
	}, Config{BearerToken: "x", Limit: 50})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_RetriesOn429(t *testing.T) {
	var calls int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(page([]string{"9"}, ""))
	}, Config{BearerToken: "x"})

	p, err := c.Search(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Len(t, p.Data, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_GivesUpAfterRetries(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, Config{BearerToken: "x"})

	_, err := c.Search(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCollect_ErrorReturnsPartial(t *testing.T) {
	var calls int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			json.NewEncoder(w).Encode(page([]string{"1", "2"}, "next"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"title":"Unauthorized"}`)
	}, Config{BearerToken: "x", Limit: 10})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleepCtx(ctx, time.Hour))
	assert.NoError(t, sleepCtx(context.Background(), 0))
}
