package artificialanalysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisentinel/cache"
	"aisentinel/taxonomy"
)

const modelsJSON = `{"status":200,"data":[
	{"id":"m1","name":"GPT-4o","slug":"gpt-4o","model_creator":{"id":"c1","name":"OpenAI","slug":"openai"},
	 "evaluations":{"artificial_analysis_intelligence_index":41.0,"mmlu_pro":0.75},"pricing":{"price_1m_input_tokens":2.5},
	 "median_output_tokens_per_second":120.5,"median_time_to_first_token_seconds":0.4},
	{"id":"m2","name":"o3-mini","slug":"o3-mini","model_creator":{"id":"c1","name":"OpenAI","slug":"openai"},
	 "evaluations":{"artificial_analysis_intelligence_index":63.0}},
	{"id":"m3","name":"Claude 3.5 Sonnet","slug":"claude-35-sonnet","model_creator":{"id":"c2","name":"Anthropic","slug":"anthropic"},
	 "evaluations":{"artificial_analysis_intelligence_index":44.0}}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc, c cache.Cache) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.Client(), c, Config{APIKey: "key", BaseURL: server.URL})
	client.backoff = 0
	return client
}

func modelsHandler(t *testing.T, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		switch r.URL.Path {
		case "/data/llms/models":
			w.Write([]byte(modelsJSON))
		case "/data/media/text-to-image":
			assert.Equal(t, "", r.URL.Query().Get("include_categories"))
			w.Write([]byte(`{"status":200,"data":[
				{"id":"i1","name":"Midjourney v7","model_creator":{"name":"Midjourney"},"elo":1100},
				{"id":"i2","name":"DALL-E 3","model_creator":{"name":"OpenAI"},"elo":1000},
				{"id":"i3","name":"Imagen 4","model_creator":{"name":"Google"},"elo":1150}
			]}`))
		case "/data/media/text-to-video":
			w.Write([]byte(`{"status":200,"data":[{"id":"v1","name":"Midjourney Video","model_creator":{"name":"Midjourney"},"elo":1200}]}`))
		case "/data/media/text-to-speech":
			w.Write([]byte(`{"status":200,"data":[{"id":"s1","name":"Eleven v3","model_creator":{"name":"ElevenLabs"},"elo":1111}]}`))
		case "/data/media/image-to-video":
			assert.Equal(t, "true", r.URL.Query().Get("include_categories"))
			w.Write([]byte(`{"status":200,"data":[{"id":"x","name":"X","categories":[{"style":"anime"}]}]}`))
		default:
			w.Write([]byte(`{"status":200,"data":[]}`))
		}
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(nil, nil, Config{})
	_, err := c.Models(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestModels(t *testing.T) {
	c := newTestClient(t, modelsHandler(t, nil), nil)

	models, err := c.Models(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "GPT-4o", models[0].Name)
	assert.Equal(t, "OpenAI", models[0].CreatorName())
	assert.InDelta(t, 41.0, models[0].Evaluations[intelligenceIndex], 1e-9)
	require.NotNil(t, models[0].MedianOutputTokensPerSecond)
	assert.InDelta(t, 120.5, *models[0].MedianOutputTokensPerSecond, 1e-9)
	assert.Nil(t, models[1].MedianOutputTokensPerSecond)

	limited, err := c.Models(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestModels_Cached(t *testing.T) {
	var calls int32
	c := newTestClient(t, modelsHandler(t, &calls), cache.NewMemory())

	for i := 0; i < 3; i++ {
		_, err := c.Models(context.Background(), 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestModelDetails(t *testing.T) {
	c := newTestClient(t, modelsHandler(t, nil), nil)
	ctx := context.Background()

	for _, key := range []string{"m2", "O3-MINI", "o3-mini"} {
		m, err := c.ModelDetails(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, m, key)
		assert.Equal(t, "m2", m.ID)
	}

	m, err := c.ModelDetails(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, m)

	evals, err := c.ModelEvaluations(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, evals["mmlu_pro"], 1e-9)
}

func TestSearchAndCreator(t *testing.T) {
	c := newTestClient(t, modelsHandler(t, nil), nil)
	ctx := context.Background()

	res, err := c.SearchModels(ctx, "o", "")
	require.NoError(t, err)
	assert.Len(t, res, 3)

	res, err = c.SearchModels(ctx, "o", "anthropic")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "m3", res[0].ID)

	res, err = c.ModelsByCreator(ctx, "openai")
	require.NoError(t, err)
	assert.Len(t, res, 2)

	all, err := c.AllTechnicalInfo(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, "m3")
}

func TestMediaEndpoints(t *testing.T) {
	c := newTestClient(t, modelsHandler(t, nil), nil)
	ctx := context.Background()

	img, err := c.TextToImage(ctx, false)
	require.NoError(t, err)
	assert.Len(t, img, 3)

	i2v, err := c.ImageToVideo(ctx, true)
	require.NoError(t, err)
	require.Len(t, i2v, 1)
	assert.JSONEq(t, `[{"style":"anime"}]`, string(i2v[0].Categories))

	edit, err := c.ImageEditing(ctx)
	require.NoError(t, err)
	assert.Empty(t, edit)
}

func TestRetryThenSuccess(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(modelsJSON))
	}, nil)

	models, err := c.Models(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, models, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRateLimitError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retryAfter":120,"limit":500}`))
	}, nil)

	_, err := c.Models(context.Background(), 0)
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 120, rl.RetryAfter)
	assert.Equal(t, 500, rl.Limit)
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestRateLimitDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	_, err := c.Models(context.Background(), 0)
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 3600, rl.RetryAfter)
	assert.Equal(t, 1000, rl.Limit)
}

func TestInvalidAPIKey(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)

	_, err := c.Models(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "401 is not retried")
}

func TestForTool(t *testing.T) {
	c := newTestClient(t, modelsHandler(t, nil), nil)
	ctx := context.Background()

	chatgpt, _ := taxonomy.Lookup("ChatGPT")
	tm, err := c.ForTool(ctx, chatgpt, 5)
	require.NoError(t, err)
	require.Len(t, tm.LLMs, 2)
	assert.Equal(t, "o3-mini", tm.LLMs[0].Name, "sorted by intelligence index")

	mj, _ := taxonomy.Lookup("Midjourney")
	tm, err = c.ForTool(ctx, mj, 5)
	require.NoError(t, err)
	require.Len(t, tm.Media, 2)
	assert.Equal(t, "v1", tm.Media[0].ID, "sorted by elo")

	el, _ := taxonomy.Lookup("ElevenLabs")
	tm, err = c.ForTool(ctx, el, 5)
	require.NoError(t, err)
	require.Len(t, tm.Media, 1)

	tabby, _ := taxonomy.Lookup("Tabby")
	tm, err = c.ForTool(ctx, tabby, 5)
	require.NoError(t, err)
	assert.True(t, tm.Empty())
}
