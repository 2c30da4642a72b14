package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(context.Background(), "redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestRedis_SetGet(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	assert.True(t, mr.Exists("test:k"), "keys should carry the prefix")

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ConnectFailure(t *testing.T) {
	_, err := NewRedis(context.Background(), "redis://127.0.0.1:1", "")
	assert.Error(t, err)

	_, err = NewRedis(context.Background(), "not a url", "")
	assert.Error(t, err)
}

func TestRedis_WithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "a", []byte("1"), 0))
	v, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := m.Get(ctx, "k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemory_HitDoesNotExtendTTL(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 200*time.Millisecond))
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline.Add(-50 * time.Millisecond)) {
		m.Get(ctx, "k")
		time.Sleep(20 * time.Millisecond)
	}
	assert.Eventually(t, func() bool {
		_, ok, _ := m.Get(ctx, "k")
		return !ok
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestMemory_CopiesValue(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf, 0))
	buf[0] = 'z'
	got, _, _ := m.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(got))
}

func TestJSONHelpers(t *testing.T) {
	for name, c := range map[string]Cache{"memory": NewMemory()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			type payload struct{ N int }

			var p payload
			ok, err := GetJSON(ctx, c, "p", &p)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, SetJSON(ctx, c, "p", payload{N: 7}, time.Minute))
			ok, err = GetJSON(ctx, c, "p", &p)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 7, p.N)

			require.NoError(t, c.Set(ctx, "bad", []byte("{"), 0))
			_, err = GetJSON(ctx, c, "bad", &p)
			assert.Error(t, err)
		})
	}
}
