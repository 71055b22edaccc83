package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{
			name:        "Valid Redis URL",
			url:         "redis://" + mr.Addr() + "/0",
			expectError: false,
		},
		{
			name:        "Invalid URL",
			url:         "invalid://url",
			expectError: true,
		},
		{
			name:        "Empty URL",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", nil)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client.KeyBuilder)
			assert.NoError(t, client.Close())
		})
	}
}

func TestClient_Get(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:key1", "value1"))
	value, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", value)

	_, err = client.Get(ctx, "test:missing")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_SetNX(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "test:once", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.TTL("test:once") > 0)

	ok, err = client.SetNX(ctx, "test:once", "second", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, "test:once")
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestClient_HashCounters(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "test:counts", "A", 0, "B", 0))

	v, err := client.HIncrBy(ctx, "test:counts", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = client.HIncrBy(ctx, "test:counts", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	all, err := client.HGetAll(ctx, "test:counts")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "2", "B": "0"}, all)
}

func TestClient_Eval(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	res, err := client.Eval(ctx, "return redis.call('INCRBY', KEYS[1], ARGV[1])", []string{"test:eval"}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res)
}

func TestClient_Delete(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:a", "1"))
	require.NoError(t, mr.Set("test:b", "1"))

	require.NoError(t, client.Delete(ctx, "test:a", "test:b", "test:c"))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)

	assert.NoError(t, client.Health(context.Background()))

	mr.Close()
	assert.Error(t, client.Health(context.Background()))
}
