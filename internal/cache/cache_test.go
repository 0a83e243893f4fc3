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

type testRecord struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestGetSetJSON(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	var got testRecord
	assert.False(t, GetJSON(ctx, UserKey(1), &got), "expected miss on empty cache")

	SetJSON(ctx, UserKey(1), testRecord{ID: 1, Name: "alice7"}, UserTTL)
	require.True(t, GetJSON(ctx, UserKey(1), &got))
	assert.Equal(t, "alice7", got.Name)
}

func TestCacheAside(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	loads := 0
	load := func() (testRecord, error) {
		loads++
		return testRecord{ID: 2, Name: "bob2"}, nil
	}

	first, err := CacheAside(ctx, UserKey(2), UserTTL, load)
	require.NoError(t, err)
	second, err := CacheAside(ctx, UserKey(2), UserTTL, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads, "second call should be served from cache")
}

func TestCacheAsideTTLExpiry(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	loads := 0
	load := func() (testRecord, error) {
		loads++
		return testRecord{ID: 3, Name: "carol3"}, nil
	}

	_, err := CacheAside(ctx, TokenStatusKey("abc"), TokenStatusTTL, load)
	require.NoError(t, err)

	mr.FastForward(TokenStatusTTL + time.Second)

	_, err = CacheAside(ctx, TokenStatusKey("abc"), TokenStatusTTL, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "expired entry should trigger a reload")
}

func TestDelete(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	SetJSON(ctx, UserKey(4), testRecord{ID: 4}, UserTTL)
	Delete(ctx, UserKey(4))

	var got testRecord
	assert.False(t, GetJSON(ctx, UserKey(4), &got))
}

func TestNilClientIsSafe(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	var got testRecord
	assert.False(t, GetJSON(ctx, UserKey(5), &got))
	SetJSON(ctx, UserKey(5), testRecord{ID: 5}, UserTTL)
	Delete(ctx, UserKey(5))

	value, err := CacheAside(ctx, UserKey(5), UserTTL, func() (testRecord, error) {
		return testRecord{ID: 5, Name: "dave5"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(5), value.ID)
}
