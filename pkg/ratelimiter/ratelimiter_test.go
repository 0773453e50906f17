package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/ratelimiter"
)

func newBucket(t *testing.T, cfg ratelimiter.Config) *ratelimiter.Bucket {
	t.Helper()
	store := ratelimiter.NewMemoryStore()
	t.Cleanup(store.Stop)
	bucket, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	return bucket
}

func TestBucketAllow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("allows up to capacity then denies", func(t *testing.T) {
		t.Parallel()
		bucket := newBucket(t, ratelimiter.Config{Capacity: 3, RefillRate: 3, RefillInterval: time.Hour})

		for i := range 3 {
			result, err := bucket.Allow(ctx, "key")
			require.NoError(t, err)
			assert.True(t, result.Allowed(), "request %d should pass", i)
			assert.Equal(t, 2-i, result.Remaining)
		}

		result, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		assert.False(t, result.Allowed())
		assert.Positive(t, result.RetryAfter())
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		bucket := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})

		result, err := bucket.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, result.Allowed())

		result, err = bucket.Allow(ctx, "a")
		require.NoError(t, err)
		assert.False(t, result.Allowed())

		result, err = bucket.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, result.Allowed())
	})

	t.Run("reset restores the bucket", func(t *testing.T) {
		t.Parallel()
		bucket := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})

		_, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		require.NoError(t, bucket.Reset(ctx, "key"))

		result, err := bucket.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, result.Allowed())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore()
		t.Cleanup(store.Stop)

		_, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Hour})
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})
}

func TestComposite(t *testing.T) {
	t.Parallel()

	byHeader := func(name string) ratelimiter.KeyFunc {
		return func(r *http.Request) string { return r.Header.Get(name) }
	}
	key := ratelimiter.Composite(byHeader("X-A"), byHeader("X-B"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-A", "left")
	r.Header.Set("X-B", "right")
	assert.Equal(t, "left:right", key(r))

	// Empty parts are dropped.
	r.Header.Del("X-B")
	assert.Equal(t, "left", key(r))

	// Oversized keys are hashed down to a bounded length.
	r.Header.Set("X-B", string(make([]byte, 100)))
	assert.LessOrEqual(t, len(key(r)), 64)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	bucket := newBucket(t, ratelimiter.Config{Capacity: 2, RefillRate: 2, RefillInterval: time.Hour})
	handler := ratelimiter.Middleware(bucket, func(r *http.Request) string {
		return r.Header.Get("X-Client")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(client string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	first := do("c1")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	do("c1")
	third := do("c1")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	// A different client still has budget.
	assert.Equal(t, http.StatusNoContent, do("c2").Code)
}
