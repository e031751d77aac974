package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"

	"salesync/internal/app/server/api/http/middleware/auth"
)

func TestSlidingWindow_Allow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Hour)
	defer sw.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, _ := sw.Allow(1)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, retryAfter := sw.Allow(1)
	assert.False(t, allowed)
	assert.Equal(t, time.Hour, retryAfter)
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	sw := NewSlidingWindow(2, time.Hour)
	defer sw.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return now }

	allowed, _ := sw.Allow(1)
	assert.True(t, allowed)

	now = now.Add(30 * time.Minute)
	allowed, _ = sw.Allow(1)
	assert.True(t, allowed)

	allowed, retryAfter := sw.Allow(1)
	assert.False(t, allowed)
	// The oldest hit is 30 minutes old, it leaves the window in 30 more.
	assert.Equal(t, 30*time.Minute, retryAfter)

	now = now.Add(31 * time.Minute)
	allowed, _ = sw.Allow(1)
	assert.True(t, allowed)
}

func TestSlidingWindow_PerOwner(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	defer sw.Stop()

	allowed, _ := sw.Allow(1)
	assert.True(t, allowed)

	allowed, _ = sw.Allow(1)
	assert.False(t, allowed)

	// A different owner has its own quota.
	allowed, _ = sw.Allow(2)
	assert.True(t, allowed)
}

func TestSlidingWindow_DropStale(t *testing.T) {
	sw := NewSlidingWindow(5, time.Hour)
	defer sw.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return now }

	sw.Allow(1)
	sw.Allow(2)

	now = now.Add(2 * time.Hour)
	sw.dropStale()

	sw.mu.Lock()
	defer sw.mu.Unlock()
	assert.Empty(t, sw.hits)
}

func TestGate_Middleware_Throttles(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	defer sw.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return now }

	gate := NewGate(sw, slog.Default())

	// Auth runs before the gate and stores the owner id in the request
	// context, the stand-in below does the same.
	injectOwner := func(ctx huma.Context, next func(huma.Context)) {
		next(huma.WithContext(ctx, auth.WithOwnerID(ctx.Context(), 1)))
	}

	_, api := humatest.New(t, huma.DefaultConfig("test", "1.0.0"))
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{injectOwner, gate.Middleware()},
	}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
		return &struct{}{}, nil
	})

	resp := api.Get("/ping")
	assert.Less(t, resp.Code, 300)

	resp = api.Get("/ping")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "3600", resp.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	body := resp.Body.String()
	assert.Contains(t, body, `"error":"sync quota exceeded"`)
	assert.Contains(t, body, `"quota":1`)
	assert.Contains(t, body, `"window_seconds":3600`)
	assert.Contains(t, body, `"retry_after_seconds":3600`)
}

func TestGate_Middleware_PassesWithoutOwner(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	defer sw.Stop()

	gate := NewGate(sw, slog.Default())

	_, api := humatest.New(t, huma.DefaultConfig("test", "1.0.0"))
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{gate.Middleware()},
	}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
		return &struct{}{}, nil
	})

	// Anonymous routes are not throttled, the quota is per owner.
	for range [3]struct{}{} {
		resp := api.Get("/ping")
		assert.Less(t, resp.Code, 300)
	}
}
