package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"salesync/internal/app/server/api/http/middleware/auth"
)

// SlidingWindow counts requests per owner over a rolling window. A
// request is allowed while fewer than limit requests landed inside the
// last window.
type SlidingWindow struct {
	hits     map[int][]time.Time
	now      func() time.Time
	cleanupC chan struct{}
	limit    int
	window   time.Duration
	mu       sync.Mutex
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	sw := &SlidingWindow{
		hits:     make(map[int][]time.Time),
		now:      time.Now,
		cleanupC: make(chan struct{}),
		limit:    limit,
		window:   window,
	}

	go sw.cleanup()

	return sw
}

// Allow records a hit for ownerID when under quota. When the quota is
// exhausted it reports how long until the oldest hit leaves the window.
func (sw *SlidingWindow) Allow(ownerID int) (bool, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.window)

	recent := sw.hits[ownerID][:0]
	for _, hit := range sw.hits[ownerID] {
		if hit.After(cutoff) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= sw.limit {
		sw.hits[ownerID] = recent
		return false, recent[0].Sub(cutoff)
	}

	sw.hits[ownerID] = append(recent, now)

	return true, 0
}

// cleanup drops owners with no hits inside the window so the map does
// not grow with every owner ever seen.
func (sw *SlidingWindow) cleanup() {
	ticker := time.NewTicker(sw.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.dropStale()
		case <-sw.cleanupC:
			return
		}
	}
}

func (sw *SlidingWindow) dropStale() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.now().Add(-sw.window)
	for ownerID, hits := range sw.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(sw.hits, ownerID)
		}
	}
}

// Stop terminates the cleanup goroutine.
func (sw *SlidingWindow) Stop() {
	close(sw.cleanupC)
}

// Gate is the ingress middleware. It must run after auth so the owner
// id is already in the request context.
type Gate struct {
	limiter *SlidingWindow
	log     *slog.Logger
}

func NewGate(limiter *SlidingWindow, log *slog.Logger) *Gate {
	return &Gate{
		limiter: limiter,
		log:     log.With(slog.String("component", "ratelimit_middleware")),
	}
}

func (g *Gate) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ownerID, ok := auth.GetOwnerID(ctx.Context())
		if !ok {
			next(ctx)
			return
		}

		allowed, retryAfter := g.limiter.Allow(ownerID)
		if allowed {
			next(ctx)
			return
		}

		g.log.Warn("request throttled",
			slog.Int("owner_id", ownerID),
			slog.Duration("retry_after", retryAfter),
		)

		seconds := int(retryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}

		ctx.SetHeader("Retry-After", fmt.Sprintf("%d", seconds))
		ctx.SetStatus(http.StatusTooManyRequests)
		ctx.SetHeader("Content-Type", "application/json")

		body := map[string]any{
			"error":               "sync quota exceeded",
			"quota":               g.limiter.limit,
			"window_seconds":      int(g.limiter.window.Seconds()),
			"retry_after_seconds": seconds,
		}
		if err := json.NewEncoder(ctx.BodyWriter()).Encode(body); err != nil {
			g.log.Error("failed to write throttle response", "error", err)
		}
	}
}
