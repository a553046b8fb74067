// Package ratelimit implements fixed-window request counting per client key.
//
// A window opens on a key's first request. Up to Max requests are admitted
// until more than Window has elapsed since the window opened; the next
// request after that opens a fresh window. Denied requests do not extend or
// count against the window.
//
// Counters live in a Store: MemoryStore for a single instance, PostgresStore
// when several instances must share one budget.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheettools/internal/logging"
)

// Policy is the fixed-window budget applied to every key.
type Policy struct {
	Window time.Duration
	Max    int
}

// DefaultPolicy admits 30 requests per minute.
var DefaultPolicy = Policy{Window: time.Minute, Max: 30}

// expired reports whether a window opened at start has ended at now.
func (p Policy) expired(start, now time.Time) bool {
	return now.Sub(start) > p.Window
}

// Store records hits per key.
type Store interface {
	// Allow counts one request for key at now and reports whether it fits
	// in the key's current window.
	Allow(ctx context.Context, key string, now time.Time) (bool, error)

	// Prune drops entries whose window has ended and returns how many were
	// removed.
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// Limiter applies a Store to incoming requests.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter wraps store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Allow reports whether a request from key may proceed. Store failures are
// logged and the request is admitted.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	ok, err := l.store.Allow(ctx, key, l.now())
	if err != nil {
		logging.FromContext(ctx).Warn("rate limit store failed, admitting request",
			"key", key,
			"error", err,
		)
		return true
	}
	return ok
}

// RunPruner removes expired entries every interval until ctx is cancelled.
func (l *Limiter) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("rate limit pruner started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit pruner stopped")
			return
		case <-ticker.C:
			l.prune(ctx)
		}
	}
}

func (l *Limiter) prune(ctx context.Context) {
	start := time.Now()
	n, err := l.store.Prune(ctx, l.now())
	if err != nil {
		slog.Error("rate limit prune failed", "error", err)
		return
	}
	slog.Debug("rate limit entries pruned",
		"entries_pruned", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
