package ratelimit

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"propsync/models"
)

// WindowStore persists fixed counting windows keyed by an opaque string.
// Implemented by storage.PostgresStore.
type WindowStore interface {
	// ActiveWindow returns the most recent window for key whose start is at
	// or after since, or nil when none exists.
	ActiveWindow(ctx context.Context, key string, since time.Time) (*models.RateLimitWindow, error)
	CreateWindow(ctx context.Context, w *models.RateLimitWindow) error
	// SetWindowCount writes back an incremented count (read-then-write,
	// not atomic).
	SetWindowCount(ctx context.Context, id int64, count int) error
}

// Result answers whether a key is allowed one more unit of work in its
// current window.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window rate limiter over a persistent keyed store.
// Storage failures fail open: availability over strict quota enforcement.
type Limiter struct {
	store WindowStore
	now   func() time.Time
}

func New(store WindowStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check consumes one unit of work for key if the window allows it.
func (l *Limiter) Check(ctx context.Context, key string, maxRequests int, window time.Duration) Result {
	now := l.now()

	w, err := l.store.ActiveWindow(ctx, key, now.Add(-window))
	if err != nil {
		log.Printf("Warning: rate limit lookup for %s failed, allowing: %v", key, err)
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetAt: now.Add(window)}
	}

	if w == nil {
		w = &models.RateLimitWindow{
			Key:         key,
			Count:       1,
			WindowStart: now,
			ExpiresAt:   now.Add(window),
		}
		if err := l.store.CreateWindow(ctx, w); err != nil {
			log.Printf("Warning: rate limit window create for %s failed, allowing: %v", key, err)
		}
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetAt: now.Add(window)}
	}

	resetAt := w.WindowStart.Add(window)
	if w.Count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	if err := l.store.SetWindowCount(ctx, w.ID, w.Count+1); err != nil {
		log.Printf("Warning: rate limit increment for %s failed, allowing: %v", key, err)
	}
	return Result{Allowed: true, Remaining: maxRequests - w.Count - 1, ResetAt: resetAt}
}

// UserKey derives a per-user limit key for a named function.
func UserKey(fn, userID string) string {
	return fn + ":user:" + userID
}

// IPKey derives a per-IP limit key for a named function.
func IPKey(fn, ip string) string {
	return fn + ":ip:" + ip
}

// ClientIP extracts the caller IP from forwarded headers, falling back to
// the connection's remote address and finally "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx >= 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
