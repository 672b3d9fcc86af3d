package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter implements sliding window rate limiting
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
	mu       sync.Mutex
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	// Drop requests that fell out of the window
	valid := w.requests[:0]
	for _, t := range w.requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	w.requests = valid

	if len(w.requests) >= l.limit {
		return false, nil
	}

	w.requests = append(w.requests, now)
	return true, nil
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// ViewerRateLimiter limits requests per organisation member
type ViewerRateLimiter struct {
	limiter RateLimiter
	limit   int
}

// NewViewerRateLimiter creates a per-viewer limiter. A limit of zero or
// less allows everything.
func NewViewerRateLimiter(requestsPerMinute int) *ViewerRateLimiter {
	if requestsPerMinute <= 0 {
		return &ViewerRateLimiter{}
	}
	return &ViewerRateLimiter{
		limit:   requestsPerMinute,
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks if a request from person in org is allowed
func (l *ViewerRateLimiter) Allow(ctx context.Context, org, person string) (bool, error) {
	if l == nil || l.limiter == nil {
		return true, nil
	}
	return l.limiter.Allow(ctx, fmt.Sprintf("viewer:%s:%s", org, person))
}

// Limit returns the requests allowed per minute; zero means unlimited
func (l *ViewerRateLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}
