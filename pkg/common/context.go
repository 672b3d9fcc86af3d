package common

import (
	"context"
	"time"

	"bfdb/domain/core/valueobjects"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyViewer    ContextKey = "viewer"
	ContextKeyStartTime ContextKey = "start_time"
)

// WithViewer adds the authenticated viewer to context
func WithViewer(ctx context.Context, viewer valueobjects.CurrentViewer) context.Context {
	return context.WithValue(ctx, ContextKeyViewer, viewer)
}

// GetViewer extracts the viewer from context
func GetViewer(ctx context.Context) (valueobjects.CurrentViewer, bool) {
	viewer, ok := ctx.Value(ContextKeyViewer).(valueobjects.CurrentViewer)
	return viewer, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time); ok {
		return time.Since(startTime)
	}
	return 0
}
