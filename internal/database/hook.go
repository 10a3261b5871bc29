package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Hook logs executed queries and their duration through zap.
type Hook struct {
	logger *zap.Logger
}

// NewHook creates a new query hook instance.
func NewHook(logger *zap.Logger) *Hook {
	return &Hook{
		logger: logger.Named("db_query"),
	}
}

// BeforeQuery implements bun.QueryHook.
func (h *Hook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h *Hook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	if event.Err != nil {
		h.logger.Debug("Query failed",
			zap.String("query", event.Query),
			zap.Duration("duration", duration),
			zap.Error(event.Err))

		return
	}

	// Only surface unusually slow queries at debug level
	if duration > 500*time.Millisecond {
		h.logger.Debug("Slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", duration))
	}
}
