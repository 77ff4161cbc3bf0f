package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents one client operation (a fetch, a poll tick, a probe).
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	failed error
}

// StartSpan derives a child span from ctx, enriching the logger with trace and
// span identifiers. The returned context carries the enriched logger.
func StartSpan(ctx context.Context, name string, attrs ...any) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	ids := traceFromContext(ctx)
	if ids.trace == "" {
		ids.trace = uuid.NewString()
		logger = logger.With(slog.String("trace_id", ids.trace))
	}

	parent := ids.span
	ids.span = uuid.NewString()

	logger = logger.With(slog.String("span_id", ids.span), slog.String("span_name", name))
	if parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}

	ctx = withTrace(ctx, ids)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail records err so End reports the span as failed.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.failed = err
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.failed != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", s.failed.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
