package logger

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"salesync/internal/app/server/api/http/middleware/auth"
)

// Logger middleware records every handled HTTP request. When it runs
// after auth the owner id is attached to the log line, which is how
// sync traffic gets correlated per point of sale.
type Logger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
	}
}

func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		method := ctx.Method()
		path := ctx.URL().Path
		remoteAddr := ctx.RemoteAddr()

		next(ctx)

		attrs := []any{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", ctx.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", remoteAddr),
		}
		if ownerID, ok := auth.GetOwnerID(ctx.Context()); ok {
			attrs = append(attrs, slog.Int("owner_id", ownerID))
		}

		l.log.Info("HTTP request", attrs...)
	}
}
