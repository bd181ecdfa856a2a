package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production it uses JSON output for log aggregation, otherwise the
// human-readable text handler.
func Init(env string) *slog.Logger {
	logger := New(os.Stdout, env)
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler
	if strings.ToLower(env) == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// WithRequest returns a logger scoped to one inbound request.
func WithRequest(logger *slog.Logger, requestID, userID string) *slog.Logger {
	return logger.With(
		"request_id", requestID,
		"user_id", userID,
	)
}

type ctxKey struct{}

func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
