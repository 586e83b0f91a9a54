package logs

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// Package-level structured logger shared by the internal packages. Callers
// that embed the engine can swap it out once at startup with SetLogger.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
}

func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

func Debug(ctx context.Context, msg string, keysAndValues ...interface{}) {
	logger.Load().DebugContext(ctx, msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...interface{}) {
	logger.Load().InfoContext(ctx, msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	logger.Load().WarnContext(ctx, msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...interface{}) {
	logger.Load().ErrorContext(ctx, msg, keysAndValues...)
}
