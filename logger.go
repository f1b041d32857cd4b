package weightpress

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with weightpress-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRun adds a run ID field to the logger.
func (l *Logger) WithRun(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// LogStage logs the completion of a pipeline stage.
func (l *Logger) LogStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			"stage", stage,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "stage completed",
			"stage", stage,
			"duration", duration,
		)
	}
}

// LogAccuracy logs an accuracy measurement for one model variant.
func (l *Logger) LogAccuracy(ctx context.Context, variant string, accuracy float64, total int) {
	l.InfoContext(ctx, "accuracy measured",
		"variant", variant,
		"accuracy", accuracy,
		"samples", total,
	)
}

// LogArtifact logs a produced artifact with its raw and gzip sizes.
func (l *Logger) LogArtifact(ctx context.Context, name string, rawSize, gzipSize int64) {
	l.InfoContext(ctx, "artifact written",
		"name", name,
		"size", rawSize,
		"gzip_size", gzipSize,
	)
}
