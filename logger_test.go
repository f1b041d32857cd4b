package weightpress

import (
	"context"
	"log/slog"
	"testing"
)

func TestNoopLoggerDiscards(t *testing.T) {
	l := NoopLogger()

	if l.Handler().Enabled(context.Background(), slog.LevelError) {
		t.Error("noop logger handler is enabled")
	}

	// Must not panic or write anywhere.
	l.LogStage(context.Background(), "train", 0, nil)
	l.WithRun(1).LogAccuracy(context.Background(), "baseline", 0.9, 10)
}
