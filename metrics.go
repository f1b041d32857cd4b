package weightpress

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting pipeline metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordStage is called after each pipeline stage.
	// duration is the total time taken, err is nil if successful.
	RecordStage(stage string, duration time.Duration, err error)

	// RecordArtifact is called for each produced artifact.
	RecordArtifact(kind string, rawSize, gzipSize int64)

	// RecordAccuracy is called for each measured model variant.
	RecordAccuracy(variant string, accuracy float64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordArtifact(string, int64, int64)      {}
func (NoopMetricsCollector) RecordAccuracy(string, float64)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging without external dependencies.
type BasicMetricsCollector struct {
	StageCount      atomic.Int64
	StageErrors     atomic.Int64
	StageTotalNanos atomic.Int64
	ArtifactCount   atomic.Int64
	ArtifactBytes   atomic.Int64
	GzipBytes       atomic.Int64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(stage string, duration time.Duration, err error) {
	b.StageCount.Add(1)
	b.StageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordArtifact implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArtifact(kind string, rawSize, gzipSize int64) {
	b.ArtifactCount.Add(1)
	b.ArtifactBytes.Add(rawSize)
	b.GzipBytes.Add(gzipSize)
}

// RecordAccuracy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAccuracy(string, float64) {}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StageCount:    b.StageCount.Load(),
		StageErrors:   b.StageErrors.Load(),
		StageAvgNanos: b.getAvgStageNanos(),
		ArtifactCount: b.ArtifactCount.Load(),
		ArtifactBytes: b.ArtifactBytes.Load(),
		GzipBytes:     b.GzipBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgStageNanos() int64 {
	count := b.StageCount.Load()
	if count == 0 {
		return 0
	}
	return b.StageTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StageCount    int64
	StageErrors   int64
	StageAvgNanos int64
	ArtifactCount int64
	ArtifactBytes int64
	GzipBytes     int64
}
