package extract

import (
	"errors"
	"testing"
	"time"
)

func TestGenerationStatsSnapshot(t *testing.T) {
	stats := NewGenerationStats(time.Hour)
	stats.Record(100, 3, nil)
	stats.Record(200, 0, errors.New("boom"))
	stats.Record(300, 5, nil)
	stats.Record(400, 1, nil)
	stats.Record(500, 0, nil)

	snap := stats.Snapshot()
	if snap.Calls != 5 || snap.Failures != 1 || snap.Candidates != 9 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("unexpected min/max: %+v", snap)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
}

func TestGenerationStatsWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := NewGenerationStats(time.Minute)
	stats.now = func() time.Time { return now }

	stats.Record(100, 1, nil)
	now = now.Add(2 * time.Minute)
	if snap := stats.Snapshot(); snap.Calls != 0 {
		t.Fatalf("expected expired call to be dropped, got %+v", snap)
	}

	stats.Record(200, 2, nil)
	snap := stats.Snapshot()
	if snap.Calls != 1 || snap.MinMs != 200 || snap.Candidates != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestGenerationStatsClampsNegativeLatency(t *testing.T) {
	stats := NewGenerationStats(time.Hour)
	stats.Record(-5, 0, nil)
	if snap := stats.Snapshot(); snap.MinMs != 0 {
		t.Fatalf("expected clamped latency, got %d", snap.MinMs)
	}
}

func TestGenerationStatsNil(t *testing.T) {
	var stats *GenerationStats
	stats.Record(10, 1, nil)
	if snap := stats.Snapshot(); snap.Calls != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}
