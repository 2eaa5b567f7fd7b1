package extract

import (
	"slices"
	"sync"
	"time"
)

type call struct {
	at         time.Time
	latencyMs  int64
	candidates int
	failed     bool
}

// GenerationSnapshot aggregates the generator calls inside the window.
type GenerationSnapshot struct {
	Calls      int     `json:"calls"`
	Failures   int     `json:"failures"`
	Candidates int     `json:"candidates"`
	MinMs      int64   `json:"min_ms"`
	MaxMs      int64   `json:"max_ms"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
}

// GenerationStats keeps a rolling window of generator calls.
type GenerationStats struct {
	mu     sync.Mutex
	calls  []call
	window time.Duration
	now    func() time.Time
}

func NewGenerationStats(window time.Duration) *GenerationStats {
	if window <= 0 {
		window = time.Hour
	}
	return &GenerationStats{window: window, now: time.Now}
}

// Record adds one call. A nil stats value ignores the call.
func (s *GenerationStats) Record(latencyMs int64, candidates int, err error) {
	if s == nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropBefore(now.Add(-s.window))
	s.calls = append(s.calls, call{
		at:         now,
		latencyMs:  max(latencyMs, 0),
		candidates: candidates,
		failed:     err != nil,
	})
}

func (s *GenerationStats) Snapshot() GenerationSnapshot {
	if s == nil {
		return GenerationSnapshot{}
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropBefore(now.Add(-s.window))

	var snap GenerationSnapshot
	if len(s.calls) == 0 {
		return snap
	}
	latencies := make([]int64, len(s.calls))
	var total int64
	for i, c := range s.calls {
		latencies[i] = c.latencyMs
		total += c.latencyMs
		snap.Candidates += c.candidates
		if c.failed {
			snap.Failures++
		}
	}
	slices.Sort(latencies)

	snap.Calls = len(latencies)
	snap.MinMs = latencies[0]
	snap.MaxMs = latencies[len(latencies)-1]
	snap.AvgMs = float64(total) / float64(len(latencies))
	snap.P50Ms = interpolate(latencies, 0.50)
	snap.P95Ms = interpolate(latencies, 0.95)
	return snap
}

// dropBefore discards calls older than cutoff. Calls are appended in time
// order, so the expired ones form a prefix.
func (s *GenerationStats) dropBefore(cutoff time.Time) {
	i := 0
	for i < len(s.calls) && s.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.calls = append(s.calls[:0], s.calls[i:]...)
	}
}

// interpolate returns the q-quantile (0..1) of sorted values with linear
// interpolation between neighbours.
func interpolate(sorted []int64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return float64(sorted[0])
	case q >= 1:
		return float64(sorted[len(sorted)-1])
	}
	pos := float64(len(sorted)-1) * q
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*frac
}
