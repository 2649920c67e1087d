package depthcam

import (
	"sync"
	"time"
)

// intervalHistory is the number of recent frame intervals kept for the
// debug chart.
const intervalHistory = 300

// Stats summarizes the current run.
type Stats struct {
	Frames    uint64
	Skipped   uint64
	LastFrame time.Time
	// Intervals holds recent frame-to-frame intervals, oldest first.
	Intervals []time.Duration
}

// MeanFPS returns the frame rate implied by the recorded intervals.
func (s Stats) MeanFPS() float64 {
	var total time.Duration
	for _, d := range s.Intervals {
		total += d
	}
	if total <= 0 {
		return 0
	}
	return float64(len(s.Intervals)) / total.Seconds()
}

type stats struct {
	mu        sync.Mutex
	frames    uint64
	skipped   uint64
	last      time.Time
	intervals []time.Duration
}

func (s *stats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames, s.skipped = 0, 0
	s.last = time.Time{}
	s.intervals = s.intervals[:0]
}

func (s *stats) frame(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if !s.last.IsZero() {
		if len(s.intervals) == intervalHistory {
			copy(s.intervals, s.intervals[1:])
			s.intervals = s.intervals[:intervalHistory-1]
		}
		s.intervals = append(s.intervals, at.Sub(s.last))
	}
	s.last = at
}

func (s *stats) skip() {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Frames:    s.frames,
		Skipped:   s.skipped,
		LastFrame: s.last,
		Intervals: append([]time.Duration(nil), s.intervals...),
	}
}

// Stats returns counters for the current or most recent run.
func (c *Camera) Stats() Stats { return c.stats.snapshot() }
