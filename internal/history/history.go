// Package history keeps the bounded record of completed gestures and derives
// aggregate metrics over a rolling window of the most recent entries.
package history

import (
	"time"

	"gestured/internal/gesture"
)

// DefaultCap is the default maximum number of retained completions.
const DefaultCap = 500

// DefaultWindow is the default rolling-window size for aggregation.
const DefaultWindow = 100

// Ring is a keep-last-N buffer of completed gestures. Appends beyond the cap
// evict the oldest entries. Like the zone registry it is single-owner: the
// engine serializes all access.
type Ring struct {
	cap     int
	entries []gesture.Completed
}

// NewRing returns a ring retaining at most capacity entries. A
// non-positive capacity falls back to DefaultCap.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Ring{cap: capacity}
}

// Record appends c, evicting oldest entries while over capacity.
func (r *Ring) Record(c gesture.Completed) {
	r.entries = append(r.entries, c)
	if excess := len(r.entries) - r.cap; excess > 0 {
		r.entries = append(r.entries[:0:0], r.entries[excess:]...)
	}
}

// Len returns the number of retained completions.
func (r *Ring) Len() int {
	return len(r.entries)
}

// Cap returns the retention limit.
func (r *Ring) Cap() int {
	return r.cap
}

// Entries returns a copy of all retained completions, oldest first.
func (r *Ring) Entries() []gesture.Completed {
	out := make([]gesture.Completed, len(r.entries))
	copy(out, r.entries)
	return out
}

// Window returns a copy of the most recent n completions, oldest first
// within the window. n larger than the retained count returns everything.
func (r *Ring) Window(n int) []gesture.Completed {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]gesture.Completed, n)
	copy(out, r.entries[len(r.entries)-n:])
	return out
}

// Clear drops all retained completions.
func (r *Ring) Clear() {
	r.entries = nil
}

// Summary aggregates a window of completions.
type Summary struct {
	WindowSize      int           `json:"window_size"`
	AverageDuration time.Duration `json:"average_duration_ns"`
	SuccessRate     float64       `json:"success_rate"`
	MostUsed        gesture.Kind  `json:"most_used"`
	MostUsedCount   int           `json:"most_used_count"`
}

// Summarize computes the aggregate metrics for one window. An empty window
// yields zero values throughout. The most-used kind is the mode over the
// window; on ties the kind that reaches the maximal count first during the
// in-order scan wins.
func Summarize(window []gesture.Completed) Summary {
	s := Summary{WindowSize: len(window)}
	if len(window) == 0 {
		return s
	}

	var total time.Duration
	successes := 0
	counts := make(map[gesture.Kind]int)
	for _, c := range window {
		total += c.Duration
		if c.Successful {
			successes++
		}
		counts[c.Kind]++
		if counts[c.Kind] > s.MostUsedCount {
			s.MostUsed = c.Kind
			s.MostUsedCount = counts[c.Kind]
		}
	}

	s.AverageDuration = total / time.Duration(len(window))
	s.SuccessRate = float64(successes) / float64(len(window))
	return s
}
