package metrics

import (
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Tests for instruments
// =============================================================================

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.RegisterCounter("ops_total", "")

	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("value = %d, want 5", c.Value())
	}
}

func TestRegisterReturnsExisting(t *testing.T) {
	r := NewRegistry()
	a := r.RegisterCounter("ops_total", "")
	b := r.RegisterCounter("ops_total", "")
	if a != b {
		t.Error("re-registering a name should return the same counter")
	}

	a.Inc()
	if b.Value() != 1 {
		t.Error("both handles should read the same value")
	}
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.RegisterGauge("in_flight", "")

	g.Set(3)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 2 {
		t.Errorf("value = %d, want 2", g.Value())
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	r := NewRegistry()
	h := r.RegisterHistogram("latency_ms", "", []float64{10, 50, 100})

	h.Observe(5)
	h.Observe(10) // on the bound: counted as le=10
	h.Observe(75)
	h.Observe(500) // beyond every bound: +Inf only

	snap := r.Snapshot().Histograms["latency_ms"]
	if snap.Count != 4 {
		t.Fatalf("count = %d, want 4", snap.Count)
	}

	want := []uint64{2, 2, 3} // le=10, le=50, le=100
	for i, b := range snap.Buckets {
		if b.Count != want[i] {
			t.Errorf("bucket le=%v count = %d, want %d", b.UpperBound, b.Count, want[i])
		}
	}
}

func TestHistogramMean(t *testing.T) {
	r := NewRegistry()
	h := r.RegisterHistogram("latency_ms", "", nil)

	if h.Mean() != 0 {
		t.Error("mean of no observations should be 0")
	}
	h.Observe(10)
	h.Observe(30)
	if h.Mean() != 20 {
		t.Errorf("mean = %v, want 20", h.Mean())
	}
}

func TestObserveDuration(t *testing.T) {
	r := NewRegistry()
	h := r.RegisterHistogram("latency_ms", "", nil)

	h.ObserveDuration(250 * time.Millisecond)
	if h.Count() != 1 {
		t.Fatalf("count = %d, want 1", h.Count())
	}
	if h.Mean() != 250 {
		t.Errorf("mean = %v ms, want 250", h.Mean())
	}
}

// =============================================================================
// Tests for snapshots
// =============================================================================

func TestSnapshotCarriesEveryKind(t *testing.T) {
	r := NewRegistry()
	r.RegisterCounter("ops_total", "").Add(7)
	r.RegisterGauge("in_flight", "").Set(2)
	r.RegisterHistogram("latency_ms", "", nil).Observe(12)

	s := r.Snapshot()
	if s.Counters["ops_total"] != 7 {
		t.Errorf("counter = %d, want 7", s.Counters["ops_total"])
	}
	if s.Gauges["in_flight"] != 2 {
		t.Errorf("gauge = %d, want 2", s.Gauges["in_flight"])
	}
	if s.Histograms["latency_ms"].Count != 1 {
		t.Errorf("histogram count = %d, want 1", s.Histograms["latency_ms"].Count)
	}
}

func TestGesturedMetricsRegistered(t *testing.T) {
	m := NewGesturedMetrics(nil)

	m.SamplesSubmitted.Inc()
	m.ActiveGestures.Set(1)
	m.RequestDuration.ObserveDuration(3 * time.Millisecond)

	s := m.Snapshot()
	if s.Counters["samples_submitted_total"] != 1 {
		t.Error("samples_submitted_total should be 1")
	}
	if s.Gauges["active_gestures"] != 1 {
		t.Error("active_gestures should be 1")
	}
	if s.Histograms["ipc_request_duration_ms"].Count != 1 {
		t.Error("ipc_request_duration_ms should carry one observation")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	c := r.RegisterCounter("ops_total", "")
	h := r.RegisterHistogram("latency_ms", "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
				h.Observe(float64(j))
			}
		}()
	}
	wg.Wait()

	if c.Value() != 800 {
		t.Errorf("counter = %d, want 800", c.Value())
	}
	if h.Count() != 800 {
		t.Errorf("histogram count = %d, want 800", h.Count())
	}
}
