package engine

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"gioui.org/f32"

	"gestured/internal/arbiter"
	"gestured/internal/gesture"
	"gestured/internal/zone"
)

// =============================================================================
// Helper functions
// =============================================================================

func newTestEngine(t *testing.T, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ThrottleInterval = -1 // tests feed samples faster than real input
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// processSync feeds one sample straight through the state machine, bypassing
// the intake queue, so lifecycle tests stay deterministic.
func processSync(e *Engine, s gesture.Sample) {
	e.mu.Lock()
	e.process(s)
	e.mu.Unlock()
}

func sample(k gesture.Kind, p gesture.Phase, x, y float32) gesture.Sample {
	return gesture.Sample{Kind: k, Phase: p, Location: f32.Pt(x, y), Timestamp: time.Now()}
}

func testZone(id string, priority int, allowed ...gesture.Kind) zone.Zone {
	return zone.Zone{
		ID:          id,
		Name:        id,
		Bounds:      gesture.Rect{Min: f32.Pt(0, 0), Max: f32.Pt(100, 100)},
		Sensitivity: 1.0,
		Enabled:     true,
		Priority:    priority,
		Allowed:     allowed,
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStartStop(t *testing.T) {
	e := newTestEngine(t)

	if e.Running() {
		t.Fatal("engine should not be running before Start")
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !e.Running() {
		t.Fatal("engine should be running after Start")
	}
	if err := e.Start(); err == nil {
		t.Fatal("second Start should fail")
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.Running() {
		t.Fatal("engine should not be running after Stop")
	}
	if err := e.Stop(); err == nil {
		t.Fatal("second Stop should fail")
	}
}

func TestStartAfterClose(t *testing.T) {
	e := newTestEngine(t)
	e.Close()
	if err := e.Start(); err == nil {
		t.Fatal("Start after Close should fail")
	}
}

func TestNewRejectsInvalidGestureConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gestures.Enabled = []gesture.Kind{gesture.Kind(99)}
	if _, err := New(cfg); err == nil {
		t.Fatal("New should reject an unknown gesture kind")
	}
}

// =============================================================================
// Sample intake
// =============================================================================

func TestSubmitWhileStopped(t *testing.T) {
	e := newTestEngine(t)

	e.Submit(sample(gesture.Tap, gesture.Began, 10, 10))

	if got := e.met.SamplesSubmitted.Value(); got != 1 {
		t.Errorf("samples submitted = %d, want 1", got)
	}
	if got := e.met.DroppedNotRunning.Value(); got != 1 {
		t.Errorf("dropped not running = %d, want 1", got)
	}
	if e.ActiveCount() != 0 {
		t.Error("stopped engine should not admit gestures")
	}
}

func TestSubmitDisabledKind(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Gestures.Enabled = []gesture.Kind{gesture.Tap}
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.Submit(sample(gesture.Pan, gesture.Began, 10, 10))

	if got := e.met.DroppedKindDisabled.Value(); got != 1 {
		t.Errorf("dropped kind disabled = %d, want 1", got)
	}
	if got := e.met.SamplesAdmitted.Value(); got != 0 {
		t.Errorf("samples admitted = %d, want 0", got)
	}
}

func TestThrottleSpacing(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.ThrottleInterval = DefaultThrottleInterval
	})

	// Scripted clock: 0ms, +5ms, +20ms. The middle sample lands inside the
	// 16ms window and must be rejected without advancing the timestamp.
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(5 * time.Millisecond), base.Add(20 * time.Millisecond)}
	idx := 0
	e.now = func() time.Time {
		ts := times[idx]
		idx++
		return ts
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.Submit(sample(gesture.Tap, gesture.Began, 10, 10))
	e.Submit(sample(gesture.Pinch, gesture.Began, 20, 20))
	e.Submit(sample(gesture.Pan, gesture.Began, 30, 30))

	if got := e.met.SamplesAdmitted.Value(); got != 2 {
		t.Errorf("samples admitted = %d, want 2", got)
	}
	if got := e.met.DroppedThrottled.Value(); got != 1 {
		t.Errorf("dropped throttled = %d, want 1", got)
	}

	waitFor(t, time.Second, "two active gestures", func() bool {
		return e.ActiveCount() == 2
	})
	for _, a := range e.ActiveGestures() {
		if a.Kind == gesture.Pinch {
			t.Error("throttled pinch sample should not have been admitted")
		}
	}
}

func TestSubmitQueueFull(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.QueueSize = 1
	})

	// Flip the running flag without starting the worker so the queue
	// cannot drain underneath the test.
	e.running.Store(true)
	defer e.running.Store(false)

	e.Submit(sample(gesture.Tap, gesture.Began, 10, 10))
	e.Submit(sample(gesture.Pan, gesture.Began, 20, 20))

	if got := e.met.SamplesAdmitted.Value(); got != 1 {
		t.Errorf("samples admitted = %d, want 1", got)
	}
	if got := e.met.DroppedQueueFull.Value(); got != 1 {
		t.Errorf("dropped queue full = %d, want 1", got)
	}
}

func TestSubmitLifecycle(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.Submit(sample(gesture.Tap, gesture.Began, 10, 10))
	waitFor(t, time.Second, "one active gesture", func() bool {
		return e.ActiveCount() == 1
	})

	active := e.ActiveGestures()[0]
	if active.ID == "" {
		t.Error("active gesture should carry a generated id")
	}
	if active.Kind != gesture.Tap || active.Phase != gesture.Began {
		t.Errorf("active = %v/%v, want tap/began", active.Kind, active.Phase)
	}
	if active.ZoneID != "" || active.Sensitivity != 1.0 {
		t.Errorf("zoneless gesture should default sensitivity, got zone=%q sens=%v",
			active.ZoneID, active.Sensitivity)
	}

	e.Submit(sample(gesture.Tap, gesture.Ended, 15, 12))
	waitFor(t, time.Second, "completed history entry", func() bool {
		return len(e.History(0)) == 1
	})

	done := e.History(0)[0]
	if done.ID != active.ID {
		t.Errorf("completed id = %s, want %s", done.ID, active.ID)
	}
	if !done.Successful {
		t.Error("gesture ending in Ended should be successful")
	}
	if e.ActiveCount() != 0 {
		t.Error("completed gesture should leave the active table")
	}
}

// =============================================================================
// Processing and arbitration
// =============================================================================

func TestSameKindUpdatesInPlace(t *testing.T) {
	e := newTestEngine(t)

	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))
	id := e.ActiveGestures()[0].ID

	processSync(e, sample(gesture.Tap, gesture.Changed, 30, 40))

	actives := e.ActiveGestures()
	if len(actives) != 1 {
		t.Fatalf("active count = %d, want 1", len(actives))
	}
	a := actives[0]
	if a.ID != id {
		t.Errorf("id changed across update: %s -> %s", id, a.ID)
	}
	if a.Phase != gesture.Changed {
		t.Errorf("phase = %v, want changed", a.Phase)
	}
	if a.Location != f32.Pt(30, 40) {
		t.Errorf("location = %v, want (30,40)", a.Location)
	}
	if got := e.Statistics().TotalProcessed; got != 1 {
		t.Errorf("total processed = %d, want 1 (updates are not new gestures)", got)
	}
}

func TestTerminalFirstSampleCompletesImmediately(t *testing.T) {
	e := newTestEngine(t)

	processSync(e, sample(gesture.Tap, gesture.Ended, 10, 10))

	if e.ActiveCount() != 0 {
		t.Error("terminal-phase candidate should not stay active")
	}
	hist := e.History(0)
	if len(hist) != 1 {
		t.Fatalf("history len = %d, want 1", len(hist))
	}
	if !hist[0].Successful {
		t.Error("Ended candidate should complete successfully")
	}
	if got := e.Statistics().TotalProcessed; got != 1 {
		t.Errorf("total processed = %d, want 1", got)
	}
}

func TestExclusiveModeDisplacesActives(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Gestures.Simultaneous = false
	})

	processSync(e, sample(gesture.Pan, gesture.Began, 10, 10))
	processSync(e, sample(gesture.Tap, gesture.Began, 20, 20))

	actives := e.ActiveGestures()
	if len(actives) != 1 || actives[0].Kind != gesture.Tap {
		t.Fatalf("actives = %v, want only the newest tap", actives)
	}
	hist := e.History(0)
	if len(hist) != 1 || hist[0].Kind != gesture.Pan || hist[0].Successful {
		t.Fatalf("displaced pan should be in history as unsuccessful, got %+v", hist)
	}
}

func TestConflictMatrixCancelsOnlyConflicting(t *testing.T) {
	e := newTestEngine(t)

	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))
	processSync(e, sample(gesture.Rotate, gesture.Began, 20, 20))
	processSync(e, sample(gesture.DoubleTap, gesture.Began, 30, 30))

	kinds := map[gesture.Kind]bool{}
	for _, a := range e.ActiveGestures() {
		kinds[a.Kind] = true
	}
	if len(kinds) != 2 || !kinds[gesture.Rotate] || !kinds[gesture.DoubleTap] {
		t.Fatalf("actives = %v, want rotate and double_tap", kinds)
	}

	hist := e.History(0)
	if len(hist) != 1 || hist[0].Kind != gesture.Tap || hist[0].Successful {
		t.Fatalf("tap should be cancelled by double_tap, got %+v", hist)
	}
}

func TestDeferredDecisionIsRejected(t *testing.T) {
	e := newTestEngine(t)

	cand := gesture.Active{ID: "c1", Kind: gesture.Tap, Sensitivity: 1.0, StartedAt: time.Now()}
	e.mu.Lock()
	e.applyDecision(cand, arbiter.Defer{}, time.Now())
	e.mu.Unlock()

	if e.ActiveCount() != 0 {
		t.Error("deferred candidate should not be admitted")
	}
	if got := e.met.GesturesRejected.Value(); got != 1 {
		t.Errorf("gestures rejected = %d, want 1", got)
	}
}

// =============================================================================
// Zone operations
// =============================================================================

func TestZonePolicyBlocksDisallowedKind(t *testing.T) {
	e := newTestEngine(t)
	z := testZone("z1", 5, gesture.Tap)
	z.Sensitivity = 2.5
	if err := e.AddZone(z); err != nil {
		t.Fatalf("AddZone: %v", err)
	}

	// Disallowed inside the zone: dropped silently.
	processSync(e, sample(gesture.Pan, gesture.Began, 50, 50))
	if e.ActiveCount() != 0 {
		t.Error("pan inside a tap-only zone should be dropped")
	}
	if got := e.met.DroppedZonePolicy.Value(); got != 1 {
		t.Errorf("dropped zone policy = %d, want 1", got)
	}

	// The same kind outside any zone proceeds by default.
	processSync(e, sample(gesture.Pan, gesture.Began, 150, 150))
	if e.ActiveCount() != 1 {
		t.Error("pan outside all zones should be admitted")
	}

	// Whitelisted kind inside the zone inherits zone id and sensitivity.
	processSync(e, sample(gesture.Tap, gesture.Began, 50, 50))
	var tap gesture.Active
	for _, a := range e.ActiveGestures() {
		if a.Kind == gesture.Tap {
			tap = a
		}
	}
	if tap.ZoneID != "z1" || tap.Sensitivity != 2.5 {
		t.Errorf("tap in zone = zone %q sens %v, want z1/2.5", tap.ZoneID, tap.Sensitivity)
	}
}

func TestAddZoneDuplicate(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("z1", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	if err := e.AddZone(testZone("z1", 3, gesture.Pan)); err == nil {
		t.Fatal("duplicate zone id should be rejected")
	}
}

func TestRemoveZoneCancelsItsGestures(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("z1", 0, gesture.Tap, gesture.Pan)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}

	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))
	processSync(e, sample(gesture.Pan, gesture.Began, 20, 20))
	if e.ActiveCount() != 2 {
		t.Fatalf("active count = %d, want 2", e.ActiveCount())
	}

	if err := e.RemoveZone("z1"); err != nil {
		t.Fatalf("RemoveZone: %v", err)
	}
	if e.ActiveCount() != 0 {
		t.Error("removing a zone should cancel its active gestures")
	}
	for _, c := range e.History(0) {
		if c.Successful {
			t.Error("force-cancelled gestures must record as unsuccessful")
		}
		if c.ZoneID != "z1" {
			t.Errorf("history zone = %q, want z1", c.ZoneID)
		}
	}
	if len(e.Zones()) != 0 {
		t.Error("zone should be gone after removal")
	}

	if err := e.RemoveZone("nope"); err == nil {
		t.Error("removing an unknown zone should fail")
	}
}

func TestDisableZoneCancelsButKeeps(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("z1", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}

	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))
	if err := e.DisableZone("z1"); err != nil {
		t.Fatalf("DisableZone: %v", err)
	}

	if e.ActiveCount() != 0 {
		t.Error("disabling a zone should cancel its active gestures")
	}
	z, ok := e.Zone("z1")
	if !ok || z.Enabled {
		t.Fatalf("zone should remain, disabled; got ok=%v enabled=%v", ok, z.Enabled)
	}
	if _, ok := e.FindZone(f32.Pt(10, 10)); ok {
		t.Error("disabled zone should be invisible to point queries")
	}

	if err := e.EnableZone("z1"); err != nil {
		t.Fatalf("EnableZone: %v", err)
	}
	if _, ok := e.FindZone(f32.Pt(10, 10)); !ok {
		t.Error("re-enabled zone should answer point queries again")
	}
}

func TestUpdateZoneToDisabledCleansUp(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("z1", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))

	z := testZone("z1", 9, gesture.Tap)
	z.Enabled = false
	if err := e.UpdateZone(z); err != nil {
		t.Fatalf("UpdateZone: %v", err)
	}

	if e.ActiveCount() != 0 {
		t.Error("update that disables a zone should cancel its gestures")
	}
	got, _ := e.Zone("z1")
	if got.Priority != 9 || got.Enabled {
		t.Errorf("zone after update = priority %d enabled %v, want 9/false", got.Priority, got.Enabled)
	}
}

func TestReplaceZones(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("a", 1, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))

	if err := e.ReplaceZones([]zone.Zone{testZone("c", 2, gesture.Pan)}); err != nil {
		t.Fatalf("ReplaceZones: %v", err)
	}
	if e.ActiveCount() != 0 {
		t.Error("replacing zones should cancel zone-bound gestures")
	}
	zones := e.Zones()
	if len(zones) != 1 || zones[0].ID != "c" {
		t.Fatalf("zones = %v, want only c", zones)
	}

	dup := []zone.Zone{testZone("x", 0), testZone("x", 1)}
	if err := e.ReplaceZones(dup); err == nil {
		t.Error("duplicate ids in replacement set should be rejected")
	}
}

func TestGestureAllowedQuery(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddZone(testZone("z1", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}

	if !e.GestureAllowed(gesture.Tap, f32.Pt(50, 50)) {
		t.Error("whitelisted kind should be allowed inside the zone")
	}
	if e.GestureAllowed(gesture.Pan, f32.Pt(50, 50)) {
		t.Error("non-whitelisted kind should be blocked inside the zone")
	}
	if !e.GestureAllowed(gesture.Pan, f32.Pt(500, 500)) {
		t.Error("any kind should be allowed outside all zones")
	}
}

// =============================================================================
// Configuration
// =============================================================================

func TestUpdateConfigurationDisablesKind(t *testing.T) {
	e := newTestEngine(t)
	processSync(e, sample(gesture.Pan, gesture.Began, 10, 10))

	cfg := e.Configuration()
	cfg.Enabled = []gesture.Kind{gesture.Tap}
	if err := e.UpdateConfiguration(cfg); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}

	if e.ActiveCount() != 0 {
		t.Error("disabling a kind should cancel its active gestures")
	}
	hist := e.History(0)
	if len(hist) != 1 || hist[0].Successful {
		t.Fatalf("cancelled pan should record as unsuccessful, got %+v", hist)
	}
	if e.Configuration().KindEnabled(gesture.Pan) {
		t.Error("pan should be disabled after the update")
	}
}

func TestUpdateConfigurationRejectsInvalid(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Configuration()
	cfg.MinTouches = 0
	if err := e.UpdateConfiguration(cfg); err == nil {
		t.Fatal("invalid configuration should be rejected")
	}
}

func TestCancelAll(t *testing.T) {
	e := newTestEngine(t)
	processSync(e, sample(gesture.Tap, gesture.Began, 10, 10))
	processSync(e, sample(gesture.Pan, gesture.Began, 20, 20))
	processSync(e, sample(gesture.Rotate, gesture.Began, 30, 30))

	if n := e.CancelAll(); n != 3 {
		t.Fatalf("CancelAll = %d, want 3", n)
	}
	if e.ActiveCount() != 0 {
		t.Error("no gestures should remain active")
	}
	for _, c := range e.History(0) {
		if c.Successful {
			t.Error("cancelled gestures must record as unsuccessful")
		}
	}
	if n := e.CancelAll(); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
}

// =============================================================================
// Statistics and history
// =============================================================================

func TestStatisticsAggregates(t *testing.T) {
	e := newTestEngine(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// Ten completed gestures: seven taps ending successfully, three pans
	// cancelled, durations 10ms..100ms.
	for i := 0; i < 10; i++ {
		kind := gesture.Tap
		terminal := gesture.Ended
		if i >= 7 {
			kind = gesture.Pan
			terminal = gesture.Cancelled
		}
		start := base.Add(time.Duration(i) * time.Second)
		dur := time.Duration(i+1) * 10 * time.Millisecond

		began := sample(kind, gesture.Began, 10, 10)
		began.Timestamp = start
		processSync(e, began)

		end := sample(kind, terminal, 10, 10)
		end.Timestamp = start.Add(dur)
		processSync(e, end)
	}

	processSync(e, sample(gesture.Rotate, gesture.Began, 10, 10))

	s := e.Statistics()
	if s.TotalProcessed != 11 {
		t.Errorf("total processed = %d, want 11", s.TotalProcessed)
	}
	if s.ActiveCount != 1 {
		t.Errorf("active count = %d, want 1", s.ActiveCount)
	}
	if s.WindowSize != 10 {
		t.Errorf("window size = %d, want 10", s.WindowSize)
	}
	if s.SuccessRate != 0.7 {
		t.Errorf("success rate = %v, want 0.7", s.SuccessRate)
	}
	if s.AverageDuration != 55*time.Millisecond {
		t.Errorf("average duration = %v, want 55ms", s.AverageDuration)
	}
	if s.MostUsed != gesture.Tap || s.MostUsedCount != 7 {
		t.Errorf("most used = %v x%d, want tap x7", s.MostUsed, s.MostUsedCount)
	}
}

func TestHistoryWindow(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		processSync(e, sample(gesture.Tap, gesture.Ended, float32(i), 0))
	}

	all := e.History(0)
	if len(all) != 5 {
		t.Fatalf("history len = %d, want 5", len(all))
	}
	last := e.History(2)
	if len(last) != 2 {
		t.Fatalf("window len = %d, want 2", len(last))
	}
	if last[0].ID != all[3].ID || last[1].ID != all[4].ID {
		t.Error("History(n) should return the most recent n, oldest first")
	}
}

// =============================================================================
// Notifications
// =============================================================================

func TestObserverNotifications(t *testing.T) {
	e := newTestEngine(t)

	got := make(chan string, 32)
	h := e.Subscribe(Observer{
		DetectionStarted: func() { got <- "started" },
		DetectionStopped: func() { got <- "stopped" },
		ZoneAdded:        func(z zone.Zone) { got <- "zone_added:" + z.ID },
		GestureProcessed: func(a gesture.Active) { got <- "processed:" + a.Kind.String() },
		GestureUpdated:   func(a gesture.Active) { got <- "updated:" + a.Kind.String() },
		GestureCompleted: func(c gesture.Completed) {
			got <- fmt.Sprintf("completed:%s:%v", c.Kind, c.Successful)
		},
	})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.AddZone(testZone("z1", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	e.Submit(sample(gesture.Tap, gesture.Began, 10, 10))
	e.Submit(sample(gesture.Tap, gesture.Ended, 12, 12))
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{
		"started",
		"zone_added:z1",
		"processed:tap",
		"updated:tap",
		"completed:tap:true",
		"stopped",
	}
	for _, w := range want {
		select {
		case ev := <-got:
			if ev != w {
				t.Fatalf("notification = %q, want %q", ev, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	// After removal no further notifications arrive.
	h.Remove()
	if err := e.AddZone(testZone("z2", 0, gesture.Tap)); err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	select {
	case ev := <-got:
		t.Fatalf("unexpected notification after removal: %q", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestObserverRejectionReason(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Gestures.Simultaneous = false
	})

	reasons := make(chan string, 4)
	e.Subscribe(Observer{
		GestureRejected: func(k gesture.Kind, reason string) {
			reasons <- reason
		},
	})

	cand := gesture.Active{ID: "c1", Kind: gesture.Tap, Sensitivity: 1.0, StartedAt: time.Now()}
	e.mu.Lock()
	e.applyDecision(cand, arbiter.Reject{Reason: "gesture type conflict"}, time.Now())
	e.mu.Unlock()

	select {
	case r := <-reasons:
		if r != "gesture type conflict" {
			t.Fatalf("reason = %q, want %q", r, "gesture type conflict")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejection notification")
	}
}
