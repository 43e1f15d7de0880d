package gesture

import (
	"encoding/json"
	"testing"
	"time"

	"gioui.org/f32"
)

// =============================================================================
// Tests for Kind
// =============================================================================

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		s := k.String()
		if s == "unknown" {
			t.Fatalf("kind %d has no name", int(k))
		}
		parsed, err := ParseKind(s)
		if err != nil {
			t.Fatalf("ParseKind(%q) failed: %v", s, err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", s, parsed, k)
		}
	}
}

func TestParseKindUnknown(t *testing.T) {
	if _, err := ParseKind("wiggle"); err == nil {
		t.Error("expected error for unknown kind name")
	}
}

func TestKindValid(t *testing.T) {
	if !Tap.Valid() {
		t.Error("Tap should be valid")
	}
	if !Rotate.Valid() {
		t.Error("Rotate should be valid")
	}
	if Kind(-1).Valid() {
		t.Error("negative kind should be invalid")
	}
	if Kind(numKinds).Valid() {
		t.Error("out-of-range kind should be invalid")
	}
}

func TestKindIsSwipe(t *testing.T) {
	swipes := []Kind{SwipeLeft, SwipeRight, SwipeUp, SwipeDown}
	for _, k := range swipes {
		if !k.IsSwipe() {
			t.Errorf("%v should be a swipe", k)
		}
	}
	for _, k := range []Kind{Tap, DoubleTap, Pan, Pinch, Magnify, Rotate} {
		if k.IsSwipe() {
			t.Errorf("%v should not be a swipe", k)
		}
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Pinch)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"pinch"` {
		t.Errorf("marshal = %s, want %q", data, `"pinch"`)
	}

	var k Kind
	if err := json.Unmarshal([]byte(`"swipe_left"`), &k); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if k != SwipeLeft {
		t.Errorf("unmarshal = %v, want %v", k, SwipeLeft)
	}

	if err := json.Unmarshal([]byte(`"wiggle"`), &k); err == nil {
		t.Error("expected error for unknown kind name")
	}
}

// =============================================================================
// Tests for Phase
// =============================================================================

func TestPhaseTerminal(t *testing.T) {
	tests := []struct {
		phase      Phase
		terminal   bool
		successful bool
	}{
		{Began, false, false},
		{Changed, false, false},
		{Ended, true, true},
		{Cancelled, true, false},
		{Failed, true, false},
	}

	for _, tt := range tests {
		if got := tt.phase.Terminal(); got != tt.terminal {
			t.Errorf("%v.Terminal() = %v, want %v", tt.phase, got, tt.terminal)
		}
		if got := tt.phase.Successful(); got != tt.successful {
			t.Errorf("%v.Successful() = %v, want %v", tt.phase, got, tt.successful)
		}
	}
}

func TestPhaseStringRoundTrip(t *testing.T) {
	for p := Phase(0); p < numPhases; p++ {
		parsed, err := ParsePhase(p.String())
		if err != nil {
			t.Fatalf("ParsePhase(%q) failed: %v", p.String(), err)
		}
		if parsed != p {
			t.Errorf("ParsePhase(%q) = %v, want %v", p.String(), parsed, p)
		}
	}
}

// =============================================================================
// Tests for Rect
// =============================================================================

func TestRectContainsHalfOpen(t *testing.T) {
	r := Rect{Min: f32.Point{X: 10, Y: 10}, Max: f32.Point{X: 110, Y: 60}}

	inside := []f32.Point{
		{X: 10, Y: 10},
		{X: 50, Y: 30},
		{X: 109.9, Y: 59.9},
	}
	for _, p := range inside {
		if !r.Contains(p) {
			t.Errorf("point %+v should be inside", p)
		}
	}

	outside := []f32.Point{
		{X: 9.9, Y: 10},
		{X: 110, Y: 30}, // Max edge is exclusive
		{X: 50, Y: 60},
		{X: 0, Y: 0},
	}
	for _, p := range outside {
		if r.Contains(p) {
			t.Errorf("point %+v should be outside", p)
		}
	}
}

func TestRectCanonical(t *testing.T) {
	if !(Rect{Max: f32.Point{X: 10, Y: 10}}).Canonical() {
		t.Error("ordinary rect should be canonical")
	}
	if !(Rect{}).Canonical() {
		t.Error("zero rect should be canonical")
	}
	if (Rect{Min: f32.Point{X: 10}}).Canonical() {
		t.Error("inverted rect should not be canonical")
	}
}

func TestRectJSON(t *testing.T) {
	r := Rect{Min: f32.Point{X: 1, Y: 2}, Max: f32.Point{X: 3, Y: 4}}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back Rect
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back != r {
		t.Errorf("round trip changed rect: %+v", back)
	}
}

// =============================================================================
// Tests for Sample and Completed
// =============================================================================

func TestSampleJSON(t *testing.T) {
	s := Sample{
		Kind:      Pan,
		Phase:     Changed,
		Location:  f32.Point{X: 10, Y: 20},
		Velocity:  f32.Point{X: 1.5, Y: -0.5},
		Touches:   1,
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Sample
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Kind != Pan || back.Phase != Changed {
		t.Errorf("round trip changed kind/phase: %v %v", back.Kind, back.Phase)
	}
	if back.Location != s.Location || back.Velocity != s.Velocity {
		t.Errorf("round trip changed geometry: %+v", back)
	}
	if !back.Timestamp.Equal(s.Timestamp) {
		t.Errorf("round trip changed timestamp: %v", back.Timestamp)
	}
}

func TestActiveComplete(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(250 * time.Millisecond)

	a := Active{
		ID:          "g-1",
		Kind:        Tap,
		Phase:       Began,
		Location:    f32.Point{X: 5, Y: 5},
		ZoneID:      "z-1",
		Sensitivity: 1.5,
		StartedAt:   start,
	}

	c := a.Complete(end, true)
	if c.ID != a.ID || c.Kind != a.Kind || c.ZoneID != a.ZoneID {
		t.Errorf("completed record lost identity: %+v", c)
	}
	if c.Duration != 250*time.Millisecond {
		t.Errorf("duration = %v, want 250ms", c.Duration)
	}
	if !c.Successful {
		t.Error("completed record should be successful")
	}

	c = a.Complete(end, false)
	if c.Successful {
		t.Error("completed record should be unsuccessful")
	}
}

// =============================================================================
// Tests for Configuration
// =============================================================================

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()

	if len(cfg.Enabled) != len(Kinds()) {
		t.Errorf("default enables %d kinds, want %d", len(cfg.Enabled), len(Kinds()))
	}
	if !cfg.Simultaneous {
		t.Error("simultaneous recognition should default on")
	}
	if cfg.MinTouches != 1 || cfg.MaxTouches != 5 {
		t.Errorf("default touch range = %d..%d, want 1..5", cfg.MinTouches, cfg.MaxTouches)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestConfigurationKindEnabled(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Enabled = []Kind{Tap, Pan}

	if !cfg.KindEnabled(Tap) || !cfg.KindEnabled(Pan) {
		t.Error("enabled kinds should report enabled")
	}
	if cfg.KindEnabled(Pinch) {
		t.Error("pinch is not in the enabled set")
	}
}

func TestConfigurationClone(t *testing.T) {
	cfg := DefaultConfiguration()
	clone := cfg.Clone()
	clone.Enabled[0] = Rotate

	if cfg.Enabled[0] == Rotate && Kinds()[0] != Rotate {
		t.Error("clone shares the enabled slice with the original")
	}
}

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Configuration)
		wantErr bool
	}{
		{"default ok", func(c *Configuration) {}, false},
		{"unknown kind", func(c *Configuration) { c.Enabled = []Kind{Kind(99)} }, true},
		{"zero min touches", func(c *Configuration) { c.MinTouches = 0 }, true},
		{"max below min", func(c *Configuration) { c.MinTouches = 3; c.MaxTouches = 2 }, true},
		{"negative delay", func(c *Configuration) { c.RecognitionDelay = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
