// Package gesture defines the interaction vocabulary shared by the routing
// core: gesture kinds, lifecycle phases, raw input samples, and the active
// and completed gesture records.
package gesture

import (
	"encoding/json"
	"fmt"
	"time"

	"gioui.org/f32"
)

// Kind identifies a recognized gesture type.
type Kind int

const (
	Tap        Kind = iota // Single tap
	DoubleTap              // Two taps in quick succession
	LongPress              // Press held past the recognition delay
	Pan                    // Continuous one-finger drag
	SwipeLeft              // Quick directional flick, leftward
	SwipeRight             // Quick directional flick, rightward
	SwipeUp                // Quick directional flick, upward
	SwipeDown              // Quick directional flick, downward
	Pinch                  // Two fingers moving together
	Magnify                // Two fingers moving apart
	Rotate                 // Two fingers turning around a center

	numKinds = iota
)

// Kinds returns every recognized gesture kind.
func Kinds() []Kind {
	all := make([]Kind, numKinds)
	for i := range all {
		all[i] = Kind(i)
	}
	return all
}

// KindStrings returns the names of every recognized gesture kind, in
// declaration order.
func KindStrings() []string {
	all := make([]string, numKinds)
	for i := range all {
		all[i] = Kind(i).String()
	}
	return all
}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

func (k Kind) String() string {
	switch k {
	case Tap:
		return "tap"
	case DoubleTap:
		return "double_tap"
	case LongPress:
		return "long_press"
	case Pan:
		return "pan"
	case SwipeLeft:
		return "swipe_left"
	case SwipeRight:
		return "swipe_right"
	case SwipeUp:
		return "swipe_up"
	case SwipeDown:
		return "swipe_down"
	case Pinch:
		return "pinch"
	case Magnify:
		return "magnify"
	case Rotate:
		return "rotate"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back into its Kind value.
func ParseKind(s string) (Kind, error) {
	for k := Kind(0); k < numKinds; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("gesture: unknown kind %q", s)
}

// IsSwipe reports whether k is one of the four directional swipes.
func (k Kind) IsSwipe() bool {
	switch k {
	case SwipeLeft, SwipeRight, SwipeUp, SwipeDown:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Phase is a gesture's position in its lifecycle.
type Phase int

const (
	Began     Phase = iota // First sample of a gesture
	Changed                // Continuation sample
	Ended                  // Successful terminal phase
	Cancelled              // Unsuccessful terminal phase, interrupted
	Failed                 // Unsuccessful terminal phase, recognition failed

	numPhases = iota
)

// Terminal reports whether the phase ends a gesture's lifecycle.
func (p Phase) Terminal() bool {
	switch p {
	case Ended, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// Successful reports whether the phase is the successful terminal phase.
// Ended is the only phase for which this holds.
func (p Phase) Successful() bool {
	return p == Ended
}

func (p Phase) String() string {
	switch p {
	case Began:
		return "began"
	case Changed:
		return "changed"
	case Ended:
		return "ended"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParsePhase converts a phase name back into its Phase value.
func ParsePhase(s string) (Phase, error) {
	for p := Phase(0); p < numPhases; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("gesture: unknown phase %q", s)
}

// MarshalJSON encodes the phase as its string name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a phase from its string name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Rect is an axis-aligned rectangle in screen coordinates.
type Rect struct {
	Min f32.Point `json:"min"`
	Max f32.Point `json:"max"`
}

// Contains reports whether p falls inside the rectangle. Containment is
// half-open: Min.X <= X < Max.X, Min.Y <= Y < Max.Y.
func (r Rect) Contains(p f32.Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X &&
		p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Canonical reports whether Min does not exceed Max on either axis.
func (r Rect) Canonical() bool {
	return r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
}

// Sample is one raw gesture event as delivered by an input source. The
// routing core is agnostic to how samples are produced.
type Sample struct {
	Kind      Kind      `json:"kind"`
	Phase     Phase     `json:"phase"`
	Location  f32.Point `json:"location"`
	Velocity  f32.Point `json:"velocity"`
	Touches   int       `json:"touches,omitempty"`
	Pressure  float64   `json:"pressure,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Active is an in-flight gesture tracked by the engine. Entries live in the
// active table from admission until their terminal phase; there is at most
// one entry per ID, and at most one entry per kind.
type Active struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Phase       Phase     `json:"phase"`
	Location    f32.Point `json:"location"`
	ZoneID      string    `json:"zone_id,omitempty"`
	Sensitivity float64   `json:"sensitivity"`
	StartedAt   time.Time `json:"started_at"`
}

// Complete converts the active gesture into its immutable completed record.
func (a Active) Complete(end time.Time, successful bool) Completed {
	return Completed{
		ID:         a.ID,
		Kind:       a.Kind,
		Location:   a.Location,
		ZoneID:     a.ZoneID,
		StartedAt:  a.StartedAt,
		EndedAt:    end,
		Duration:   end.Sub(a.StartedAt),
		Successful: successful,
	}
}

// Completed is the immutable record of a finished gesture. Records are owned
// by the history buffer and evicted oldest-first beyond its cap.
type Completed struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Location   f32.Point     `json:"location"`
	ZoneID     string        `json:"zone_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Duration   time.Duration `json:"duration_ns"`
	Successful bool          `json:"successful"`
}
