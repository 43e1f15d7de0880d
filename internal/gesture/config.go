package gesture

import (
	"fmt"
	"time"
)

// Configuration is the engine-wide gesture policy. It is treated as an
// immutable value: updates replace the whole struct, and derived copies
// (such as the resolver's) are invalidated on replacement.
//
// Enabled and Simultaneous drive the core's own filtering and arbitration.
// MinTouches, MaxTouches, RecognitionDelay and PressureSupport are validated
// and carried for the recognizer collaborators that feed samples in.
type Configuration struct {
	Enabled          []Kind        `json:"enabled"`
	MinTouches       int           `json:"min_touches"`
	MaxTouches       int           `json:"max_touches"`
	RecognitionDelay time.Duration `json:"recognition_delay_ns"`
	Simultaneous     bool          `json:"simultaneous"`
	PressureSupport  bool          `json:"pressure_support"`
}

// DefaultConfiguration enables every gesture kind with simultaneous
// recognition on.
func DefaultConfiguration() Configuration {
	return Configuration{
		Enabled:          Kinds(),
		MinTouches:       1,
		MaxTouches:       5,
		RecognitionDelay: 0,
		Simultaneous:     true,
		PressureSupport:  false,
	}
}

// KindEnabled reports whether k is in the enabled set.
func (c Configuration) KindEnabled(k Kind) bool {
	for _, e := range c.Enabled {
		if e == k {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	out.Enabled = make([]Kind, len(c.Enabled))
	copy(out.Enabled, c.Enabled)
	return out
}

// Validate checks the configuration for internal consistency.
func (c Configuration) Validate() error {
	for _, k := range c.Enabled {
		if !k.Valid() {
			return fmt.Errorf("gesture: enabled set contains unknown kind %d", int(k))
		}
	}
	if c.MinTouches < 1 {
		return fmt.Errorf("gesture: min touches must be at least 1, got %d", c.MinTouches)
	}
	if c.MaxTouches < c.MinTouches {
		return fmt.Errorf("gesture: max touches %d below min touches %d", c.MaxTouches, c.MinTouches)
	}
	if c.RecognitionDelay < 0 {
		return fmt.Errorf("gesture: recognition delay must not be negative")
	}
	return nil
}
