// Package arbiter decides whether a candidate gesture may proceed given the
// set of currently active gestures. The resolver is stateless apart from a
// retained copy of the gesture configuration; its output is a Decision value
// that the engine applies.
package arbiter

import (
	"gestured/internal/gesture"
)

// Decision is the outcome of arbitrating one candidate gesture. Exactly one
// of the variant types below implements it.
type Decision interface {
	decision()
}

// Allow admits the candidate alongside the current actives.
type Allow struct{}

// Cancel admits the candidate after force-cancelling the listed actives.
type Cancel struct {
	IDs    []string
	Reason string
}

// Defer postpones the candidate. The engine does not queue deferred
// gestures; it converts this decision into an immediate rejection.
type Defer struct{}

// Reject refuses the candidate outright.
type Reject struct {
	Reason string
}

func (Allow) decision()  {}
func (Cancel) decision() {}
func (Defer) decision()  {}
func (Reject) decision() {}

// Cancellation reasons surfaced with Cancel decisions.
const (
	ReasonExclusive = "simultaneous recognition disabled"
	ReasonConflict  = "gesture type conflict"
)

// conflictPairs is the fixed matrix of mutually exclusive gesture kinds.
// Pairs are symmetric; every pair not listed here is non-conflicting.
var conflictPairs = [][2]gesture.Kind{
	{gesture.Tap, gesture.DoubleTap},
	{gesture.Pan, gesture.SwipeLeft},
	{gesture.Pan, gesture.SwipeRight},
	{gesture.Pan, gesture.SwipeUp},
	{gesture.Pan, gesture.SwipeDown},
	{gesture.Pinch, gesture.Magnify},
}

var conflictMatrix = buildMatrix()

func buildMatrix() map[gesture.Kind]map[gesture.Kind]bool {
	m := make(map[gesture.Kind]map[gesture.Kind]bool)
	set := func(a, b gesture.Kind) {
		if m[a] == nil {
			m[a] = make(map[gesture.Kind]bool)
		}
		m[a][b] = true
	}
	for _, pair := range conflictPairs {
		set(pair[0], pair[1])
		set(pair[1], pair[0])
	}
	return m
}

// Conflicts reports whether two gesture kinds are mutually exclusive. The
// relation is symmetric.
func Conflicts(a, b gesture.Kind) bool {
	return conflictMatrix[a][b]
}

// Resolver arbitrates candidates against the active set under the current
// configuration.
type Resolver struct {
	cfg gesture.Configuration
}

// NewResolver returns a resolver holding its own copy of cfg.
func NewResolver(cfg gesture.Configuration) *Resolver {
	return &Resolver{cfg: cfg.Clone()}
}

// SetConfiguration replaces the resolver's retained configuration copy.
// Configuration updates are wholesale replacements, so the previous copy is
// discarded entirely.
func (r *Resolver) SetConfiguration(cfg gesture.Configuration) {
	r.cfg = cfg.Clone()
}

// Resolve decides whether candidate may proceed given the active set.
//
// With simultaneous recognition disabled, any non-empty active set is
// displaced by the newest candidate. Otherwise only the kinds conflicting
// with the candidate per the fixed matrix are cancelled; a candidate with no
// conflicts is allowed.
func (r *Resolver) Resolve(candidate gesture.Active, active []gesture.Active) Decision {
	if !r.cfg.Simultaneous && len(active) > 0 {
		ids := make([]string, len(active))
		for i, a := range active {
			ids[i] = a.ID
		}
		return Cancel{IDs: ids, Reason: ReasonExclusive}
	}

	var ids []string
	for _, a := range active {
		if Conflicts(candidate.Kind, a.Kind) {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) > 0 {
		return Cancel{IDs: ids, Reason: ReasonConflict}
	}
	return Allow{}
}
