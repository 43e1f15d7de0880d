// Package zone implements the spatial side of gesture routing: prioritized
// rectangular regions with per-zone gesture whitelists, and the registry
// that answers point queries against them.
package zone

import (
	"fmt"
	"sort"

	"gioui.org/f32"

	"gestured/internal/gesture"
)

// Zone is a prioritized spatial region with its own gesture whitelist and
// sensitivity multiplier. Zones are value types; the registry replaces them
// wholesale on update.
type Zone struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Bounds      gesture.Rect   `json:"bounds"`
	Sensitivity float64        `json:"sensitivity"`
	Enabled     bool           `json:"enabled"`
	Priority    int            `json:"priority"`
	Allowed     []gesture.Kind `json:"allowed"`
}

// Contains reports whether p falls inside the zone's bounds. Containment is
// half-open: Min.X <= X < Max.X, Min.Y <= Y < Max.Y.
func (z Zone) Contains(p f32.Point) bool {
	return z.Bounds.Contains(p)
}

// Allows reports whether the zone's whitelist contains k.
func (z Zone) Allows(k gesture.Kind) bool {
	for _, a := range z.Allowed {
		if a == k {
			return true
		}
	}
	return false
}

// Validate checks the zone for internal consistency.
func (z Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("zone: id must not be empty")
	}
	if z.Sensitivity < 0 {
		return fmt.Errorf("zone %s: sensitivity must not be negative", z.ID)
	}
	if !z.Bounds.Canonical() {
		return fmt.Errorf("zone %s: bounds are not canonical", z.ID)
	}
	for _, k := range z.Allowed {
		if !k.Valid() {
			return fmt.Errorf("zone %s: whitelist contains unknown kind %d", z.ID, int(k))
		}
	}
	return nil
}

func (z Zone) clone() Zone {
	out := z
	out.Allowed = make([]gesture.Kind, len(z.Allowed))
	copy(out.Allowed, z.Allowed)
	return out
}

// Registry holds zones ordered by descending priority, ties preserving
// insertion order. It is a single-owner structure: the engine serializes
// all access, so the registry itself carries no locking.
type Registry struct {
	zones []Zone
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// resort restores the descending-priority invariant. The sort is stable so
// equal priorities keep their insertion order.
func (r *Registry) resort() {
	sort.SliceStable(r.zones, func(i, j int) bool {
		return r.zones[i].Priority > r.zones[j].Priority
	})
}

// Add appends the zone and re-sorts.
func (r *Registry) Add(z Zone) {
	r.zones = append(r.zones, z.clone())
	r.resort()
}

// Remove deletes the zone with the given id. It reports whether a zone was
// removed. Cleanup of gestures attached to the zone is the caller's
// transition, not the registry's.
func (r *Registry) Remove(id string) bool {
	for i, z := range r.zones {
		if z.ID == id {
			r.zones = append(r.zones[:i], r.zones[i+1:]...)
			return true
		}
	}
	return false
}

// Enable marks the zone enabled in place.
func (r *Registry) Enable(id string) bool {
	return r.setEnabled(id, true)
}

// Disable marks the zone disabled in place without removing it.
func (r *Registry) Disable(id string) bool {
	return r.setEnabled(id, false)
}

func (r *Registry) setEnabled(id string, enabled bool) bool {
	for i := range r.zones {
		if r.zones[i].ID == id {
			r.zones[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Update replaces the zone with the same id and re-sorts. It reports
// whether a zone was replaced.
func (r *Registry) Update(z Zone) bool {
	for i := range r.zones {
		if r.zones[i].ID == z.ID {
			r.zones[i] = z.clone()
			r.resort()
			return true
		}
	}
	return false
}

// Clear removes all zones and returns how many were dropped.
func (r *Registry) Clear() int {
	n := len(r.zones)
	r.zones = nil
	return n
}

// Get returns the zone with the given id.
func (r *Registry) Get(id string) (Zone, bool) {
	for _, z := range r.zones {
		if z.ID == id {
			return z.clone(), true
		}
	}
	return Zone{}, false
}

// Len returns the number of registered zones, enabled or not.
func (r *Registry) Len() int {
	return len(r.zones)
}

// Zones returns a copy of all zones in descending-priority order.
func (r *Registry) Zones() []Zone {
	out := make([]Zone, len(r.zones))
	for i, z := range r.zones {
		out[i] = z.clone()
	}
	return out
}

// FindZone returns the highest-priority enabled zone containing p. Zones are
// tested in priority order and the first match wins, which is also the
// tie-break rule for overlapping zones of equal priority.
func (r *Registry) FindZone(p f32.Point) (Zone, bool) {
	for _, z := range r.zones {
		if z.Enabled && z.Contains(p) {
			return z.clone(), true
		}
	}
	return Zone{}, false
}

// ZonesContaining returns every enabled zone containing p, in
// descending-priority order.
func (r *Registry) ZonesContaining(p f32.Point) []Zone {
	var out []Zone
	for _, z := range r.zones {
		if z.Enabled && z.Contains(p) {
			out = append(out, z.clone())
		}
	}
	return out
}

// GestureAllowed reports whether a gesture of kind k may proceed at p. If an
// enabled zone contains the point, its whitelist decides; outside all zones
// the gesture is allowed by default.
func (r *Registry) GestureAllowed(k gesture.Kind, p f32.Point) bool {
	z, ok := r.FindZone(p)
	if !ok {
		return true
	}
	return z.Allows(k)
}
