// Package profile loads declarative zone sets from JSON documents. A
// profile names a set of zones and, optionally, the applications it applies
// to; the watcher applies matching profiles to the engine and reloads them
// when the profile directory changes.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gioui.org/f32"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"gestured/internal/gesture"
	"gestured/internal/zone"
)

// profileSchema is the JSON Schema every profile document must satisfy.
// Structural errors surface from here with a path into the document;
// semantic checks (kind names, glob syntax, duplicate ids) follow in Load.
const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "zones"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "applications": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "zones": {
      "type": "array",
      "items": {"$ref": "#/$defs/zone"}
    }
  },
  "$defs": {
    "zone": {
      "type": "object",
      "required": ["id", "bounds"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "bounds": {
          "type": "object",
          "required": ["x", "y", "width", "height"],
          "additionalProperties": false,
          "properties": {
            "x": {"type": "number"},
            "y": {"type": "number"},
            "width": {"type": "number", "minimum": 0},
            "height": {"type": "number", "minimum": 0}
          }
        },
        "priority": {"type": "integer"},
        "sensitivity": {"type": "number", "minimum": 0},
        "enabled": {"type": "boolean"},
        "allowed": {
          "type": "array",
          "items": {"type": "string"}
        }
      }
    }
  }
}`

const schemaURL = "gestured://profile.schema.json"

var (
	schemaOnce     sync.Once
	compiledOnce   *jsonschema.Schema
	compileFailure error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(profileSchema)); err != nil {
			compileFailure = err
			return
		}
		compiledOnce, compileFailure = c.Compile(schemaURL)
	})
	return compiledOnce, compileFailure
}

// document is the on-disk shape of a profile.
type document struct {
	Name         string     `json:"name"`
	Applications []string   `json:"applications"`
	Zones        []zoneSpec `json:"zones"`
}

type zoneSpec struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Bounds      boundsSpec `json:"bounds"`
	Priority    int        `json:"priority"`
	Sensitivity float64    `json:"sensitivity"`
	Enabled     *bool      `json:"enabled"`
	Allowed     []string   `json:"allowed"`
}

type boundsSpec struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// toZone converts the spec, applying defaults: omitted sensitivity means
// 1.0, omitted enabled means true, omitted name falls back to the id.
func (zs zoneSpec) toZone() (zone.Zone, error) {
	kinds := make([]gesture.Kind, 0, len(zs.Allowed))
	for _, name := range zs.Allowed {
		k, err := gesture.ParseKind(name)
		if err != nil {
			return zone.Zone{}, fmt.Errorf("zone %s: %w", zs.ID, err)
		}
		kinds = append(kinds, k)
	}

	sens := zs.Sensitivity
	if sens == 0 {
		sens = 1.0
	}
	enabled := true
	if zs.Enabled != nil {
		enabled = *zs.Enabled
	}
	name := zs.Name
	if name == "" {
		name = zs.ID
	}

	z := zone.Zone{
		ID:   zs.ID,
		Name: name,
		Bounds: gesture.Rect{
			Min: f32.Pt(zs.Bounds.X, zs.Bounds.Y),
			Max: f32.Pt(zs.Bounds.X+zs.Bounds.Width, zs.Bounds.Y+zs.Bounds.Height),
		},
		Sensitivity: sens,
		Enabled:     enabled,
		Priority:    zs.Priority,
		Allowed:     kinds,
	}
	if err := z.Validate(); err != nil {
		return zone.Zone{}, err
	}
	return z, nil
}

// Profile is a loaded zone set, optionally bound to applications by glob.
type Profile struct {
	Name         string
	Applications []string
	Path         string

	zones []zone.Zone
}

// Zones returns a copy of the profile's zones.
func (p *Profile) Zones() []zone.Zone {
	out := make([]zone.Zone, len(p.zones))
	copy(out, p.zones)
	return out
}

// Match reports whether the profile applies to the given application id.
// A profile with no application patterns is universal. Patterns use
// doublestar glob syntax and match case-sensitively.
func (p *Profile) Match(appID string) bool {
	if len(p.Applications) == 0 {
		return true
	}
	for _, pat := range p.Applications {
		if ok, _ := doublestar.Match(pat, appID); ok {
			return true
		}
	}
	return false
}

// Load reads and validates one profile document.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("profile: schema: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	if err := sch.Validate(instance); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	for _, pat := range doc.Applications {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("profile %s: invalid application pattern %q", path, pat)
		}
	}

	seen := make(map[string]bool, len(doc.Zones))
	zones := make([]zone.Zone, 0, len(doc.Zones))
	for _, spec := range doc.Zones {
		z, err := spec.toZone()
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
		if seen[z.ID] {
			return nil, fmt.Errorf("profile %s: duplicate zone id %s", path, z.ID)
		}
		seen[z.ID] = true
		zones = append(zones, z)
	}

	return &Profile{
		Name:         doc.Name,
		Applications: doc.Applications,
		Path:         path,
		zones:        zones,
	}, nil
}

// LoadDir loads every *.json profile in dir, in lexical filename order.
// Any invalid profile fails the whole load so a partially applied set
// never reaches the engine.
func LoadDir(dir string) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	var out []*Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ZonesFor collects the zones of every profile matching appID, in profile
// order. Duplicate zone ids across profiles are caught downstream when the
// set is applied to the engine.
func ZonesFor(profiles []*Profile, appID string) []zone.Zone {
	var out []zone.Zone
	for _, p := range profiles {
		if p.Match(appID) {
			out = append(out, p.Zones()...)
		}
	}
	return out
}
