package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// StaticLookup serves defaults plus optional per-facility overrides.
type StaticLookup struct {
	defaults  Policy
	overrides map[uuid.UUID]Policy
}

func NewStaticLookup(defaults Policy, overrides map[uuid.UUID]Policy) *StaticLookup {
	if overrides == nil {
		overrides = map[uuid.UUID]Policy{}
	}
	return &StaticLookup{defaults: defaults, overrides: overrides}
}

type staticFile struct {
	Defaults   *Policy           `yaml:"defaults"`
	Facilities map[string]Policy `yaml:"facilities"`
}

// LoadStaticFile reads a YAML file of the form
//
//	defaults:
//	  followup_days: 3
//	facilities:
//	  <facility uuid>:
//	    followup_days: 2
//	    timezone: Europe/Berlin
func LoadStaticFile(path string, defaults Policy) (*StaticLookup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var f staticFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	if f.Defaults != nil {
		defaults = f.Defaults.WithDefaults(defaults)
	}

	overrides := make(map[uuid.UUID]Policy, len(f.Facilities))
	for key, p := range f.Facilities {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("policy: facility key %q: %w", key, err)
		}
		overrides[id] = p
	}
	return NewStaticLookup(defaults, overrides), nil
}

func (s *StaticLookup) Get(_ context.Context, facilityID uuid.UUID) (Policy, error) {
	if p, ok := s.overrides[facilityID]; ok {
		return p.WithDefaults(s.defaults), nil
	}
	return s.defaults, nil
}
