// Package policy resolves per-facility service-level parameters.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/config"
)

// Policy holds the SLA parameters of one facility.
type Policy struct {
	ReportTurnaroundHours int    `json:"report_turnaround_hours" yaml:"report_turnaround_hours"`
	FollowupDays          int    `json:"followup_days" yaml:"followup_days"`
	ReassessmentDays      int    `json:"reassessment_days" yaml:"reassessment_days"`
	WarningWindowHours    int    `json:"warning_window_hours" yaml:"warning_window_hours"`
	Timezone              string `json:"timezone" yaml:"timezone"`
}

// Defaults are used when neither the config nor the facility says otherwise.
func Defaults() Policy {
	return Policy{
		ReportTurnaroundHours: 48,
		FollowupDays:          3,
		ReassessmentDays:      90,
		WarningWindowHours:    24,
		Timezone:              "UTC",
	}
}

// DefaultsFromConfig overlays configured defaults on the built-in ones.
func DefaultsFromConfig(d config.PolicyDefaults) Policy {
	return Policy{
		ReportTurnaroundHours: d.ReportTurnaroundHours,
		FollowupDays:          d.FollowupDays,
		ReassessmentDays:      d.ReassessmentDays,
		WarningWindowHours:    d.WarningWindowHours,
		Timezone:              d.Timezone,
	}.WithDefaults(Defaults())
}

// WithDefaults fills every unset field from d.
func (p Policy) WithDefaults(d Policy) Policy {
	if p.ReportTurnaroundHours <= 0 {
		p.ReportTurnaroundHours = d.ReportTurnaroundHours
	}
	if p.FollowupDays <= 0 {
		p.FollowupDays = d.FollowupDays
	}
	if p.ReassessmentDays <= 0 {
		p.ReassessmentDays = d.ReassessmentDays
	}
	if p.WarningWindowHours <= 0 {
		p.WarningWindowHours = d.WarningWindowHours
	}
	if p.Timezone == "" {
		p.Timezone = d.Timezone
	}
	return p
}

func (p Policy) WarningWindow() time.Duration {
	return time.Duration(p.WarningWindowHours) * time.Hour
}

// Location resolves the facility timezone, falling back to UTC.
func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Lookup is the read-only view of facility policy.
type Lookup interface {
	Get(ctx context.Context, facilityID uuid.UUID) (Policy, error)
}

// New builds the configured lookup and, when rdb is set and a TTL is
// configured, wraps it in a redis cache.
func New(cfg config.PolicyConfig, rdb *goredis.Client) (Lookup, error) {
	defaults := DefaultsFromConfig(cfg.Defaults)

	var (
		inner Lookup
		err   error
	)
	switch cfg.Source {
	case "", "static":
		if cfg.FilePath == "" {
			inner = NewStaticLookup(defaults, nil)
		} else {
			inner, err = LoadStaticFile(cfg.FilePath, defaults)
		}
	case "http":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		inner = NewHTTPLookup(cfg.BaseURL, timeout, defaults)
	default:
		return nil, fmt.Errorf("policy: unknown source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}

	if rdb != nil && cfg.CacheTTLSeconds > 0 {
		return NewCachedLookup(inner, rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second), nil
	}
	return inner, nil
}
