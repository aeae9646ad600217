// Package exportparams validates and normalizes the filter payload of each
// export kind. Every kind has its own struct carrying only the fields that
// apply to it; Resolve picks the struct by export type.
package exportparams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

type Type string

const (
	TypeResidents      Type = "residents"
	TypeAssessments    Type = "assessments"
	TypeAudit          Type = "audit"
	TypeBundle         Type = "bundle"
	TypePostFallRollup Type = "post_fall_rollup"
)

var Types = []Type{TypeResidents, TypeAssessments, TypeAudit, TypeBundle, TypePostFallRollup}

func (t Type) Valid() bool { return slices.Contains(Types, t) }

// MaxWindowDays bounds relative and explicit date ranges.
const MaxWindowDays = 366

// Params is implemented by every export kind.
type Params interface {
	Type() Type
	normalize() error
}

// ---------------------------------------------------------------------------
// Date ranges
// ---------------------------------------------------------------------------

// Range is either an explicit [from, to) interval or a window of the last N
// days relative to the moment the export runs. Recurring schedules use the
// relative form.
type Range struct {
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	WindowDays int        `json:"window_days,omitempty"`
}

func (r Range) IsZero() bool { return r.From == nil && r.To == nil && r.WindowDays == 0 }

// Bounds resolves the range against now. A zero range yields nil bounds.
func (r Range) Bounds(now time.Time) (from, to *time.Time) {
	if r.WindowDays > 0 {
		start := now.AddDate(0, 0, -r.WindowDays)
		end := now
		return &start, &end
	}
	return r.From, r.To
}

func (r *Range) normalize(field string, required bool) error {
	if r.IsZero() {
		if required {
			return fieldErr(field, "a date range or window_days is required")
		}
		return nil
	}
	if r.WindowDays != 0 {
		if r.From != nil || r.To != nil {
			return fieldErr(field+".window_days", "cannot be combined with from/to")
		}
		if r.WindowDays < 1 || r.WindowDays > MaxWindowDays {
			return fieldErr(field+".window_days", "must be between 1 and %d", MaxWindowDays)
		}
		return nil
	}
	if r.From == nil || r.To == nil {
		return fieldErr(field, "from and to must both be set")
	}
	from, to := r.From.UTC(), r.To.UTC()
	if !from.Before(to) {
		return fieldErr(field+".to", "must be after from")
	}
	if to.Sub(from) > MaxWindowDays*24*time.Hour {
		return fieldErr(field, "range cannot exceed %d days", MaxWindowDays)
	}
	r.From, r.To = &from, &to
	return nil
}

// ---------------------------------------------------------------------------
// Kinds
// ---------------------------------------------------------------------------

const (
	ResidentStatusActive     = "active"
	ResidentStatusDischarged = "discharged"
)

type ResidentsParams struct {
	UnitIDs []uuid.UUID `json:"unit_ids,omitempty"`
	Status  string      `json:"status,omitempty"`
}

func (ResidentsParams) Type() Type { return TypeResidents }

func (p *ResidentsParams) normalize() error {
	p.UnitIDs = sortedUUIDs(p.UnitIDs)
	switch p.Status {
	case "", ResidentStatusActive, ResidentStatusDischarged:
	default:
		return fieldErr("status", "must be %q or %q", ResidentStatusActive, ResidentStatusDischarged)
	}
	return nil
}

type AssessmentsParams struct {
	Range
	UnitIDs   []uuid.UUID             `json:"unit_ids,omitempty"`
	Statuses  []repo.AssessmentStatus `json:"statuses,omitempty"`
	RiskTiers []repo.RiskTier         `json:"risk_tiers,omitempty"`
}

func (AssessmentsParams) Type() Type { return TypeAssessments }

func (p *AssessmentsParams) normalize() error {
	if err := p.Range.normalize("range", false); err != nil {
		return err
	}
	p.UnitIDs = sortedUUIDs(p.UnitIDs)
	for _, s := range p.Statuses {
		if !s.Valid() {
			return fieldErr("statuses", "unknown status %q", s)
		}
	}
	for _, t := range p.RiskTiers {
		if !t.Valid() {
			return fieldErr("risk_tiers", "unknown risk tier %q", t)
		}
	}
	p.Statuses = sortedStrings(p.Statuses)
	p.RiskTiers = sortedStrings(p.RiskTiers)
	return nil
}

type AuditParams struct {
	Range
	Actions  []string    `json:"actions,omitempty"`
	ActorIDs []uuid.UUID `json:"actor_ids,omitempty"`
}

func (AuditParams) Type() Type { return TypeAudit }

func (p *AuditParams) normalize() error {
	if err := p.Range.normalize("range", true); err != nil {
		return err
	}
	for i, a := range p.Actions {
		a = strings.TrimSpace(a)
		if a == "" {
			return fieldErr("actions", "must not contain empty values")
		}
		p.Actions[i] = a
	}
	p.Actions = sortedStrings(p.Actions)
	p.ActorIDs = sortedUUIDs(p.ActorIDs)
	return nil
}

type BundleParams struct {
	Range
	Include []Type      `json:"include"`
	UnitIDs []uuid.UUID `json:"unit_ids,omitempty"`
}

func (BundleParams) Type() Type { return TypeBundle }

func (p *BundleParams) normalize() error {
	if len(p.Include) == 0 {
		return fieldErr("include", "at least one export type is required")
	}
	for _, t := range p.Include {
		if t == TypeBundle || !t.Valid() {
			return fieldErr("include", "cannot include %q", t)
		}
	}
	p.Include = sortedStrings(p.Include)
	required := slices.Contains(p.Include, TypeAudit) || slices.Contains(p.Include, TypePostFallRollup)
	if err := p.Range.normalize("range", required); err != nil {
		return err
	}
	p.UnitIDs = sortedUUIDs(p.UnitIDs)
	return nil
}

// Part returns the params used for one included kind.
func (p BundleParams) Part(t Type) Params {
	switch t {
	case TypeResidents:
		return &ResidentsParams{UnitIDs: p.UnitIDs}
	case TypeAssessments:
		return &AssessmentsParams{Range: p.Range, UnitIDs: p.UnitIDs}
	case TypeAudit:
		return &AuditParams{Range: p.Range}
	case TypePostFallRollup:
		return &PostFallRollupParams{Range: p.Range, UnitIDs: p.UnitIDs, GroupBy: GroupByUnit}
	}
	return nil
}

const (
	GroupByUnit     = "unit"
	GroupBySeverity = "severity"
)

type PostFallRollupParams struct {
	Range
	UnitIDs []uuid.UUID `json:"unit_ids,omitempty"`
	GroupBy string      `json:"group_by,omitempty"`
}

func (PostFallRollupParams) Type() Type { return TypePostFallRollup }

func (p *PostFallRollupParams) normalize() error {
	if err := p.Range.normalize("range", true); err != nil {
		return err
	}
	p.UnitIDs = sortedUUIDs(p.UnitIDs)
	switch p.GroupBy {
	case "":
		p.GroupBy = GroupByUnit
	case GroupByUnit, GroupBySeverity:
	default:
		return fieldErr("group_by", "must be %q or %q", GroupByUnit, GroupBySeverity)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolve
// ---------------------------------------------------------------------------

// Resolve decodes raw into the params struct for t, validates it and returns
// the normalized value together with its canonical JSON encoding. Unknown
// fields are rejected. Empty input is treated as an empty object.
func Resolve(t Type, raw json.RawMessage) (Params, json.RawMessage, error) {
	var p Params
	switch t {
	case TypeResidents:
		p = &ResidentsParams{}
	case TypeAssessments:
		p = &AssessmentsParams{}
	case TypeAudit:
		p = &AuditParams{}
	case TypeBundle:
		p = &BundleParams{}
	case TypePostFallRollup:
		p = &PostFallRollupParams{}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, nil, decodeError(err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, nil, fieldErr("params", "unexpected trailing data")
		}
	}

	if err := p.normalize(); err != nil {
		return nil, nil, err
	}
	canonical, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("encode params: %w", err)
	}
	return p, canonical, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "params"
		}
		return fieldErr(field, "expected %s", typeErr.Type)
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return fieldErr(strings.Trim(rest, `"`), "unknown field")
	}
	return fieldErr("params", "%s", msg)
}

func sortedUUIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(out)
}

func sortedStrings[S ~string](vals []S) []S {
	if len(vals) == 0 {
		return nil
	}
	out := slices.Clone(vals)
	slices.Sort(out)
	return slices.Compact(out)
}
