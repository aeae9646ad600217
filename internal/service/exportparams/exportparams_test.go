package exportparams

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

func TestResolve_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		raw   string
		field string
	}{
		{"bundle without include", TypeBundle, `{}`, "include"},
		{"bundle includes itself", TypeBundle, `{"include":["bundle"]}`, "include"},
		{"bundle with audit needs range", TypeBundle, `{"include":["audit"]}`, "range"},
		{"audit needs range", TypeAudit, `{}`, "range"},
		{"window and explicit range", TypeAudit, `{"window_days":7,"from":"2025-01-01T00:00:00Z"}`, "range.window_days"},
		{"window too large", TypePostFallRollup, `{"window_days":400}`, "range.window_days"},
		{"inverted range", TypeAssessments, `{"from":"2025-02-01T00:00:00Z","to":"2025-01-01T00:00:00Z"}`, "range.to"},
		{"half range", TypeAssessments, `{"from":"2025-02-01T00:00:00Z"}`, "range"},
		{"bad status", TypeAssessments, `{"statuses":["archived"]}`, "statuses"},
		{"bad tier", TypeAssessments, `{"risk_tiers":["extreme"]}`, "risk_tiers"},
		{"bad resident status", TypeResidents, `{"status":"gone"}`, "status"},
		{"unknown field", TypeResidents, `{"colour":"red"}`, "colour"},
		{"wrong json type", TypeResidents, `{"status":5}`, "status"},
		{"bad group_by", TypePostFallRollup, `{"window_days":30,"group_by":"shift"}`, "group_by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Resolve(tt.typ, json.RawMessage(tt.raw))
			require.ErrorIs(t, err, ErrInvalidParams)
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestResolve_UnknownType(t *testing.T) {
	_, _, err := Resolve("invoices", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestResolve_EmptyPayload(t *testing.T) {
	p, canonical, err := Resolve(TypeResidents, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeResidents, p.Type())
	assert.JSONEq(t, `{}`, string(canonical))

	_, canonical, err = Resolve(TypeResidents, json.RawMessage(" null "))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(canonical))
}

func TestResolve_Canonicalizes(t *testing.T) {
	a, b := uuid.MustParse("00000000-0000-0000-0000-000000000002"), uuid.MustParse("00000000-0000-0000-0000-000000000001")
	raw := `{"include":["residents","post_fall_rollup","residents"],"window_days":30,"unit_ids":["` +
		a.String() + `","` + b.String() + `","` + a.String() + `"]}`

	p, canonical, err := Resolve(TypeBundle, json.RawMessage(raw))
	require.NoError(t, err)

	bp := p.(*BundleParams)
	assert.Equal(t, []Type{TypePostFallRollup, TypeResidents}, bp.Include)
	assert.Equal(t, []uuid.UUID{b, a}, bp.UnitIDs)

	again, _, err := Resolve(TypeBundle, canonical)
	require.NoError(t, err)
	assert.Equal(t, bp, again)
}

func TestResolve_Defaults(t *testing.T) {
	p, _, err := Resolve(TypePostFallRollup, json.RawMessage(`{"window_days":30}`))
	require.NoError(t, err)
	assert.Equal(t, GroupByUnit, p.(*PostFallRollupParams).GroupBy)

	p, _, err = Resolve(TypeAssessments, json.RawMessage(`{"statuses":["completed","needs_review","completed"]}`))
	require.NoError(t, err)
	assert.Equal(t, []repo.AssessmentStatus{repo.AssessmentCompleted, repo.AssessmentNeedsReview}, p.(*AssessmentsParams).Statuses)
}

func TestRange_Bounds(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

	from, to := Range{WindowDays: 7}.Bounds(now)
	require.NotNil(t, from)
	assert.Equal(t, now.AddDate(0, 0, -7), *from)
	assert.Equal(t, now, *to)

	from, to = Range{}.Bounds(now)
	assert.Nil(t, from)
	assert.Nil(t, to)
}

func TestBundle_Part(t *testing.T) {
	unit := uuid.New()
	b := BundleParams{Range: Range{WindowDays: 14}, Include: []Type{TypeAudit}, UnitIDs: []uuid.UUID{unit}}

	part := b.Part(TypePostFallRollup).(*PostFallRollupParams)
	assert.Equal(t, 14, part.WindowDays)
	assert.Equal(t, []uuid.UUID{unit}, part.UnitIDs)
	assert.Nil(t, b.Part(TypeBundle))
}
