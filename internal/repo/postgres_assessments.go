package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var assessmentColumns = []string{
	"id", "facility_id", "resident_id", "unit_id", "status", "risk_tier",
	"assigned_to", "assessed_at", "completed_at", "created_at", "updated_at",
}

type pgAssessments struct {
	db *sql.DB
}

func scanAssessment(r rowScanner) (Assessment, error) {
	var (
		a         Assessment
		status    string
		unit      uuid.NullUUID
		assigned  uuid.NullUUID
		tier      sql.NullString
		completed sql.NullTime
	)
	if err := r.Scan(&a.ID, &a.FacilityID, &a.ResidentID, &unit, &status, &tier,
		&assigned, &a.AssessedAt, &completed, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Assessment{}, err
	}
	a.Status = AssessmentStatus(status)
	a.UnitID = uuidPtr(unit)
	a.AssignedTo = uuidPtr(assigned)
	a.CompletedAt = timePtr(completed)
	if tier.Valid {
		t := RiskTier(tier.String)
		a.RiskTier = &t
	}
	a.AssessedAt = a.AssessedAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *pgAssessments) Create(ctx context.Context, a Assessment) (Assessment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AssessmentDraft
	}
	var tier any
	if a.RiskTier != nil {
		tier = string(*a.RiskTier)
	}
	query, args := pg().Insert(TableAssessments).
		Columns(assessmentColumns...).
		Values(a.ID, a.FacilityID, a.ResidentID, nullableUUID(a.UnitID), string(a.Status), tier,
			nullableUUID(a.AssignedTo), a.AssessedAt, nullableTime(a.CompletedAt), a.CreatedAt, a.UpdatedAt).
		Returning(assessmentColumns...).
		Query()
	out, err := scanAssessment(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return out, nil
}

func (s *pgAssessments) Get(ctx context.Context, facilityID, id uuid.UUID) (Assessment, error) {
	query, args := pg().Select(assessmentColumns...).
		From(pg().Table(TableAssessments)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("facility_id", facilityID))).
		Query()
	a, err := scanAssessment(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Assessment{}, notFound(err)
	}
	return a, nil
}

func (s *pgAssessments) List(ctx context.Context, f AssessmentFilter) ([]Assessment, error) {
	preds := []*entsql.Predicate{entsql.EQ("facility_id", f.FacilityID)}
	if len(f.Statuses) > 0 {
		preds = append(preds, entsql.In("status", stringArgs(f.Statuses)...))
	}
	if len(f.RiskTiers) > 0 {
		preds = append(preds, entsql.In("risk_tier", stringArgs(f.RiskTiers)...))
	}
	if len(f.UnitIDs) > 0 {
		preds = append(preds, entsql.In("unit_id", uuidArgs(f.UnitIDs)...))
	}
	switch {
	case f.AssignedTo != nil:
		preds = append(preds, entsql.EQ("assigned_to", *f.AssignedTo))
	case f.Unassigned:
		preds = append(preds, entsql.IsNull("assigned_to"))
	}
	if f.From != nil {
		preds = append(preds, entsql.GTE("assessed_at", *f.From))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("assessed_at", *f.To))
	}

	query, args := pg().Select(assessmentColumns...).
		From(pg().Table(TableAssessments)).
		Where(entsql.And(preds...)).
		OrderBy("assessed_at", "id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// casUpdate runs an UPDATE ... RETURNING and maps "no row" to ErrConflict.
func (s *pgAssessments) casUpdate(ctx context.Context, query string, args []any) (Assessment, error) {
	a, err := scanAssessment(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, ErrConflict
	}
	return a, err
}

func (s *pgAssessments) Claim(ctx context.Context, facilityID, id, assignee uuid.UUID, now time.Time) (Assessment, error) {
	query, args := pg().Update(TableAssessments).
		Set("assigned_to", assignee).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("facility_id", facilityID),
			entsql.IsNull("assigned_to"),
		)).
		Returning(assessmentColumns...).
		Query()
	return s.casUpdate(ctx, query, args)
}

func (s *pgAssessments) Unassign(ctx context.Context, facilityID, id, expected uuid.UUID, now time.Time) (Assessment, error) {
	query, args := pg().Update(TableAssessments).
		SetNull("assigned_to").
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("facility_id", facilityID),
			entsql.EQ("assigned_to", expected),
		)).
		Returning(assessmentColumns...).
		Query()
	return s.casUpdate(ctx, query, args)
}

var transitionSQL = `UPDATE assessments
SET status = $1,
    assigned_to = COALESCE(assigned_to, $2),
    completed_at = COALESCE($3, completed_at),
    updated_at = $4
WHERE id = $5 AND facility_id = $6 AND status = $7
RETURNING ` + strings.Join(assessmentColumns, ", ")

func (s *pgAssessments) Transition(ctx context.Context, facilityID, id uuid.UUID, from, to AssessmentStatus, claimant *uuid.UUID, now time.Time) (Assessment, error) {
	var completedAt *time.Time
	if to == AssessmentCompleted {
		completedAt = &now
	}
	return s.casUpdate(ctx, transitionSQL, []any{
		string(to), nullableUUID(claimant), nullableTime(completedAt), now,
		id, facilityID, string(from),
	})
}

var applyScoreSQL = `UPDATE assessments
SET risk_tier = $1,
    status = CASE WHEN status = 'draft' THEN 'needs_review' ELSE status END,
    updated_at = $2
WHERE id = $3 AND facility_id = $4
RETURNING ` + strings.Join(assessmentColumns, ", ")

func (s *pgAssessments) ApplyScore(ctx context.Context, facilityID, id uuid.UUID, tier RiskTier, now time.Time) (Assessment, error) {
	a, err := scanAssessment(s.db.QueryRowContext(ctx, applyScoreSQL, string(tier), now, id, facilityID))
	if err != nil {
		return Assessment{}, notFound(err)
	}
	return a, nil
}
