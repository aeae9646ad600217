package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var fallEventColumns = []string{
	"id", "facility_id", "resident_id", "unit_id", "severity", "occurred_at",
	"assigned_to", "required_checks", "completed_checks", "created_at", "updated_at",
}

var fallCheckColumns = []string{
	"id", "fall_event_id", "check_type", "completed", "completed_by", "completed_at", "updated_at",
}

type pgFallEvents struct {
	db *sql.DB
}

func scanFallEvent(r rowScanner) (FallEvent, error) {
	var (
		e        FallEvent
		unit     uuid.NullUUID
		assigned uuid.NullUUID
	)
	if err := r.Scan(&e.ID, &e.FacilityID, &e.ResidentID, &unit, &e.Severity, &e.OccurredAt,
		&assigned, &e.RequiredChecks, &e.CompletedChecks, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return FallEvent{}, err
	}
	e.UnitID = uuidPtr(unit)
	e.AssignedTo = uuidPtr(assigned)
	e.OccurredAt = e.OccurredAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func scanFallCheck(r rowScanner) (FallCheck, error) {
	var (
		c           FallCheck
		completedBy uuid.NullUUID
		completedAt sql.NullTime
	)
	if err := r.Scan(&c.ID, &c.FallEventID, &c.CheckType, &c.Completed, &completedBy, &completedAt, &c.UpdatedAt); err != nil {
		return FallCheck{}, err
	}
	c.CompletedBy = uuidPtr(completedBy)
	c.CompletedAt = timePtr(completedAt)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *pgFallEvents) Create(ctx context.Context, e FallEvent) (FallEvent, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query, args := pg().Insert(TableFallEvents).
		Columns(fallEventColumns...).
		Values(e.ID, e.FacilityID, e.ResidentID, nullableUUID(e.UnitID), e.Severity, e.OccurredAt,
			nullableUUID(e.AssignedTo), e.RequiredChecks, e.CompletedChecks, e.CreatedAt, e.UpdatedAt).
		Returning(fallEventColumns...).
		Query()
	out, err := scanFallEvent(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return FallEvent{}, fmt.Errorf("insert fall event: %w", err)
	}
	return out, nil
}

func (s *pgFallEvents) Get(ctx context.Context, facilityID, id uuid.UUID) (FallEvent, error) {
	query, args := pg().Select(fallEventColumns...).
		From(pg().Table(TableFallEvents)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("facility_id", facilityID))).
		Query()
	e, err := scanFallEvent(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return FallEvent{}, notFound(err)
	}
	return e, nil
}

func (s *pgFallEvents) List(ctx context.Context, f FallEventFilter) ([]FallEvent, error) {
	preds := []*entsql.Predicate{entsql.EQ("facility_id", f.FacilityID)}
	if len(f.UnitIDs) > 0 {
		preds = append(preds, entsql.In("unit_id", uuidArgs(f.UnitIDs)...))
	}
	if f.Open != nil {
		if *f.Open {
			preds = append(preds, entsql.ColumnsLT("completed_checks", "required_checks"))
		} else {
			preds = append(preds, entsql.ColumnsGTE("completed_checks", "required_checks"))
		}
	}
	switch {
	case f.AssignedTo != nil:
		preds = append(preds, entsql.EQ("assigned_to", *f.AssignedTo))
	case f.Unassigned:
		preds = append(preds, entsql.IsNull("assigned_to"))
	}
	if f.From != nil {
		preds = append(preds, entsql.GTE("occurred_at", *f.From))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("occurred_at", *f.To))
	}

	query, args := pg().Select(fallEventColumns...).
		From(pg().Table(TableFallEvents)).
		Where(entsql.And(preds...)).
		OrderBy("occurred_at", "id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fall events: %w", err)
	}
	defer rows.Close()

	out := []FallEvent{}
	for rows.Next() {
		e, err := scanFallEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgFallEvents) Checks(ctx context.Context, eventID uuid.UUID) ([]FallCheck, error) {
	query, args := pg().Select(fallCheckColumns...).
		From(pg().Table(TableFallEventChecks)).
		Where(entsql.EQ("fall_event_id", eventID)).
		OrderBy("check_type").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fall checks: %w", err)
	}
	defer rows.Close()

	out := []FallCheck{}
	for rows.Next() {
		c, err := scanFallCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var recountChecksSQL = `UPDATE fall_events
SET completed_checks = (
        SELECT count(*) FROM fall_event_checks
        WHERE fall_event_id = $1 AND completed
    ),
    updated_at = $2
WHERE id = $1
RETURNING ` + strings.Join(fallEventColumns, ", ")

func (s *pgFallEvents) SetCheck(ctx context.Context, facilityID uuid.UUID, c FallCheck) (FallEvent, FallCheck, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FallEvent{}, FallCheck{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// lock the event row so concurrent toggles recount in order
	lockQuery, lockArgs := pg().Select("id").
		From(pg().Table(TableFallEvents)).
		Where(entsql.And(entsql.EQ("id", c.FallEventID), entsql.EQ("facility_id", facilityID))).
		ForUpdate().
		Query()
	var locked uuid.UUID
	if err := tx.QueryRowContext(ctx, lockQuery, lockArgs...).Scan(&locked); err != nil {
		return FallEvent{}, FallCheck{}, notFound(err)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	upsert, upsertArgs := pg().Insert(TableFallEventChecks).
		Columns(fallCheckColumns...).
		Values(c.ID, c.FallEventID, c.CheckType, c.Completed, nullableUUID(c.CompletedBy), nullableTime(c.CompletedAt), c.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("fall_event_id", "check_type"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("completed")
				u.SetExcluded("completed_by")
				u.SetExcluded("completed_at")
				u.SetExcluded("updated_at")
			}),
		).
		Returning(fallCheckColumns...).
		Query()
	saved, err := scanFallCheck(tx.QueryRowContext(ctx, upsert, upsertArgs...))
	if err != nil {
		return FallEvent{}, FallCheck{}, fmt.Errorf("upsert fall check: %w", err)
	}

	event, err := scanFallEvent(tx.QueryRowContext(ctx, recountChecksSQL, c.FallEventID, c.UpdatedAt))
	if err != nil {
		return FallEvent{}, FallCheck{}, fmt.Errorf("recount fall checks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return FallEvent{}, FallCheck{}, err
	}
	return event, saved, nil
}
