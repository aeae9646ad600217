package repo

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// pgUnits reads the facility directory tables owned by the resident
// management service.
type pgUnits struct {
	db *sql.DB
}

func (s *pgUnits) FacilityOf(ctx context.Context, unitID uuid.UUID) (uuid.UUID, error) {
	query, args := pg().Select("facility_id").
		From(pg().Table(TableUnits)).
		Where(entsql.EQ("id", unitID)).
		Query()
	var facilityID uuid.UUID
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&facilityID); err != nil {
		return uuid.Nil, notFound(err)
	}
	return facilityID, nil
}

func (s *pgUnits) ListResidents(ctx context.Context, q ResidentQuery) ([]Resident, error) {
	preds := []*entsql.Predicate{entsql.EQ("facility_id", q.FacilityID)}
	if len(q.UnitIDs) > 0 {
		preds = append(preds, entsql.In("unit_id", uuidArgs(q.UnitIDs)...))
	}
	if q.Status != "" {
		preds = append(preds, entsql.EQ("status", q.Status))
	}
	query, args := pg().Select("id", "facility_id", "unit_id", "full_name", "status", "admitted_at").
		From(pg().Table(TableResidents)).
		Where(entsql.And(preds...)).
		OrderBy("full_name", "id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()

	out := []Resident{}
	for rows.Next() {
		var (
			r    Resident
			unit uuid.NullUUID
		)
		if err := rows.Scan(&r.ID, &r.FacilityID, &unit, &r.FullName, &r.Status, &r.AdmittedAt); err != nil {
			return nil, err
		}
		r.UnitID = uuidPtr(unit)
		r.AdmittedAt = r.AdmittedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgUnits) ListAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error) {
	preds := []*entsql.Predicate{entsql.EQ("facility_id", q.FacilityID)}
	if q.From != nil {
		preds = append(preds, entsql.GTE("created_at", *q.From))
	}
	if q.To != nil {
		preds = append(preds, entsql.LT("created_at", *q.To))
	}
	if len(q.Actions) > 0 {
		preds = append(preds, entsql.In("action", stringArgs(q.Actions)...))
	}
	if len(q.ActorIDs) > 0 {
		preds = append(preds, entsql.In("actor_id", uuidArgs(q.ActorIDs)...))
	}
	query, args := pg().Select("id", "facility_id", "actor_id", "action", "entity_type", "entity_id", "created_at").
		From(pg().Table(TableAuditEvents)).
		Where(entsql.And(preds...)).
		OrderBy("created_at", "id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := []AuditEvent{}
	for rows.Next() {
		var (
			e     AuditEvent
			actor uuid.NullUUID
		)
		if err := rows.Scan(&e.ID, &e.FacilityID, &actor, &e.Action, &e.EntityType, &e.EntityID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = uuidPtr(actor)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
