package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var scheduleColumns = []string{
	"id", "facility_id", "name", "export_type", "frequency", "day_of_week", "hour", "minute",
	"status", "params", "expires_hours", "last_run_at", "next_run_at", "created_by",
	"created_at", "updated_at",
}

type pgSchedules struct {
	db *sql.DB
}

func scanSchedule(r rowScanner) (ExportSchedule, error) {
	var (
		s         ExportSchedule
		frequency string
		status    string
		dow       sql.NullInt64
		params    []byte
		lastRun   sql.NullTime
		nextRun   sql.NullTime
		createdBy uuid.NullUUID
	)
	if err := r.Scan(&s.ID, &s.FacilityID, &s.Name, &s.ExportType, &frequency, &dow, &s.Hour, &s.Minute,
		&status, &params, &s.ExpiresHours, &lastRun, &nextRun, &createdBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return ExportSchedule{}, err
	}
	s.Frequency = Frequency(frequency)
	s.Status = ScheduleStatus(status)
	if dow.Valid {
		d := int(dow.Int64)
		s.DayOfWeek = &d
	}
	s.Params = json.RawMessage(params)
	s.LastRunAt = timePtr(lastRun)
	s.NextRunAt = timePtr(nextRun)
	s.CreatedBy = uuidPtr(createdBy)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func (st *pgSchedules) Create(ctx context.Context, s ExportSchedule) (ExportSchedule, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query, args := pg().Insert(TableExportSchedules).
		Columns(scheduleColumns...).
		Values(s.ID, s.FacilityID, s.Name, s.ExportType, string(s.Frequency), nullableInt(s.DayOfWeek), s.Hour, s.Minute,
			string(s.Status), []byte(s.Params), s.ExpiresHours, nullableTime(s.LastRunAt), nullableTime(s.NextRunAt),
			nullableUUID(s.CreatedBy), s.CreatedAt, s.UpdatedAt).
		Returning(scheduleColumns...).
		Query()
	out, err := scanSchedule(st.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ExportSchedule{}, fmt.Errorf("insert export schedule: %w", err)
	}
	return out, nil
}

func (st *pgSchedules) Get(ctx context.Context, facilityID, id uuid.UUID) (ExportSchedule, error) {
	query, args := pg().Select(scheduleColumns...).
		From(pg().Table(TableExportSchedules)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("facility_id", facilityID))).
		Query()
	s, err := scanSchedule(st.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ExportSchedule{}, notFound(err)
	}
	return s, nil
}

func (st *pgSchedules) list(ctx context.Context, query string, args []any) ([]ExportSchedule, error) {
	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list export schedules: %w", err)
	}
	defer rows.Close()

	out := []ExportSchedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *pgSchedules) List(ctx context.Context, facilityID uuid.UUID) ([]ExportSchedule, error) {
	query, args := pg().Select(scheduleColumns...).
		From(pg().Table(TableExportSchedules)).
		Where(entsql.EQ("facility_id", facilityID)).
		OrderBy("name", "id").
		Query()
	return st.list(ctx, query, args)
}

func (st *pgSchedules) Update(ctx context.Context, s ExportSchedule, expectedNextRun *time.Time) (ExportSchedule, error) {
	nextRun := entsql.IsNull("next_run_at")
	if expectedNextRun != nil {
		nextRun = entsql.EQ("next_run_at", *expectedNextRun)
	}

	query, args := pg().Update(TableExportSchedules).
		Set("name", s.Name).
		Set("export_type", s.ExportType).
		Set("frequency", string(s.Frequency)).
		Set("day_of_week", nullableInt(s.DayOfWeek)).
		Set("hour", s.Hour).
		Set("minute", s.Minute).
		Set("status", string(s.Status)).
		Set("params", []byte(s.Params)).
		Set("expires_hours", s.ExpiresHours).
		Set("next_run_at", nullableTime(s.NextRunAt)).
		Set("updated_at", s.UpdatedAt).
		Where(entsql.And(entsql.EQ("id", s.ID), entsql.EQ("facility_id", s.FacilityID), nextRun)).
		Returning(scheduleColumns...).
		Query()
	out, err := scanSchedule(st.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ExportSchedule{}, st.missOrConflict(ctx, s.FacilityID, s.ID)
	}
	if err != nil {
		return ExportSchedule{}, fmt.Errorf("update export schedule: %w", err)
	}
	return out, nil
}

// missOrConflict tells a vanished row from a lost compare-and-swap.
func (st *pgSchedules) missOrConflict(ctx context.Context, facilityID, id uuid.UUID) error {
	if _, err := st.Get(ctx, facilityID, id); err != nil {
		return err
	}
	return ErrConflict
}

func (st *pgSchedules) ListDue(ctx context.Context, now time.Time, limit int) ([]ExportSchedule, error) {
	sel := pg().Select(scheduleColumns...).
		From(pg().Table(TableExportSchedules)).
		Where(entsql.And(
			entsql.EQ("status", string(ScheduleActive)),
			entsql.NotNull("next_run_at"),
			entsql.LTE("next_run_at", now),
		)).
		OrderBy("next_run_at", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	return st.list(ctx, query, args)
}

func (st *pgSchedules) ClaimRun(ctx context.Context, id uuid.UUID, expected, next, ranAt time.Time) (bool, error) {
	query, args := pg().Update(TableExportSchedules).
		Set("next_run_at", next).
		Set("last_run_at", ranAt).
		Set("updated_at", ranAt).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(ScheduleActive)),
			entsql.EQ("next_run_at", expected),
		)).
		Query()
	res, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim export schedule run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (st *pgSchedules) TouchLastRun(ctx context.Context, facilityID, id uuid.UUID, at time.Time) error {
	query, args := pg().Update(TableExportSchedules).
		Set("last_run_at", at).
		Set("updated_at", at).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("facility_id", facilityID))).
		Query()
	res, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch export schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
