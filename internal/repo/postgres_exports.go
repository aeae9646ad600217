package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

var exportLogColumns = []string{
	"id", "facility_id", "schedule_id", "export_type", "params", "status", "error",
	"token_id", "row_count", "duration_ms", "created_at",
}

var exportTokenColumns = []string{
	"id", "facility_id", "export_type", "params", "secret_hash", "artifact_key",
	"schedule_id", "created_by", "created_at", "expires_at",
}

// ClampLogLimit applies the default and ceiling for log listings.
func ClampLogLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLogLimit
	case n > MaxLogLimit:
		return MaxLogLimit
	}
	return n
}

type pgExportLogs struct {
	db *sql.DB
}

func scanExportLog(r rowScanner) (ExportLog, error) {
	var (
		l          ExportLog
		scheduleID uuid.NullUUID
		tokenID    uuid.NullUUID
		params     []byte
		status     string
		errText    sql.NullString
	)
	if err := r.Scan(&l.ID, &l.FacilityID, &scheduleID, &l.ExportType, &params, &status, &errText,
		&tokenID, &l.RowCount, &l.DurationMs, &l.CreatedAt); err != nil {
		return ExportLog{}, err
	}
	l.ScheduleID = uuidPtr(scheduleID)
	l.TokenID = uuidPtr(tokenID)
	l.Params = json.RawMessage(params)
	l.Status = ExportStatus(status)
	l.Error = errText.String
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

func (s *pgExportLogs) Append(ctx context.Context, l ExportLog) (ExportLog, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query, args := pg().Insert(TableExportLogs).
		Columns(exportLogColumns...).
		Values(l.ID, l.FacilityID, nullableUUID(l.ScheduleID), l.ExportType, []byte(l.Params), string(l.Status),
			nullableString(l.Error), nullableUUID(l.TokenID), l.RowCount, l.DurationMs, l.CreatedAt).
		Returning(exportLogColumns...).
		Query()
	out, err := scanExportLog(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ExportLog{}, fmt.Errorf("insert export log: %w", err)
	}
	return out, nil
}

func (s *pgExportLogs) List(ctx context.Context, f ExportLogFilter) ([]ExportLog, error) {
	preds := []*entsql.Predicate{entsql.EQ("facility_id", f.FacilityID)}
	if f.ScheduleID != nil {
		preds = append(preds, entsql.EQ("schedule_id", *f.ScheduleID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	if f.ExportType != "" {
		preds = append(preds, entsql.EQ("export_type", f.ExportType))
	}
	query, args := pg().Select(exportLogColumns...).
		From(pg().Table(TableExportLogs)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(ClampLogLimit(f.Limit)).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list export logs: %w", err)
	}
	defer rows.Close()

	out := []ExportLog{}
	for rows.Next() {
		l, err := scanExportLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type pgTokens struct {
	db *sql.DB
}

func scanExportToken(r rowScanner) (ExportToken, error) {
	var (
		t          ExportToken
		params     []byte
		artifact   sql.NullString
		scheduleID uuid.NullUUID
		createdBy  uuid.NullUUID
	)
	if err := r.Scan(&t.ID, &t.FacilityID, &t.ExportType, &params, &t.SecretHash, &artifact,
		&scheduleID, &createdBy, &t.CreatedAt, &t.ExpiresAt); err != nil {
		return ExportToken{}, err
	}
	t.Params = json.RawMessage(params)
	t.ArtifactKey = artifact.String
	t.ScheduleID = uuidPtr(scheduleID)
	t.CreatedBy = uuidPtr(createdBy)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}

func (s *pgTokens) Create(ctx context.Context, t ExportToken) (ExportToken, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query, args := pg().Insert(TableExportTokens).
		Columns(exportTokenColumns...).
		Values(t.ID, t.FacilityID, t.ExportType, []byte(t.Params), t.SecretHash, nullableString(t.ArtifactKey),
			nullableUUID(t.ScheduleID), nullableUUID(t.CreatedBy), t.CreatedAt, t.ExpiresAt).
		Returning(exportTokenColumns...).
		Query()
	out, err := scanExportToken(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ExportToken{}, fmt.Errorf("insert export token: %w", err)
	}
	return out, nil
}

func (s *pgTokens) GetByHash(ctx context.Context, secretHash string) (ExportToken, error) {
	query, args := pg().Select(exportTokenColumns...).
		From(pg().Table(TableExportTokens)).
		Where(entsql.EQ("secret_hash", secretHash)).
		Query()
	t, err := scanExportToken(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ExportToken{}, notFound(err)
	}
	return t, nil
}

func (s *pgTokens) Delete(ctx context.Context, facilityID, id uuid.UUID) error {
	query, args := pg().Delete(TableExportTokens).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("facility_id", facilityID))).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete export token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query, args := pg().Delete(TableExportTokens).
		Where(entsql.LTE("expires_at", before)).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge export tokens: %w", err)
	}
	return res.RowsAffected()
}
