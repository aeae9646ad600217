// Package repo persists the review queue and the export scheduler.
// Postgres stores are built with ent's SQL builder on top of lib/pq; the
// memory stores back the dev driver and tests.
package repo

import (
	"database/sql"
	"errors"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("repo: not found")
	// ErrConflict reports a lost compare-and-swap.
	ErrConflict = errors.New("repo: conflict")
)

// Client aggregates every store the services need.
type Client struct {
	Assessments AssessmentStore
	FallEvents  FallEventStore
	Units       UnitStore
	Residents   ResidentReader
	Audit       AuditReader
	Schedules   ScheduleStore
	ExportLogs  ExportLogStore
	Tokens      TokenStore

	Schema *Schema

	memory *MemoryStore
	close  func() error
}

// NewClient builds Postgres-backed stores on an open ent driver.
func NewClient(drv *entsql.Driver) *Client {
	db := drv.DB()
	units := &pgUnits{db: db}
	return &Client{
		Assessments: &pgAssessments{db: db},
		FallEvents:  &pgFallEvents{db: db},
		Units:       units,
		Residents:   units,
		Audit:       units,
		Schedules:   &pgSchedules{db: db},
		ExportLogs:  &pgExportLogs{db: db},
		Tokens:      &pgTokens{db: db},
		Schema:      &Schema{drv: drv},
		close:       drv.Close,
	}
}

// NewMemoryClient builds process-local stores.
func NewMemoryClient() *Client {
	m := NewMemoryStore()
	return &Client{
		Assessments: &memAssessments{m},
		FallEvents:  &memFallEvents{m},
		Units:       m,
		Residents:   m,
		Audit:       m,
		Schedules:   &memSchedules{m},
		ExportLogs:  &memExportLogs{m},
		Tokens:      &memTokens{m},
		Schema:      &Schema{},
		memory:      m,
	}
}

// Memory returns the backing store of a memory client, or nil.
func (c *Client) Memory() *MemoryStore { return c.memory }

func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func pg() *entsql.DialectBuilder { return entsql.Dialect(dialect.Postgres) }

type rowScanner interface {
	Scan(dest ...any) error
}

func nullableUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return *u
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	u := n.UUID
	return &u
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func uuidArgs(ids []uuid.UUID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func stringArgs[S ~string](vals []S) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
