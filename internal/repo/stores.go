package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssessmentFilter narrows an assessment listing. Empty slices mean "any".
type AssessmentFilter struct {
	FacilityID uuid.UUID
	Statuses   []AssessmentStatus
	RiskTiers  []RiskTier
	UnitIDs    []uuid.UUID
	AssignedTo *uuid.UUID
	Unassigned bool
	From       *time.Time // assessed_at >= From
	To         *time.Time // assessed_at < To
}

type AssessmentStore interface {
	Create(ctx context.Context, a Assessment) (Assessment, error)
	Get(ctx context.Context, facilityID, id uuid.UUID) (Assessment, error)
	List(ctx context.Context, f AssessmentFilter) ([]Assessment, error)

	// Claim sets assigned_to only while it is null. ErrConflict otherwise.
	Claim(ctx context.Context, facilityID, id, assignee uuid.UUID, now time.Time) (Assessment, error)
	// Unassign clears assigned_to only while it still equals expected.
	Unassign(ctx context.Context, facilityID, id, expected uuid.UUID, now time.Time) (Assessment, error)
	// Transition moves status from -> to only while status still equals from.
	// A non-nil claimant is written to assigned_to if it is null.
	Transition(ctx context.Context, facilityID, id uuid.UUID, from, to AssessmentStatus, claimant *uuid.UUID, now time.Time) (Assessment, error)
	// ApplyScore records the risk tier and promotes draft to needs_review.
	ApplyScore(ctx context.Context, facilityID, id uuid.UUID, tier RiskTier, now time.Time) (Assessment, error)
}

type FallEventFilter struct {
	FacilityID uuid.UUID
	UnitIDs    []uuid.UUID
	Open       *bool
	AssignedTo *uuid.UUID
	Unassigned bool
	From       *time.Time // occurred_at >= From
	To         *time.Time // occurred_at < To
}

type FallEventStore interface {
	Create(ctx context.Context, e FallEvent) (FallEvent, error)
	Get(ctx context.Context, facilityID, id uuid.UUID) (FallEvent, error)
	List(ctx context.Context, f FallEventFilter) ([]FallEvent, error)
	Checks(ctx context.Context, eventID uuid.UUID) ([]FallCheck, error)
	// SetCheck upserts one check and recomputes completed_checks atomically.
	SetCheck(ctx context.Context, facilityID uuid.UUID, check FallCheck) (FallEvent, FallCheck, error)
}

type UnitStore interface {
	FacilityOf(ctx context.Context, unitID uuid.UUID) (uuid.UUID, error)
}

type ResidentQuery struct {
	FacilityID uuid.UUID
	UnitIDs    []uuid.UUID
	Status     string
}

type ResidentReader interface {
	ListResidents(ctx context.Context, q ResidentQuery) ([]Resident, error)
}

type AuditQuery struct {
	FacilityID uuid.UUID
	From       *time.Time
	To         *time.Time
	Actions    []string
	ActorIDs   []uuid.UUID
}

type AuditReader interface {
	ListAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
}

type ScheduleStore interface {
	Create(ctx context.Context, s ExportSchedule) (ExportSchedule, error)
	Get(ctx context.Context, facilityID, id uuid.UUID) (ExportSchedule, error)
	List(ctx context.Context, facilityID uuid.UUID) ([]ExportSchedule, error)
	// Update writes every mutable field of s while next_run_at still equals
	// expectedNextRun. A trigger claim in between yields ErrConflict.
	Update(ctx context.Context, s ExportSchedule, expectedNextRun *time.Time) (ExportSchedule, error)
	// ListDue returns active schedules with next_run_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]ExportSchedule, error)
	// ClaimRun advances next_run_at only while it still equals expected.
	// It reports whether this caller won the occurrence.
	ClaimRun(ctx context.Context, id uuid.UUID, expected, next, ranAt time.Time) (bool, error)
	TouchLastRun(ctx context.Context, facilityID, id uuid.UUID, at time.Time) error
}

type ExportLogFilter struct {
	FacilityID uuid.UUID
	ScheduleID *uuid.UUID
	Status     ExportStatus
	ExportType string
	Limit      int
}

type ExportLogStore interface {
	Append(ctx context.Context, l ExportLog) (ExportLog, error)
	List(ctx context.Context, f ExportLogFilter) ([]ExportLog, error)
}

type TokenStore interface {
	Create(ctx context.Context, t ExportToken) (ExportToken, error)
	GetByHash(ctx context.Context, secretHash string) (ExportToken, error)
	Delete(ctx context.Context, facilityID, id uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
