package repo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AssessmentStatus string

const (
	AssessmentDraft       AssessmentStatus = "draft"
	AssessmentNeedsReview AssessmentStatus = "needs_review"
	AssessmentInReview    AssessmentStatus = "in_review"
	AssessmentCompleted   AssessmentStatus = "completed"
)

func (s AssessmentStatus) Valid() bool {
	switch s {
	case AssessmentDraft, AssessmentNeedsReview, AssessmentInReview, AssessmentCompleted:
		return true
	}
	return false
}

type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskModerate RiskTier = "moderate"
	RiskHigh     RiskTier = "high"
)

func (t RiskTier) Valid() bool {
	return t == RiskLow || t == RiskModerate || t == RiskHigh
}

// Assessment is a scheduled mobility assessment awaiting clinical review.
type Assessment struct {
	ID          uuid.UUID        `json:"id"`
	FacilityID  uuid.UUID        `json:"facility_id"`
	ResidentID  uuid.UUID        `json:"resident_id"`
	UnitID      *uuid.UUID       `json:"unit_id,omitempty"`
	Status      AssessmentStatus `json:"status"`
	RiskTier    *RiskTier        `json:"risk_tier,omitempty"`
	AssignedTo  *uuid.UUID       `json:"assigned_to,omitempty"`
	AssessedAt  time.Time        `json:"assessed_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FallEvent is a logged fall incident with its follow-up checklist counters.
type FallEvent struct {
	ID              uuid.UUID  `json:"id"`
	FacilityID      uuid.UUID  `json:"facility_id"`
	ResidentID      uuid.UUID  `json:"resident_id"`
	UnitID          *uuid.UUID `json:"unit_id,omitempty"`
	Severity        string     `json:"severity"`
	OccurredAt      time.Time  `json:"occurred_at"`
	AssignedTo      *uuid.UUID `json:"assigned_to,omitempty"`
	RequiredChecks  int        `json:"required_checks"`
	CompletedChecks int        `json:"completed_checks"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (f FallEvent) Open() bool { return f.CompletedChecks < f.RequiredChecks }

type FallCheck struct {
	ID          uuid.UUID  `json:"id"`
	FallEventID uuid.UUID  `json:"fall_event_id"`
	CheckType   string     `json:"check_type"`
	Completed   bool       `json:"completed"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Unit struct {
	ID         uuid.UUID `json:"id"`
	FacilityID uuid.UUID `json:"facility_id"`
	Name       string    `json:"name"`
}

type Resident struct {
	ID         uuid.UUID  `json:"id"`
	FacilityID uuid.UUID  `json:"facility_id"`
	UnitID     *uuid.UUID `json:"unit_id,omitempty"`
	FullName   string     `json:"full_name"`
	Status     string     `json:"status"`
	AdmittedAt time.Time  `json:"admitted_at"`
}

type AuditEvent struct {
	ID         uuid.UUID  `json:"id"`
	FacilityID uuid.UUID  `json:"facility_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ScheduleStatus string

const (
	ScheduleActive ScheduleStatus = "active"
	SchedulePaused ScheduleStatus = "paused"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// ExportSchedule is a recurring export definition. NextRunAt is nil only
// while the schedule is paused.
type ExportSchedule struct {
	ID           uuid.UUID       `json:"id"`
	FacilityID   uuid.UUID       `json:"facility_id"`
	Name         string          `json:"name"`
	ExportType   string          `json:"export_type"`
	Frequency    Frequency       `json:"frequency"`
	DayOfWeek    *int            `json:"day_of_week,omitempty"`
	Hour         int             `json:"hour"`
	Minute       int             `json:"minute"`
	Status       ScheduleStatus  `json:"status"`
	Params       json.RawMessage `json:"params"`
	ExpiresHours int             `json:"expires_hours"`
	LastRunAt    *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt    *time.Time      `json:"next_run_at,omitempty"`
	CreatedBy    *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ExportStatus string

const (
	ExportSuccess ExportStatus = "success"
	ExportFailed  ExportStatus = "failed"
)

// ExportLog is an append-only record of one export occurrence.
type ExportLog struct {
	ID         uuid.UUID       `json:"id"`
	FacilityID uuid.UUID       `json:"facility_id"`
	ScheduleID *uuid.UUID      `json:"schedule_id,omitempty"`
	ExportType string          `json:"export_type"`
	Params     json.RawMessage `json:"params"`
	Status     ExportStatus    `json:"status"`
	Error      string          `json:"error,omitempty"`
	TokenID    *uuid.UUID      `json:"token_id,omitempty"`
	RowCount   int             `json:"row_count"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExportToken grants download access until ExpiresAt. Only the hash of the
// bearer secret is stored. ArtifactKey is empty for query-bound tokens,
// which render on download.
type ExportToken struct {
	ID          uuid.UUID       `json:"id"`
	FacilityID  uuid.UUID       `json:"facility_id"`
	ExportType  string          `json:"export_type"`
	Params      json.RawMessage `json:"params"`
	SecretHash  string          `json:"-"`
	ArtifactKey string          `json:"artifact_key,omitempty"`
	ScheduleID  *uuid.UUID      `json:"schedule_id,omitempty"`
	CreatedBy   *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}
