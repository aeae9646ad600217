package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/sla"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ItemType string

const (
	ItemAssessment ItemType = "assessment"
	ItemFallEvent  ItemType = "fall_event"
)

// Fall follow-ups have no explicit status column; these are derived.
const (
	FallStatusOpen     = "open"
	FallStatusComplete = "complete"
)

// WorkItem is the queue row shared by assessments and fall follow-ups.
type WorkItem struct {
	ItemType   ItemType   `json:"item_type"`
	ID         uuid.UUID  `json:"id"`
	FacilityID uuid.UUID  `json:"facility_id"`
	ResidentID uuid.UUID  `json:"resident_id"`
	UnitID     *uuid.UUID `json:"unit_id,omitempty"`
	Status     string     `json:"status"`
	DueAt      time.Time  `json:"due_at"`
	SLAStatus  sla.Status `json:"sla_status,omitempty"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// assessment only
	RiskTier *repo.RiskTier `json:"risk_tier,omitempty"`

	// fall follow-up only
	Severity        string     `json:"severity,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
	RequiredChecks  int        `json:"required_checks,omitempty"`
	CompletedChecks int        `json:"completed_checks,omitempty"`
}

const (
	AssignedAll        = "all"
	AssignedMe         = "me"
	AssignedUnassigned = "unassigned"
)

const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
	StatusClosed    = "closed"
	StatusAll       = "all"
)

// QueueFilter mirrors the queue query string. Status accepts open (the
// default), completed/closed, all, or a single assessment status, which
// limits the queue to assessments.
type QueueFilter struct {
	Status   string
	Assigned string
	UnitID   *uuid.UUID
}

// Actor is the authenticated caller acting inside one facility.
type Actor struct {
	UserID     uuid.UUID
	FacilityID uuid.UUID
}

type CheckResult struct {
	Item  WorkItem       `json:"item"`
	Check repo.FallCheck `json:"check"`
}

// Directory answers facility membership questions.
type Directory interface {
	IsMember(ctx context.Context, facilityID, userID uuid.UUID) (bool, error)
	IsAdmin(ctx context.Context, facilityID, userID uuid.UUID) (bool, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Queue
	ListQueue(ctx context.Context, actor Actor, f QueueFilter) ([]WorkItem, error)
	GetAssessment(ctx context.Context, actor Actor, id uuid.UUID) (WorkItem, error)

	// Assignment
	Claim(ctx context.Context, actor Actor, id, assignee uuid.UUID) (WorkItem, error)
	Unassign(ctx context.Context, actor Actor, id uuid.UUID) (WorkItem, error)

	// Status
	Transition(ctx context.Context, actor Actor, id uuid.UUID, next repo.AssessmentStatus) (WorkItem, error)

	// Fall follow-up checklist
	ToggleCheck(ctx context.Context, actor Actor, eventID uuid.UUID, checkType string, completed bool) (CheckResult, error)

	// Scoring completion from the external model runner
	ApplyScore(ctx context.Context, facilityID, assessmentID uuid.UUID, tier repo.RiskTier) (WorkItem, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type workflowService struct {
	db       *repo.Client
	policies policy.Lookup
	dir      Directory
	clock    clock.Clock
}

func New(db *repo.Client, policies policy.Lookup, dir Directory, clk clock.Clock) Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &workflowService{db: db, policies: policies, dir: dir, clock: clk}
}

// ---------------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------------

func (s *workflowService) ListQueue(ctx context.Context, actor Actor, f QueueFilter) ([]WorkItem, error) {
	if f.UnitID != nil {
		facilityID, err := s.db.Units.FacilityOf(ctx, *f.UnitID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		if err != nil || facilityID != actor.FacilityID {
			return nil, ErrForbidden
		}
	}

	af := repo.AssessmentFilter{FacilityID: actor.FacilityID}
	ff := repo.FallEventFilter{FacilityID: actor.FacilityID}
	if f.UnitID != nil {
		af.UnitIDs = []uuid.UUID{*f.UnitID}
		ff.UnitIDs = []uuid.UUID{*f.UnitID}
	}

	switch f.Assigned {
	case "", AssignedAll:
	case AssignedMe:
		af.AssignedTo, ff.AssignedTo = &actor.UserID, &actor.UserID
	case AssignedUnassigned:
		af.Unassigned, ff.Unassigned = true, true
	default:
		return nil, fmt.Errorf("%w: assigned=%q", ErrInvalidFilter, f.Assigned)
	}

	includeFalls := true
	switch f.Status {
	case "", StatusOpen:
		af.Statuses = []repo.AssessmentStatus{repo.AssessmentNeedsReview, repo.AssessmentInReview}
		ff.Open = boolPtr(true)
	case StatusCompleted, StatusClosed:
		af.Statuses = []repo.AssessmentStatus{repo.AssessmentCompleted}
		ff.Open = boolPtr(false)
	case StatusAll:
	default:
		st := repo.AssessmentStatus(f.Status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
		}
		af.Statuses = []repo.AssessmentStatus{st}
		includeFalls = false
	}

	pol, err := s.policies.Get(ctx, actor.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("load facility policy: %w", err)
	}
	now := s.clock.Now()

	assessments, err := s.db.Assessments.List(ctx, af)
	if err != nil {
		return nil, err
	}
	items := make([]WorkItem, 0, len(assessments))
	for _, a := range assessments {
		items = append(items, assessmentItem(a, pol, now))
	}

	if includeFalls {
		falls, err := s.db.FallEvents.List(ctx, ff)
		if err != nil {
			return nil, err
		}
		for _, e := range falls {
			items = append(items, fallItem(e, pol, now))
		}
	}

	SortQueue(items)
	return items, nil
}

// SortQueue orders overdue before due-soon before on-track before unbadged,
// then by earliest due time.
func SortQueue(items []WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := sla.Rank(items[i].SLAStatus), sla.Rank(items[j].SLAStatus)
		if ri != rj {
			return ri < rj
		}
		if !items[i].DueAt.Equal(items[j].DueAt) {
			return items[i].DueAt.Before(items[j].DueAt)
		}
		return bytes.Compare(items[i].ID[:], items[j].ID[:]) < 0
	})
}

func (s *workflowService) GetAssessment(ctx context.Context, actor Actor, id uuid.UUID) (WorkItem, error) {
	a, err := s.loadAssessment(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	return s.present(ctx, a)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (s *workflowService) Claim(ctx context.Context, actor Actor, id, assignee uuid.UUID) (WorkItem, error) {
	if _, err := s.loadAssessment(ctx, actor, id); err != nil {
		return WorkItem{}, err
	}

	if assignee != actor.UserID {
		admin, err := s.dir.IsAdmin(ctx, actor.FacilityID, actor.UserID)
		if err != nil {
			return WorkItem{}, err
		}
		if !admin {
			return WorkItem{}, ErrForbidden
		}
		member, err := s.dir.IsMember(ctx, actor.FacilityID, assignee)
		if err != nil {
			return WorkItem{}, err
		}
		if !member {
			return WorkItem{}, ErrAssigneeNotMember
		}
	}

	a, err := s.db.Assessments.Claim(ctx, actor.FacilityID, id, assignee, s.clock.Now())
	if errors.Is(err, repo.ErrConflict) {
		return WorkItem{}, ErrAlreadyAssigned
	}
	if err != nil {
		return WorkItem{}, err
	}

	slog.InfoContext(ctx, "workflow: assessment claimed",
		"assessment_id", id, "assignee", assignee, "by", actor.UserID)
	return s.present(ctx, a)
}

func (s *workflowService) Unassign(ctx context.Context, actor Actor, id uuid.UUID) (WorkItem, error) {
	a, err := s.loadAssessment(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}
	if a.AssignedTo == nil {
		return s.present(ctx, a)
	}

	if *a.AssignedTo != actor.UserID {
		admin, err := s.dir.IsAdmin(ctx, actor.FacilityID, actor.UserID)
		if err != nil {
			return WorkItem{}, err
		}
		if !admin {
			return WorkItem{}, ErrForbidden
		}
	}

	updated, err := s.db.Assessments.Unassign(ctx, actor.FacilityID, id, *a.AssignedTo, s.clock.Now())
	if errors.Is(err, repo.ErrConflict) {
		return WorkItem{}, ErrConflict
	}
	if err != nil {
		return WorkItem{}, err
	}

	slog.InfoContext(ctx, "workflow: assessment unassigned",
		"assessment_id", id, "previous", *a.AssignedTo, "by", actor.UserID)
	return s.present(ctx, updated)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func (s *workflowService) Transition(ctx context.Context, actor Actor, id uuid.UUID, next repo.AssessmentStatus) (WorkItem, error) {
	if !next.Valid() {
		return WorkItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	a, err := s.loadAssessment(ctx, actor, id)
	if err != nil {
		return WorkItem{}, err
	}

	if a.Status == repo.AssessmentCompleted && next == repo.AssessmentCompleted {
		return s.present(ctx, a)
	}

	if a.AssignedTo != nil && *a.AssignedTo != actor.UserID {
		admin, err := s.dir.IsAdmin(ctx, actor.FacilityID, actor.UserID)
		if err != nil {
			return WorkItem{}, err
		}
		if !admin {
			return WorkItem{}, ErrForbidden
		}
	}

	if !canTransition(a.Status, next) {
		return WorkItem{}, &TransitionError{From: a.Status, To: next, Allowed: AllowedNext(a.Status)}
	}

	var claimant *uuid.UUID
	if next == repo.AssessmentInReview {
		claimant = &actor.UserID
	}

	updated, err := s.db.Assessments.Transition(ctx, actor.FacilityID, id, a.Status, next, claimant, s.clock.Now())
	if errors.Is(err, repo.ErrConflict) {
		current, lerr := s.db.Assessments.Get(ctx, actor.FacilityID, id)
		if lerr != nil {
			return WorkItem{}, ErrConflict
		}
		if current.Status == repo.AssessmentCompleted && next == repo.AssessmentCompleted {
			return s.present(ctx, current)
		}
		return WorkItem{}, ErrConflict
	}
	if err != nil {
		return WorkItem{}, err
	}

	slog.InfoContext(ctx, "workflow: assessment transitioned",
		"assessment_id", id, "from", a.Status, "to", next, "by", actor.UserID)
	return s.present(ctx, updated)
}

// ---------------------------------------------------------------------------
// Fall follow-up checklist
// ---------------------------------------------------------------------------

func (s *workflowService) ToggleCheck(ctx context.Context, actor Actor, eventID uuid.UUID, checkType string, completed bool) (CheckResult, error) {
	if !IsKnownCheck(checkType) {
		return CheckResult{}, fmt.Errorf("%w: %q", ErrUnknownCheck, checkType)
	}

	now := s.clock.Now()
	check := repo.FallCheck{
		FallEventID: eventID,
		CheckType:   checkType,
		Completed:   completed,
		UpdatedAt:   now,
	}
	if completed {
		check.CompletedBy = &actor.UserID
		check.CompletedAt = &now
	}

	event, saved, err := s.db.FallEvents.SetCheck(ctx, actor.FacilityID, check)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckResult{}, ErrNotFound
	}
	if err != nil {
		return CheckResult{}, err
	}

	pol, err := s.policies.Get(ctx, actor.FacilityID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("load facility policy: %w", err)
	}

	slog.InfoContext(ctx, "workflow: fall check toggled",
		"fall_event_id", eventID, "check_type", checkType, "completed", completed,
		"completed_checks", event.CompletedChecks, "required_checks", event.RequiredChecks)
	return CheckResult{Item: fallItem(event, pol, now), Check: saved}, nil
}

// ---------------------------------------------------------------------------
// Scoring
// ---------------------------------------------------------------------------

func (s *workflowService) ApplyScore(ctx context.Context, facilityID, assessmentID uuid.UUID, tier repo.RiskTier) (WorkItem, error) {
	if !tier.Valid() {
		return WorkItem{}, fmt.Errorf("%w: %q", ErrInvalidRiskTier, tier)
	}
	a, err := s.db.Assessments.ApplyScore(ctx, facilityID, assessmentID, tier, s.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return WorkItem{}, ErrNotFound
	}
	if err != nil {
		return WorkItem{}, err
	}
	return s.present(ctx, a)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// loadAssessment hides assessments of other facilities behind ErrNotFound.
func (s *workflowService) loadAssessment(ctx context.Context, actor Actor, id uuid.UUID) (repo.Assessment, error) {
	a, err := s.db.Assessments.Get(ctx, actor.FacilityID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Assessment{}, ErrNotFound
	}
	return a, err
}

func (s *workflowService) present(ctx context.Context, a repo.Assessment) (WorkItem, error) {
	pol, err := s.policies.Get(ctx, a.FacilityID)
	if err != nil {
		return WorkItem{}, fmt.Errorf("load facility policy: %w", err)
	}
	return assessmentItem(a, pol, s.clock.Now()), nil
}

func assessmentItem(a repo.Assessment, pol policy.Policy, now time.Time) WorkItem {
	due := sla.ReportDue(a.AssessedAt, pol.ReportTurnaroundHours)
	status := sla.None
	if a.Status != repo.AssessmentCompleted {
		status = sla.Classify(due, now, pol.WarningWindow())
	}
	return WorkItem{
		ItemType:   ItemAssessment,
		ID:         a.ID,
		FacilityID: a.FacilityID,
		ResidentID: a.ResidentID,
		UnitID:     a.UnitID,
		Status:     string(a.Status),
		DueAt:      due,
		SLAStatus:  status,
		AssignedTo: a.AssignedTo,
		UpdatedAt:  a.UpdatedAt,
		RiskTier:   a.RiskTier,
	}
}

func fallItem(e repo.FallEvent, pol policy.Policy, now time.Time) WorkItem {
	due := sla.FollowupDue(e.OccurredAt, pol.FollowupDays)
	status, slaStatus := FallStatusComplete, sla.None
	if e.Open() {
		status = FallStatusOpen
		slaStatus = sla.Classify(due, now, pol.WarningWindow())
	}
	occurred := e.OccurredAt
	return WorkItem{
		ItemType:        ItemFallEvent,
		ID:              e.ID,
		FacilityID:      e.FacilityID,
		ResidentID:      e.ResidentID,
		UnitID:          e.UnitID,
		Status:          status,
		DueAt:           due,
		SLAStatus:       slaStatus,
		AssignedTo:      e.AssignedTo,
		UpdatedAt:       e.UpdatedAt,
		Severity:        e.Severity,
		OccurredAt:      &occurred,
		RequiredChecks:  e.RequiredChecks,
		CompletedChecks: e.CompletedChecks,
	}
}

func boolPtr(b bool) *bool { return &b }
