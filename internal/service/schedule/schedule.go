package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
)

const (
	maxNameLength     = 120
	maxUpdateAttempts = 3
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	Name         string              `json:"name"`
	ExportType   exportparams.Type   `json:"export_type"`
	Frequency    repo.Frequency      `json:"frequency"`
	DayOfWeek    *int                `json:"day_of_week"`
	Hour         int                 `json:"hour"`
	Minute       int                 `json:"minute"`
	Params       json.RawMessage     `json:"params"`
	ExpiresHours int                 `json:"expires_hours"`
	Status       repo.ScheduleStatus `json:"status"`
}

// UpdateRequest is a partial update; nil fields are left alone.
type UpdateRequest struct {
	Name         *string              `json:"name"`
	ExportType   *exportparams.Type   `json:"export_type"`
	Frequency    *repo.Frequency      `json:"frequency"`
	DayOfWeek    *int                 `json:"day_of_week"`
	Hour         *int                 `json:"hour"`
	Minute       *int                 `json:"minute"`
	Params       json.RawMessage      `json:"params"`
	ExpiresHours *int                 `json:"expires_hours"`
	Status       *repo.ScheduleStatus `json:"status"`
}

func (u UpdateRequest) touchesCadence() bool {
	return u.Frequency != nil || u.DayOfWeek != nil || u.Hour != nil || u.Minute != nil
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, facilityID, createdBy uuid.UUID, req CreateRequest) (repo.ExportSchedule, error)
	Get(ctx context.Context, facilityID, id uuid.UUID) (repo.ExportSchedule, error)
	List(ctx context.Context, facilityID uuid.UUID) ([]repo.ExportSchedule, error)
	Update(ctx context.Context, facilityID, id uuid.UUID, req UpdateRequest) (repo.ExportSchedule, error)
	// RunNow executes the schedule immediately. The cadence is untouched;
	// only last_run_at moves. A failed export is reported through the
	// returned log, not as an error.
	RunNow(ctx context.Context, facilityID, id, requestedBy uuid.UUID) (export.Result, error)
}

type Config struct {
	DefaultExpiresHours int
	ExecTimeout         time.Duration
}

type scheduleService struct {
	schedules repo.ScheduleStore
	exec      export.Executor
	policies  policy.Lookup
	guard     *RunGuard
	clock     clock.Clock
	cfg       Config
}

func New(schedules repo.ScheduleStore, exec export.Executor, policies policy.Lookup, guard *RunGuard, clk clock.Clock, cfg Config) Service {
	if clk == nil {
		clk = clock.System{}
	}
	if guard == nil {
		guard = NewRunGuard()
	}
	if cfg.DefaultExpiresHours == 0 {
		cfg.DefaultExpiresHours = 24
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}
	return &scheduleService{schedules: schedules, exec: exec, policies: policies, guard: guard, clock: clk, cfg: cfg}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

func (s *scheduleService) Create(ctx context.Context, facilityID, createdBy uuid.UUID, req CreateRequest) (repo.ExportSchedule, error) {
	if req.Status == "" {
		req.Status = repo.ScheduleActive
	}
	if req.ExpiresHours == 0 {
		req.ExpiresHours = s.cfg.DefaultExpiresHours
	}

	sched := repo.ExportSchedule{
		ID:           uuid.New(),
		FacilityID:   facilityID,
		Name:         strings.TrimSpace(req.Name),
		ExportType:   string(req.ExportType),
		Frequency:    req.Frequency,
		DayOfWeek:    req.DayOfWeek,
		Hour:         req.Hour,
		Minute:       req.Minute,
		Status:       req.Status,
		ExpiresHours: req.ExpiresHours,
		CreatedBy:    &createdBy,
	}
	if err := s.normalize(&sched, req.Params); err != nil {
		return repo.ExportSchedule{}, err
	}

	now := s.clock.Now()
	sched.CreatedAt, sched.UpdatedAt = now, now
	if err := s.reschedule(ctx, &sched, now); err != nil {
		return repo.ExportSchedule{}, err
	}

	created, err := s.schedules.Create(ctx, sched)
	if err != nil {
		return repo.ExportSchedule{}, fmt.Errorf("create export schedule: %w", err)
	}
	slog.InfoContext(ctx, "schedule: created",
		"schedule_id", created.ID, "facility_id", facilityID, "export_type", created.ExportType,
		"frequency", created.Frequency, "next_run_at", created.NextRunAt)
	return created, nil
}

func (s *scheduleService) Get(ctx context.Context, facilityID, id uuid.UUID) (repo.ExportSchedule, error) {
	sched, err := s.schedules.Get(ctx, facilityID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.ExportSchedule{}, ErrNotFound
	}
	return sched, err
}

func (s *scheduleService) List(ctx context.Context, facilityID uuid.UUID) ([]repo.ExportSchedule, error) {
	return s.schedules.List(ctx, facilityID)
}

// Update retries when the trigger claims an occurrence between the read and
// the write, so an edit never restores a slot that already ran.
func (s *scheduleService) Update(ctx context.Context, facilityID, id uuid.UUID, req UpdateRequest) (repo.ExportSchedule, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		sched, err := s.Get(ctx, facilityID, id)
		if err != nil {
			return repo.ExportSchedule{}, err
		}
		read := sched.NextRunAt

		if err := s.apply(ctx, &sched, req); err != nil {
			return repo.ExportSchedule{}, err
		}

		updated, err := s.schedules.Update(ctx, sched, read)
		switch {
		case errors.Is(err, repo.ErrConflict):
			slog.DebugContext(ctx, "schedule: next run moved during update, retrying",
				"schedule_id", id, "attempt", attempt+1)
			continue
		case errors.Is(err, repo.ErrNotFound):
			return repo.ExportSchedule{}, ErrNotFound
		case err != nil:
			return repo.ExportSchedule{}, fmt.Errorf("update export schedule: %w", err)
		}
		slog.InfoContext(ctx, "schedule: updated",
			"schedule_id", id, "status", updated.Status, "next_run_at", updated.NextRunAt)
		return updated, nil
	}
	return repo.ExportSchedule{}, ErrConflict
}

// apply merges req into sched and recomputes next_run_at when the cadence
// or status calls for it.
func (s *scheduleService) apply(ctx context.Context, sched *repo.ExportSchedule, req UpdateRequest) error {
	wasStatus := sched.Status

	if req.Name != nil {
		sched.Name = strings.TrimSpace(*req.Name)
	}
	params := json.RawMessage(nil)
	if req.ExportType != nil {
		sched.ExportType = string(*req.ExportType)
		// params of the old type rarely fit the new one
		params = json.RawMessage(`{}`)
	}
	if len(req.Params) > 0 {
		params = req.Params
	}
	if params == nil {
		params = sched.Params
	}
	if req.Frequency != nil {
		sched.Frequency = *req.Frequency
	}
	if req.DayOfWeek != nil {
		sched.DayOfWeek = req.DayOfWeek
	}
	if req.Hour != nil {
		sched.Hour = *req.Hour
	}
	if req.Minute != nil {
		sched.Minute = *req.Minute
	}
	if req.ExpiresHours != nil {
		sched.ExpiresHours = *req.ExpiresHours
	}
	if req.Status != nil {
		sched.Status = *req.Status
	}

	if err := s.normalize(sched, params); err != nil {
		return err
	}

	now := s.clock.Now()
	resumed := wasStatus != repo.ScheduleActive && sched.Status == repo.ScheduleActive
	if req.touchesCadence() || resumed || sched.Status == repo.SchedulePaused {
		if err := s.reschedule(ctx, sched, now); err != nil {
			return err
		}
	}
	sched.UpdatedAt = now
	return nil
}

func (s *scheduleService) RunNow(ctx context.Context, facilityID, id, requestedBy uuid.UUID) (export.Result, error) {
	sched, err := s.Get(ctx, facilityID, id)
	if err != nil {
		return export.Result{}, err
	}
	if !s.guard.tryAcquire(sched.ID) {
		return export.Result{}, ErrRunInProgress
	}
	defer s.guard.release(sched.ID)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecTimeout)
	defer cancel()

	res, execErr := s.exec.Execute(runCtx, export.Request{
		FacilityID:     sched.FacilityID,
		ExportType:     exportparams.Type(sched.ExportType),
		Params:         sched.Params,
		ExpiresInHours: sched.ExpiresHours,
		ScheduleID:     &sched.ID,
		RequestedBy:    &requestedBy,
	})

	if err := s.schedules.TouchLastRun(context.WithoutCancel(ctx), facilityID, sched.ID, s.clock.Now()); err != nil {
		slog.WarnContext(ctx, "schedule: failed to record manual run", "schedule_id", sched.ID, "error", err)
	}

	if execErr != nil && res.Log.ID == uuid.Nil {
		return export.Result{}, execErr
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// normalize validates every field and replaces params with their canonical
// form.
func (s *scheduleService) normalize(sched *repo.ExportSchedule, params json.RawMessage) error {
	if sched.Name == "" {
		return invalid("name", "is required")
	}
	if len(sched.Name) > maxNameLength {
		return invalid("name", "must be at most %d characters", maxNameLength)
	}

	switch sched.Frequency {
	case repo.FrequencyDaily:
		sched.DayOfWeek = nil
	case repo.FrequencyWeekly:
		if sched.DayOfWeek == nil {
			return invalid("day_of_week", "is required for weekly schedules")
		}
		if d := *sched.DayOfWeek; d < 0 || d > 6 {
			return invalid("day_of_week", "must be between 0 and 6")
		}
	default:
		return invalid("frequency", "must be daily or weekly")
	}
	if sched.Hour < 0 || sched.Hour > 23 {
		return invalid("hour", "must be between 0 and 23")
	}
	if sched.Minute < 0 || sched.Minute > 59 {
		return invalid("minute", "must be between 0 and 59")
	}
	if sched.ExpiresHours < token.MinExpiresHours || sched.ExpiresHours > token.MaxExpiresHours {
		return invalid("expires_hours", "must be between %d and %d", token.MinExpiresHours, token.MaxExpiresHours)
	}
	switch sched.Status {
	case repo.ScheduleActive, repo.SchedulePaused:
	default:
		return invalid("status", "must be active or paused")
	}

	t := exportparams.Type(sched.ExportType)
	if !t.Valid() {
		return invalid("export_type", "unknown export type %q", sched.ExportType)
	}
	_, canonical, err := exportparams.Resolve(t, params)
	if err != nil {
		var fe *exportparams.FieldError
		if errors.As(err, &fe) {
			return invalid("params."+fe.Field, "%s", fe.Message)
		}
		return invalid("params", "%s", err.Error())
	}
	sched.Params = canonical
	return nil
}

// reschedule sets NextRunAt from now, or clears it for paused schedules.
func (s *scheduleService) reschedule(ctx context.Context, sched *repo.ExportSchedule, now time.Time) error {
	if sched.Status == repo.SchedulePaused {
		sched.NextRunAt = nil
		return nil
	}
	pol, err := s.policies.Get(ctx, sched.FacilityID)
	if err != nil {
		return fmt.Errorf("load facility policy: %w", err)
	}
	next := NextRun(CadenceOf(*sched), now, pol.Location())
	sched.NextRunAt = &next
	return nil
}
