package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/constants"
	"github.com/Alijeyrad/careflow_backend/pkg/observability"
)

// Locker is the distributed lock used to elect one evaluating instance per
// tick. *redis.Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type TriggerConfig struct {
	PollInterval  time.Duration
	ExecTimeout   time.Duration
	MaxConcurrent int64
	BatchSize     int
	LockTTL       time.Duration
}

func (c *TriggerConfig) withDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
}

// Trigger polls for due schedules and hands each occurrence to the
// executor. Claiming an occurrence is a conditional update on next_run_at,
// so concurrent instances never run the same slot twice even without the
// leader lock.
type Trigger struct {
	schedules repo.ScheduleStore
	logs      repo.ExportLogStore
	exec      export.Executor
	policies  policy.Lookup
	tokens    token.Service
	locker    Locker
	guard     *RunGuard
	clock     clock.Clock
	cfg       TriggerConfig

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	ticks      metric.Int64Counter
	dispatched metric.Int64Counter
}

// NewTrigger builds a trigger. locker and tokens may be nil; without tokens
// expired links are not purged by this process.
func NewTrigger(
	schedules repo.ScheduleStore,
	logs repo.ExportLogStore,
	exec export.Executor,
	policies policy.Lookup,
	tokens token.Service,
	locker Locker,
	guard *RunGuard,
	clk clock.Clock,
	cfg TriggerConfig,
) *Trigger {
	cfg.withDefaults()
	if clk == nil {
		clk = clock.System{}
	}
	if guard == nil {
		guard = NewRunGuard()
	}

	meter := otel.Meter(observability.Scope)
	ticks, _ := meter.Int64Counter("careflow_trigger_ticks_total",
		metric.WithDescription("Schedule trigger evaluations"))
	dispatched, _ := meter.Int64Counter("careflow_trigger_dispatched_total",
		metric.WithDescription("Schedule occurrences handed to the executor"))

	return &Trigger{
		schedules:  schedules,
		logs:       logs,
		exec:       exec,
		policies:   policies,
		tokens:     tokens,
		locker:     locker,
		guard:      guard,
		clock:      clk,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		ticks:      ticks,
		dispatched: dispatched,
	}
}

// Run evaluates on every poll interval until ctx is done. It does not wait
// for in-flight executions; call Wait for that.
func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("trigger: started", "poll_interval", t.cfg.PollInterval, "max_concurrent", t.cfg.MaxConcurrent)
	for {
		t.Tick(ctx)
		select {
		case <-ctx.Done():
			slog.Info("trigger: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation and returns how many occurrences it dispatched.
// Errors are logged; a bad schedule never stops the loop.
func (t *Trigger) Tick(ctx context.Context) int {
	t.ticks.Add(ctx, 1)

	if t.locker != nil {
		release, ok, err := t.locker.TryLock(ctx, constants.RedisTriggerLock, t.cfg.LockTTL)
		if err != nil {
			slog.WarnContext(ctx, "trigger: leader lock unavailable", "error", err)
			return 0
		}
		if !ok {
			slog.DebugContext(ctx, "trigger: another instance holds the leader lock")
			return 0
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "trigger: release leader lock", "error", err)
			}
		}()
	}

	now := t.clock.Now()
	due, err := t.schedules.ListDue(ctx, now, t.cfg.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "trigger: list due schedules", "error", err)
		return 0
	}

	n := 0
	for _, s := range due {
		if t.claim(ctx, s, now) {
			t.dispatch(ctx, s)
			n++
		}
	}
	if n > 0 {
		t.dispatched.Add(ctx, int64(n))
	}

	t.purgeTokens(ctx)
	return n
}

// claim advances next_run_at past now. Only the caller that moves it from
// the value it read wins the occurrence.
func (t *Trigger) claim(ctx context.Context, s repo.ExportSchedule, now time.Time) bool {
	if s.NextRunAt == nil {
		return false
	}
	pol, err := t.policies.Get(ctx, s.FacilityID)
	if err != nil {
		slog.WarnContext(ctx, "trigger: policy lookup failed, using UTC", "facility_id", s.FacilityID, "error", err)
		pol = policy.Defaults()
	}
	next := NextRun(CadenceOf(s), now, pol.Location())

	won, err := t.schedules.ClaimRun(ctx, s.ID, *s.NextRunAt, next, now)
	if err != nil {
		slog.ErrorContext(ctx, "trigger: claim schedule", "schedule_id", s.ID, "error", err)
		return false
	}
	if !won {
		slog.DebugContext(ctx, "trigger: occurrence already claimed", "schedule_id", s.ID)
		return false
	}

	slog.InfoContext(ctx, "trigger: schedule due",
		"schedule_id", s.ID, "facility_id", s.FacilityID, "scheduled_for", *s.NextRunAt, "next_run_at", next)
	return true
}

func (t *Trigger) dispatch(ctx context.Context, s repo.ExportSchedule) {
	base := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		if err := t.sem.Acquire(base, 1); err != nil {
			return
		}
		defer t.sem.Release(1)

		if !t.guard.tryAcquire(s.ID) {
			slog.WarnContext(base, "trigger: schedule already running, occurrence skipped", "schedule_id", s.ID)
			t.recordSkipped(base, s)
			return
		}
		defer t.guard.release(s.ID)

		runCtx, cancel := context.WithTimeout(base, t.cfg.ExecTimeout)
		defer cancel()

		// failures are already logged and recorded by the executor
		_, _ = t.exec.Execute(runCtx, export.Request{
			FacilityID:     s.FacilityID,
			ExportType:     exportparams.Type(s.ExportType),
			Params:         s.Params,
			ExpiresInHours: s.ExpiresHours,
			ScheduleID:     &s.ID,
			RequestedBy:    s.CreatedBy,
		})
	}()
}

// recordSkipped leaves a failed export log for an occurrence that was claimed
// but not executed, so admins see it in the export history.
func (t *Trigger) recordSkipped(ctx context.Context, s repo.ExportSchedule) {
	_, err := t.logs.Append(ctx, repo.ExportLog{
		FacilityID: s.FacilityID,
		ScheduleID: &s.ID,
		ExportType: s.ExportType,
		Params:     s.Params,
		Status:     repo.ExportFailed,
		Error:      ErrRunInProgress.Error(),
		CreatedAt:  t.clock.Now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "trigger: record skipped occurrence", "schedule_id", s.ID, "error", err)
	}
}

func (t *Trigger) purgeTokens(ctx context.Context) {
	if t.tokens == nil {
		return
	}
	n, err := t.tokens.PurgeExpired(ctx)
	if err != nil {
		slog.WarnContext(ctx, "trigger: purge expired tokens", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "trigger: purged expired tokens", "count", n)
	}
}

// Wait blocks until every dispatched execution has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
