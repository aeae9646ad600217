package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/constants"
	redispkg "github.com/Alijeyrad/careflow_backend/pkg/redis"
	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

// interleavedStore runs before once, just ahead of the first Update write.
type interleavedStore struct {
	repo.ScheduleStore
	before func()
}

func (s *interleavedStore) Update(ctx context.Context, sched repo.ExportSchedule, expectedNextRun *time.Time) (repo.ExportSchedule, error) {
	if fn := s.before; fn != nil {
		s.before = nil
		fn()
	}
	return s.ScheduleStore.Update(ctx, sched, expectedNextRun)
}

// conflictingStore loses every Update.
type conflictingStore struct {
	repo.ScheduleStore
	attempts int
}

func (s *conflictingStore) Update(context.Context, repo.ExportSchedule, *time.Time) (repo.ExportSchedule, error) {
	s.attempts++
	return repo.ExportSchedule{}, repo.ErrConflict
}

func newTrigger(f *svcFixture, locker Locker, tokens token.Service) *Trigger {
	return NewTrigger(f.db.Schedules, f.db.ExportLogs, f.exec, policy.NewStaticLookup(policy.Defaults(), nil), tokens, locker, f.guard, f.clk,
		TriggerConfig{ExecTimeout: time.Second, MaxConcurrent: 2})
}

func TestTrigger_MissedTicksRunOnce(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	req := weeklyMonday()
	req.Frequency = repo.FrequencyDaily
	s, err := f.svc.Create(ctx, f.facility, f.admin, req)
	require.NoError(t, err)
	first := *s.NextRunAt // Wed 09:00

	// three daily slots pass with no evaluation
	f.clk.Set(first.AddDate(0, 0, 2).Add(30 * time.Minute))
	trig := newTrigger(f, nil, nil)

	assert.Equal(t, 1, trig.Tick(ctx))
	trig.Wait()
	assert.Equal(t, 1, f.exec.count())

	got, err := f.svc.Get(ctx, f.facility, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.AddDate(0, 0, 3), *got.NextRunAt)
	assert.True(t, got.NextRunAt.After(f.clk.Now()))
	assert.Equal(t, f.clk.Now(), *got.LastRunAt)

	// nothing left to do in the same minute
	assert.Equal(t, 0, trig.Tick(ctx))
	trig.Wait()
	assert.Equal(t, 1, f.exec.count())
}

func TestTrigger_FailedRunStillAdvances(t *testing.T) {
	f := newSvcFixture(t)
	f.exec.err = assert.AnError
	ctx := context.Background()

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)
	f.clk.Set(*s.NextRunAt)

	trig := newTrigger(f, nil, nil)
	assert.Equal(t, 1, trig.Tick(ctx))
	trig.Wait()

	got, err := f.svc.Get(ctx, f.facility, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.NextRunAt.AddDate(0, 0, 7), *got.NextRunAt)
}

func TestTrigger_ConcurrentInstancesClaimOnce(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)
	f.clk.Set(s.NextRunAt.Add(time.Minute))

	a, b := newTrigger(f, nil, nil), newTrigger(f, nil, nil)
	done := make(chan int, 2)
	go func() { done <- a.Tick(ctx) }()
	go func() { done <- b.Tick(ctx) }()
	total := <-done + <-done
	a.Wait()
	b.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, 1, f.exec.count())
}

func TestTrigger_SkipsPausedAndFutureSchedules(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	future, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)

	req := weeklyMonday()
	req.Status = repo.SchedulePaused
	_, err = f.svc.Create(ctx, f.facility, f.admin, req)
	require.NoError(t, err)

	trig := newTrigger(f, nil, nil)
	f.clk.Set(future.NextRunAt.Add(-time.Second))
	assert.Equal(t, 0, trig.Tick(ctx))

	f.clk.Set(*future.NextRunAt)
	assert.Equal(t, 1, trig.Tick(ctx))
	trig.Wait()
	require.Equal(t, 1, f.exec.count())
	assert.Equal(t, future.ID, *f.exec.calls[0].ScheduleID)
}

func TestTrigger_LeaderLock(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := redispkg.NewLocker(rdb)

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)
	f.clk.Set(*s.NextRunAt)

	trig := newTrigger(f, locker, nil)

	// another instance is evaluating
	require.NoError(t, mr.Set(constants.RedisTriggerLock, "other"))
	assert.Equal(t, 0, trig.Tick(ctx))

	mr.Del(constants.RedisTriggerLock)
	assert.Equal(t, 1, trig.Tick(ctx))
	trig.Wait()
	assert.False(t, mr.Exists(constants.RedisTriggerLock))
}

func TestTrigger_SlowExecutionDoesNotBlockTick(t *testing.T) {
	f := newSvcFixture(t)
	f.exec.block = make(chan struct{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
		require.NoError(t, err)
	}
	f.clk.Set(time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC))

	trig := newTrigger(f, nil, nil)
	start := time.Now()
	assert.Equal(t, 3, trig.Tick(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(f.exec.block)
	trig.Wait()
	assert.Equal(t, 3, f.exec.count())
}

func TestTrigger_PurgesExpiredTokens(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()
	tokens := token.New(f.db.Tokens, f.clk, token.Config{Codes: codes.DefaultConfig()})

	_, err := tokens.Issue(ctx, token.IssueRequest{FacilityID: f.facility, ExportType: "residents", ExpiresInHours: 1})
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	trig := newTrigger(f, nil, tokens)
	trig.Tick(ctx)

	n, err := f.db.Tokens.DeleteExpired(ctx, f.clk.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTrigger_RunStopsWithContext(t *testing.T) {
	f := newSvcFixture(t)
	trig := NewTrigger(f.db.Schedules, f.db.ExportLogs, f.exec, policy.NewStaticLookup(policy.Defaults(), nil), nil, nil, nil, f.clk,
		TriggerConfig{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		trig.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("trigger did not stop")
	}
}

func TestUpdate_TickBetweenReadAndWriteDoesNotRearmSlot(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)
	slot := *s.NextRunAt
	f.clk.Set(slot)

	trig := newTrigger(f, nil, nil)
	store := &interleavedStore{ScheduleStore: f.db.Schedules}
	store.before = func() {
		assert.Equal(t, 1, trig.Tick(ctx))
		trig.Wait()
	}
	svc := New(store, f.exec, policy.NewStaticLookup(policy.Defaults(), nil), f.guard, f.clk, Config{})

	name := "Monday residents"
	updated, err := svc.Update(ctx, f.facility, s.ID, UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, slot.AddDate(0, 0, 7), *updated.NextRunAt)

	assert.Equal(t, 0, trig.Tick(ctx))
	trig.Wait()
	assert.Equal(t, 1, f.exec.count())
}

func TestUpdate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)

	store := &conflictingStore{ScheduleStore: f.db.Schedules}
	svc := New(store, f.exec, policy.NewStaticLookup(policy.Defaults(), nil), f.guard, f.clk, Config{})

	name := "renamed"
	_, err = svc.Update(ctx, f.facility, s.ID, UpdateRequest{Name: &name})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxUpdateAttempts, store.attempts)
}

func TestTrigger_OccurrenceSkippedDuringManualRunIsLogged(t *testing.T) {
	f := newSvcFixture(t)
	f.exec.block = make(chan struct{})
	f.exec.entered = make(chan struct{}, 1)
	ctx := context.Background()

	s, err := f.svc.Create(ctx, f.facility, f.admin, weeklyMonday())
	require.NoError(t, err)
	f.clk.Set(*s.NextRunAt)

	manual := make(chan error, 1)
	go func() {
		_, err := f.svc.RunNow(ctx, f.facility, s.ID, f.admin)
		manual <- err
	}()
	<-f.exec.entered

	trig := newTrigger(f, nil, nil)
	assert.Equal(t, 1, trig.Tick(ctx))
	trig.Wait()

	close(f.exec.block)
	require.NoError(t, <-manual)
	assert.Equal(t, 1, f.exec.count())

	logs, err := f.db.ExportLogs.List(ctx, repo.ExportLogFilter{FacilityID: f.facility, ScheduleID: &s.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, repo.ExportFailed, logs[0].Status)
	assert.Equal(t, ErrRunInProgress.Error(), logs[0].Error)
	assert.Nil(t, logs[0].TokenID)
	assert.Equal(t, s.ExportType, logs[0].ExportType)

	got, err := f.svc.Get(ctx, f.facility, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.NextRunAt.AddDate(0, 0, 7), *got.NextRunAt)
}
