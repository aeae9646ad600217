package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAssessments_ExactlyOneClaim(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	now := time.Now().UTC()
	facility := uuid.New()

	a, err := c.Assessments.Create(ctx, Assessment{FacilityID: facility, ResidentID: uuid.New(),
		Status: AssessmentNeedsReview, AssessedAt: now, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	const contenders = 32
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Assessments.Claim(ctx, facility, a.ID, uuid.New(), now)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, contenders-1, conflicts.Load())
}

func TestMemoryAssessments_ScopedByFacility(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := c.Assessments.Create(ctx, Assessment{FacilityID: uuid.New(), ResidentID: uuid.New(),
		Status: AssessmentNeedsReview, AssessedAt: now})
	require.NoError(t, err)

	_, err = c.Assessments.Get(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFallEvents_SetCheckRecounts(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	now := time.Now().UTC()
	facility := uuid.New()

	e, err := c.FallEvents.Create(ctx, FallEvent{FacilityID: facility, ResidentID: uuid.New(),
		Severity: "minor", OccurredAt: now, RequiredChecks: 2})
	require.NoError(t, err)

	e, _, err = c.FallEvents.SetCheck(ctx, facility, FallCheck{FallEventID: e.ID, CheckType: "vitals", Completed: true, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 1, e.CompletedChecks)
	assert.True(t, e.Open())

	e, _, err = c.FallEvents.SetCheck(ctx, facility, FallCheck{FallEventID: e.ID, CheckType: "neuro_check", Completed: true, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 2, e.CompletedChecks)
	assert.False(t, e.Open())

	// toggling back reopens
	e, _, err = c.FallEvents.SetCheck(ctx, facility, FallCheck{FallEventID: e.ID, CheckType: "vitals", Completed: false, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 1, e.CompletedChecks)

	checks, err := c.FallEvents.Checks(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, checks, 2)

	_, _, err = c.FallEvents.SetCheck(ctx, uuid.New(), FallCheck{FallEventID: e.ID, CheckType: "vitals"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySchedules_ClaimRunOnce(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	due := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sc, err := c.Schedules.Create(ctx, ExportSchedule{FacilityID: uuid.New(), Name: "weekly",
		ExportType: "residents", Frequency: FrequencyDaily, Status: ScheduleActive, NextRunAt: &due})
	require.NoError(t, err)

	next := due.Add(24 * time.Hour)
	won, err := c.Schedules.ClaimRun(ctx, sc.ID, due, next, due)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = c.Schedules.ClaimRun(ctx, sc.ID, due, next, due)
	require.NoError(t, err)
	assert.False(t, won)

	list, err := c.Schedules.ListDue(ctx, due.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemorySchedules_UpdateAfterClaimConflicts(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	due := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sc, err := c.Schedules.Create(ctx, ExportSchedule{FacilityID: uuid.New(), Name: "daily",
		ExportType: "residents", Frequency: FrequencyDaily, Status: ScheduleActive, NextRunAt: &due})
	require.NoError(t, err)

	won, err := c.Schedules.ClaimRun(ctx, sc.ID, due, due.Add(24*time.Hour), due)
	require.NoError(t, err)
	require.True(t, won)

	stale := sc
	stale.Name = "renamed"
	_, err = c.Schedules.Update(ctx, stale, &due)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := c.Schedules.Get(ctx, sc.FacilityID, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "daily", got.Name)
	assert.Equal(t, due.Add(24*time.Hour), *got.NextRunAt)
}

func TestMemoryExportLogs_NewestFirstAndLimit(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	facility := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := c.ExportLogs.Append(ctx, ExportLog{FacilityID: facility, ExportType: "audit",
			Status: ExportSuccess, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	logs, err := c.ExportLogs.List(ctx, ExportLogFilter{FacilityID: facility, Limit: 3})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].CreatedAt.Equal(base.Add(4*time.Minute)))
}

func TestMemoryTokens_DeleteExpired(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := c.Tokens.Create(ctx, ExportToken{FacilityID: uuid.New(), SecretHash: "a", ExpiresAt: now.Add(-time.Second)})
	require.NoError(t, err)
	_, err = c.Tokens.Create(ctx, ExportToken{FacilityID: uuid.New(), SecretHash: "b", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	n, err := c.Tokens.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.Tokens.GetByHash(ctx, "b")
	assert.NoError(t, err)
}
