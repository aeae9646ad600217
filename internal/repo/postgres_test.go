package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assessmentRow(a Assessment) *sqlmock.Rows {
	var assigned any
	if a.AssignedTo != nil {
		assigned = a.AssignedTo.String()
	}
	return sqlmock.NewRows(assessmentColumns).AddRow(
		a.ID.String(), a.FacilityID.String(), a.ResidentID.String(), nil, string(a.Status), nil,
		assigned, a.AssessedAt, nil, a.CreatedAt, a.UpdatedAt,
	)
}

func TestPgAssessments_ClaimWins(t *testing.T) {
	db, mock := newMockDB(t)
	store := &pgAssessments{db: db}

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	facility, id, user := uuid.New(), uuid.New(), uuid.New()
	want := Assessment{ID: id, FacilityID: facility, ResidentID: uuid.New(), Status: AssessmentNeedsReview,
		AssignedTo: &user, AssessedAt: now, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`UPDATE "assessments" SET .+ WHERE .+"assigned_to" IS NULL RETURNING`).
		WithArgs(user, now, id, facility).
		WillReturnRows(assessmentRow(want))

	got, err := store.Claim(context.Background(), facility, id, user, now)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, user, *got.AssignedTo)
	assert.Equal(t, AssessmentNeedsReview, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssessments_ClaimLost(t *testing.T) {
	db, mock := newMockDB(t)
	store := &pgAssessments{db: db}

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE "assessments" SET .+"assigned_to" IS NULL`).
		WillReturnRows(sqlmock.NewRows(assessmentColumns))

	_, err := store.Claim(context.Background(), uuid.New(), uuid.New(), uuid.New(), now)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssessments_TransitionIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	store := &pgAssessments{db: db}

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	facility, id, user := uuid.New(), uuid.New(), uuid.New()
	row := Assessment{ID: id, FacilityID: facility, ResidentID: uuid.New(), Status: AssessmentInReview,
		AssignedTo: &user, AssessedAt: now, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`UPDATE assessments\s+SET status = \$1,\s+assigned_to = COALESCE\(assigned_to, \$2\)`).
		WithArgs("in_review", user, nil, now, id, facility, "needs_review").
		WillReturnRows(assessmentRow(row))

	got, err := store.Transition(context.Background(), facility, id, AssessmentNeedsReview, AssessmentInReview, &user, now)
	require.NoError(t, err)
	assert.Equal(t, AssessmentInReview, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssessments_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := &pgAssessments{db: db}

	mock.ExpectQuery(`SELECT .+ FROM "assessments" WHERE`).
		WillReturnRows(sqlmock.NewRows(assessmentColumns))

	_, err := store.Get(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgSchedules_ClaimRun(t *testing.T) {
	expected := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	next := expected.Add(7 * 24 * time.Hour)
	ranAt := expected.Add(30 * time.Second)
	id := uuid.New()

	cases := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"winner", 1, true},
		{"already advanced by another instance", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			store := &pgSchedules{db: db}

			mock.ExpectExec(`UPDATE "export_schedules" SET .+ WHERE .+"next_run_at" = `).
				WithArgs(next, ranAt, ranAt, id, "active", expected).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			won, err := store.ClaimRun(context.Background(), id, expected, next, ranAt)
			require.NoError(t, err)
			assert.Equal(t, tc.want, won)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func scheduleRow(s ExportSchedule) *sqlmock.Rows {
	return sqlmock.NewRows(scheduleColumns).AddRow(
		s.ID.String(), s.FacilityID.String(), s.Name, s.ExportType, string(s.Frequency), nil, s.Hour, s.Minute,
		string(s.Status), []byte(s.Params), s.ExpiresHours, nil, nullableTime(s.NextRunAt), nil,
		s.CreatedAt, s.UpdatedAt)
}

func TestPgSchedules_UpdateIsConditionalOnNextRun(t *testing.T) {
	read := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	claimed := read.Add(24 * time.Hour)
	s := ExportSchedule{
		ID: uuid.New(), FacilityID: uuid.New(), Name: "renamed", ExportType: "residents",
		Frequency: FrequencyDaily, Hour: 9, Status: ScheduleActive, Params: json.RawMessage(`{}`),
		ExpiresHours: 24, NextRunAt: &read, CreatedAt: read, UpdatedAt: read,
	}

	t.Run("next_run_at moved", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := &pgSchedules{db: db}

		mock.ExpectQuery(`UPDATE "export_schedules" SET .+ WHERE .+"next_run_at" = .+ RETURNING`).
			WillReturnRows(sqlmock.NewRows(scheduleColumns))
		current := s
		current.Name = "weekly residents"
		current.NextRunAt = &claimed
		mock.ExpectQuery(`SELECT .+ FROM "export_schedules" WHERE`).
			WillReturnRows(scheduleRow(current))

		_, err := store.Update(context.Background(), s, &read)
		assert.ErrorIs(t, err, ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row gone", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := &pgSchedules{db: db}

		mock.ExpectQuery(`UPDATE "export_schedules" SET .+ RETURNING`).
			WillReturnRows(sqlmock.NewRows(scheduleColumns))
		mock.ExpectQuery(`SELECT .+ FROM "export_schedules" WHERE`).
			WillReturnRows(sqlmock.NewRows(scheduleColumns))

		_, err := store.Update(context.Background(), s, &read)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("paused schedule matches null", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := &pgSchedules{db: db}

		resumed := s
		mock.ExpectQuery(`UPDATE "export_schedules" SET .+ WHERE .+"next_run_at" IS NULL.* RETURNING`).
			WillReturnRows(scheduleRow(resumed))

		out, err := store.Update(context.Background(), resumed, nil)
		require.NoError(t, err)
		assert.Equal(t, "renamed", out.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTokens_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := &pgTokens{db: db}

	mock.ExpectExec(`DELETE FROM "export_tokens" WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClampLogLimit(t *testing.T) {
	assert.Equal(t, DefaultLogLimit, ClampLogLimit(0))
	assert.Equal(t, 10, ClampLogLimit(10))
	assert.Equal(t, MaxLogLimit, ClampLogLimit(1000))
}
