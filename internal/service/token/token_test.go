package token

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

func newService(t *testing.T) (Service, *clock.Fixed, *repo.Client) {
	t.Helper()
	db := repo.NewMemoryClient()
	clk := clock.NewFixed(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
	svc := New(db.Tokens, clk, Config{DownloadBaseURL: "https://care.example/", Codes: codes.DefaultConfig()})
	return svc, clk, db
}

func issue(t *testing.T, svc Service, hours int) Issued {
	t.Helper()
	out, err := svc.Issue(context.Background(), IssueRequest{
		FacilityID:     uuid.New(),
		ExportType:     "residents",
		Params:         json.RawMessage(`{"status":"active"}`),
		ExpiresInHours: hours,
	})
	require.NoError(t, err)
	return out
}

func TestIssue_ExpiryBounds(t *testing.T) {
	svc, _, _ := newService(t)
	for _, hours := range []int{0, -1, 169} {
		_, err := svc.Issue(context.Background(), IssueRequest{FacilityID: uuid.New(), ExportType: "audit", ExpiresInHours: hours})
		assert.ErrorIs(t, err, ErrInvalidExpiry, "hours=%d", hours)
	}
}

func TestIssue_StoresOnlyHash(t *testing.T) {
	svc, _, _ := newService(t)
	out := issue(t, svc, 24)

	assert.NotEmpty(t, out.Secret)
	assert.NotContains(t, out.Token.SecretHash, out.Secret)
	assert.Equal(t, "https://care.example"+DownloadPath+out.Secret, out.DownloadURL)
	assert.True(t, out.Token.ExpiresAt.After(out.Token.CreatedAt))
}

func TestValidate_ExpiresExactlyAtDeadline(t *testing.T) {
	svc, clk, _ := newService(t)
	ctx := context.Background()
	out := issue(t, svc, 1)

	// reusable until expiry
	for i := 0; i < 3; i++ {
		tok, err := svc.Validate(ctx, out.Secret)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"active"}`, string(tok.Params))
	}

	clk.Set(out.Token.CreatedAt.Add(time.Hour - time.Second))
	_, err := svc.Validate(ctx, out.Secret)
	assert.NoError(t, err)

	clk.Set(out.Token.CreatedAt.Add(time.Hour + time.Second))
	_, err = svc.Validate(ctx, out.Secret)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidate_Unknown(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	out := issue(t, svc, 4)

	assert.ErrorIs(t, svc.Revoke(ctx, uuid.New(), out.Token.ID), ErrNotFound)

	require.NoError(t, svc.Revoke(ctx, out.Token.FacilityID, out.Token.ID))
	_, err := svc.Validate(ctx, out.Secret)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	svc, clk, _ := newService(t)
	ctx := context.Background()
	short := issue(t, svc, 1)
	long := issue(t, svc, 48)

	clk.Advance(2 * time.Hour)
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.Validate(ctx, short.Secret)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Validate(ctx, long.Secret)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(long.DownloadURL, long.Secret))
}
