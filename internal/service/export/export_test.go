package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/crypto"
	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type harness struct {
	db        *repo.Client
	clk       *clock.Fixed
	blobs     *MemoryBlobs
	artifacts ArtifactStore
	tokens    token.Service
	producers Producers
	exec      Executor
	dl        *Downloader
	facility  uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sealer, err := crypto.NewSealer(testKeyHex)
	require.NoError(t, err)

	h := &harness{
		db:       repo.NewMemoryClient(),
		clk:      clock.NewFixed(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		blobs:    NewMemoryBlobs(),
		facility: uuid.New(),
	}
	h.artifacts = NewArtifactStore(h.blobs, sealer)
	h.tokens = token.New(h.db.Tokens, h.clk, token.Config{DownloadBaseURL: "https://care.example", Codes: codes.DefaultConfig()})
	h.producers = NewProducers(h.db, policy.NewStaticLookup(policy.Defaults(), nil))
	h.exec = NewExecutor(h.producers, h.artifacts, h.tokens, h.db.ExportLogs, h.clk, ExecutorConfig{ArtifactPrefix: "exports"})
	h.dl = NewDownloader(h.tokens, h.artifacts, h.producers, h.db.ExportLogs, h.clk)

	mem := h.db.Memory()
	mem.AddResident(repo.Resident{ID: uuid.New(), FacilityID: h.facility, FullName: "Ada Byron", Status: "active", AdmittedAt: h.clk.Now().AddDate(0, -2, 0)})
	mem.AddResident(repo.Resident{ID: uuid.New(), FacilityID: h.facility, FullName: "Grace Hopper", Status: "discharged", AdmittedAt: h.clk.Now().AddDate(-1, 0, 0)})
	mem.AddResident(repo.Resident{ID: uuid.New(), FacilityID: uuid.New(), FullName: "Elsewhere", Status: "active"})
	return h
}

func readSheet(t *testing.T, body []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExecute_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	schedule := uuid.New()

	res, err := h.exec.Execute(ctx, Request{
		FacilityID:     h.facility,
		ExportType:     exportparams.TypeResidents,
		Params:         json.RawMessage(`{"status":"active"}`),
		ExpiresInHours: 12,
		ScheduleID:     &schedule,
	})
	require.NoError(t, err)

	assert.Equal(t, repo.ExportSuccess, res.Log.Status)
	assert.Equal(t, 1, res.Log.RowCount)
	require.NotNil(t, res.Token)
	require.NotNil(t, res.Log.TokenID)
	assert.Equal(t, res.Token.Token.ID, *res.Log.TokenID)
	assert.Equal(t, res.ArtifactKey, res.Token.Token.ArtifactKey)
	assert.Contains(t, res.ArtifactKey, "exports/"+h.facility.String()+"/")
	assert.Equal(t, 12*time.Hour, res.Token.Token.ExpiresAt.Sub(res.Token.Token.CreatedAt))

	// stored sealed, served plain
	raw, err := h.blobs.Download(ctx, res.ArtifactKey)
	require.NoError(t, err)
	_, err = excelize.OpenReader(bytes.NewReader(raw))
	assert.Error(t, err)

	file, err := h.dl.Download(ctx, res.Token.Secret)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeXLSX, file.ContentType)
	rows := readSheet(t, file.Body, "Residents")
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada Byron", rows[1][1])

	logs, err := h.db.ExportLogs.List(ctx, repo.ExportLogFilter{FacilityID: h.facility})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, &schedule, logs[0].ScheduleID)
}

func TestExecute_FailureWritesFailedLogWithoutToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	boom := errors.New("warehouse unavailable")
	h.producers[exportparams.TypeAudit] = ProducerFunc(func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
		return nil, boom
	})

	res, err := h.exec.Execute(ctx, Request{
		FacilityID: h.facility,
		ExportType: exportparams.TypeAudit,
		Params:     json.RawMessage(`{"window_days":7}`),
	})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrProducer)

	assert.Equal(t, repo.ExportFailed, res.Log.Status)
	assert.Contains(t, res.Log.Error, "warehouse unavailable")
	assert.Nil(t, res.Log.TokenID)
	assert.Nil(t, res.Token)
	assert.Zero(t, h.blobs.Len())

	logs, err := h.db.ExportLogs.List(ctx, repo.ExportLogFilter{FacilityID: h.facility, Status: repo.ExportFailed})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestExecute_InvalidParamsIsLogged(t *testing.T) {
	h := newHarness(t)
	res, err := h.exec.Execute(context.Background(), Request{
		FacilityID: h.facility,
		ExportType: exportparams.TypeBundle,
		Params:     json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, IsParamsError(err))
	assert.Equal(t, repo.ExportFailed, res.Log.Status)
}

func TestDownload_QueryBoundLinkRendersOnDemand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	issued, err := h.dl.IssueLink(ctx, LinkRequest{
		FacilityID:     h.facility,
		ExportType:     exportparams.TypeResidents,
		ExpiresInHours: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, issued.Token.ArtifactKey)

	for i := 0; i < 2; i++ {
		file, err := h.dl.Download(ctx, issued.Secret)
		require.NoError(t, err)
		assert.Len(t, readSheet(t, file.Body, "Residents"), 3)
	}

	logs, err := h.db.ExportLogs.List(ctx, repo.ExportLogFilter{FacilityID: h.facility})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	h.clk.Advance(time.Hour + time.Second)
	_, err = h.dl.Download(ctx, issued.Secret)
	assert.ErrorIs(t, err, token.ErrExpired)
	assert.True(t, IsUnauthorized(err))
}

func TestIssueLink_RejectsBadParams(t *testing.T) {
	h := newHarness(t)
	_, err := h.dl.IssueLink(context.Background(), LinkRequest{
		FacilityID:     h.facility,
		ExportType:     exportparams.TypeResidents,
		Params:         json.RawMessage(`{"unit":"x"}`),
		ExpiresInHours: 1,
	})
	assert.ErrorIs(t, err, exportparams.ErrInvalidParams)
}

func TestBundle_OneSheetPerKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clk.Now()

	unit := uuid.New()
	_, err := h.db.FallEvents.Create(ctx, repo.FallEvent{FacilityID: h.facility, ResidentID: uuid.New(), UnitID: &unit,
		Severity: "minor", OccurredAt: now.AddDate(0, 0, -5), RequiredChecks: 2})
	require.NoError(t, err)
	_, err = h.db.FallEvents.Create(ctx, repo.FallEvent{FacilityID: h.facility, ResidentID: uuid.New(), UnitID: &unit,
		Severity: "major", OccurredAt: now.AddDate(0, 0, -1), RequiredChecks: 2, CompletedChecks: 2})
	require.NoError(t, err)

	params, _, err := exportparams.Resolve(exportparams.TypeBundle,
		json.RawMessage(`{"include":["residents","post_fall_rollup"],"window_days":30}`))
	require.NoError(t, err)

	tables, err := h.producers.Produce(ctx, h.facility, params, now)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "Post-Fall Rollup", tables[0].Sheet)
	assert.Equal(t, "Residents", tables[1].Sheet)

	rollup := tables[0].Rows
	require.Len(t, rollup, 1)
	// unit, falls, closed, open, overdue, completion
	assert.Equal(t, []any{unit.String(), 2, 1, 1, 1, "50"}, rollup[0])

	body, err := RenderXLSX(tables)
	require.NoError(t, err)
	assert.Len(t, readSheet(t, body, "Post-Fall Rollup"), 2)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, "0", CompletionRate(0, 0).String())
	assert.Equal(t, "33.3", CompletionRate(1, 3).String())
	assert.Equal(t, "100", CompletionRate(4, 4).String())
}

func TestSheetName_Deduplicates(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "Audit", sheetName("Audit", used))
	assert.Equal(t, "Audit (2)", sheetName("Audit", used))
	long := sheetName("An extremely long sheet name that overflows", used)
	assert.Len(t, long, maxSheetName)
}
