package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/observability"
)

// Request describes one export occurrence. Params may be raw user input or
// an already canonical snapshot; both are resolved again before running.
type Request struct {
	FacilityID     uuid.UUID
	ExportType     exportparams.Type
	Params         json.RawMessage
	ExpiresInHours int
	ScheduleID     *uuid.UUID
	RequestedBy    *uuid.UUID
}

// Result is what the executor wrote. Token is nil for failed runs.
type Result struct {
	Log         repo.ExportLog
	Token       *token.Issued
	ArtifactKey string
}

type Executor interface {
	// Execute runs the export once. Failures are recorded as a failed
	// ExportLog and also returned; nothing is retried.
	Execute(ctx context.Context, req Request) (Result, error)
}

type ExecutorConfig struct {
	ArtifactPrefix      string
	DefaultExpiresHours int
}

type executor struct {
	producers Producers
	artifacts ArtifactStore
	tokens    token.Service
	logs      repo.ExportLogStore
	clock     clock.Clock
	metrics   *metrics
	cfg       ExecutorConfig
}

func NewExecutor(producers Producers, artifacts ArtifactStore, tokens token.Service, logs repo.ExportLogStore, clk clock.Clock, cfg ExecutorConfig) Executor {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.DefaultExpiresHours == 0 {
		cfg.DefaultExpiresHours = 24
	}
	return &executor{
		producers: producers,
		artifacts: artifacts,
		tokens:    tokens,
		logs:      logs,
		clock:     clk,
		metrics:   newMetrics(),
		cfg:       cfg,
	}
}

func (e *executor) Execute(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "export.execute",
		attribute.String("export_type", string(req.ExportType)),
		attribute.String("facility_id", req.FacilityID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := e.clock.Now()
	wall := time.Now()

	logEntry := repo.ExportLog{
		ID:         uuid.New(),
		FacilityID: req.FacilityID,
		ScheduleID: req.ScheduleID,
		ExportType: string(req.ExportType),
		Params:     req.Params,
		CreatedAt:  start,
	}

	res, err = e.run(ctx, req, start, &logEntry)
	logEntry.DurationMs = time.Since(wall).Milliseconds()

	if err != nil {
		logEntry.Status = repo.ExportFailed
		logEntry.Error = err.Error()
		logEntry.TokenID = nil
		res.Token = nil
		if res.ArtifactKey != "" {
			// the run failed after upload; drop the orphan
			if derr := e.artifacts.Delete(context.WithoutCancel(ctx), res.ArtifactKey); derr != nil {
				slog.WarnContext(ctx, "executor: failed to remove orphaned artifact", "key", res.ArtifactKey, "error", derr)
			}
			res.ArtifactKey = ""
		}
	} else {
		logEntry.Status = repo.ExportSuccess
	}

	if len(logEntry.Params) == 0 {
		logEntry.Params = json.RawMessage(`{}`)
	}

	// the run context may already be past its deadline
	saved, lerr := e.logs.Append(context.WithoutCancel(ctx), logEntry)
	if lerr != nil {
		slog.ErrorContext(ctx, "executor: failed to write export log",
			"facility_id", req.FacilityID, "export_type", req.ExportType, "error", lerr)
		saved = logEntry
	}
	res.Log = saved

	e.metrics.record(ctx, string(req.ExportType), string(logEntry.Status), float64(logEntry.DurationMs))

	if err != nil {
		slog.WarnContext(ctx, "executor: export failed",
			"facility_id", req.FacilityID, "schedule_id", req.ScheduleID,
			"export_type", req.ExportType, "error", err)
		return res, err
	}

	slog.InfoContext(ctx, "executor: export completed",
		"facility_id", req.FacilityID, "schedule_id", req.ScheduleID,
		"export_type", req.ExportType, "rows", logEntry.RowCount, "duration_ms", logEntry.DurationMs)
	return res, lerr
}

func (e *executor) run(ctx context.Context, req Request, now time.Time, logEntry *repo.ExportLog) (Result, error) {
	params, canonical, err := exportparams.Resolve(req.ExportType, req.Params)
	if err != nil {
		return Result{}, err
	}
	logEntry.Params = canonical

	tables, err := e.producers.Produce(ctx, req.FacilityID, params, now)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("export interrupted: %w", err)
	}
	for _, t := range tables {
		logEntry.RowCount += len(t.Rows)
	}

	body, err := RenderXLSX(tables)
	if err != nil {
		return Result{}, err
	}

	key := ArtifactKey(e.cfg.ArtifactPrefix, req.FacilityID)
	if err := e.artifacts.Put(ctx, key, body); err != nil {
		return Result{}, fmt.Errorf("store artifact: %w", err)
	}
	res := Result{ArtifactKey: key}

	hours := req.ExpiresInHours
	if hours == 0 {
		hours = e.cfg.DefaultExpiresHours
	}
	issued, err := e.tokens.Issue(ctx, token.IssueRequest{
		FacilityID:     req.FacilityID,
		ExportType:     string(req.ExportType),
		Params:         canonical,
		ExpiresInHours: hours,
		ArtifactKey:    key,
		ScheduleID:     req.ScheduleID,
		CreatedBy:      req.RequestedBy,
	})
	if err != nil {
		return res, fmt.Errorf("issue token: %w", err)
	}
	res.Token = &issued
	logEntry.TokenID = &issued.Token.ID
	return res, nil
}

// IsParamsError reports whether err came from params validation rather than
// from running the export.
func IsParamsError(err error) bool {
	return errors.Is(err, exportparams.ErrInvalidParams) || errors.Is(err, exportparams.ErrUnknownType)
}
