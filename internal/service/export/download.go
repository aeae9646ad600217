package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
)

// File is a downloadable export.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// LinkRequest asks for an ad hoc, query-bound download link.
type LinkRequest struct {
	FacilityID     uuid.UUID
	ExportType     exportparams.Type
	Params         json.RawMessage
	ExpiresInHours int
	RequestedBy    *uuid.UUID
}

// Downloader resolves download secrets to files and issues ad hoc links.
type Downloader struct {
	tokens    token.Service
	artifacts ArtifactStore
	producers Producers
	logs      repo.ExportLogStore
	clock     clock.Clock
}

func NewDownloader(tokens token.Service, artifacts ArtifactStore, producers Producers, logs repo.ExportLogStore, clk clock.Clock) *Downloader {
	if clk == nil {
		clk = clock.System{}
	}
	return &Downloader{tokens: tokens, artifacts: artifacts, producers: producers, logs: logs, clock: clk}
}

// IssueLink validates params and mints a token that renders the export when
// the link is opened.
func (d *Downloader) IssueLink(ctx context.Context, req LinkRequest) (token.Issued, error) {
	_, canonical, err := exportparams.Resolve(req.ExportType, req.Params)
	if err != nil {
		return token.Issued{}, err
	}
	return d.tokens.Issue(ctx, token.IssueRequest{
		FacilityID:     req.FacilityID,
		ExportType:     string(req.ExportType),
		Params:         canonical,
		ExpiresInHours: req.ExpiresInHours,
		CreatedBy:      req.RequestedBy,
	})
}

// Download returns the file behind secret. Expired and unknown secrets fail
// before any data is read.
func (d *Downloader) Download(ctx context.Context, secret string) (File, error) {
	t, err := d.tokens.Validate(ctx, secret)
	if err != nil {
		return File{}, err
	}

	if t.ArtifactKey != "" {
		body, err := d.artifacts.Get(ctx, t.ArtifactKey)
		if err != nil {
			return File{}, err
		}
		return File{Name: Filename(t.ExportType, t.CreatedAt), ContentType: ContentTypeXLSX, Body: body}, nil
	}

	return d.render(ctx, t)
}

func (d *Downloader) render(ctx context.Context, t repo.ExportToken) (File, error) {
	now := d.clock.Now()
	wall := time.Now()

	entry := repo.ExportLog{
		ID:         uuid.New(),
		FacilityID: t.FacilityID,
		ExportType: t.ExportType,
		Params:     t.Params,
		TokenID:    &t.ID,
		CreatedAt:  now,
	}

	body, rows, err := d.produce(ctx, t, now)
	entry.DurationMs = time.Since(wall).Milliseconds()
	entry.RowCount = rows
	if err != nil {
		entry.Status = repo.ExportFailed
		entry.Error = err.Error()
	} else {
		entry.Status = repo.ExportSuccess
	}
	if _, lerr := d.logs.Append(context.WithoutCancel(ctx), entry); lerr != nil {
		slog.ErrorContext(ctx, "download: failed to write export log", "token_id", t.ID, "error", lerr)
	}
	if err != nil {
		return File{}, err
	}
	return File{Name: Filename(t.ExportType, now), ContentType: ContentTypeXLSX, Body: body}, nil
}

func (d *Downloader) produce(ctx context.Context, t repo.ExportToken, now time.Time) ([]byte, int, error) {
	params, _, err := exportparams.Resolve(exportparams.Type(t.ExportType), t.Params)
	if err != nil {
		return nil, 0, fmt.Errorf("stored params no longer valid: %w", err)
	}
	tables, err := d.producers.Produce(ctx, t.FacilityID, params, now)
	if err != nil {
		return nil, 0, err
	}
	rows := 0
	for _, tb := range tables {
		rows += len(tb.Rows)
	}
	body, err := RenderXLSX(tables)
	if err != nil {
		return nil, rows, err
	}
	return body, rows, nil
}

// IsUnauthorized reports whether err means the link cannot be used.
func IsUnauthorized(err error) bool {
	return errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrNotFound)
}
