package token

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
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/crypto"
	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

const (
	MinExpiresHours = 1
	MaxExpiresHours = 168

	// DownloadPath is appended to the configured base URL, followed by the secret.
	DownloadPath = "/api/v1/exports/download/"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type IssueRequest struct {
	FacilityID     uuid.UUID
	ExportType     string
	Params         json.RawMessage
	ExpiresInHours int
	// ArtifactKey binds the token to an already rendered file. Empty means
	// the export is rendered from Params on each download.
	ArtifactKey string
	ScheduleID  *uuid.UUID
	CreatedBy   *uuid.UUID
}

// Issued is returned once; the secret is not recoverable afterwards.
type Issued struct {
	Token       repo.ExportToken `json:"token"`
	Secret      string           `json:"-"`
	DownloadURL string           `json:"download_url"`
}

type Config struct {
	DownloadBaseURL string
	Codes           codes.Config
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (Issued, error)
	// Validate resolves a bearer secret. It has no side effects, so a link
	// can be used any number of times until it expires.
	Validate(ctx context.Context, secret string) (repo.ExportToken, error)
	Revoke(ctx context.Context, facilityID, id uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
	DownloadURL(secret string) string
}

type tokenService struct {
	tokens repo.TokenStore
	clock  clock.Clock
	cfg    Config
}

func New(tokens repo.TokenStore, clk clock.Clock, cfg Config) Service {
	if clk == nil {
		clk = clock.System{}
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &tokenService{tokens: tokens, clock: clk, cfg: cfg}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

func (s *tokenService) Issue(ctx context.Context, req IssueRequest) (Issued, error) {
	if req.ExpiresInHours < MinExpiresHours || req.ExpiresInHours > MaxExpiresHours {
		return Issued{}, ErrInvalidExpiry
	}

	secret, err := codes.GenerateDownloadToken(s.cfg.Codes)
	if err != nil {
		return Issued{}, fmt.Errorf("generate download secret: %w", err)
	}

	now := s.clock.Now()
	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	t, err := s.tokens.Create(ctx, repo.ExportToken{
		ID:          uuid.New(),
		FacilityID:  req.FacilityID,
		ExportType:  req.ExportType,
		Params:      append(json.RawMessage(nil), params...),
		SecretHash:  crypto.Hash(secret),
		ArtifactKey: req.ArtifactKey,
		ScheduleID:  req.ScheduleID,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(req.ExpiresInHours) * time.Hour),
	})
	if err != nil {
		return Issued{}, fmt.Errorf("store export token: %w", err)
	}

	slog.InfoContext(ctx, "token: issued export link",
		"token_id", t.ID, "facility_id", t.FacilityID, "export_type", t.ExportType,
		"expires_at", t.ExpiresAt)

	return Issued{Token: t, Secret: secret, DownloadURL: s.DownloadURL(secret)}, nil
}

func (s *tokenService) Validate(ctx context.Context, secret string) (repo.ExportToken, error) {
	if secret == "" {
		return repo.ExportToken{}, ErrNotFound
	}
	t, err := s.tokens.GetByHash(ctx, crypto.Hash(secret))
	if errors.Is(err, repo.ErrNotFound) {
		return repo.ExportToken{}, ErrNotFound
	}
	if err != nil {
		return repo.ExportToken{}, err
	}
	if !s.clock.Now().Before(t.ExpiresAt) {
		return repo.ExportToken{}, ErrExpired
	}
	return t, nil
}

func (s *tokenService) Revoke(ctx context.Context, facilityID, id uuid.UUID) error {
	err := s.tokens.Delete(ctx, facilityID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "token: revoked export link", "token_id", id, "facility_id", facilityID)
	return nil
}

// PurgeExpired removes tokens that can no longer be redeemed.
func (s *tokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return n, nil
}

func (s *tokenService) DownloadURL(secret string) string {
	return s.cfg.DownloadBaseURL + DownloadPath + secret
}
