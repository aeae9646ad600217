package handler

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
)

type ExportHandler struct {
	downloads      *export.Downloader
	tokens         token.Service
	logs           repo.ExportLogStore
	defaultExpires int
}

func NewExportHandler(downloads *export.Downloader, tokens token.Service, logs repo.ExportLogStore, defaultExpiresHours int) *ExportHandler {
	return &ExportHandler{
		downloads:      downloads,
		tokens:         tokens,
		logs:           logs,
		defaultExpires: defaultExpiresHours,
	}
}

func mapExportError(c fiber.Ctx, err error) error {
	var fe *exportparams.FieldError
	switch {
	case errors.As(err, &fe):
		return invalidField(c, "params."+fe.Field, fe.Message)
	case errors.Is(err, exportparams.ErrUnknownType),
		errors.Is(err, export.ErrUnknownType):
		return invalidField(c, "export_type", err.Error())
	case errors.Is(err, token.ErrInvalidExpiry):
		return invalidField(c, "expires_in_hours", err.Error())
	case export.IsUnauthorized(err):
		return unauthorized(c, "download link is invalid or has expired")
	case errors.Is(err, export.ErrArtifactNotFound):
		return notFound(c, "export file is no longer available")
	default:
		return internalError(c)
	}
}

// POST /exports/tokens
func (h *ExportHandler) IssueToken(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}

	var body struct {
		ExportType     exportparams.Type `json:"export_type"`
		Params         json.RawMessage   `json:"params"`
		ExpiresInHours *int              `json:"expires_in_hours"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ExportType == "" {
		return invalidField(c, "export_type", "export_type is required")
	}

	hours := h.defaultExpires
	if body.ExpiresInHours != nil {
		hours = *body.ExpiresInHours
	}

	issued, err := h.downloads.IssueLink(c.Context(), export.LinkRequest{
		FacilityID:     actor.FacilityID,
		ExportType:     body.ExportType,
		Params:         body.Params,
		ExpiresInHours: hours,
		RequestedBy:    &actor.UserID,
	})
	if err != nil {
		return mapExportError(c, err)
	}

	return created(c, fiber.Map{
		"id":           issued.Token.ID,
		"download_url": issued.DownloadURL,
		"expires_at":   issued.Token.ExpiresAt,
	})
}

// DELETE /exports/tokens/:id
func (h *ExportHandler) RevokeToken(c fiber.Ctx) error {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return badRequest(c, "missing facility context")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid token id")
	}

	if err := h.tokens.Revoke(c.Context(), facilityID, id); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return notFound(c, err.Error())
		}
		return internalError(c)
	}
	return noContent(c)
}

// GET /exports/logs
func (h *ExportHandler) ListLogs(c fiber.Ctx) error {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return badRequest(c, "missing facility context")
	}

	var q struct {
		ExportType string `query:"export_type"`
		ScheduleID string `query:"schedule_id"`
		Status     string `query:"status"`
		Limit      int    `query:"limit"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}

	f := repo.ExportLogFilter{FacilityID: facilityID, ExportType: q.ExportType, Limit: q.Limit}
	if q.ExportType != "" && !exportparams.Type(q.ExportType).Valid() {
		return invalidField(c, "export_type", fmt.Sprintf("unknown export type %q", q.ExportType))
	}
	if q.ScheduleID != "" {
		sid, err := uuid.Parse(q.ScheduleID)
		if err != nil {
			return invalidField(c, "schedule_id", "invalid schedule_id")
		}
		f.ScheduleID = &sid
	}
	switch repo.ExportStatus(q.Status) {
	case "", repo.ExportSuccess, repo.ExportFailed:
		f.Status = repo.ExportStatus(q.Status)
	default:
		return invalidField(c, "status", "status must be success or failed")
	}

	logs, err := h.logs.List(c.Context(), f)
	if err != nil {
		return internalError(c)
	}
	return ok(c, logs)
}

// GET /exports/download/:secret
//
// The secret is the credential; no bearer token is required.
func (h *ExportHandler) Download(c fiber.Ctx) error {
	file, err := h.downloads.Download(c.Context(), c.Params("secret"))
	if err != nil {
		return mapExportError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(file.Body)
}
