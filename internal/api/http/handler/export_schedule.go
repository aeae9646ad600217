package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/schedule"
)

type ExportScheduleHandler struct {
	svc schedule.Service
}

func NewExportScheduleHandler(svc schedule.Service) *ExportScheduleHandler {
	return &ExportScheduleHandler{svc: svc}
}

func mapScheduleError(c fiber.Ctx, err error) error {
	var ve *schedule.ValidationError
	var fe *exportparams.FieldError
	switch {
	case errors.As(err, &ve):
		return invalidField(c, ve.Field, ve.Message)
	case errors.As(err, &fe):
		return invalidField(c, "params."+fe.Field, fe.Message)
	case errors.Is(err, exportparams.ErrUnknownType):
		return invalidField(c, "export_type", err.Error())
	case errors.Is(err, schedule.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, schedule.ErrRunInProgress), errors.Is(err, schedule.ErrConflict):
		return conflict(c, err.Error())
	default:
		return internalError(c)
	}
}

// GET /export-schedules
func (h *ExportScheduleHandler) List(c fiber.Ctx) error {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return badRequest(c, "missing facility context")
	}

	list, err := h.svc.List(c.Context(), facilityID)
	if err != nil {
		return mapScheduleError(c, err)
	}
	return ok(c, list)
}

// GET /export-schedules/:id
func (h *ExportScheduleHandler) Get(c fiber.Ctx) error {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return badRequest(c, "missing facility context")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid schedule id")
	}

	sched, err := h.svc.Get(c.Context(), facilityID, id)
	if err != nil {
		return mapScheduleError(c, err)
	}
	return ok(c, sched)
}

// POST /export-schedules
func (h *ExportScheduleHandler) Create(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}

	var req schedule.CreateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sched, err := h.svc.Create(c.Context(), actor.FacilityID, actor.UserID, req)
	if err != nil {
		return mapScheduleError(c, err)
	}
	return created(c, sched)
}

// PATCH /export-schedules/:id
func (h *ExportScheduleHandler) Update(c fiber.Ctx) error {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return badRequest(c, "missing facility context")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid schedule id")
	}

	var req schedule.UpdateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sched, err := h.svc.Update(c.Context(), facilityID, id, req)
	if err != nil {
		return mapScheduleError(c, err)
	}
	return ok(c, sched)
}

// POST /export-schedules/:id/run
//
// A failed export still answers 200; the log row carries the failure.
func (h *ExportScheduleHandler) Run(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid schedule id")
	}

	res, err := h.svc.RunNow(c.Context(), actor.FacilityID, id, actor.UserID)
	if err != nil {
		return mapScheduleError(c, err)
	}
	return ok(c, runResponse(res))
}

func runResponse(res export.Result) fiber.Map {
	out := fiber.Map{"log": res.Log}
	if res.Token != nil {
		out["token_id"] = res.Token.Token.ID
		out["download_url"] = res.Token.DownloadURL
		out["expires_at"] = res.Token.Token.ExpiresAt
	}
	return out
}
