package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/workflow"
)

type WorkflowHandler struct {
	svc workflow.Service
}

func NewWorkflowHandler(svc workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

func mapWorkflowError(c fiber.Ctx, err error) error {
	var te *workflow.TransitionError
	switch {
	case errors.As(err, &te):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     err.Error(),
			"current":   te.From,
			"attempted": te.To,
			"allowed":   te.Allowed,
		})
	case errors.Is(err, workflow.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, workflow.ErrAlreadyAssigned),
		errors.Is(err, workflow.ErrConflict):
		return conflict(c, err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, workflow.ErrInvalidStatus):
		return invalidField(c, "status", err.Error())
	case errors.Is(err, workflow.ErrInvalidFilter):
		return badRequest(c, err.Error())
	case errors.Is(err, workflow.ErrUnknownCheck):
		return invalidField(c, "check_type", err.Error())
	case errors.Is(err, workflow.ErrAssigneeNotMember):
		return invalidField(c, "assigned_to", err.Error())
	default:
		return internalError(c)
	}
}

// ---------------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------------

// GET /workflow/queue
func (h *WorkflowHandler) Queue(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}

	var q struct {
		Status   string `query:"status"`
		Assigned string `query:"assigned"`
		UnitID   string `query:"unit_id"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}

	f := workflow.QueueFilter{Status: q.Status, Assigned: q.Assigned}
	if q.UnitID != "" {
		unitID, err := uuid.Parse(q.UnitID)
		if err != nil {
			return invalidField(c, "unit_id", "invalid unit_id")
		}
		f.UnitID = &unitID
	}

	items, err := h.svc.ListQueue(c.Context(), actor, f)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, items)
}

// ---------------------------------------------------------------------------
// Assessments
// ---------------------------------------------------------------------------

// GET /assessments/:id
func (h *WorkflowHandler) GetAssessment(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid assessment id")
	}

	item, err := h.svc.GetAssessment(c.Context(), actor, id)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, item)
}

// PATCH /assessments/:id
func (h *WorkflowHandler) UpdateStatus(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid assessment id")
	}

	var body struct {
		Status repo.AssessmentStatus `json:"status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Status == "" {
		return invalidField(c, "status", "status is required")
	}

	item, err := h.svc.Transition(c.Context(), actor, id, body.Status)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, item)
}

// PATCH /assessments/:id/assign
//
// assigned_to is a user id, "me", or null to release the item.
func (h *WorkflowHandler) Assign(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid assessment id")
	}

	var body struct {
		AssignedTo json.RawMessage `json:"assigned_to"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(body.AssignedTo) == 0 {
		return invalidField(c, "assigned_to", "assigned_to is required")
	}

	if string(body.AssignedTo) == "null" {
		item, err := h.svc.Unassign(c.Context(), actor, id)
		if err != nil {
			return mapWorkflowError(c, err)
		}
		return ok(c, item)
	}

	var raw string
	if err := json.Unmarshal(body.AssignedTo, &raw); err != nil {
		return invalidField(c, "assigned_to", "assigned_to must be a user id, \"me\" or null")
	}
	assignee := actor.UserID
	if raw != "me" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return invalidField(c, "assigned_to", "assigned_to must be a user id, \"me\" or null")
		}
		assignee = parsed
	}

	item, err := h.svc.Claim(c.Context(), actor, id, assignee)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, item)
}

// ---------------------------------------------------------------------------
// Fall follow-ups
// ---------------------------------------------------------------------------

// POST /fall-events/:id/checks
func (h *WorkflowHandler) ToggleCheck(c fiber.Ctx) error {
	actor, valid := actorFromLocals(c)
	if !valid {
		return unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid fall event id")
	}

	var body struct {
		CheckType string `json:"check_type"`
		Completed *bool  `json:"completed"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.CheckType == "" {
		return invalidField(c, "check_type", "check_type is required")
	}
	if body.Completed == nil {
		return invalidField(c, "completed", "completed is required")
	}

	res, err := h.svc.ToggleCheck(c.Context(), actor, id, body.CheckType, *body.Completed)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, res)
}
