package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/careflow_backend/internal/api/http/handler"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
)

func (r *Router) registerWorkflowRoutes(
	api fiber.Router,
	wh *handler.WorkflowHandler,
	authRequired fiber.Handler,
	facilityCtx fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	api.Get("/workflow/queue", authRequired, facilityCtx, requirePerm(authorize.ResourceWorkItem, authorize.ActionList), wh.Queue)

	assessments := api.Group("/assessments", authRequired, facilityCtx)
	assessments.Get("/:id", requirePerm(authorize.ResourceAssessment, authorize.ActionRead), wh.GetAssessment)
	assessments.Patch("/:id", requirePerm(authorize.ResourceAssessment, authorize.ActionUpdate), wh.UpdateStatus)
	assessments.Patch("/:id/assign", requirePerm(authorize.ResourceWorkItem, authorize.ActionAssign), wh.Assign)

	falls := api.Group("/fall-events", authRequired, facilityCtx)
	falls.Post("/:id/checks", requirePerm(authorize.ResourceFallEvent, authorize.ActionUpdate), wh.ToggleCheck)
}
