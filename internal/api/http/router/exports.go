package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/careflow_backend/internal/api/http/handler"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
)

func (r *Router) registerExportRoutes(
	api fiber.Router,
	sh *handler.ExportScheduleHandler,
	eh *handler.ExportHandler,
	authRequired fiber.Handler,
	facilityCtx fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	// Public: the secret in the path is the credential
	api.Get("/exports/download/:secret", eh.Download)

	schedules := api.Group("/export-schedules", authRequired, facilityCtx)
	schedules.Get("/", requirePerm(authorize.ResourceExportSchedule, authorize.ActionList), sh.List)
	schedules.Post("/", requirePerm(authorize.ResourceExportSchedule, authorize.ActionCreate), sh.Create)
	schedules.Get("/:id", requirePerm(authorize.ResourceExportSchedule, authorize.ActionRead), sh.Get)
	schedules.Patch("/:id", requirePerm(authorize.ResourceExportSchedule, authorize.ActionUpdate), sh.Update)
	schedules.Post("/:id/run", requirePerm(authorize.ResourceExportSchedule, authorize.ActionExecute), sh.Run)

	exports := api.Group("/exports", authRequired, facilityCtx)
	exports.Post("/tokens", requirePerm(authorize.ResourceExportToken, authorize.ActionCreate), eh.IssueToken)
	exports.Delete("/tokens/:id", requirePerm(authorize.ResourceExportToken, authorize.ActionRevoke), eh.RevokeToken)
	exports.Get("/logs", requirePerm(authorize.ResourceExportLog, authorize.ActionList), eh.ListLogs)
}
