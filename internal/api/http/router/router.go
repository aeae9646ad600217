package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/api/http/handler"
	"github.com/Alijeyrad/careflow_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/schedule"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/internal/service/workflow"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/careflow_backend/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg         *config.Config
	Redis       *redis.Client `optional:"true"`
	Auth        authorize.IAuthorization
	Directory   *authorize.Directory
	DB          *repo.Client
	WorkflowSvc workflow.Service
	ScheduleSvc schedule.Service
	TokenSvc    token.Service
	Downloads   *export.Downloader
	PasetoMgr   *pasetotoken.Manager
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Middlewares
	sessions := r.p.Redis
	if !r.p.Cfg.Authentication.SessionCheck {
		sessions = nil
	}
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, sessions)
	facilityCtx := middleware.FacilityContext(r.p.Directory)

	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Handlers
	workflowH := handler.NewWorkflowHandler(r.p.WorkflowSvc)
	scheduleH := handler.NewExportScheduleHandler(r.p.ScheduleSvc)
	exportH := handler.NewExportHandler(r.p.Downloads, r.p.TokenSvc, r.p.DB.ExportLogs, r.p.Cfg.Exports.DefaultExpiresHours)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerWorkflowRoutes(api, workflowH, authRequired, facilityCtx, requirePerm)
	r.registerExportRoutes(api, scheduleH, exportH, authRequired, facilityCtx, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
