package http

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/api/http/router"
	"github.com/Alijeyrad/careflow_backend/internal/app"
)

// Start runs the API. With scheduler.embedded the trigger and event
// workers run in the same process.
func Start(cfg *config.Config, timeout time.Duration) {
	opts := []fx.Option{
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		router.Module,
		Module,

		// NewServer registers the listener hook, so something must ask for the app
		fx.Invoke(func(*fiber.App) {}),

		fx.StopTimeout(timeout),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}
	if cfg.Scheduler.Embedded {
		opts = append(opts, app.WorkerModule)
	}
	fx.New(opts...).Run()
}
