package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/schedule"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/internal/service/workflow"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/constants"
	redispkg "github.com/Alijeyrad/careflow_backend/pkg/redis"
)

// WorkerModule runs the schedule trigger and the NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Provide(ProvideTrigger),
	fx.Invoke(RegisterWorkers),
)

type TriggerParams struct {
	fx.In

	Cfg      *config.Config
	DB       *repo.Client
	Exec     export.Executor
	Policies policy.Lookup
	Tokens   token.Service
	Guard    *schedule.RunGuard
	Clock    clock.Clock
	Redis    *redis.Client `optional:"true"`
}

func ProvideTrigger(p TriggerParams) *schedule.Trigger {
	var locker schedule.Locker
	if p.Cfg.Scheduler.LeaderLock && p.Redis != nil {
		locker = redispkg.NewLocker(p.Redis)
	}
	return schedule.NewTrigger(p.DB.Schedules, p.DB.ExportLogs, p.Exec, p.Policies, p.Tokens, locker, p.Guard, p.Clock, schedule.TriggerConfig{
		PollInterval:  p.Cfg.Scheduler.PollInterval(),
		ExecTimeout:   p.Cfg.Scheduler.ExecutionTimeout(),
		MaxConcurrent: p.Cfg.Scheduler.MaxConcurrent,
		LockTTL:       p.Cfg.Scheduler.LockTTL(),
	})
}

type WorkerParams struct {
	fx.In

	Lc          fx.Lifecycle
	NC          *nats.Conn `optional:"true"`
	Trigger     *schedule.Trigger
	WorkflowSvc workflow.Service
}

func RegisterWorkers(p WorkerParams) {
	runCtx, cancel := context.WithCancel(context.Background())
	var sub *nats.Subscription

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go p.Trigger.Run(runCtx)
			if p.NC != nil {
				var err error
				sub, err = startScoringWorker(runCtx, p.NC, p.WorkflowSvc)
				if err != nil {
					return err
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if sub != nil {
				_ = sub.Unsubscribe()
			}

			done := make(chan struct{})
			go func() {
				p.Trigger.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				slog.Warn("trigger: shutdown before in-flight exports finished")
				return ctx.Err()
			}
		},
	})
}

// ---------------------------------------------------------------------------
// scoring_worker
// ---------------------------------------------------------------------------

// startScoringWorker consumes scoring completions. Delivery is at least
// once; ApplyScore is idempotent so redelivery is harmless.
func startScoringWorker(ctx context.Context, nc *nats.Conn, svc workflow.Service) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(constants.SubjectScoringCompleted, constants.AppName+"-scoring", func(msg *nats.Msg) {
		item, err := workflow.HandleScoringMessage(ctx, svc, msg.Subject, msg.Data)
		switch {
		case errors.Is(err, workflow.ErrNotFound):
			slog.Warn("scoring_worker: assessment not found", "subject", msg.Subject)
		case err != nil:
			slog.Error("scoring_worker: apply score failed", "subject", msg.Subject, "err", err)
		default:
			slog.Info("scoring_worker: score applied",
				"assessment_id", item.ID, "status", item.Status, "risk_tier", item.RiskTier)
		}
	})
	if err != nil {
		slog.Error("scoring_worker: subscribe failed", "err", err)
		return nil, err
	}
	slog.Info("scoring_worker: started", "subject", constants.SubjectScoringCompleted)
	return sub, nil
}
