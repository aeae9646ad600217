package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/database"
	"github.com/Alijeyrad/careflow_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/careflow_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/careflow_backend/pkg/s3"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideRepoClient),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideDirectory),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideArtifactBackend),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvideClock),
)

// ProvideRepoClient opens Postgres, or process-local stores when
// storage.driver is memory.
func ProvideRepoClient(lc fx.Lifecycle, cfg *config.Config) (*repo.Client, error) {
	if cfg.Storage.Driver == "memory" {
		slog.Warn("using in-memory storage; data is lost on restart")
		return repo.NewMemoryClient(), nil
	}

	ctx := context.Background()
	client, err := database.NewEntClient(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrations.AutoMigrate {
		if err := database.MigrateEnt(ctx, client, cfg.Database.Migrations); err != nil {
			client.Close()
			return nil, err
		}
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return client.Close()
		},
	})
	return client, nil
}

// ProvideRedis returns nil when no address is configured; sessions, rate
// limiting, the policy cache and the leader lock are then skipped.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		slog.Warn("redis address not configured, running without redis")
		return nil, nil
	}
	rdb, err := redispkg.NewRedisFromCentral(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	authCfg := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(authCfg, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, err
	}
	auth, err := authorize.NewAuthorization(enforcer, authCfg)
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}
	if authCfg.PolicyFile != "" {
		// file-backed policy starts empty on a fresh checkout
		if err := authorize.SeedDefaultPolicies(context.Background(), auth); err != nil {
			cleanup(context.Background())
			return nil, err
		}
	}
	if cfg.Authorization.EnableAudit {
		auth = authorize.NewAuditedAuthorization(auth, slog.Default())
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("cleaning up Casbin enforcer")
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvideDirectory(auth authorize.IAuthorization) *authorize.Directory {
	return authorize.NewDirectory(auth)
}

// ProvideArtifactBackend picks where rendered exports are kept.
func ProvideArtifactBackend(cfg *config.Config) (export.BlobBackend, error) {
	if cfg.Exports.ArtifactStore == "memory" {
		return export.NewMemoryBlobs(), nil
	}
	cli, err := s3pkg.New(cfg.S3)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

// ProvideNatsClient connects to NATS. Without a URL the scoring subscriber
// stays off and a nil connection is provided.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Warn("nats.url is empty; scoring completion events will not be consumed")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name("careflow"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideClock() clock.Clock {
	return clock.System{}
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Server.Environment,
		TracingEnabled: cfg.Observability.Tracing.Enabled,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.Tracing.OTLPInsecure,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
