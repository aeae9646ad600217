package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/export"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/schedule"
	"github.com/Alijeyrad/careflow_backend/internal/service/token"
	"github.com/Alijeyrad/careflow_backend/internal/service/workflow"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
	"github.com/Alijeyrad/careflow_backend/pkg/clock"
	"github.com/Alijeyrad/careflow_backend/pkg/crypto"
	pasetotoken "github.com/Alijeyrad/careflow_backend/pkg/paseto"
	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvidePolicyLookup,
		ProvideWorkflowService,
		ProvideTokenService,
		ProvideProducers,
		ProvideArtifactStore,
		ProvideExecutor,
		ProvideDownloader,
		schedule.NewRunGuard,
		ProvideScheduleService,
		ProvidePasetoManager,
	),
)

func ProvidePolicyLookup(cfg *config.Config, rdb *redis.Client) (policy.Lookup, error) {
	return policy.New(cfg.Policy, rdb)
}

func ProvideWorkflowService(db *repo.Client, policies policy.Lookup, dir *authorize.Directory, clk clock.Clock) workflow.Service {
	return workflow.New(db, policies, dir, clk)
}

func ProvideTokenService(db *repo.Client, clk clock.Clock, cfg *config.Config) token.Service {
	return token.New(db.Tokens, clk, token.Config{
		DownloadBaseURL: cfg.Exports.DownloadBaseURL,
		Codes:           codes.FromCentralConfig(cfg.Codes),
	})
}

func ProvideProducers(db *repo.Client, policies policy.Lookup) export.Producers {
	return export.NewProducers(db, policies)
}

func ProvideArtifactStore(backend export.BlobBackend, cfg *config.Config) (export.ArtifactStore, error) {
	sealer, err := crypto.NewSealer(cfg.Exports.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return export.NewArtifactStore(backend, sealer), nil
}

func ProvideExecutor(
	producers export.Producers,
	artifacts export.ArtifactStore,
	tokens token.Service,
	db *repo.Client,
	clk clock.Clock,
	cfg *config.Config,
) export.Executor {
	return export.NewExecutor(producers, artifacts, tokens, db.ExportLogs, clk, export.ExecutorConfig{
		ArtifactPrefix:      cfg.Exports.ArtifactPrefix,
		DefaultExpiresHours: cfg.Exports.DefaultExpiresHours,
	})
}

func ProvideDownloader(
	tokens token.Service,
	artifacts export.ArtifactStore,
	producers export.Producers,
	db *repo.Client,
	clk clock.Clock,
) *export.Downloader {
	return export.NewDownloader(tokens, artifacts, producers, db.ExportLogs, clk)
}

func ProvideScheduleService(
	db *repo.Client,
	exec export.Executor,
	policies policy.Lookup,
	guard *schedule.RunGuard,
	clk clock.Clock,
	cfg *config.Config,
) schedule.Service {
	return schedule.New(db.Schedules, exec, policies, guard, clk, schedule.Config{
		DefaultExpiresHours: cfg.Exports.DefaultExpiresHours,
		ExecTimeout:         cfg.Scheduler.ExecutionTimeout(),
	})
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}
