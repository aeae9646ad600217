package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	entadapter "github.com/casbin/ent-adapter"
)

// WatcherChannel is the Postgres NOTIFY channel policy changes are sent on.
const WatcherChannel = "careflow_casbin_policy"

// policyStale is set when a watcher-triggered reload fails, so readiness
// probes fail until a later reload succeeds.
var (
	policyStale       atomic.Bool
	policyHealthCheck atomic.Bool
)

// IsPolicyHealthy reports false after a failed policy reload, when health
// checking is enabled.
func IsPolicyHealthy() bool {
	return !policyHealthCheck.Load() || !policyStale.Load()
}

type CleanupFunc func(ctx context.Context)

// NewEnforcer builds the DistributedEnforcer. With cfg.PolicyFile set the
// policy lives in a CSV file (dev and the memory storage driver); otherwise
// it is kept in Postgres via the ent adapter and, with PolicySyncEnabled,
// replicas reload on NOTIFY.
func NewEnforcer(cfg Config, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	policyHealthCheck.Store(cfg.HealthCheckEnabled)
	policyStale.Store(false)

	if cfg.PolicyFile != "" {
		return newFileEnforcer(cfg)
	}

	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin ent adapter: %w", err)
	}
	e, err := casbin.NewDistributedEnforcer(cfg.CasbinModelPath, a)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	if !cfg.PolicySyncEnabled {
		return e, func(context.Context) {}, nil
	}

	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
		Channel: WatcherChannel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("casbin watcher: %w", err)
	}
	if err := w.SetUpdateCallback(func(msg string) { reloadPolicy(e, msg) }); err != nil {
		w.Close()
		return nil, nil, err
	}
	if err := e.SetWatcher(w); err != nil {
		w.Close()
		return nil, nil, err
	}

	cleanup := func(context.Context) {
		w.Close()
		e.StopAutoLoadPolicy()
		slog.Info("authz: policy watcher closed")
	}
	return e, cleanup, nil
}

func newFileEnforcer(cfg Config) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	if _, err := os.Stat(cfg.PolicyFile); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.PolicyFile, nil, 0o600); err != nil {
			return nil, nil, fmt.Errorf("create policy file: %w", err)
		}
	}
	e, err := casbin.NewDistributedEnforcer(cfg.CasbinModelPath, fileadapter.NewAdapter(cfg.PolicyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	// the file adapter only persists on SavePolicy
	e.EnableAutoSave(false)
	e.EnableEnforce(true)
	return e, func(context.Context) {}, nil
}

func reloadPolicy(e *casbin.DistributedEnforcer, msg string) {
	slog.Debug("authz: policy update received", "message", msg)
	if err := e.LoadPolicy(); err != nil {
		slog.Error("authz: policy reload failed", "error", err)
		policyStale.Store(true)
		return
	}
	policyStale.Store(false)
}

// PersistPolicy writes the in-memory policy back for adapters without
// auto-save. It is a no-op for the Postgres adapter.
func PersistPolicy(auth IAuthorization, cfg Config) error {
	if cfg.PolicyFile == "" {
		return nil
	}
	return auth.Raw().SavePolicy()
}
