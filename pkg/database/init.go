package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Alijeyrad/careflow_backend/config"
)

// InitializeDatabases creates every database in server.databases (the
// queue/export store and the casbin policy store) that does not exist yet.
// It connects through the maintenance "postgres" database.
func InitializeDatabases(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Server.Databases) == 0 {
		return errors.New("server.databases is empty")
	}

	conn, err := openSQLDB(ctx, dsnFor(cfg.Database, "postgres"), config.DatabasePoolConfig{MaxOpenConns: 1})
	if err != nil {
		return fmt.Errorf("connect to maintenance database: %w", err)
	}
	defer conn.Close()

	for _, name := range cfg.Server.Databases {
		created, err := ensureDatabase(ctx, conn, name)
		if err != nil {
			return fmt.Errorf("database %q: %w", name, err)
		}
		slog.Info("database ready", "name", name, "created", created)
	}
	return nil
}

func ensureDatabase(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup: %w", err)
	}
	if exists {
		return false, nil
	}
	// CREATE DATABASE cannot take bind parameters
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("create: %w", err)
	}
	return true, nil
}
