package database

import (
	"context"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

// NewEntClient opens the work-queue/export database behind the ent SQL driver.
func NewEntClient(ctx context.Context, cfg config.DatabaseConfig) (*repo.Client, error) {
	db, err := openSQLDB(ctx, NewDSN(cfg), cfg.Pool)
	if err != nil {
		return nil, err
	}
	return repo.NewClient(entsql.OpenDB(dialect.Postgres, db)), nil
}

// MigrateEnt creates or upgrades the tables owned by this service. Outside
// safe mode, columns and indexes missing from the schema are dropped.
func MigrateEnt(ctx context.Context, client *repo.Client, m config.DatabaseMigrationConfig) error {
	var opts []schema.MigrateOption
	if !m.SafeMode {
		opts = append(opts, schema.WithDropColumn(true), schema.WithDropIndex(true))
	}
	return client.Schema.Create(ctx, opts...)
}
