package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alijeyrad/careflow_backend/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	pingTimeout            = 5 * time.Second
)

// NewDSN renders a lib/pq keyword/value connection string.
func NewDSN(c config.DatabaseConfig) string {
	return dsnFor(c, c.DBName)
}

func dsnFor(c config.DatabaseConfig, dbName string) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	pairs := []string{
		"host=" + quoteValue(c.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteValue(c.User),
		"password=" + quoteValue(c.Password),
		"dbname=" + quoteValue(dbName),
		"sslmode=" + sslMode,
	}
	return strings.Join(pairs, " ")
}

// quoteValue escapes per the libpq connection string rules.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func openSQLDB(ctx context.Context, dsn string, pool config.DatabasePoolConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(orDefault(pool.MaxOpenConns, defaultMaxOpenConns))
	conn.SetMaxIdleConns(orDefault(pool.MaxIdleConns, defaultMaxIdleConns))
	lifetime := defaultConnMaxLifetime
	if pool.ConnMaxLifetimeMin > 0 {
		lifetime = time.Duration(pool.ConnMaxLifetimeMin) * time.Minute
	}
	conn.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
