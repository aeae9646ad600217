package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/config"
)

func TestNewDSN(t *testing.T) {
	dsn := NewDSN(config.DatabaseConfig{
		Host:     "db",
		User:     "careflow",
		Password: "it's secret",
		DBName:   "careflow",
	})
	assert.Equal(t, `host=db port=5432 user=careflow password='it\'s secret' dbname=careflow sslmode=disable`, dsn)

	dsn = NewDSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "u", DBName: "x", SSLMode: "require"})
	assert.Contains(t, dsn, "port=6543")
	assert.Contains(t, dsn, "password=''")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestEnsureDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lookup := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`)

	mock.ExpectQuery(lookup).WithArgs("careflow").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	created, err := ensureDatabase(context.Background(), db, "careflow")
	require.NoError(t, err)
	assert.False(t, created)

	mock.ExpectQuery(lookup).WithArgs("careflow_casbin").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "careflow_casbin"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = ensureDatabase(context.Background(), db, "careflow_casbin")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}
