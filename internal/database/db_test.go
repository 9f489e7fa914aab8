package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNParsesBack(t *testing.T) {
	dsn := Options{User: "app", Pass: "s3cret", Host: "db", Port: "3306", Name: "field_booking"}.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "field_booking", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	schema, err := fs.ReadFile(migrationsFS, "migrations/00001_init_schema.sql")
	require.NoError(t, err)
	body := string(schema)
	assert.True(t, strings.HasPrefix(body, "-- +goose Up"))
	assert.Contains(t, body, "-- +goose Down")
	assert.Contains(t, body, "UNIQUE KEY unique_booking_slot (field_id, booking_date, start_time, end_time, active_slot)")
}
