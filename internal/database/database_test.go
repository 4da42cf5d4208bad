package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/config"
)

func TestMigrationFiles(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_init.sql", names[0])

	body, err := migrations.ReadFile(names[0])
	require.NoError(t, err)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS number_ranges",
		"PRIMARY KEY (number_type, value)",
		"FUNCTION log_activity",
		"FUNCTION queue_notification",
		"CONSTRAINT bookings_status_check",
		"info_request     text          NOT NULL DEFAULT ''",
	} {
		assert.True(t, strings.Contains(string(body), want), "schema misses %q", want)
	}
}

func TestMigrationFiles_UpgradeBookings(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.Contains(t, names, "migrations/002_booking_review.sql")
	assert.Less(t, indexOf(names, "migrations/001_init.sql"), indexOf(names, "migrations/002_booking_review.sql"))

	body, err := migrations.ReadFile("migrations/002_booking_review.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ADD COLUMN IF NOT EXISTS info_request")
	assert.Contains(t, string(body), "ADD CONSTRAINT bookings_status_check")
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestNewPool_GivesUpWhenContextEnds(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.Host = "127.0.0.1"
	cfg.Port = "1" // nothing listens here
	cfg.ConnectAttempts = 3
	cfg.ConnectBackoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewPool(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
