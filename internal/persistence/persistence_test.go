package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ticketly/ticket-service/internal/config"
)

func TestMigrationNamesAreEmbeddedInOrder(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/0001_init.sql", names[0])

	content, err := migrationFiles.ReadFile(names[0])
	require.NoError(t, err)
	sql := string(content)
	for _, constraint := range []string{"users_email_key", "users_phone_key", "tickets_screenshot_key", "ON DELETE CASCADE"} {
		assert.True(t, strings.Contains(sql, constraint), constraint)
	}
	assert.NotContains(t, sql, "CREATE EXTENSION", "the schema must apply without superuser rights")
}

func TestUnconfiguredBackends(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	pg, err := NewPostgres(ctx, config.PostgresConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.ErrorIs(t, pg.Ping(ctx), ErrNotConfigured)
	pg.Close()

	rdb := NewRedis(ctx, config.RedisConfig{}, logger)
	assert.False(t, rdb.Enabled())
	assert.ErrorIs(t, rdb.Ping(ctx), ErrNotConfigured)
	rdb.Close()

	assert.NoError(t, RunMigrations(ctx, nil, logger))
}
