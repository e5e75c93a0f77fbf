package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/afrodite/datingcore/test/util"
)

func TestCheckHealthReportsPoolStats(t *testing.T) {
	entClient, db := testutil.SetupTestDatabase(t)
	client := NewClientFromEnt(entClient, db)

	health := client.CheckHealth(context.Background())

	assert.True(t, health.OK)
	assert.Empty(t, health.Error)
	assert.GreaterOrEqual(t, health.OpenConns, 1)
}

func TestCheckHealthReportsErrorOnClosedPool(t *testing.T) {
	entClient, db := testutil.SetupTestDatabase(t)
	client := NewClientFromEnt(entClient, db)
	require.NoError(t, db.Close())

	health := client.CheckHealth(context.Background())

	assert.False(t, health.OK)
	assert.NotEmpty(t, health.Error)
}

func TestLoadConfigFromEnvFallsBackToDefaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	assert.NotEmpty(t, cfg.Host)
	assert.NotZero(t, cfg.Port)
	assert.Greater(t, cfg.MaxOpenConns, 0)
}
