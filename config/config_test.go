package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "MONGODB_URI", "MONGODB_DATABASE", "MONGODB_COLLECTION", "RUN_ONCE", "PORT", "BATCH_SIZE", "T5_BATCH_SIZE", "DB_BATCH_SIZE", "STARTUP_DELAY_MINUTES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := Load()

	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, defaultMongoURI, cfg.MongoURI)
	assert.Equal(t, "leases", cfg.MongoDatabase)
	assert.Equal(t, "leases", cfg.MongoCollection)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, 32, cfg.T5BatchSize)
	assert.Equal(t, 500, cfg.DBBatchSize)
	assert.Equal(t, 4*time.Minute, cfg.StartupDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("PORT", "9090")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("STARTUP_DELAY_MINUTES", "10")

	cfg := Load()

	assert.Equal(t, "postgres://example", cfg.DatabaseURL)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.StartupDelay)
}

func TestLoadInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	cfg := Load()
	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
}

func TestLoadNegativeStartupDelayFallsBackToDefault(t *testing.T) {
	t.Setenv("STARTUP_DELAY_MINUTES", "-5")
	cfg := Load()
	assert.Equal(t, time.Duration(defaultStartupDelayMinutes)*time.Minute, cfg.StartupDelay)
}
