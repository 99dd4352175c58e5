package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Resolver.TTL)
	assert.Equal(t, "memory", cfg.Resolver.Backend)
	assert.Equal(t, "log", cfg.Audit.Sink)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2048, cfg.FailureMaxLength)
	assert.NotEmpty(t, cfg.Worker.NodeID)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CATS_SERVER_PORT", "9090")
	t.Setenv("CATS_RESOLVER_TTL", "0s")
	t.Setenv("CATS_WORKER_NODE_ID", "node-7")
	t.Setenv("CATS_TOOLS_CATOOL_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/cats")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Resolver.TTL)
	assert.Equal(t, "node-7", cfg.Worker.NodeID)
	assert.Equal(t, "s3cret", cfg.Tools.Catool.Secret)
	assert.Equal(t, "postgres://localhost/cats", cfg.Database.URL)
}

func TestLoadFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
realm: eu
audit:
  sink: kafka
  brokers:
    - "kafka-1:9092"
    - "kafka-2:9092"
  topic: catalog-audit
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CATS_LOGGING_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("CATS_LOGGING_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "eu", cfg.Realm)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("kafka without brokers", func(t *testing.T) {
		t.Setenv("CATS_AUDIT_SINK", "kafka")
		_, err := Load("")
		assert.ErrorContains(t, err, "audit.brokers")
	})
	t.Run("redis without addr", func(t *testing.T) {
		t.Setenv("CATS_RESOLVER_BACKEND", "redis")
		_, err := Load("")
		assert.ErrorContains(t, err, "resolver.redis_addr")
	})
	t.Run("unknown sink", func(t *testing.T) {
		t.Setenv("CATS_AUDIT_SINK", "stdout")
		_, err := Load("")
		assert.ErrorContains(t, err, "audit.sink")
	})
}
