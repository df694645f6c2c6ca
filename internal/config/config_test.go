package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "STORE_DRIVER", "SQLITE_PATH", "EMBEDDING_PROVIDER", "EMBEDDING_TIMEOUT",
		"EMBED_ON_INGEST", "INDEX_DIR", "INDEX_FLUSH_INTERVAL", "CONFLICT_MIN_SEVERITY",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL", "EMBEDDING_DIMENSIONS",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "postgres", StoreDriver())
	assert.Equal(t, "data/credo.db", SQLitePath())
	assert.Equal(t, "openai", EmbeddingProvider())
	assert.Equal(t, 10*time.Second, EmbeddingTimeout())
	assert.True(t, EmbedOnIngest())
	assert.Equal(t, "data/index", IndexDir())
	assert.Equal(t, time.Minute, IndexFlushInterval())
	assert.Equal(t, "moderate", ConflictMinSeverity())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, 64, EmbeddingDimensions())
}

func TestOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("EMBEDDING_TIMEOUT", "250ms")
	t.Setenv("EMBED_ON_INGEST", "false")
	t.Setenv("INDEX_FLUSH_INTERVAL", "-5s")
	t.Setenv("EMBEDDING_PROVIDER", "mock")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	assert.Equal(t, ":9090", ServerAddr())
	assert.Equal(t, "sqlite", StoreDriver())
	assert.Equal(t, 250*time.Millisecond, EmbeddingTimeout())
	assert.False(t, EmbedOnIngest())
	assert.Equal(t, time.Minute, IndexFlushInterval(), "non-positive durations fall back")
	assert.Empty(t, EmbeddingAPIKey(), "mock provider needs no key")
}

func TestLoad_SecretSidecar(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CREDO_TEST_PLAIN=plain\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("CREDO_TEST_SECRET=hunter2\n"), 0o600))

	t.Setenv("CREDO_ENV", envFile)
	t.Setenv("CREDO_TEST_PLAIN", "")
	t.Setenv("CREDO_TEST_SECRET", "")
	require.NoError(t, os.Unsetenv("CREDO_TEST_PLAIN"))
	require.NoError(t, os.Unsetenv("CREDO_TEST_SECRET"))

	require.NoError(t, Load())
	assert.Equal(t, "plain", os.Getenv("CREDO_TEST_PLAIN"))
	assert.Equal(t, "hunter2", os.Getenv("CREDO_TEST_SECRET"))
}
