package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/backend"
	"pulse/internal/config"
	"pulse/internal/sources/files"
)

func TestSetupLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	logger := SetupLogger()
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "loud")
	logger = SetupLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PULSE_TEST_FROM_ENV_FILE=loaded\nPULSE_TEST_PRESET=file\n"), 0o600))
	t.Setenv("PULSE_TEST_PRESET", "env")
	t.Cleanup(func() { _ = os.Unsetenv("PULSE_TEST_FROM_ENV_FILE") })

	LoadEnvFile(path, filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "loaded", os.Getenv("PULSE_TEST_FROM_ENV_FILE"))
	assert.Equal(t, "env", os.Getenv("PULSE_TEST_PRESET"))
}

func TestCleanupInterval(t *testing.T) {
	assert.Equal(t, 10*time.Second, cleanupInterval(time.Second))
	assert.Equal(t, 30*time.Second, cleanupInterval(time.Minute))
	assert.Equal(t, 5*time.Minute, cleanupInterval(time.Hour))
}

func TestNewDatasetService(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agg_user.csv"),
		[]byte("State,Year,Quarter,Brand,UserCount\nGoa,2022,1,Vivo,30\n"), 0o600))

	cfg := &config.Config{CacheSize: 4, CacheTTL: time.Minute}
	ds, mgr := NewDatasetService(SetupLogger(), cfg, &backend.BackendResult{Reader: files.New(dir)})
	defer mgr.Stop()

	tbl, err := ds.Load(context.Background(), "agg_user.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"agg_user.csv"}, ds.Cached())
	assert.Equal(t, 0, mgr.CleanNow())
}
