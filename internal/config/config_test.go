package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/timecard/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := writeFile(t, `
env: prod
store:
  backend: sheets
  spreadsheet_id: abc123
  timeout: 2s
attendance:
  min_interval: 1s
  debounce_shared: false
readers:
  - id: front-door
    mode: in
  - id: back-door
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, config.BackendSheets, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, time.Second, cfg.Attendance.MinInterval)
	assert.False(t, cfg.Attendance.DebounceShared)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Attendance.StatusCacheTTL)
	assert.Equal(t, "Records", cfg.Store.RecordsSheet)

	require.Len(t, cfg.Readers, 2)
	assert.Equal(t, "in", cfg.Readers[0].Mode)
	assert.Equal(t, "toggle", cfg.Readers[1].Mode)
	assert.Equal(t, []string{"front-door", "back-door"}, cfg.ReaderIDs())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "http:\n  addr: \":9000\"\n")
	t.Setenv("TIMECARD_HTTP_ADDR", ":7000")
	t.Setenv("TIMECARD_STATUS_CACHE_TTL", "10s")
	t.Setenv("TIMECARD_READERS", "a, b")
	t.Setenv("TIMECARD_HEARTBEAT_RETENTION_DAYS", "not-a-number")
	t.Setenv("TIMECARD_ENV", "staging")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.Attendance.StatusCacheTTL)
	assert.Equal(t, []string{"a", "b"}, cfg.ReaderIDs())
	assert.Equal(t, 30, cfg.Retention.HeartbeatDays, "bad values fall back")
	assert.Equal(t, "dev", cfg.Env, "unknown env fails soft to dev")
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "store:\n  backend: redis\n",
		"sheets without id": "store:\n  backend: sheets\n",
		"bad mode":          "readers:\n  - id: r1\n    mode: sideways\n",
		"missing reader id": "readers:\n  - mode: in\n",
		"bad location":      "attendance:\n  location: Mars/Olympus\n",
		"bad yaml":          "store: [",
	}
	for name, body := range cases {
		_, err := config.Load(writeFile(t, body))
		assert.Error(t, err, name)
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}
