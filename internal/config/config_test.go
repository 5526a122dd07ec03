package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the data dir at a temp directory and clears
// every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BARVIEW_DATA_DIR", dir)
	for _, k := range []string{
		"BARVIEW_PROFILES", "BARVIEW_PROFILE", "BARVIEW_DEBUG",
		"BARVIEW_PRIOR_SUBTOTAL", "BARVIEW_TZ",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"DB_SSL_DISABLED",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeConfig(t *testing.T, dir string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), b, 0o600,
	))
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)
	cfg, err := LoadMinimal()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "connections.toml"), cfg.ProfilesPath)
	assert.Equal(t, "mysql", cfg.Profile)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 20, cfg.Limits.TopProducts)
	assert.Equal(t, 10, cfg.Limits.RecentOrders)
}

func TestLoadLayering(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, map[string]any{
		"port":    9000,
		"profile": "replica",
		"debug":   true,
		"limits":  map[string]any{"detail": 50},
	})

	cfg, err := LoadMinimal()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "replica", cfg.Profile)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 50, cfg.Limits.Detail)
	assert.Equal(t, 20, cfg.Limits.TopProducts, "unset limits keep defaults")

	t.Setenv("BARVIEW_PROFILE", "staging")
	t.Setenv("BARVIEW_DEBUG", "false")
	cfg, err = LoadMinimal()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Profile)
	assert.False(t, cfg.Debug)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	RegisterServeFlags(fs)
	require.NoError(t, fs.Parse([]string{"-profile", "local", "-port", "9100"}))
	cfg, err = Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Profile)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host, "unset flags do not override")
}

func TestLoadRejectsBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("BARVIEW_DEBUG", "maybe")
	_, err := LoadMinimal()
	assert.ErrorContains(t, err, "BARVIEW_DEBUG")
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), []byte("{"), 0o600,
	))
	_, err := LoadMinimal()
	assert.ErrorContains(t, err, "parsing config")
}

func TestLocation(t *testing.T) {
	loc, err := Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = Config{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
