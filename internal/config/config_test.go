package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, 10*time.Second, c.Engine.FetchTimeout)
	assert.Equal(t, 2000, c.Cache.MaxSize)
	assert.Equal(t, "gad_dlih_safs", c.DW.Layout.Schema)
	assert.True(t, c.DW.Breaker.Enabled)
	assert.Equal(t, uint32(5), c.DW.Breaker.MaxFailures)
	assert.Equal(t, "public.empenho", c.Commitments.Table)
	assert.Equal(t, "America/Sao_Paulo", c.App.Timezone)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: dev
postgres:
  dsn: postgres://app@localhost/app
dw:
  dsn: postgres://dw@localhost/dw
  layout:
    schema: other
    material_column: cod
engine:
  fetch_timeout: 2s
cache:
  ttls:
    totals: 30s
`), 0o600))
	t.Setenv("APP_ENGINE_DASHBOARD_BATCH", "250")
	t.Setenv("APP_HTTP_ADDR", ":9090")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, "postgres://app@localhost/app", c.Postgres.DSN)
	assert.Equal(t, "other", c.DW.Layout.Schema)
	assert.Equal(t, "cod", c.DW.Layout.MaterialColumn)
	assert.Equal(t, 2*time.Second, c.Engine.FetchTimeout)
	assert.Equal(t, 250, c.Engine.DashboardBatch)
	assert.Equal(t, ":9090", c.HTTP.Addr)
	assert.Equal(t, 30*time.Second, c.Cache.TTLs["totals"])
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_DW_DSN=postgres://from-dotenv/dw\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("APP_DW_DSN") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-dotenv/dw", c.DW.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("nope.yaml")
	assert.Error(t, err)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	var c Config
	c.App.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, c.Location())
}
