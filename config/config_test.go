package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log/writer"
)

type window struct {
	Limit  int           `mapstructure:"limit" default:"100" validate:"gt=0"`
	Window time.Duration `mapstructure:"window" default:"15m"`
}

type testConfig struct {
	Secret    string            `mapstructure:"secret" validate:"required,min=8"`
	Addr      string            `mapstructure:"addr" default:":8080"`
	General   window            `mapstructure:"general"`
	Rotate    writer.RotateMode `mapstructure:"rotate"`
	SkipPaths []string          `mapstructure:"skip_paths"`
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
secret: a-long-secret
general:
  limit: 7
rotate: size
skip_paths: /health,/metrics
`)

	var cfg testConfig
	require.NoError(t, New(&cfg, WithFile(path)).Load())

	assert.Equal(t, "a-long-secret", cfg.Secret)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 7, cfg.General.Limit)
	assert.Equal(t, 15*time.Minute, cfg.General.Window)
	assert.Equal(t, writer.RotateModeSize, cfg.Rotate)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.SkipPaths)
}

func TestEnvOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "secret: from-file-secret\naddr: \":8080\"\n")
	t.Setenv("AUTHGATE_ADDR", ":9090")

	var cfg testConfig
	require.NoError(t, New(&cfg, WithFile(path), WithEnvPrefix("AUTHGATE")).Load())
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestValidationFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "secret: short\n")

	var cfg testConfig
	err := New(&cfg, WithFile(path)).Load()
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 400, e.GetCode())
}

func TestMissingFile(t *testing.T) {
	var cfg testConfig
	err := New(&cfg, WithFile(filepath.Join(t.TempDir(), "absent.yaml"))).Load()
	require.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "secret: first-secret\n")

	var cfg testConfig
	var reloads atomic.Int32
	c := New(&cfg, WithFile(path), OnChange(func() { reloads.Add(1) }))
	require.NoError(t, c.Load())
	require.NoError(t, c.Watch())

	writeFile(t, dir, "secret: second-secret\n")

	assert.Eventually(t, func() bool {
		var secret string
		c.Read(func(target any) { secret = target.(*testConfig).Secret })
		return secret == "second-secret"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return reloads.Load() > 0 }, time.Second, 10*time.Millisecond)
}
