package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesOriginalConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 800, cfg.QueueCap)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Len(t, cfg.ScoreWindows, 5)
}

func TestParseAppliesFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldWd)
	require.NoError(t, os.Chdir(dir))

	cfg, err := Parse([]string{"-p", "9999"})
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
}

func TestLoadFileOverridesDefaultsAndIsAdditive(t *testing.T) {
	dir := t.TempDir()
	tomlBody := `
port = 9090
workers = 16
keepalive_ms = 2500
extra_trusted_proxies = ["203.0.113.0/24"]

[score_windows.score_hour]
interval_seconds = 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "turfwar.toml"), []byte(tomlBody), 0o644))

	cfg := Default()
	require.NoError(t, loadFile(dir, &cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 2500*time.Millisecond, cfg.KeepAlive)
	assert.Equal(t, []string{"203.0.113.0/24"}, cfg.ExtraProxies)

	for _, w := range cfg.ScoreWindows {
		if w.Name == "score_hour" {
			assert.Equal(t, 5*time.Second, w.Interval)
		}
	}
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg := Default()
	require.NoError(t, loadFile(t.TempDir(), &cfg))
}

func TestLoadFileMalformedIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "turfwar.toml"), []byte("not valid toml :::"), 0o644))
	cfg := Default()
	assert.Error(t, loadFile(dir, &cfg))
}

func TestParseRejectsInvalidWorkerCount(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldWd)
	require.NoError(t, os.Chdir(dir))

	_, err = Parse([]string{"-w", "0"})
	assert.Error(t, err)
}
