package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 6*time.Second, cfg.Sync.Interval)
	require.Equal(t, 3, cfg.Sync.FailureLimit)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fxlane.yaml")
	doc := []byte("backend:\n  baseUrl: https://backend.test\n  httpTimeout: 3s\nsync:\n  interval: 2s\n  failureLimit: 5\n")
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://backend.test", cfg.Backend.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Backend.HTTPTimeout)
	require.Equal(t, 2*time.Second, cfg.Sync.Interval)
	require.Equal(t, 5, cfg.Sync.FailureLimit)
	// untouched values keep defaults
	require.Equal(t, Default().Backend.WSURL, cfg.Backend.WSURL)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fxlane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  baseUrl: https://from-file.test\n"), 0o600))

	t.Setenv("FXLANE_BACKEND_URL", "https://from-env.test")
	t.Setenv("FXLANE_POLL_INTERVAL", "9s")
	t.Setenv("FXLANE_POLL_FAILURE_LIMIT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://from-env.test", cfg.Backend.BaseURL)
	require.Equal(t, 9*time.Second, cfg.Sync.Interval)
	require.Equal(t, 7, cfg.Sync.FailureLimit)
}

func TestLoadRejectsBrokenSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fxlane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  interval: -1s\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestFromEnvIgnoresMalformedDurations(t *testing.T) {
	t.Setenv("FXLANE_HTTP_TIMEOUT", "soon")
	cfg := FromEnv()
	require.Equal(t, Default().Backend.HTTPTimeout, cfg.Backend.HTTPTimeout)
}
