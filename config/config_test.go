package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pledge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
backend: gini
metric: dice
generation:
  strategy: evolutionary
  count: 50
  budget: 30s
prioritization:
  strategy: near-optimal
  timeout: 2m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gini", cfg.Backend)
	assert.Equal(t, "dice", cfg.Metric)
	assert.Equal(t, "evolutionary", cfg.Generation.Strategy)
	assert.Equal(t, 50, cfg.Generation.Count)
	assert.Equal(t, 30*time.Second, cfg.Generation.Budget)
	assert.Equal(t, "near-optimal", cfg.Prioritization.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.Prioritization.Timeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().Oracle.EnumerationCap, cfg.Oracle.EnumerationCap)
	assert.Equal(t, Default().Generation.MaxStall, cfg.Generation.MaxStall)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":   "backend: [",
		"backend":  "backend: minisat",
		"metric":   "metric: euclid",
		"strategy": "generation:\n  strategy: random",
		"count":    "generation:\n  count: -1",
		"timeout":  "prioritization:\n  timeout: -1s",
	}
	for name, content := range tests {
		_, err := Load(writeFile(t, content))
		assert.Error(t, err, name)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Seed = 42
	cfg.Generation.Budget = 90 * time.Second
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Write(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
