package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndValidate_FillsDefaults(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\n")

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultArtifactBaseURL, cfg.Artifacts.BaseURL)
	assert.Equal(t, DefaultPrimaryThreshold, cfg.Prediction.PrimaryThreshold)
	assert.Equal(t, DefaultSecondaryThreshold, cfg.Prediction.SecondaryThreshold)
	assert.Equal(t, DefaultCacheMaxSize, cfg.Cache.MaxSize)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.Cache.TTLSeconds)
	assert.Equal(t, DefaultFetchMaxAttempts, cfg.Fetch.MaxAttempts)
	assert.Equal(t, DefaultCDNConcurrency, cfg.Fetch.CDNConcurrency)
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTPPort)
}

func TestLoadAndValidate_OverridesKept(t *testing.T) {
	path := writeConfig(t, `version: "1"
prediction:
  primary_threshold: 85
  secondary_threshold: 95
cache:
  max_size: 50
  ttl_seconds: 60
`)

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)

	assert.Equal(t, 85.0, cfg.Prediction.PrimaryThreshold)
	assert.Equal(t, 95.0, cfg.Prediction.SecondaryThreshold)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
}

func TestLoadAndValidate_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing version", "cache:\n  max_size: 10\n"},
		{"negative max_size", "version: \"1\"\ncache:\n  max_size: -5\n"},
		{"threshold out of range", "version: \"1\"\nprediction:\n  primary_threshold: 150\n"},
		{"unknown key", "version: \"1\"\nratelimits:\n  rps: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)

			_, err := LoadAndValidate(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadAndValidate_RejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "version: [unclosed\n")

	_, err := LoadAndValidate(path)
	assert.Error(t, err)
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
