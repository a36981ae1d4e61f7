package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Transcription.BearerToken = "token"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.voicegain.ai/v1", cfg.Transcription.BaseURL)
	assert.Equal(t, 20, cfg.Transcription.PollDelaySeconds)
	assert.Equal(t, 60, cfg.Transcription.MaxPollIterations)
	assert.Equal(t, 0, cfg.Transcription.MaxUnknownPhases)
	assert.Equal(t, 2, cfg.Transcription.MinSpeakers)
	assert.Equal(t, 3, cfg.Transcription.MaxSpeakers)
	assert.Equal(t, 3750, cfg.Transcription.SubmissionsPerHour)
	assert.Equal(t, "autoqa", cfg.Storage.Root)
	assert.True(t, cfg.Storage.SaveRawJSON)
	assert.Equal(t, "storage", cfg.Source.Kind)
	assert.Equal(t, 8080, cfg.Dashboard.Port)

	assert.Equal(t, 20*time.Second, cfg.Transcription.PollDelay())
	assert.Equal(t, 30*time.Second, cfg.Transcription.RequestTimeoutDuration())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.Transcription.BearerToken = "" }, "bearer_token"},
		{"missing base url", func(c *Config) { c.Transcription.BaseURL = "" }, "base_url"},
		{"zero poll delay", func(c *Config) { c.Transcription.PollDelaySeconds = 0 }, "poll_delay_seconds"},
		{"zero iterations", func(c *Config) { c.Transcription.MaxPollIterations = 0 }, "max_poll_iterations"},
		{"negative unknown cap", func(c *Config) { c.Transcription.MaxUnknownPhases = -1 }, "max_unknown_phases"},
		{"speakers inverted", func(c *Config) { c.Transcription.MaxSpeakers = 1 }, "max_speakers"},
		{"zero submissions", func(c *Config) { c.Transcription.SubmissionsPerHour = 0 }, "submissions_per_hour"},
		{"empty storage root", func(c *Config) { c.Storage.Root = "" }, "root"},
		{"bad source kind", func(c *Config) { c.Source.Kind = "database" }, "kind"},
		{"excel without path", func(c *Config) { c.Source.Kind = "excel" }, "excel_path"},
		{"negative max files", func(c *Config) { c.Source.MaxFiles = -1 }, "max_files"},
		{"port out of range", func(c *Config) { c.Dashboard.Port = 70000 }, "port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithoutFileUsesDefaultsPlusEnv(t *testing.T) {
	t.Setenv("VOICEGAIN_TOKEN", "env-token")
	t.Setenv("POLL_DELAY_SECONDS", "5")
	t.Setenv("MAX_UNKNOWN_PHASES", "4")
	t.Setenv("SOURCE_PREFIX", "recordings/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Transcription.BearerToken)
	assert.Equal(t, 5, cfg.Transcription.PollDelaySeconds)
	assert.Equal(t, 4, cfg.Transcription.MaxUnknownPhases)
	assert.Equal(t, "recordings/", cfg.Source.Prefix)
	assert.Equal(t, 60, cfg.Transcription.MaxPollIterations, "untouched defaults survive")
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transcription:
  bearer_token: file-token
  poll_delay_seconds: 10
  max_poll_iterations: 30
source:
  kind: excel
  excel_path: /data/items.xlsx
storage:
  root: /var/autoqa
`), 0o644))

	t.Setenv("POLL_DELAY_SECONDS", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Transcription.BearerToken)
	assert.Equal(t, 15, cfg.Transcription.PollDelaySeconds, "environment wins over the file")
	assert.Equal(t, 30, cfg.Transcription.MaxPollIterations)
	assert.Equal(t, "excel", cfg.Source.Kind)
	assert.Equal(t, "/data/items.xlsx", cfg.Source.ExcelPath)
	assert.Equal(t, "/var/autoqa", cfg.Storage.Root)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcription: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidResult(t *testing.T) {
	// No token anywhere fails validation.
	t.Setenv("VOICEGAIN_TOKEN", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer_token")
}

func TestEnvIgnoresUnparseableInts(t *testing.T) {
	t.Setenv("VOICEGAIN_TOKEN", "token")
	t.Setenv("MAX_POLL_ITERATIONS", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Transcription.MaxPollIterations)
}
