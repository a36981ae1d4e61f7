package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the transcription pipeline.
type Config struct {
	Transcription TranscriptionConfig `yaml:"transcription"`
	Formatter     FormatterConfig     `yaml:"formatter"`
	Storage       StorageConfig       `yaml:"storage"`
	Source        SourceConfig        `yaml:"source"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// TranscriptionConfig covers the upstream ASR API and polling behavior.
type TranscriptionConfig struct {
	BaseURL            string `yaml:"base_url"`
	BearerToken        string `yaml:"bearer_token"`
	RequestTimeout     int    `yaml:"request_timeout"` // seconds
	PollDelaySeconds   int    `yaml:"poll_delay_seconds"`
	MaxPollIterations  int    `yaml:"max_poll_iterations"`
	MaxUnknownPhases   int    `yaml:"max_unknown_phases"` // 0 = unlimited
	MinSpeakers        int    `yaml:"min_speakers"`
	MaxSpeakers        int    `yaml:"max_speakers"`
	SubmissionsPerHour int    `yaml:"submissions_per_hour"`
}

// FormatterConfig selects remote formatting; empty URL means local only.
type FormatterConfig struct {
	RemoteURL string `yaml:"remote_url"`
}

// StorageConfig locates the transcript store.
type StorageConfig struct {
	Root        string `yaml:"root"`
	SaveRawJSON bool   `yaml:"save_raw_json"`
}

// SourceConfig selects where work items come from.
type SourceConfig struct {
	Kind         string `yaml:"kind"` // "excel" or "storage"
	ExcelPath    string `yaml:"excel_path"`
	Prefix       string `yaml:"prefix"`
	AudioBaseURL string `yaml:"audio_base_url"`
	SASToken     string `yaml:"sas_token"`
	MaxFiles     int    `yaml:"max_files"` // 0 = no limit
}

// DashboardConfig contains the read-only HTTP API settings.
type DashboardConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with the reference defaults applied.
func Default() *Config {
	return &Config{
		Transcription: TranscriptionConfig{
			BaseURL:            "https://api.voicegain.ai/v1",
			RequestTimeout:     30,
			PollDelaySeconds:   20,
			MaxPollIterations:  60,
			MaxUnknownPhases:   0,
			MinSpeakers:        2,
			MaxSpeakers:        3,
			SubmissionsPerHour: 3750,
		},
		Storage: StorageConfig{
			Root:        "autoqa",
			SaveRawJSON: true,
		},
		Source: SourceConfig{
			Kind: "storage",
		},
		Dashboard: DashboardConfig{
			Port:    8080,
			Address: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the optional YAML file at path, applies environment
// overrides on top, and validates the result. An empty path skips the
// file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Transcription.BaseURL, "TRANSCRIBE_BASE_URL")
	setString(&c.Transcription.BearerToken, "VOICEGAIN_TOKEN")
	setInt(&c.Transcription.PollDelaySeconds, "POLL_DELAY_SECONDS")
	setInt(&c.Transcription.MaxPollIterations, "MAX_POLL_ITERATIONS")
	setInt(&c.Transcription.MaxUnknownPhases, "MAX_UNKNOWN_PHASES")
	setInt(&c.Transcription.SubmissionsPerHour, "SUBMISSIONS_PER_HOUR")
	setString(&c.Formatter.RemoteURL, "FORMATTER_URL")
	setString(&c.Storage.Root, "STORAGE_ROOT")
	setString(&c.Source.Kind, "SOURCE_KIND")
	setString(&c.Source.ExcelPath, "SOURCE_EXCEL_PATH")
	setString(&c.Source.Prefix, "SOURCE_PREFIX")
	setString(&c.Source.AudioBaseURL, "AUDIO_BASE_URL")
	setString(&c.Source.SASToken, "SAS_TOKEN")
	setInt(&c.Source.MaxFiles, "MAX_FILES")
	setInt(&c.Dashboard.Port, "PORT")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate performs validation of the complete configuration.
func (c *Config) Validate() error {
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}
	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates the transcription section.
func (t *TranscriptionConfig) Validate() error {
	if t.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if t.BearerToken == "" {
		return fmt.Errorf("bearer_token cannot be empty")
	}
	if t.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", t.RequestTimeout)
	}
	if t.PollDelaySeconds < 1 {
		return fmt.Errorf("poll_delay_seconds must be at least 1, got %d", t.PollDelaySeconds)
	}
	if t.MaxPollIterations < 1 {
		return fmt.Errorf("max_poll_iterations must be at least 1, got %d", t.MaxPollIterations)
	}
	if t.MaxUnknownPhases < 0 {
		return fmt.Errorf("max_unknown_phases cannot be negative, got %d", t.MaxUnknownPhases)
	}
	if t.MinSpeakers < 1 {
		return fmt.Errorf("min_speakers must be at least 1, got %d", t.MinSpeakers)
	}
	if t.MaxSpeakers < t.MinSpeakers {
		return fmt.Errorf("max_speakers (%d) must be >= min_speakers (%d)", t.MaxSpeakers, t.MinSpeakers)
	}
	if t.SubmissionsPerHour < 1 {
		return fmt.Errorf("submissions_per_hour must be at least 1, got %d", t.SubmissionsPerHour)
	}
	return nil
}

// Validate validates the storage section.
func (s *StorageConfig) Validate() error {
	if s.Root == "" {
		return fmt.Errorf("root cannot be empty")
	}
	return nil
}

// Validate validates the source section.
func (s *SourceConfig) Validate() error {
	switch s.Kind {
	case "excel":
		if s.ExcelPath == "" {
			return fmt.Errorf("excel_path cannot be empty when kind is excel")
		}
	case "storage":
	default:
		return fmt.Errorf("kind must be 'excel' or 'storage', got '%s'", s.Kind)
	}
	if s.MaxFiles < 0 {
		return fmt.Errorf("max_files cannot be negative, got %d", s.MaxFiles)
	}
	return nil
}

// Validate validates the dashboard section.
func (d *DashboardConfig) Validate() error {
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", d.Port)
	}
	if d.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	return nil
}

// Validate validates the logging section.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

// PollDelay returns the poll delay as a time.Duration.
func (t *TranscriptionConfig) PollDelay() time.Duration {
	return time.Duration(t.PollDelaySeconds) * time.Second
}

// RequestTimeoutDuration returns the per-request timeout as a time.Duration.
func (t *TranscriptionConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(t.RequestTimeout) * time.Second
}
