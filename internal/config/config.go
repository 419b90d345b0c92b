// Package config loads settings for the job service and the exportctl CLI
// from config files, environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Service holds all configuration values for the job service.
type Service struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port
	HTTPPort int

	// How often in-flight tasks are advanced, and by how many percent
	AdvanceInterval time.Duration
	AdvanceStep     float64
	AdvanceBatch    int

	// Submissions whose bbox area (square degrees) falls outside these bounds
	// are rejected. Zero disables the bound.
	BBoxMinArea float64
	BBoxMaxArea float64

	// Bearer tokens accepted by the API. Empty disables authentication.
	APITokens []string

	// Per-token request rate; 0 means unlimited
	RateLimit      float64
	RateLimitBurst int

	// OpenTelemetry collector endpoint
	OTELEndpoint string
}

// Load reads service configuration from the file at path (or jobservice.yaml
// in the working directory when path is empty) and the environment.
// Environment variables override file values.
func Load(path string) (*Service, error) {
	v := viper.New()

	v.SetDefault("http_port", 6161)
	v.SetDefault("advance_interval", 2*time.Second)
	v.SetDefault("advance_step", 25.0)
	v.SetDefault("advance_batch", 50)
	v.SetDefault("bbox_min_area", 0.0)
	v.SetDefault("bbox_max_area", 0.0)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("otel_endpoint", "localhost:4317")

	bindings := map[string]string{
		"database_url":     "DATABASE_URL",
		"http_port":        "PORT",
		"advance_interval": "ADVANCE_INTERVAL",
		"advance_step":     "ADVANCE_STEP",
		"advance_batch":    "ADVANCE_BATCH",
		"bbox_min_area":    "BBOX_MIN_AREA",
		"bbox_max_area":    "BBOX_MAX_AREA",
		"api_tokens":       "API_TOKENS",
		"rate_limit":       "RATE_LIMIT",
		"rate_limit_burst": "RATE_LIMIT_BURST",
		"otel_endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := readConfigFile(v, path, "jobservice"); err != nil {
		return nil, err
	}

	cfg := &Service{
		DatabaseURL:     v.GetString("database_url"),
		HTTPPort:        v.GetInt("http_port"),
		AdvanceInterval: v.GetDuration("advance_interval"),
		AdvanceStep:     v.GetFloat64("advance_step"),
		AdvanceBatch:    v.GetInt("advance_batch"),
		BBoxMinArea:     v.GetFloat64("bbox_min_area"),
		BBoxMaxArea:     v.GetFloat64("bbox_max_area"),
		APITokens:       splitList(v.GetStringSlice("api_tokens")),
		RateLimit:       v.GetFloat64("rate_limit"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		OTELEndpoint:    v.GetString("otel_endpoint"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Service) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required (env: DATABASE_URL)")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	if c.AdvanceInterval <= 0 {
		return fmt.Errorf("advance_interval must be positive, got %v", c.AdvanceInterval)
	}
	if c.AdvanceStep <= 0 || c.AdvanceStep > 100 {
		return fmt.Errorf("advance_step must be in (0, 100], got %v", c.AdvanceStep)
	}
	if c.BBoxMaxArea > 0 && c.BBoxMinArea > c.BBoxMaxArea {
		return fmt.Errorf("bbox_min_area (%v) exceeds bbox_max_area (%v)", c.BBoxMinArea, c.BBoxMaxArea)
	}
	return nil
}

// Client holds the settings used by exportctl.
type Client struct {
	JobsBaseURL    string
	JobsPath       string
	ModelsBaseURL  string
	ModelsPath     string
	IngestionsPath string
	Token          string

	PollInterval      time.Duration
	MaxFractionDigits int
	TrackedFields     []string

	RequestRate float64
	HTTPTimeout time.Duration

	HistoryPath string
}

// InitClient registers exportctl defaults and EXPORTCTL_* environment
// overrides on v.
func InitClient(v *viper.Viper) {
	v.SetDefault("jobs_base_url", "http://localhost:6161")
	v.SetDefault("jobs_path", "/jobs")
	v.SetDefault("models_base_url", "http://localhost:6161")
	v.SetDefault("models_path", "/models")
	v.SetDefault("ingestions_path", "/ingestions")
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("max_fraction_digits", 5)
	v.SetDefault("tracked_fields", []string{"status", "updateTime", "percentage"})
	v.SetDefault("request_rate", 10.0)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("history_path", "")
	v.SetDefault("log_level", "warn")

	v.SetEnvPrefix("EXPORTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ClientFrom reads and validates exportctl settings from v.
func ClientFrom(v *viper.Viper) (*Client, error) {
	cfg := &Client{
		JobsBaseURL:       v.GetString("jobs_base_url"),
		JobsPath:          v.GetString("jobs_path"),
		ModelsBaseURL:     v.GetString("models_base_url"),
		ModelsPath:        v.GetString("models_path"),
		IngestionsPath:    v.GetString("ingestions_path"),
		Token:             v.GetString("token"),
		PollInterval:      v.GetDuration("poll_interval"),
		MaxFractionDigits: v.GetInt("max_fraction_digits"),
		TrackedFields:     splitList(v.GetStringSlice("tracked_fields")),
		RequestRate:       v.GetFloat64("request_rate"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		HistoryPath:       v.GetString("history_path"),
	}

	if cfg.JobsBaseURL == "" || cfg.ModelsBaseURL == "" {
		return nil, errors.New("jobs_base_url and models_base_url are required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.MaxFractionDigits < 0 || cfg.MaxFractionDigits > 15 {
		return nil, fmt.Errorf("max_fraction_digits must be between 0 and 15, got %d", cfg.MaxFractionDigits)
	}

	if cfg.HistoryPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve history path: %w", err)
		}
		cfg.HistoryPath = filepath.Join(home, ".exportctl", "history.db")
	} else if strings.HasPrefix(cfg.HistoryPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve history path: %w", err)
		}
		cfg.HistoryPath = filepath.Join(home, cfg.HistoryPath[2:])
	}

	return cfg, nil
}

// LoadDotEnv loads the first .env file found in dir or up to four of its
// parents. It returns the loaded path, or "" if none was found.
// Variables already set in the environment are not overwritten.
func LoadDotEnv(dir string) string {
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return ""
			}
			return envPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}

func readConfigFile(v *viper.Viper, path, name string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
