// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the process configuration for arcano. User-editable preferences
// live in Settings and are persisted through the storage layer instead.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Ollama (local model service) configuration
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Storage backend configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// HTTP API configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Logging configuration
	Log LogConfig `toml:"log" json:"log"`

	// Tracing configuration
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
}

// OllamaConfig contains local model service configuration.
type OllamaConfig struct {
	// URL is the base URL of the Ollama server
	URL string `toml:"url" json:"url"`
	// DefaultModel is used when neither the caller nor the analyzer picks one
	DefaultModel string `toml:"default_model" json:"default_model"`
	// TimeoutSecs bounds each HTTP request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries is the total number of attempts for a generation call
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RetryDelayMs is the base backoff delay, doubled on each attempt
	RetryDelayMs int `toml:"retry_delay_ms" json:"retry_delay_ms"`
}

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "redis", "file", "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path is the SQLite database file
	Path string `toml:"path" json:"path"`
	// RedisURL is a redis:// URL used when Backend is "redis"
	RedisURL string `toml:"redis_url" json:"redis_url"`
	// Namespace prefixes every storage key
	Namespace string `toml:"namespace" json:"namespace"`
	// CacheTTLSecs is the collection cache lifetime
	CacheTTLSecs int `toml:"cache_ttl_secs" json:"cache_ttl_secs"`
}

// ServerConfig contains HTTP API configuration.
type ServerConfig struct {
	Addr           string   `toml:"addr" json:"addr"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is the steady-state requests per second allowed per client
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	Burst     int     `toml:"burst" json:"burst"`
	// MaxUploadMB caps request bodies for document uploads
	MaxUploadMB int `toml:"max_upload_mb" json:"max_upload_mb"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Format is "json" or "console"
	Format string `toml:"format" json:"format"`
}

// TelemetryConfig contains tracing configuration. Nothing leaves the
// machine: the only exporter writes spans to stdout.
type TelemetryConfig struct {
	Tracing  bool   `toml:"tracing" json:"tracing"`
	Exporter string `toml:"exporter" json:"exporter"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	dataPath := "arcano.db"
	if dir, err := ConfigDir(); err == nil {
		dataPath = filepath.Join(dir, "arcano.db")
	}

	return &Config{
		Version: "1.0.0",

		Ollama: OllamaConfig{
			URL:          "http://127.0.0.1:11434",
			DefaultModel: "llama3.2:3b",
			TimeoutSecs:  30,
			MaxRetries:   3,
			RetryDelayMs: 1000,
		},

		Storage: StorageConfig{
			Backend:      "sqlite",
			Path:         dataPath,
			RedisURL:     "redis://127.0.0.1:6379/0",
			Namespace:    "arcano",
			CacheTTLSecs: 300,
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			RateLimit:      10,
			Burst:          20,
			MaxUploadMB:    10,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},

		Telemetry: TelemetryConfig{
			Tracing:  false,
			Exporter: "stdout",
		},
	}
}

// OllamaTimeout returns the request timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSecs) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Ollama.RetryDelayMs) * time.Millisecond
}

// CacheTTL returns the storage cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Storage.CacheTTLSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the arcano configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".arcano"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.arcano. Tries TOML first, then JSON, and
// falls back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	// Defaults are usable even when a config file was unreadable.
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# arcano configuration file\n")
	b.WriteString("# Generated by arcano config init - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL %q", c.Ollama.URL),
		})
	}
	if c.Ollama.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{Field: "ollama.timeout_secs", Message: "must be at least 1"})
	}
	if c.Ollama.MaxRetries < 1 || c.Ollama.MaxRetries > 10 {
		errs = append(errs, ValidationError{Field: "ollama.max_retries", Message: "must be between 1 and 10"})
	}
	if c.Ollama.RetryDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "ollama.retry_delay_ms", Message: "cannot be negative"})
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "sqlite", "file":
		if c.Storage.Path == "" {
			errs = append(errs, ValidationError{Field: "storage.path", Message: "required for " + c.Storage.Backend + " backend"})
		}
	case "redis":
		if _, err := url.Parse(c.Storage.RedisURL); err != nil || c.Storage.RedisURL == "" {
			errs = append(errs, ValidationError{Field: "storage.redis_url", Message: "valid URL required for redis backend"})
		}
	case "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, redis, file, memory", c.Storage.Backend),
		})
	}
	if strings.ContainsAny(c.Storage.Namespace, " \t\n") {
		errs = append(errs, ValidationError{Field: "storage.namespace", Message: "cannot contain whitespace"})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "cannot be negative"})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "console" {
		errs = append(errs, ValidationError{Field: "log.format", Message: "must be json or console"})
	}
	if e := strings.ToLower(c.Telemetry.Exporter); e != "stdout" && e != "none" {
		errs = append(errs, ValidationError{Field: "telemetry.exporter", Message: "must be stdout or none"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.DefaultModel == "" {
		c.Ollama.DefaultModel = d.Ollama.DefaultModel
	}
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if c.Ollama.MaxRetries == 0 {
		c.Ollama.MaxRetries = d.Ollama.MaxRetries
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = d.Storage.Namespace
	}
	if c.Storage.CacheTTLSecs == 0 {
		c.Storage.CacheTTLSecs = d.Storage.CacheTTLSecs
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = d.Server.Burst
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = d.Telemetry.Exporter
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ARCANO_OLLAMA_URL: overrides ollama.url
//   - ARCANO_MODEL: overrides ollama.default_model
//   - ARCANO_STORAGE: overrides storage.backend
//   - ARCANO_DB: overrides storage.path
//   - ARCANO_REDIS_URL: overrides storage.redis_url
//   - ARCANO_ADDR: overrides server.addr
//   - ARCANO_LOG_LEVEL: overrides log.level
//   - ARCANO_TRACING: set to "1" or "true" to enable tracing
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ARCANO_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("ARCANO_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("ARCANO_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ARCANO_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("ARCANO_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("ARCANO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ARCANO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ARCANO_TRACING"); v != "" {
		c.Telemetry.Tracing = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "ollama.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := lookupField(reflect.ValueOf(c).Elem(), key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g. "log.level").
func (c *Config) Set(key string, value interface{}) error {
	field, err := lookupField(reflect.ValueOf(c).Elem(), key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func lookupField(v reflect.Value, key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Split(strVal, ",")))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("<config encode error: %v>", err)
	}
	return b.String()
}
