package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Session storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Output formats accepted by DefaultFormat.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config holds all configurable chatwatch settings.
type Config struct {
	APIBaseURL        string  `json:"api_base_url"`
	APIAuthKey        string  `json:"api_auth_key"`
	AdminEmail        string  `json:"admin_email"`
	AdminPassword     string  `json:"admin_password"`
	PageSize          int     `json:"page_size"`
	SessionBackend    string  `json:"session_backend"` // "file" | "redis"
	RedisURL          string  `json:"redis_url"`
	RedisPrefix       string  `json:"redis_prefix"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestTimeout    string  `json:"request_timeout"` // time.ParseDuration syntax
	DefaultFormat     string  `json:"default_format"`  // "table" | "json" | "yaml"
}

// Defaults returns the development fallbacks used when nothing else is set.
func Defaults() Config {
	return Config{
		APIBaseURL:        "http://localhost:5678",
		APIAuthKey:        "mysecretkey",
		AdminEmail:        "admin@example.com",
		AdminPassword:     "password123",
		PageSize:          10,
		SessionBackend:    BackendFile,
		RedisPrefix:       "chatwatch:",
		RequestsPerSecond: 5,
		RequestTimeout:    "30s",
		DefaultFormat:     FormatTable,
	}
}

// Dir returns the chatwatch config directory (~/.config/chatwatch).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatwatch"), nil
}

// GlobalPath returns the path of the global config file.
func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadGlobal reads ~/.config/chatwatch/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .chatwatchconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".chatwatchconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes cfg to the global config file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := GlobalPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// The file carries the API key and admin password.
	return os.WriteFile(path, data, 0o600)
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

// overlay copies every non-zero field of src onto dst.
func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	if src.APIBaseURL != "" {
		dst.APIBaseURL = src.APIBaseURL
	}
	if src.APIAuthKey != "" {
		dst.APIAuthKey = src.APIAuthKey
	}
	if src.AdminEmail != "" {
		dst.AdminEmail = src.AdminEmail
	}
	if src.AdminPassword != "" {
		dst.AdminPassword = src.AdminPassword
	}
	if src.PageSize != 0 {
		dst.PageSize = src.PageSize
	}
	if src.SessionBackend != "" {
		dst.SessionBackend = src.SessionBackend
	}
	if src.RedisURL != "" {
		dst.RedisURL = src.RedisURL
	}
	if src.RedisPrefix != "" {
		dst.RedisPrefix = src.RedisPrefix
	}
	if src.RequestsPerSecond != 0 {
		dst.RequestsPerSecond = src.RequestsPerSecond
	}
	if src.RequestTimeout != "" {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
}

// FromEnv builds a partial Config from the process environment. Unset
// variables leave their fields empty so Merge-style overlays skip them.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var cfg Config
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("API_BASE_URL", &cfg.APIBaseURL)
	str("API_AUTH_KEY", &cfg.APIAuthKey)
	str("ADMIN_EMAIL", &cfg.AdminEmail)
	str("ADMIN_PASSWORD", &cfg.AdminPassword)
	str("CHATWATCH_SESSION_BACKEND", &cfg.SessionBackend)
	str("CHATWATCH_REDIS_URL", &cfg.RedisURL)

	if v, ok := lookup("CHATWATCH_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CHATWATCH_PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	return &cfg, nil
}

// Load resolves the effective configuration: defaults, global file, project
// file, then environment.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, fmt.Errorf("loading global config: %w", err)
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, fmt.Errorf("loading project config: %w", err)
	}
	env, err := FromEnv(nil)
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	cfg := Merge(global, project)
	overlay(&cfg, env)
	return cfg, nil
}

// Timeout parses RequestTimeout, falling back to 30s when it is empty.
func (c Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return d, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_base_url %q", c.APIBaseURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	switch c.SessionBackend {
	case BackendFile:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("session_backend %q requires redis_url", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown session_backend %q", c.SessionBackend)
	}
	switch c.DefaultFormat {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown default_format %q", c.DefaultFormat)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
