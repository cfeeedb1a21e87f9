// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// Config is the complete sermonchat configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	API     APIConfig     `toml:"api" json:"api" yaml:"api"`
	Auth    AuthConfig    `toml:"auth" json:"auth" yaml:"auth"`
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Server  ServerConfig  `toml:"server" json:"server" yaml:"server"`
}

// APIConfig points the client at the question-answering service.
type APIConfig struct {
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url" env:"SERMONCHAT_API_URL"`

	// Language forces the answer language ("id" or "en"); empty auto-detects.
	Language string `toml:"language" json:"language" yaml:"language" env:"SERMONCHAT_LANGUAGE"`

	// TimeoutSecs bounds REST calls. The answer stream is not bounded.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs" env:"SERMONCHAT_API_TIMEOUT"`

	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit" env:"SERMONCHAT_API_RATE_LIMIT"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// AuthConfig says where the bearer token comes from. Token wins over
// TokenFile when both are set.
type AuthConfig struct {
	Token     string `toml:"token" json:"token" yaml:"token" env:"SERMONCHAT_TOKEN"`
	TokenFile string `toml:"token_file" json:"token_file" yaml:"token_file" env:"SERMONCHAT_TOKEN_FILE"`
}

// SessionConfig tunes the chat session controller.
type SessionConfig struct {
	// AwaitMessageID keeps the stream open after "done" until the persisted
	// message id arrives.
	AwaitMessageID bool `toml:"await_message_id" json:"await_message_id" yaml:"await_message_id" env:"SERMONCHAT_AWAIT_MESSAGE_ID"`

	// CancelClosesTransport aborts the HTTP read on cancel.
	CancelClosesTransport bool `toml:"cancel_closes_transport" json:"cancel_closes_transport" yaml:"cancel_closes_transport" env:"SERMONCHAT_CANCEL_CLOSES_TRANSPORT"`
}

// StorageConfig selects the local transcript cache.
type StorageConfig struct {
	// Driver is one of sqlite, bolt, json or none.
	Driver string `toml:"driver" json:"driver" yaml:"driver" env:"SERMONCHAT_STORAGE_DRIVER"`
	Path   string `toml:"path" json:"path" yaml:"path" env:"SERMONCHAT_STORAGE_PATH"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level" env:"SERMONCHAT_LOG_LEVEL"`
	Format string `toml:"format" json:"format" yaml:"format" env:"SERMONCHAT_LOG_FORMAT"`
	// File receives log output; empty means stderr (or the default log file
	// for the TUI).
	File string `toml:"file" json:"file" yaml:"file" env:"SERMONCHAT_LOG_FILE"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	Theme         string `toml:"theme" json:"theme" yaml:"theme" env:"SERMONCHAT_THEME"`
	ShowCitations bool   `toml:"show_citations" json:"show_citations" yaml:"show_citations"`
	WordWrap      int    `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap"`
	HistoryFile   string `toml:"history_file" json:"history_file" yaml:"history_file"`
}

// ServerConfig configures the local mock service.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr" yaml:"addr" env:"SERMONCHAT_SERVER_ADDR"`

	// Token, when set, is required as a bearer token on every API route.
	Token string `toml:"token" json:"token" yaml:"token" env:"SERMONCHAT_SERVER_TOKEN"`

	RateLimit    float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
	TokenDelayMs int     `toml:"token_delay_ms" json:"token_delay_ms" yaml:"token_delay_ms"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 30,
			RateLimit:   10,
			RateBurst:   20,
		},
		Auth: AuthConfig{
			TokenFile: "~/.sermonchat/token",
		},
		Session: SessionConfig{
			AwaitMessageID:        true,
			CancelClosesTransport: true,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "~/.sermonchat/transcripts.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme:         "auto",
			ShowCitations: true,
			WordWrap:      100,
			HistoryFile:   "~/.sermonchat/history",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8000",
			RateLimit:    5,
			RateBurst:    10,
			TokenDelayMs: 30,
		},
	}
}

// SetDefaults fills zero values with defaults. Booleans are left alone since
// false is a legitimate setting.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = d.API.RateBurst
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" && c.Storage.Driver != "none" {
		c.Storage.Path = defaultStoragePath(c.Storage.Driver)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
}

func defaultStoragePath(driver string) string {
	switch driver {
	case "bolt":
		return "~/.sermonchat/transcripts.bolt"
	case "json":
		return "~/.sermonchat/transcripts"
	default:
		return "~/.sermonchat/transcripts.db"
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sermonchat configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sermonchat"), nil
}

// ConfigPath returns the path of the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// configNames are tried in order inside ConfigDir.
var configNames = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// Load reads the first config file found in ConfigDir, falling back to
// defaults when there is none. A .env file in the working directory or the
// config directory is loaded, then SERMONCHAT_* variables are applied.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return finish(Default(), "")
	}

	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default(), dir)
}

// LoadFromPath loads a config file; the format follows the extension (TOML
// when unknown).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg, filepath.Dir(path))
}

// finish applies the environment, defaults and validation.
func finish(cfg *Config, dir string) (*Config, error) {
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decodeFile decodes path into cfg, on top of whatever cfg already holds.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML: %w", err)
		}
	}
	return nil
}

// loadDotEnv loads .env from the working directory and from dir. Variables
// already present in the environment are not replaced.
func loadDotEnv(dir string) error {
	paths := []string{".env"}
	if dir != "" {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies SERMONCHAT_* variables (see the env tags).
func (c *Config) ApplyEnvOverrides() error {
	return cleanenv.ReadEnv(c)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format given by its extension.
func Save(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(cfg, path)
	case ".yaml", ".yml":
		return SaveYAML(cfg, path)
	default:
		return SaveTOML(cfg, path)
	}
}

// SaveTOML writes cfg as TOML with a short header. The file is private to the
// user since it may hold a token.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# sermonchat configuration file\n")
	buf.WriteString("# Environment variables (SERMONCHAT_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, buf.Bytes())
}

// SaveJSON writes cfg as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, append(data, '\n'))
}

// SaveYAML writes cfg as YAML.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, data)
}

func writeConfig(path string, data []byte) error {
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Language != "" && c.API.Language != "id" && c.API.Language != "en" {
		add("api.language", "must be id, en or empty, got %q", c.API.Language)
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be 1-600, got %d", c.API.TimeoutSecs)
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "cannot be negative")
	}
	if c.API.RateBurst < 1 {
		add("api.rate_burst", "must be at least 1, got %d", c.API.RateBurst)
	}

	// Storage
	switch c.Storage.Driver {
	case "sqlite", "bolt", "json", "none":
	default:
		add("storage.driver", "must be one of sqlite, bolt, json, none, got %q", c.Storage.Driver)
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		add("logging.format", "must be console or json, got %q", c.Logging.Format)
	}

	// UI
	switch c.UI.Theme {
	case "auto", "dark", "light", "notty":
	default:
		add("ui.theme", "must be one of auto, dark, light, notty, got %q", c.UI.Theme)
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be 20-400, got %d", c.UI.WordWrap)
	}

	// Server
	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil || port == "" {
		add("server.addr", "must be host:port, got %q", c.Server.Addr)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.TokenDelayMs < 0 || c.Server.TokenDelayMs > 5000 {
		add("server.token_delay_ms", "must be 0-5000, got %d", c.Server.TokenDelayMs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy safe to print: tokens are masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Auth.Token != "" {
		safe.Auth.Token = "[REDACTED]"
	}
	if safe.Server.Token != "" {
		safe.Server.Token = "[REDACTED]"
	}
	return safe
}

// String returns the redacted configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// A config that fails to load is reported on stderr and replaced by defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
