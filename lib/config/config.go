// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pollhistory/lib/ref"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "BUREAU_POLLS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use at a terminal.
	Development Environment = "development"
	// Production is for unattended runs (cron jobs, CI reports).
	Production Environment = "production"
)

// Log output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// maxPageSize is the largest /messages limit homeservers honour.
const maxPageSize = 1000

// Config is the poll history viewer configuration.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Matrix configures the homeserver connection.
	Matrix MatrixConfig `yaml:"matrix"`

	// History configures pagination.
	History HistoryConfig `yaml:"history"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Matrix  *MatrixConfig  `yaml:"matrix,omitempty"`
	History *HistoryConfig `yaml:"history,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// MatrixConfig configures the homeserver connection.
type MatrixConfig struct {
	// Homeserver is the client-server API base URL.
	Homeserver string `yaml:"homeserver"`

	// UserID is the viewing user. Their votes are marked as selected.
	UserID string `yaml:"user_id"`

	// TokenFile holds the access token. The file is read once and the
	// token kept in locked memory.
	TokenFile string `yaml:"token_file"`

	// Room is a room ID (!id:server) or alias (#alias:server).
	Room string `yaml:"room"`
}

// HistoryConfig configures pagination.
type HistoryConfig struct {
	// PageSize is the number of events requested per /messages page.
	// Default: 50
	PageSize int `yaml:"page_size"`

	// PageDelay separates chained page requests. Negative requests
	// the next page immediately.
	// Default: 500ms
	PageDelay time.Duration `yaml:"page_delay"`

	// ChainPages bounds how many pages load per request cycle. Zero
	// is unlimited; negative loads one page per cycle.
	// Default: 0
	ChainPages int `yaml:"chain_pages"`

	// WindowDays bounds history to this many days before now. Zero
	// loads the whole room history.
	// Default: 30
	WindowDays int `yaml:"window_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text, or json.
	// Default: auto (development), json (production)
	Format string `yaml:"format"`

	// File, if set, receives log output in addition to the console
	// (or instead of it while the TUI owns the terminal).
	File string `yaml:"file"`
}

// Default returns the default configuration, used as the base before
// a config file is loaded and when none is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		History: HistoryConfig{
			PageSize:   50,
			PageDelay:  500 * time.Millisecond,
			ChainPages: 0,
			WindowDays: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// Load loads configuration from the file named by BUREAU_POLLS_CONFIG.
// It fails if the variable is not set; there is no file discovery.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults, applies
// the section for the configured environment, and expands ${VAR} and
// ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Unattended runs log machine-readable output by default.
		if c.Log.Format == FormatAuto && (overrides == nil || overrides.Log == nil || overrides.Log.Format == "") {
			c.Log.Format = FormatJSON
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Matrix != nil {
		override(&c.Matrix.Homeserver, overrides.Matrix.Homeserver)
		override(&c.Matrix.UserID, overrides.Matrix.UserID)
		override(&c.Matrix.TokenFile, overrides.Matrix.TokenFile)
		override(&c.Matrix.Room, overrides.Matrix.Room)
	}
	if overrides.History != nil {
		override(&c.History.PageSize, overrides.History.PageSize)
		override(&c.History.PageDelay, overrides.History.PageDelay)
		override(&c.History.ChainPages, overrides.History.ChainPages)
		override(&c.History.WindowDays, overrides.History.WindowDays)
	}
	if overrides.Log != nil {
		override(&c.Log.Level, overrides.Log.Level)
		override(&c.Log.Format, overrides.Log.Format)
		override(&c.Log.File, overrides.Log.File)
	}
}

// override replaces *field with value unless value is the zero value.
func override[T comparable](field *T, value T) {
	var zero T
	if value != zero {
		*field = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Matrix.TokenFile = expandVars(c.Matrix.TokenFile, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Matrix fields are
// checked for shape only when set; RequireMatrix checks presence.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Matrix.Homeserver != "" {
		parsed, err := url.Parse(c.Matrix.Homeserver)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("matrix.homeserver must be an http(s) URL, got %q", c.Matrix.Homeserver))
		}
	}
	if c.Matrix.UserID != "" {
		if _, err := ref.ParseUserID(c.Matrix.UserID); err != nil {
			errs = append(errs, fmt.Errorf("matrix.user_id: %w", err))
		}
	}
	if c.Matrix.Room != "" {
		if err := validateRoom(c.Matrix.Room); err != nil {
			errs = append(errs, fmt.Errorf("matrix.room: %w", err))
		}
	}

	if c.History.PageSize < 1 || c.History.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("history.page_size must be between 1 and %d, got %d", maxPageSize, c.History.PageSize))
	}
	if c.History.WindowDays < 0 {
		errs = append(errs, fmt.Errorf("history.window_days must not be negative, got %d", c.History.WindowDays))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case FormatAuto, FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: %s, %s, %s", FormatAuto, FormatText, FormatJSON))
	}

	return errors.Join(errs...)
}

// RequireMatrix reports which Matrix settings are missing for a
// homeserver-backed run.
func (c *Config) RequireMatrix() error {
	var errs []error
	if c.Matrix.Homeserver == "" {
		errs = append(errs, errors.New("matrix.homeserver is required"))
	}
	if c.Matrix.UserID == "" {
		errs = append(errs, errors.New("matrix.user_id is required"))
	}
	if c.Matrix.Room == "" {
		errs = append(errs, errors.New("matrix.room is required"))
	}
	return errors.Join(errs...)
}

func validateRoom(room string) error {
	switch {
	case strings.HasPrefix(room, "!"):
		_, err := ref.ParseRoomID(room)
		return err
	case strings.HasPrefix(room, "#"):
		_, err := ref.ParseRoomAlias(room)
		return err
	default:
		return fmt.Errorf("%q is neither a room ID (!) nor an alias (#)", room)
	}
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// HistoryWindow converts WindowDays to a duration. Zero days yields a
// negative duration, which disables the window.
func (c *Config) HistoryWindow() time.Duration {
	if c.History.WindowDays <= 0 {
		return -1
	}
	return time.Duration(c.History.WindowDays) * 24 * time.Hour
}

// EnsureLogDir creates the parent directory of Log.File.
func (c *Config) EnsureLogDir() error {
	if c.Log.File == "" {
		return nil
	}
	dir := filepath.Dir(c.Log.File)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
