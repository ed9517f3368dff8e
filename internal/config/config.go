package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment variables read after the optional .env file is loaded.
const (
	EnvServerURL = "WEEKPLAN_SERVER_URL"
	EnvDBPath    = "WEEKPLAN_DB_PATH"
	EnvConfig    = "WEEKPLAN_CONFIG"
	EnvLogLevel  = "WEEKPLAN_LOG_LEVEL"
	EnvDevMode   = "WEEKPLAN_DEV_MODE"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Undo     UndoConfig     `toml:"undo"`
	Logging  LoggingConfig  `toml:"logging"`
	UI       UIConfig       `toml:"ui"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig selects the HTTP backend. An empty BaseURL keeps tasks in the local database.
type ServerConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      Duration `toml:"timeout"`
	SSEReconnect Duration `toml:"sse_reconnect"`
}

type UndoConfig struct {
	DeleteWindow     Duration `toml:"delete_window"`
	RecurrenceWindow Duration `toml:"recurrence_window"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// UIConfig holds the first-run interface preferences. Saved preferences win over these.
type UIConfig struct {
	Language     string `toml:"language"`
	Theme        string `toml:"theme"`
	WrapTitles   bool   `toml:"wrap_titles"`
	FullWeekdays bool   `toml:"full_weekdays"`
	WeekStart    string `toml:"week_start"` // monday | sunday
}

// Duration is a time.Duration written as a Go duration string ("5s", "1m30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func Default(dbPath string) Config {
	prefs := domain.DefaultPreferences()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			Timeout:      Duration(10 * time.Second),
			SSEReconnect: Duration(5 * time.Second),
		},
		Undo: UndoConfig{
			DeleteWindow:     Duration(7 * time.Second),
			RecurrenceWindow: Duration(7 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Dir: ".weekplan/log",
			},
		},
		UI: UIConfig{
			Language:     prefs.Language,
			Theme:        string(prefs.Theme),
			WrapTitles:   prefs.WrapTitles,
			FullWeekdays: prefs.FullWeekdays,
			WeekStart:    "monday",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays the WEEKPLAN_* variables found by lookup onto c.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvServerURL); ok {
		c.Server.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDBPath); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
	return c
}

// DevModeFromEnv reports whether WEEKPLAN_DEV_MODE holds a true value.
func DevModeFromEnv(lookup func(string) (string, bool)) (bool, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw, ok := lookup(EnvDevMode)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return v, true
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if raw := strings.TrimSpace(c.Server.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid server.base_url: %q", c.Server.BaseURL)
		}
	}
	if c.Server.Timeout < 0 {
		return errors.New("server.timeout must be >= 0")
	}
	if c.Server.SSEReconnect < 0 {
		return errors.New("server.sse_reconnect must be >= 0")
	}
	if c.Undo.DeleteWindow <= 0 {
		return errors.New("undo.delete_window must be > 0")
	}
	if c.Undo.RecurrenceWindow <= 0 {
		return errors.New("undo.recurrence_window must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if _, err := domain.ParseLanguage(c.UI.Language); err != nil {
		return fmt.Errorf("invalid ui.language: %q", c.UI.Language)
	}
	if _, err := domain.ParseTheme(c.UI.Theme); err != nil {
		return fmt.Errorf("invalid ui.theme: %q", c.UI.Theme)
	}
	switch strings.ToLower(strings.TrimSpace(c.UI.WeekStart)) {
	case "", "monday", "sunday":
	default:
		return fmt.Errorf("invalid ui.week_start: %q", c.UI.WeekStart)
	}
	return nil
}

// Preferences returns the [ui] section as domain preferences.
func (c Config) Preferences() domain.Preferences {
	return domain.Preferences{
		Language:     c.UI.Language,
		Theme:        domain.Theme(c.UI.Theme),
		WrapTitles:   c.UI.WrapTitles,
		FullWeekdays: c.UI.FullWeekdays,
	}.Normalize()
}

// SundayFirst reports whether weeks start on Sunday.
func (c Config) SundayFirst() bool {
	return strings.EqualFold(strings.TrimSpace(c.UI.WeekStart), "sunday")
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
