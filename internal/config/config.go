package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"gridgen/internal/pattern"
)

// Environment variables that override file values.
const (
	EnvConfig   = "GRIDGEN_CONFIG"
	EnvLogLevel = "GRIDGEN_LOG_LEVEL"
	EnvListen   = "GRIDGEN_LISTEN"
	EnvDB       = "GRIDGEN_DB"
)

// HolidayFeed is an ICS calendar whose events become blackout days.
type HolidayFeed struct {
	ID  string `yaml:"id" toml:"id" json:"id"`
	URL string `yaml:"url" toml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// WindowConfig is the inclusive hour range events are placed in.
type WindowConfig struct {
	StartHour int `yaml:"start_hour" toml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" toml:"end_hour" json:"end_hour"`
}

// PatternSpec is the file form of a pattern.PatternConfig.
type PatternSpec struct {
	Intensity         string  `yaml:"intensity" toml:"intensity" json:"intensity"`
	WeeklyRhythm      bool    `yaml:"weekly_rhythm" toml:"weekly_rhythm" json:"weekly_rhythm"`
	VacationFrequency float64 `yaml:"vacation_frequency" toml:"vacation_frequency" json:"vacation_frequency"`
	VacationDuration  [2]int  `yaml:"vacation_duration" toml:"vacation_duration" json:"vacation_duration"`
	SpikeProbability  float64 `yaml:"spike_probability" toml:"spike_probability" json:"spike_probability"`
	SpikeMultiplier   float64 `yaml:"spike_multiplier" toml:"spike_multiplier" json:"spike_multiplier"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// RefreshCron is a standard 5-field cron expression controlling how
	// often the served schedule is regenerated.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// WindowDays is how many days back from today the served schedule covers.
	WindowDays int `yaml:"window_days" toml:"window_days" json:"window_days"`

	// MaxDays caps the span of ad-hoc schedule requests.
	MaxDays int `yaml:"max_days" toml:"max_days" json:"max_days"`

	// BasicAuth, if non-nil, protects everything except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone event timestamps are built in. "Local"
	// uses the host zone.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// Pattern is the default preset or custom pattern name.
	Pattern string `yaml:"pattern" toml:"pattern" json:"pattern"`

	Window WindowConfig `yaml:"activity_window" toml:"activity_window" json:"activity_window"`

	// Blackout lists RRULE strings whose occurrences never get events,
	// e.g. "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25".
	Blackout []string `yaml:"blackout" toml:"blackout" json:"blackout"`

	HolidayFeeds []HolidayFeed `yaml:"holiday_feeds" toml:"holiday_feeds" json:"holiday_feeds"`

	// CacheDir holds fetched holiday feeds.
	CacheDir string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir"`

	// Patterns are user-defined patterns, addressable by name.
	Patterns map[string]PatternSpec `yaml:"patterns" toml:"patterns" json:"patterns"`

	// StorePath is the sqlite ledger of generated runs.
	StorePath string `yaml:"store_path" toml:"store_path" json:"store_path"`

	Server ServerConfig `yaml:"server" toml:"server" json:"server"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:     "Local",
		Pattern:      "realistic",
		Window:       WindowConfig{StartHour: pattern.DefaultWindow.StartHour, EndHour: pattern.DefaultWindow.EndHour},
		Blackout:     []string{},
		HolidayFeeds: []HolidayFeed{},
		CacheDir:     defaultDataPath("cache"),
		Patterns:     map[string]PatternSpec{},
		StorePath:    defaultDataPath("gridgen.db"),
		Server: ServerConfig{
			Listen:      "127.0.0.1:8080",
			RefreshCron: "0 * * * *",
			WindowDays:  365,
			MaxDays:     3660,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the config location used when none is given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gridgen", "config.yaml")
	}
	return "gridgen.yaml"
}

func defaultDataPath(name string) string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gridgen", name)
	}
	return filepath.Join(".gridgen", name)
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = d.Timezone
	}
	if strings.TrimSpace(c.Pattern) == "" {
		c.Pattern = d.Pattern
	}
	if c.Window == (WindowConfig{}) {
		c.Window = d.Window
	}
	if c.Blackout == nil {
		c.Blackout = []string{}
	}
	if c.HolidayFeeds == nil {
		c.HolidayFeeds = []HolidayFeed{}
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.Patterns == nil {
		c.Patterns = map[string]PatternSpec{}
	}
	if c.StorePath == "" {
		c.StorePath = d.StorePath
	}
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.RefreshCron == "" {
		c.Server.RefreshCron = d.Server.RefreshCron
	}
	if c.Server.WindowDays <= 0 {
		c.Server.WindowDays = d.Server.WindowDays
	}
	if c.Server.MaxDays <= 0 {
		c.Server.MaxDays = d.Server.MaxDays
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	for i := range c.HolidayFeeds {
		if c.HolidayFeeds[i].ID == "" {
			c.HolidayFeeds[i].ID = c.HolidayFeeds[i].URL
		}
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.ActivityWindow().Validate(); err != nil {
		return fmt.Errorf("activity_window: %w", err)
	}
	if _, err := cron.ParseStandard(c.Server.RefreshCron); err != nil {
		return fmt.Errorf("server.refresh %q: %w", c.Server.RefreshCron, err)
	}
	if c.Server.WindowDays > c.Server.MaxDays {
		return fmt.Errorf("server.window_days %d exceeds server.max_days %d", c.Server.WindowDays, c.Server.MaxDays)
	}
	for _, f := range c.HolidayFeeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("holiday_feeds: feed %q has no url", f.ID)
		}
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ActivityWindow converts Window to the engine type.
func (c *Config) ActivityWindow() pattern.ActivityWindow {
	return pattern.ActivityWindow{StartHour: c.Window.StartHour, EndHour: c.Window.EndHour}
}

// Registry builds the pattern registry including custom patterns.
func (c *Config) Registry() (*pattern.Registry, error) {
	custom := make(map[string]pattern.PatternConfig, len(c.Patterns))
	for name, spec := range c.Patterns {
		cfg, err := spec.PatternConfig()
		if err != nil {
			return nil, fmt.Errorf("patterns.%s: %w", name, err)
		}
		custom[name] = cfg
	}
	return pattern.NewRegistry(custom)
}

// PatternConfig validates the entry and converts it to an engine config.
func (s PatternSpec) PatternConfig() (pattern.PatternConfig, error) {
	level, err := pattern.ParseIntensity(s.Intensity)
	if err != nil {
		return pattern.PatternConfig{}, err
	}
	return pattern.NewPatternConfig(pattern.PatternConfig{
		Intensity:         level,
		UseWeeklyRhythm:   s.WeeklyRhythm,
		VacationFrequency: s.VacationFrequency,
		VacationDuration:  pattern.DurationRange{Min: s.VacationDuration[0], Max: s.VacationDuration[1]},
		SpikeProbability:  s.SpikeProbability,
		SpikeMultiplier:   s.SpikeMultiplier,
	})
}

// SpecFrom converts an engine config back to its file form.
func SpecFrom(cfg pattern.PatternConfig) PatternSpec {
	return PatternSpec{
		Intensity:         cfg.Intensity.String(),
		WeeklyRhythm:      cfg.UseWeeklyRhythm,
		VacationFrequency: cfg.VacationFrequency,
		VacationDuration:  [2]int{cfg.VacationDuration.Min, cfg.VacationDuration.Max},
		SpikeProbability:  cfg.SpikeProbability,
		SpikeMultiplier:   cfg.SpikeMultiplier,
	}
}

// LoadEnv reads an optional .env file into the process environment.
// Variables already set are left alone.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env %q: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from GRIDGEN_* variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		c.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		c.StorePath = v
	}
}

// ResolvePath picks the config path: explicit flag, then GRIDGEN_CONFIG,
// then DefaultPath.
func ResolvePath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return DefaultPath()
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from the given path. Paths ending in .toml are
// read as TOML, anything else as YAML.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the configuration atomically: temp file in the target
// directory, fsync, chmod 0600, rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gridgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
