package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"rgehrsitz/assist/internal/history"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultPopupInterval  = 7 * time.Second
	DefaultStopTimeout    = 2 * time.Second
	DefaultFollowupRewind = 10 * time.Second
	DefaultRulesPath      = "suggestions.tsv"
	DefaultUpdatePath     = "suggestions_update.tsv"
	DefaultFeedbackURL    = "https://forms.gle/5KPyzQynnXWVbKzC6"
)

// Config is the top-level configuration document.
type Config struct {
	PollInterval      time.Duration `yaml:"pollInterval"`
	PopupInterval     time.Duration `yaml:"popupInterval"`
	HistoryCapacity   int           `yaml:"historyCapacity"`
	Verbose           bool          `yaml:"verbose"`
	Passive           bool          `yaml:"passive"`
	PersistDismissals bool          `yaml:"persistDismissals"`
	StopTimeout       time.Duration `yaml:"stopTimeout"`
	FollowupRewind    time.Duration `yaml:"followupRewind"`
	FeedbackURL       string        `yaml:"feedbackURL"`
	Rules             RulesConfig   `yaml:"rules"`
	IgnoreActions     []string      `yaml:"ignoreActions"`
	Operators         []string      `yaml:"operators"`
	Metrics           MetricsConfig `yaml:"metrics"`
}

// RulesConfig locates the rule definitions.
type RulesConfig struct {
	Path       string `yaml:"path"`
	UpdatePath string `yaml:"updatePath"`
	Watch      *bool  `yaml:"watch"`
}

// WatchEnabled reports whether the rules directory should be watched.
// Watching is on unless explicitly disabled.
func (r RulesConfig) WatchEnabled() bool {
	return r.Watch == nil || *r.Watch
}

// MetricsConfig toggles per-rule counters.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PopupInterval == 0 {
		c.PopupInterval = DefaultPopupInterval
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = history.DefaultCapacity
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.FollowupRewind == 0 {
		c.FollowupRewind = DefaultFollowupRewind
	}
	if c.FeedbackURL == "" {
		c.FeedbackURL = DefaultFeedbackURL
	}
	if c.Rules.Path == "" {
		c.Rules.Path = DefaultRulesPath
	}
	if c.Rules.UpdatePath == "" {
		c.Rules.UpdatePath = DefaultUpdatePath
	}
	if c.IgnoreActions == nil {
		c.IgnoreActions = append([]string(nil), history.DefaultIgnore...)
	}
}

// resolvePaths makes relative rule paths relative to the config file.
func (c *Config) resolvePaths(base string) {
	if !filepath.IsAbs(c.Rules.Path) {
		c.Rules.Path = filepath.Join(base, c.Rules.Path)
	}
	if !filepath.IsAbs(c.Rules.UpdatePath) {
		c.Rules.UpdatePath = filepath.Join(base, c.Rules.UpdatePath)
	}
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("pollInterval cannot be negative")
	}
	if c.PopupInterval < 0 {
		return fmt.Errorf("popupInterval cannot be negative")
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("stopTimeout cannot be negative")
	}
	if c.FollowupRewind < 0 {
		return fmt.Errorf("followupRewind cannot be negative")
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("historyCapacity must be at least 1, got %d", c.HistoryCapacity)
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path cannot be empty")
	}
	if filepath.Clean(c.Rules.Path) == filepath.Clean(c.Rules.UpdatePath) {
		return fmt.Errorf("rules.updatePath must differ from rules.path")
	}
	seen := map[string]struct{}{}
	for _, op := range c.Operators {
		if _, dup := seen[op]; dup {
			return fmt.Errorf("duplicate operator %q", op)
		}
		seen[op] = struct{}{}
	}
	return nil
}
