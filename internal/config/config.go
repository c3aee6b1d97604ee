// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Snapshot() SnapshotConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserIgnoreTLSErrors(bool)
	SetBrowserViewport(width, height int)

	// Snapshot Setters
	SetSnapshotDoHighlightElements(bool)
	SetSnapshotAssumeTopOnHitTestFailure(bool)
	SetSnapshotEnableCursorSignals(bool)
	SetSnapshotEnableFormSignals(bool)
	SetSnapshotViewportExpansion(int)
}

// Config holds the entire application configuration. Access goes through
// the Interface getters so callers never depend on the concrete layout.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	SnapshotCfg SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Snapshot() SnapshotConfig { return c.SnapshotCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)        { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserIgnoreTLSErrors(b bool) { c.BrowserCfg.IgnoreTLSErrors = b }
func (c *Config) SetBrowserViewport(w, h int) {
	c.BrowserCfg.ViewportWidth = w
	c.BrowserCfg.ViewportHeight = h
}

func (c *Config) SetSnapshotDoHighlightElements(b bool) { c.SnapshotCfg.DoHighlightElements = b }
func (c *Config) SetSnapshotAssumeTopOnHitTestFailure(b bool) {
	c.SnapshotCfg.AssumeTopOnHitTestFailure = b
}
func (c *Config) SetSnapshotEnableCursorSignals(b bool) { c.SnapshotCfg.EnableCursorSignals = b }
func (c *Config) SetSnapshotEnableFormSignals(b bool)   { c.SnapshotCfg.EnableFormSignals = b }
func (c *Config) SetSnapshotViewportExpansion(px int)   { c.SnapshotCfg.ViewportExpansion = px }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string `mapstructure:"args" yaml:"args"`
	ViewportWidth     int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout string   `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SnapshotConfig tunes the snapshot engine's classification policy.
// The cursor and form signals widen interactivity detection beyond the
// explicit-signal tiers and stay off unless a deployment opts in.
type SnapshotConfig struct {
	DoHighlightElements       bool `mapstructure:"do_highlight_elements" yaml:"do_highlight_elements"`
	AssumeTopOnHitTestFailure bool `mapstructure:"assume_top_on_hit_test_failure" yaml:"assume_top_on_hit_test_failure"`
	EnableCursorSignals       bool `mapstructure:"enable_cursor_signals" yaml:"enable_cursor_signals"`
	EnableFormSignals         bool `mapstructure:"enable_form_signals" yaml:"enable_form_signals"`
	ViewportExpansion         int  `mapstructure:"viewport_expansion" yaml:"viewport_expansion"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagescope")
	v.SetDefault("logger.log_file", "pagescope.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.navigation_timeout", "90s")

	// -- Snapshot --
	v.SetDefault("snapshot.do_highlight_elements", true)
	v.SetDefault("snapshot.assume_top_on_hit_test_failure", true)
	v.SetDefault("snapshot.enable_cursor_signals", false)
	v.SetDefault("snapshot.enable_form_signals", false)
	v.SetDefault("snapshot.viewport_expansion", 0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		return fmt.Errorf("browser.viewport_width and browser.viewport_height must be positive")
	}
	if c.SnapshotCfg.ViewportExpansion < 0 {
		return fmt.Errorf("snapshot.viewport_expansion must not be negative")
	}
	switch c.LoggerCfg.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be one of console, json; got %q", c.LoggerCfg.Format)
	}
	return nil
}
