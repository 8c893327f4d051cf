// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Mailbox() MailboxConfig
	Automation() AutomationConfig

	// Automation Setters (CLI flag overrides)
	SetAutomationBatchDelay(d time.Duration)
	SetAutomationDefaultPassword(p string)

	// Browser Setters
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration. Sections are exported so
// viper can unmarshal into them; callers should go through the Interface getters.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	NetworkCfg    NetworkConfig    `mapstructure:"network" yaml:"network"`
	MailboxCfg    MailboxConfig    `mapstructure:"mailbox" yaml:"mailbox"`
	AutomationCfg AutomationConfig `mapstructure:"automation" yaml:"automation"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig       { return c.NetworkCfg }
func (c *Config) Mailbox() MailboxConfig       { return c.MailboxCfg }
func (c *Config) Automation() AutomationConfig { return c.AutomationCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetAutomationBatchDelay(d time.Duration) { c.AutomationCfg.BatchDelay = d }
func (c *Config) SetAutomationDefaultPassword(p string)   { c.AutomationCfg.DefaultPassword = p }
func (c *Config) SetBrowserHeadless(b bool)               { c.BrowserCfg.Headless = b }

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

// DatabaseConfig holds the database connection details. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU     bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	NoSandbox      bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath       string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent      string   `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	Args           []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig holds the per-operation timeouts used against target sites.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// ElementTimeout bounds each structural element lookup.
	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	// LoginFieldTimeout bounds each candidate locator during credential entry.
	LoginFieldTimeout time.Duration `mapstructure:"login_field_timeout" yaml:"login_field_timeout"`
	// IdleQuietPeriod is how long the network must stay quiet to count as idle.
	IdleQuietPeriod time.Duration `mapstructure:"idle_quiet_period" yaml:"idle_quiet_period"`
}

// MailboxConfig identifies the inbox that receives verification messages.
type MailboxConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	// Password is an app password; set it through UNIAUTO_MAILBOX_PASSWORD.
	Password string `mapstructure:"password" yaml:"-"`
	// Server is auto-detected from Address when empty.
	Server  string `mapstructure:"server" yaml:"server"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`
}

// AutomationConfig tunes the submission workflow.
type AutomationConfig struct {
	TargetsDir          string        `mapstructure:"targets_dir" yaml:"targets_dir"`
	ScreenshotDir       string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	DefaultPassword     string        `mapstructure:"default_password" yaml:"-"`
	BatchDelay          time.Duration `mapstructure:"batch_delay" yaml:"batch_delay"`
	VerificationTimeout time.Duration `mapstructure:"verification_timeout" yaml:"verification_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MinJitter           time.Duration `mapstructure:"min_jitter" yaml:"min_jitter"`
	MaxJitter           time.Duration `mapstructure:"max_jitter" yaml:"max_jitter"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing here is a programming error.
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
	v.SetDefault("logger.service_name", "uniauto")
	v.SetDefault("logger.log_file", "uniauto.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.element_timeout", "5s")
	v.SetDefault("network.login_field_timeout", "2s")
	v.SetDefault("network.idle_quiet_period", "500ms")

	// -- Mailbox --
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.mailbox", "INBOX")

	// -- Automation --
	v.SetDefault("automation.targets_dir", "university_configs")
	v.SetDefault("automation.screenshot_dir", "screenshots")
	v.SetDefault("automation.default_password", "TempPassword123!")
	v.SetDefault("automation.batch_delay", "5s")
	v.SetDefault("automation.verification_timeout", "5m")
	v.SetDefault("automation.poll_interval", "10s")
	v.SetDefault("automation.min_jitter", "300ms")
	v.SetDefault("automation.max_jitter", "800ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("mailbox.password", "UNIAUTO_MAILBOX_PASSWORD")
	_ = v.BindEnv("database.url", "UNIAUTO_DATABASE_URL")
	_ = v.BindEnv("automation.default_password", "UNIAUTO_DEFAULT_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the mailbox secret if Unmarshal didn't pick it up
	if cfg.MailboxCfg.Password == "" {
		cfg.MailboxCfg.Password = os.Getenv("UNIAUTO_MAILBOX_PASSWORD")
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" in every path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.AutomationCfg.TargetsDir, &c.AutomationCfg.ScreenshotDir, &c.LoggerCfg.LogFile, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.NetworkCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.NetworkCfg.ElementTimeout <= 0 {
		return fmt.Errorf("network.element_timeout must be a positive duration")
	}
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if err := c.AutomationCfg.Validate(); err != nil {
		return fmt.Errorf("automation configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the AutomationConfig settings.
func (a *AutomationConfig) Validate() error {
	if a.BatchDelay < 0 {
		return fmt.Errorf("batch_delay must not be negative")
	}
	if a.VerificationTimeout <= 0 {
		return fmt.Errorf("verification_timeout must be a positive duration")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if a.MinJitter < 0 || a.MaxJitter < a.MinJitter {
		return fmt.Errorf("jitter bounds must satisfy 0 <= min_jitter <= max_jitter")
	}
	return nil
}
