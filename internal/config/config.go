// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/uxagent/internal/browser/dom"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Observe() ObserveConfig
	Agent() AgentConfig
	Transcript() TranscriptConfig
}

// Config is the root configuration object. Sections are populated by viper
// from the config file, the environment, and bound flags.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	ObserveCfg    ObserveConfig    `mapstructure:"observe" yaml:"observe"`
	AgentCfg      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	TranscriptCfg TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Observe() ObserveConfig       { return c.ObserveCfg }
func (c *Config) Agent() AgentConfig           { return c.AgentCfg }
func (c *Config) Transcript() TranscriptConfig { return c.TranscriptCfg }

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

// BrowserConfig holds settings for the controlled browser instance.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LoadTimeout       time.Duration  `mapstructure:"load_timeout" yaml:"load_timeout"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// ObserveConfig tunes the observation compiler and its artifacts.
type ObserveConfig struct {
	MaxDepth          int                 `mapstructure:"max_depth" yaml:"max_depth"`
	MaxChars          int                 `mapstructure:"max_chars" yaml:"max_chars"`
	TestHookAttribute string              `mapstructure:"test_hook_attribute" yaml:"test_hook_attribute"`
	SaveArtifacts     bool                `mapstructure:"save_artifacts" yaml:"save_artifacts"`
	ArtifactsDir      string              `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	LocatorOverrides  []dom.LabelOverride `mapstructure:"locator_overrides" yaml:"locator_overrides"`
}

// CompileOptions converts the section into compiler options.
func (o ObserveConfig) CompileOptions() dom.Options {
	return dom.Options{
		MaxDepth:          o.MaxDepth,
		MaxChars:          o.MaxChars,
		TestHookAttribute: o.TestHookAttribute,
	}
}

// ResolverOptions converts the section into locator resolver options.
func (o ObserveConfig) ResolverOptions() dom.ResolverOptions {
	return dom.ResolverOptions{
		TestHookAttribute: o.TestHookAttribute,
		LabelOverrides:    o.LocatorOverrides,
	}
}

// AgentConfig holds the settings of the observe, decide, act loop.
type AgentConfig struct {
	MaxSteps       int           `mapstructure:"max_steps" yaml:"max_steps"`
	PostActionWait time.Duration `mapstructure:"post_action_wait" yaml:"post_action_wait"`
	ObserveRetry   time.Duration `mapstructure:"observe_retry" yaml:"observe_retry"`
	ScreenshotPath string        `mapstructure:"screenshot_path" yaml:"screenshot_path"`
	LLM            LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig defines the oracle model and its transport.
type LLMConfig struct {
	Provider            LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model               string        `mapstructure:"model" yaml:"model"`
	APIKey              string        `mapstructure:"api_key" yaml:"-"`
	Endpoint            string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout          time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature         float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute   int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxObservationChars int           `mapstructure:"max_observation_chars" yaml:"max_observation_chars"`
}

// TranscriptConfig selects where run transcripts are written.
type TranscriptConfig struct {
	Path     string         `mapstructure:"path" yaml:"path"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection details for the transcript database.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
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
	v.SetDefault("logger.service_name", "uxagent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 900})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.load_timeout", "30s")
	v.SetDefault("browser.action_timeout", "15s")

	// -- Observe --
	v.SetDefault("observe.max_depth", 8)
	v.SetDefault("observe.max_chars", 0)
	v.SetDefault("observe.test_hook_attribute", dom.DefaultTestHookAttribute)
	v.SetDefault("observe.save_artifacts", false)
	v.SetDefault("observe.artifacts_dir", "artifacts")

	// -- Agent --
	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.post_action_wait", "1s")
	v.SetDefault("agent.observe_retry", "1s")
	v.SetDefault("agent.screenshot_path", "final.png")
	v.SetDefault("agent.llm.provider", string(ProviderOpenAI))
	v.SetDefault("agent.llm.model", "gpt-4.1-mini")
	v.SetDefault("agent.llm.api_timeout", "90s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 1024)
	v.SetDefault("agent.llm.requests_per_minute", 0)
	v.SetDefault("agent.llm.max_observation_chars", 6000)

	// -- Transcript --
	v.SetDefault("transcript.path", "transcript.jsonl")
	v.SetDefault("transcript.postgres.enabled", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("agent.llm.api_key", "UXAGENT_LLM_API_KEY")
	_ = v.BindEnv("transcript.postgres.url", "UXAGENT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the provider's conventional variable.
	if cfg.AgentCfg.LLM.APIKey == "" {
		switch cfg.AgentCfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.AgentCfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			cfg.AgentCfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.AgentCfg.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.ObserveCfg.MaxDepth <= 0 {
		return fmt.Errorf("observe.max_depth must be a positive integer")
	}
	if c.ObserveCfg.MaxChars < 0 {
		return fmt.Errorf("observe.max_chars must not be negative")
	}
	if c.AgentCfg.PostActionWait < 0 {
		return fmt.Errorf("agent.post_action_wait must not be negative")
	}
	if err := c.AgentCfg.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	if c.TranscriptCfg.Postgres.Enabled && c.TranscriptCfg.Postgres.URL == "" {
		return fmt.Errorf("transcript.postgres.url is required when transcript.postgres.enabled is set")
	}
	return nil
}

// Validate checks the LLM configuration.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.MaxObservationChars < 0 {
		return fmt.Errorf("max_observation_chars must not be negative")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
