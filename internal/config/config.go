// Package config handles configuration loading for MarketBrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	Data       DataConfig       `mapstructure:"data"       yaml:"data"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Tracker    TrackerConfig    `mapstructure:"tracker"    yaml:"tracker"`
	Brief      BriefConfig      `mapstructure:"brief"      yaml:"brief"`
	Store      StoreConfig      `mapstructure:"store"      yaml:"store"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds AI provider configuration. Fallbacks lists providers tried
// in order after the primary; each provider is tried at most once per call.
type LLMConfig struct {
	Primary      string   `mapstructure:"primary"        yaml:"primary"` // "openai", "anthropic", "gemini", "ollama"
	Fallbacks    []string `mapstructure:"fallbacks"      yaml:"fallbacks"`
	OpenAIKey    string   `mapstructure:"openai_key"     yaml:"openai_key"`
	AnthropicKey string   `mapstructure:"anthropic_key"  yaml:"anthropic_key"`
	GeminiKey    string   `mapstructure:"gemini_key"     yaml:"gemini_key"`
	OllamaURL    string   `mapstructure:"ollama_url"     yaml:"ollama_url"`
	Model        string   `mapstructure:"model"          yaml:"model"`
	Temperature  float64  `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens    int      `mapstructure:"max_tokens"     yaml:"max_tokens"`
	TimeoutSec   int      `mapstructure:"timeout_sec"    yaml:"timeout_sec"`
}

// DataConfig holds data-source settings for the aggregator.
type DataConfig struct {
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	CacheTTLSec       int `mapstructure:"cache_ttl_sec"       yaml:"cache_ttl_sec"`
	NewsLimit         int `mapstructure:"news_limit"          yaml:"news_limit"`
	RatePerSec        int `mapstructure:"rate_per_sec"        yaml:"rate_per_sec"`
}

// ValidationConfig holds the validator's business policy. These thresholds
// encode editorial policy, not implementation detail, so they live in config.
type ValidationConfig struct {
	PriceTolerance float64 `mapstructure:"price_tolerance" yaml:"price_tolerance"` // relative, e.g. 0.02
	QualityFloor   int     `mapstructure:"quality_floor" yaml:"quality_floor"`     // below this, cap confidence
	ConfidenceCap  float64 `mapstructure:"confidence_cap" yaml:"confidence_cap"`   // ceiling applied under the floor
}

// TrackerConfig holds the performance tracker's exit policy.
type TrackerConfig struct {
	MaxHoldingDays   int `mapstructure:"max_holding_days"    yaml:"max_holding_days"`
	BatchIntervalSec int `mapstructure:"batch_interval_sec"  yaml:"batch_interval_sec"` // pause between per-ticker bar fetches
}

// BriefConfig holds daily brief composition settings.
type BriefConfig struct {
	Watchlist []string `mapstructure:"watchlist" yaml:"watchlist"`
	MaxPicks  int      `mapstructure:"max_picks" yaml:"max_picks"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ScheduleConfig holds cron specs for the recurring jobs.
type ScheduleConfig struct {
	PipelineCron  string `mapstructure:"pipeline_cron"  yaml:"pipeline_cron"`
	PositionsCron string `mapstructure:"positions_cron" yaml:"positions_cron"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketbrief/config.yaml (home directory)
//  3. /etc/marketbrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETBRIEF_<SECTION>_<KEY>, e.g., MARKETBRIEF_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketbrief"))
	v.AddConfigPath("/etc/marketbrief")

	v.SetEnvPrefix("MARKETBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — use defaults + env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.fallbacks", []string{"anthropic"})
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_sec", 120)

	// Data-source defaults
	v.SetDefault("data.request_timeout_sec", 10)
	v.SetDefault("data.cache_ttl_sec", 300) // 5 minutes
	v.SetDefault("data.news_limit", 5)
	v.SetDefault("data.rate_per_sec", 5)

	// Validation policy defaults
	v.SetDefault("validation.price_tolerance", 0.02)
	v.SetDefault("validation.quality_floor", 70)
	v.SetDefault("validation.confidence_cap", 75)

	// Tracker policy defaults
	v.SetDefault("tracker.max_holding_days", 30)
	v.SetDefault("tracker.batch_interval_sec", 13)

	// Brief defaults
	v.SetDefault("brief.max_picks", 3)

	// Store defaults
	v.SetDefault("store.path", "./data/marketbrief")

	// Schedule defaults: brief before US open, position update after close.
	v.SetDefault("schedule.pipeline_cron", "0 7 * * 1-5")
	v.SetDefault("schedule.positions_cron", "30 17 * * 1-5")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("MARKETBRIEF_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("MARKETBRIEF_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key := os.Getenv("MARKETBRIEF_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
