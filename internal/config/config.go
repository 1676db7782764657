package config

import (
	"errors"
	"time"

	"gemini-extract/pkg/config"
)

type PromptsConfig struct {
	System     string `yaml:"system"`
	Extraction string `yaml:"extraction"`
}

type Config struct {
	Server  config.ServerConfig  `yaml:"server"`
	Gemini  config.GeminiConfig  `yaml:"gemini"`
	Breaker config.BreakerConfig `yaml:"circuit_breaker"`
	Redis   config.RedisConfig   `yaml:"redis"`
	Cache   config.CacheConfig   `yaml:"cache"`
	Log     config.LogConfig     `yaml:"log"`
	Prompts PromptsConfig        `yaml:"prompts"`

	// category name (mail, pdf, image, text) -> reply becomes a workbook
	TabularOutput map[string]bool `yaml:"tabular_output"`
}

var ErrMissingAPIKey = errors.New("gemini api key is not configured (set GEMINI_API_KEY)")

// Load reads the configuration selected by CONFIG_ENV and CONFIG_DIR.
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	cfg := defaults()
	if err := config.Decode(env, dir, cfg); err != nil {
		return nil, err
	}

	config.OverrideGeminiFromEnv(&cfg.Gemini)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideLogFromEnv(&cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// CacheEnabled reports whether the redis reply cache should be used.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled && c.Redis.Addr != ""
}

func defaults() *Config {
	return &Config{
		Server: config.ServerConfig{
			Port:            ":8000",
			MaxUploadBytes:  20 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Gemini: config.GeminiConfig{
			Model:   "gemini-1.5-flash",
			Timeout: 120 * time.Second,
		},
		Breaker: config.BreakerConfig{
			FailureThreshold:    5,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Cache: config.CacheConfig{TTL: time.Hour},
		Log:   config.LogConfig{Level: "info"},
	}
}
