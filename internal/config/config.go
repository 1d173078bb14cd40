// Package config loads the engine configuration from YAML with environment
// variable overrides (prefix PITCHSENSE, e.g. PITCHSENSE_ANALYZER_API_KEY).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer" yaml:"analyzer"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Baseline  BaselineConfig  `mapstructure:"baseline" yaml:"baseline"`
	Match     MatchConfig     `mapstructure:"match" yaml:"match"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AnalyzerConfig defines the remote analyzer service connection.
type AnalyzerConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout string `mapstructure:"timeout" yaml:"timeout,omitempty"`
	Mode    string `mapstructure:"mode" yaml:"mode"` // auto or full
}

// GetTimeout returns the analyzer call timeout as a duration.
func (a AnalyzerConfig) GetTimeout() time.Duration {
	if a.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RedisConfig defines the optional baseline cache tier.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db,omitempty"`
	TTL      string `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// GetTTL returns the cache TTL as a duration.
func (r RedisConfig) GetTTL() time.Duration {
	if r.TTL == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// BaselineConfig defines the durable baseline store.
type BaselineConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MatchConfig defines the innings the engine is tracking.
type MatchConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`
	Innings     int    `mapstructure:"innings" yaml:"innings"`
	TargetScore int    `mapstructure:"target_score" yaml:"target_score,omitempty"`
	BallsTotal  int    `mapstructure:"balls_total" yaml:"balls_total,omitempty"`
}

// LoggingConfig defines log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// SchedulerConfig defines the periodic jobs.
type SchedulerConfig struct {
	TickCron   string `mapstructure:"tick_cron" yaml:"tick_cron"`
	HealthCron string `mapstructure:"health_cron" yaml:"health_cron"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8090},
		Analyzer: AnalyzerConfig{URL: "http://localhost:8091", Timeout: "30s", Mode: "auto"},
		Redis:    RedisConfig{Enabled: false, Addr: "localhost:6379", TTL: "15m"},
		Baseline: BaselineConfig{Path: "pitchsense.db"},
		Match:    MatchConfig{Format: string(workload.FormatT20), Innings: 1},
		Logging:  LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			TickCron:   "@every 30s",
			HealthCron: "@every 1m",
		},
	}
}

// Load reads configuration from the given path and merges environment
// variable overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PITCHSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for common mistakes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Analyzer.URL == "" {
		return fmt.Errorf("analyzer.url is required")
	}
	if c.Analyzer.Mode != "auto" && c.Analyzer.Mode != "full" {
		return fmt.Errorf("analyzer.mode %q must be auto or full", c.Analyzer.Mode)
	}
	switch workload.Format(c.Match.Format) {
	case workload.FormatT20, workload.FormatODI, workload.FormatUnlimited:
	default:
		return fmt.Errorf("match.format %q unknown", c.Match.Format)
	}
	if c.Match.Innings < 1 || c.Match.Innings > 2 {
		return fmt.Errorf("match.innings %d must be 1 or 2", c.Match.Innings)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Baseline.Path == "" {
		return fmt.Errorf("baseline.path is required")
	}
	return nil
}
