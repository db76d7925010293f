// Package config loads voicedesk settings from YAML and VOICEDESK_* environment
// variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. VOICEDESK_SERVER_ADDR.
const EnvPrefix = "VOICEDESK"

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Business BusinessConfig `mapstructure:"business" yaml:"business"`
	Locale   LocaleConfig   `mapstructure:"locale" yaml:"locale"`
	Dialogue DialogueConfig `mapstructure:"dialogue" yaml:"dialogue"`
	Planner  PlannerConfig  `mapstructure:"planner" yaml:"planner"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	Supabase SupabaseConfig `mapstructure:"supabase" yaml:"supabase"`
}

// ServerConfig is the webhook HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// BusinessConfig points at the venue profile. Empty means the built-in one.
type BusinessConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// LocaleConfig selects the default line language and optional overrides.
type LocaleConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
	File    string `mapstructure:"file" yaml:"file"`
}

// DialogueConfig tunes the turn orchestrator.
type DialogueConfig struct {
	MaxTurns      int     `mapstructure:"max_turns" yaml:"max_turns"`
	LowConfidence float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	GatherAction  string  `mapstructure:"gather_action" yaml:"gather_action"`
}

// PlannerConfig is the OpenAI-compatible planning model.
type PlannerConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	Model           string        `mapstructure:"model" yaml:"model"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HistoryMessages int           `mapstructure:"history_messages" yaml:"history_messages"`
	HistoryTokens   int           `mapstructure:"history_tokens" yaml:"history_tokens"`
}

// SessionConfig selects the call state driver.
type SessionConfig struct {
	Store         string        `mapstructure:"store" yaml:"store"` // memory or redis
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl" yaml:"redis_ttl"`
}

// RedisConfig is shared by the session driver and the notification stream.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// NotifyConfig is the notification bus.
type NotifyConfig struct {
	Topic    string `mapstructure:"topic" yaml:"topic"`
	Group    string `mapstructure:"group" yaml:"group"`
	Consumer string `mapstructure:"consumer" yaml:"consumer"`
}

// SMTPConfig is the mail worker's outgoing server. No host disables mail.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	To       string `mapstructure:"to" yaml:"to"`
}

// SupabaseConfig enables the Supabase menu source and order recorder.
type SupabaseConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	Key           string        `mapstructure:"key" yaml:"key"`
	MenuTable     string        `mapstructure:"menu_table" yaml:"menu_table"`
	OrdersTable   string        `mapstructure:"orders_table" yaml:"orders_table"`
	BookingsTable string        `mapstructure:"bookings_table" yaml:"bookings_table"`
	MenuCacheTTL  time.Duration `mapstructure:"menu_cache_ttl" yaml:"menu_cache_ttl"`
}

// Enabled reports whether Supabase credentials are configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.Key != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Locale: LocaleConfig{
			Default: "en-US",
		},
		Dialogue: DialogueConfig{
			MaxTurns:      30,
			LowConfidence: 0.55,
			GatherAction:  "/voice/handle",
		},
		Planner: PlannerConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			Temperature:     0.2,
			Timeout:         15 * time.Second,
			HistoryMessages: 6,
			HistoryTokens:   1500,
		},
		Session: SessionConfig{
			Store:         "memory",
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
			RedisTTL:      30 * time.Minute,
		},
		Notify: NotifyConfig{
			Topic:    "voicedesk.notifications",
			Group:    "voicedesk-mailer",
			Consumer: "mailer-1",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Supabase: SupabaseConfig{
			MenuTable:     "menu_items",
			OrdersTable:   "orders",
			BookingsTable: "bookings",
			MenuCacheTTL:  5 * time.Minute,
		},
	}
}

// Load reads defaults, then the YAML file at path (if path is not empty),
// then environment overrides such as VOICEDESK_PLANNER_API_KEY. The planner
// key also falls back to OPENAI_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(expandPath(path))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("planner.api_key", EnvPrefix+"_PLANNER_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors that would only show up on
// the first call.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: trace, debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format '%s', must be 'console' or 'json'", c.Logging.Format)
	}

	if c.Locale.Default == "" {
		return fmt.Errorf("locale.default cannot be empty")
	}

	if c.Dialogue.MaxTurns <= 0 {
		return fmt.Errorf("dialogue.max_turns must be positive")
	}
	if c.Dialogue.LowConfidence < 0 || c.Dialogue.LowConfidence > 1 {
		return fmt.Errorf("dialogue.low_confidence must be between 0 and 1")
	}

	if c.Planner.Timeout <= 0 {
		return fmt.Errorf("planner.timeout must be positive")
	}
	if c.Planner.BaseURL == "" {
		return fmt.Errorf("planner.base_url cannot be empty")
	}
	if c.Planner.Temperature < 0 || c.Planner.Temperature > 2 {
		return fmt.Errorf("planner.temperature must be between 0 and 2")
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("session.store 'redis' requires redis.addr")
		}
	default:
		return fmt.Errorf("invalid session.store '%s', must be 'memory' or 'redis'", c.Session.Store)
	}

	if (c.Supabase.URL == "") != (c.Supabase.Key == "") {
		return fmt.Errorf("supabase.url and supabase.key must be set together")
	}
	return nil
}

// SaveToPath writes the configuration as YAML.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
