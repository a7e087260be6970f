// Package config loads the application configuration: viper with
// layered defaults, a YAML file, and environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration root.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Room     RoomConfig     `mapstructure:"room" yaml:"room"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP/WS listener.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DatabaseConfig selects the snapshot store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // sqlite, postgres, memory
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// SecurityConfig holds the security settings. Only AllowedOrigins is
// read at run time (through the watcher, so edits apply without a
// restart); the security gate's size, object and message limits are
// constants in the service package, and the three limit fields here
// are not consulted.
type SecurityConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxWSMessageKB  int      `mapstructure:"max_ws_message_kb" yaml:"max_ws_message_kb"`
	MaxObjectsPerRoom int    `mapstructure:"max_objects_per_room" yaml:"max_objects_per_room"`
	MaxAIMessageChars int    `mapstructure:"max_ai_message_chars" yaml:"max_ai_message_chars"`
}

// ModelConfig selects the model provider and its credentials and model
// names. MaxTurns, RequestTimeout and the two circuit fields are not
// read: turn budgets and the per-call timeout are fixed in the service
// package, and the router builds every breaker with a threshold of 5
// and a 30 s cooldown.
type ModelConfig struct {
	Provider           string        `mapstructure:"provider" yaml:"provider"` // anthropic, openai, none
	AnthropicAPIKey    string        `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicModel     string        `mapstructure:"anthropic_model" yaml:"anthropic_model"`
	OpenAIAPIKey       string        `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	OpenAIModel        string        `mapstructure:"openai_model" yaml:"openai_model"`
	MaxTurns           int           `mapstructure:"max_turns" yaml:"max_turns"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	CircuitFailThresh  int           `mapstructure:"circuit_fail_threshold" yaml:"circuit_fail_threshold"`
	CircuitCooldown    time.Duration `mapstructure:"circuit_cooldown" yaml:"circuit_cooldown"`
}

// RoomConfig tunes the Room Manager's background timers.
type RoomConfig struct {
	IdleTimeout      time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`
	EvictInterval    time.Duration `mapstructure:"evict_interval" yaml:"evict_interval"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json, console
}

// Load reads config.yaml from the working directory or ./config,
// applies defaults, then overlays COLLABBOARD_* environment variables
// (nested keys joined by "_", e.g. COLLABBOARD_SERVER_PORT).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config.yaml: %w", err)
		}
	}

	v.SetEnvPrefix("COLLABBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "collabboard.db")

	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.max_ws_message_kb", 256)
	v.SetDefault("security.max_objects_per_room", 5000)
	v.SetDefault("security.max_ai_message_chars", 4000)

	v.SetDefault("model.provider", "none")
	v.SetDefault("model.anthropic_model", "claude-sonnet-4-5")
	v.SetDefault("model.openai_model", "gpt-4o")
	v.SetDefault("model.max_turns", 8)
	v.SetDefault("model.request_timeout", "30s")
	v.SetDefault("model.circuit_fail_threshold", 5)
	v.SetDefault("model.circuit_cooldown", "30s")

	v.SetDefault("room.idle_timeout", "10m")
	v.SetDefault("room.snapshot_interval", "30s")
	v.SetDefault("room.evict_interval", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
