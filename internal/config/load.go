package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
// CARO_SERVER_PORT overrides server.port, and so on.
const EnvPrefix = "CARO"

// SetDefaults registers the default value of every key. Registering every key
// also lets environment variables override keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "caro.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("review.timezone", "UTC")
	v.SetDefault("review.max_conflict_retries", 3)
	v.SetDefault("review.initial_ease_factor", 2.5)
	v.SetDefault("review.minimum_ease_factor", 1.3)
	v.SetDefault("review.maximum_interval_days", 36500)

	v.SetDefault("events.max_concurrent_handlers", 0)
	v.SetDefault("events.shutdown_timeout", 10*time.Second)

	v.SetDefault("notification.daily_goal_cards", 20)
	v.SetDefault("notification.channel", "caro:notifications")

	v.SetDefault("gamification.badge_cache_size", 4096)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("tracing.enabled", false)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom loads configuration through v. Callers may bind command-line
// flags or set an explicit config file on v beforehand; bound flags take
// precedence over environment variables.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/caro")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Location returns the scheduling time zone. Validation guarantees it loads.
func (c ReviewConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
