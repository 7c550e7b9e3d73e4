package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Review       ReviewConfig       `mapstructure:"review" validate:"required"`
	Events       EventsConfig       `mapstructure:"events" validate:"required"`
	Notification NotificationConfig `mapstructure:"notification" validate:"required"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the SQL backend.
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a postgres connection URL or a SQLite file path / DSN.
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
}

// ReviewConfig contains the scheduling settings.
type ReviewConfig struct {
	// Timezone defines what "today" means for due dates and daily statistics.
	Timezone           string  `mapstructure:"timezone" validate:"required,timezone"`
	MaxConflictRetries int     `mapstructure:"max_conflict_retries" validate:"gte=0,lte=20"`
	InitialEaseFactor  float64 `mapstructure:"initial_ease_factor" validate:"gte=1.3"`
	MinimumEaseFactor  float64 `mapstructure:"minimum_ease_factor" validate:"gte=1.3,ltefield=InitialEaseFactor"`
	// MaximumIntervalDays caps how far ahead a card can be scheduled.
	MaximumIntervalDays int `mapstructure:"maximum_interval_days" validate:"gte=6,lte=36500"`
}

// EventsConfig contains the event dispatch settings.
type EventsConfig struct {
	// MaxConcurrentHandlers bounds concurrently running subscriber deliveries.
	// Zero means unbounded.
	MaxConcurrentHandlers int `mapstructure:"max_concurrent_handlers" validate:"gte=0"`
	// ShutdownTimeout bounds how long Close waits for in-flight deliveries.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// NotificationConfig contains the goal notifier settings.
type NotificationConfig struct {
	DailyGoalCards int `mapstructure:"daily_goal_cards" validate:"gt=0"`
	// Channel is the Redis pub/sub channel notifications are published on.
	Channel string `mapstructure:"channel" validate:"required"`
}

// GamificationConfig contains experience and badge settings.
type GamificationConfig struct {
	// BadgeCacheSize is the number of (member, badge) pairs remembered as
	// already awarded. Zero disables the cache.
	BadgeCacheSize int `mapstructure:"badge_cache_size" validate:"gte=0"`
}

// RedisConfig configures the optional notification push channel.
// An empty Addr disables Redis and notifications are only logged.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// TracingConfig toggles OpenTelemetry span export to stdout.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
