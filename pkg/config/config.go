package config

import "time"

// Config holds runtime configuration for the gatekeeper bot.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Bot          BotConfig          `mapstructure:"bot" validate:"required"`
	DB           DBConfig           `mapstructure:"db" validate:"required"`
	Redis        RedisConfig        `mapstructure:"redis" validate:"required"`
	Verification VerificationConfig `mapstructure:"verification"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Server       ServerConfig       `mapstructure:"server"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Listen  string        `mapstructure:"listen"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DBConfig configures the PostgreSQL connection.
type DBConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`

	MigrationsDir string `mapstructure:"migrations_dir"`
}

// RedisConfig configures the Redis connection used for sessions, rate limits and jobs.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// VerificationConfig holds the attempt policy and content knobs.
type VerificationConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`
	// ResetIntervalHours is the cool-down window after which failed attempts reset.
	ResetIntervalHours int           `mapstructure:"reset_interval_hours" validate:"min=1"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	// PassThreshold of 0 means "derive from content" (all questions but one).
	PassThreshold int `mapstructure:"pass_threshold" validate:"min=0"`

	ContentPath  string        `mapstructure:"content_path" validate:"required"`
	MediaPath    string        `mapstructure:"media_path"`
	CaptionLimit int           `mapstructure:"caption_limit" validate:"min=1"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

// RateLimitConfig throttles updates per user.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// ServerConfig configures the observability HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	// File enables lumberjack rotation when non-empty; stdout otherwise.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + sslMode
}

// ResetInterval returns the cool-down window as a duration.
func (c VerificationConfig) ResetInterval() time.Duration {
	return time.Duration(c.ResetIntervalHours) * time.Hour
}

func setDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Timeout == 0 {
		cfg.Bot.Timeout = 10 * time.Second
	}
	if cfg.DB.MigrationsDir == "" {
		cfg.DB.MigrationsDir = "migrations"
	}
	if cfg.Verification.MaxAttempts == 0 {
		cfg.Verification.MaxAttempts = 3
	}
	if cfg.Verification.ResetIntervalHours == 0 {
		cfg.Verification.ResetIntervalHours = 168
	}
	if cfg.Verification.SweepInterval == 0 {
		cfg.Verification.SweepInterval = 5 * time.Minute
	}
	if cfg.Verification.ContentPath == "" {
		cfg.Verification.ContentPath = "data/steps.json"
	}
	if cfg.Verification.MediaPath == "" {
		cfg.Verification.MediaPath = "media"
	}
	if cfg.Verification.CaptionLimit == 0 {
		cfg.Verification.CaptionLimit = 1024
	}
	if cfg.Verification.SessionTTL == 0 {
		cfg.Verification.SessionTTL = time.Hour
	}
	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 20
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 10 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}
