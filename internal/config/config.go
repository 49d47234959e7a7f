package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit" split_words:"true"`
	AccessWindow AccessWindowConfig `mapstructure:"access_window" split_words:"true"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port             int `mapstructure:"port"`
	TimeoutSeconds   int `mapstructure:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	WorkerHealthPort int `mapstructure:"worker_health_port" split_words:"true"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open" split_words:"true"`
	MaxIdle  int    `mapstructure:"max_idle" split_words:"true"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// StorageConfig selects the store implementation: "postgres" or "memory".
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	Migrate bool   `mapstructure:"migrate"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours" split_words:"true"`
	Issuer      string `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

type OutboxConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" split_words:"true"`
	BatchSize        int           `mapstructure:"batch_size" split_words:"true"`
	MaxRetries       int           `mapstructure:"max_retries" split_words:"true"`
	RetentionPeriod  time.Duration `mapstructure:"retention_period" split_words:"true"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold" split_words:"true"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Messages int           `mapstructure:"messages"`
	Window   time.Duration `mapstructure:"window"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl" split_words:"true"`
	// AuthPerMinute and AuthBurst size the per-IP token bucket on the
	// register and login routes.
	AuthPerMinute int `mapstructure:"auth_per_minute" split_words:"true"`
	AuthBurst     int `mapstructure:"auth_burst" split_words:"true"`
}

// AccessWindowConfig limits chat endpoints to [StartHour, EndHour) local time.
type AccessWindowConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	StartHour int  `mapstructure:"start_hour" split_words:"true"`
	EndHour   int  `mapstructure:"end_hour" split_words:"true"`
}

type CacheConfig struct {
	UnreadTTL time.Duration `mapstructure:"unread_ttl" split_words:"true"`
}

type PipelineConfig struct {
	HistoryPolicy string `mapstructure:"history_policy" split_words:"true"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// EnvPrefix is the prefix of environment overrides, e.g. MSG_DATABASE_HOST.
const EnvPrefix = "MSG"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeoutSeconds", 30)
	v.SetDefault("server.worker_health_port", 8081)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open", 25)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.migrate", true)
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.issuer", "messaging-api")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "notifications")
	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 3)
	v.SetDefault("outbox.retention_period", "168h")
	v.SetDefault("outbox.cleanup_interval", "1h")
	v.SetDefault("outbox.breaker_threshold", 5)
	v.SetDefault("outbox.breaker_timeout", "30s")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.messages", 5)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.idle_ttl", "10m")
	v.SetDefault("rate_limit.auth_per_minute", 10)
	v.SetDefault("rate_limit.auth_burst", 5)
	v.SetDefault("access_window.start_hour", 9)
	v.SetDefault("access_window.end_hour", 18)
	v.SetDefault("cache.unread_ttl", "60s")
	v.SetDefault("pipeline.history_policy", "content")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the working directory or ./config, falls
// back to defaults when no file exists and applies MSG_* environment
// overrides last.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

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

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Pipeline.HistoryPolicy {
	case "content", "content_or_subject":
	default:
		return fmt.Errorf("unsupported history policy %q", c.Pipeline.HistoryPolicy)
	}
	if c.AccessWindow.Enabled && (c.AccessWindow.StartHour < 0 || c.AccessWindow.EndHour > 24 || c.AccessWindow.StartHour >= c.AccessWindow.EndHour) {
		return fmt.Errorf("invalid access window %d-%d", c.AccessWindow.StartHour, c.AccessWindow.EndHour)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	return nil
}
