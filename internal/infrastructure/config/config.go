package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Queue     QueueConfig
	Unleashed UnleashedConfig
	Roar      RoarConfig
	Secrets   SecretsConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host selects the
// in-process queue fallback.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
}

// QueueConfig holds work queue settings
type QueueConfig struct {
	Key         string
	DedupTTL    time.Duration
	BatchSize   int
	MaxAttempts int
}

// UnleashedConfig holds source-system API settings
type UnleashedConfig struct {
	BaseURL        string
	APIID          string
	APIKey         string
	WebhookSecret  string
	TimeoutSeconds int
	InitialBackoff time.Duration
	MaxRetries     int
}

// RoarConfig holds target-system API settings
type RoarConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SecretsConfig holds credential-encryption settings
type SecretsConfig struct {
	Passphrase string
}

// SchedulerConfig holds the intervals of the scheduled triggers
type SchedulerConfig struct {
	Enabled        bool
	DrainInterval  time.Duration
	SweepInterval  time.Duration
	ProbeInterval  time.Duration
	RunTimeout     time.Duration
	SweepBatchSize int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERSYNC_ prefix (e.g. ORDERSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
		Queue: QueueConfig{
			Key:         v.GetString("queue.key"),
			DedupTTL:    v.GetDuration("queue.dedup_ttl"),
			BatchSize:   v.GetInt("queue.batch_size"),
			MaxAttempts: v.GetInt("queue.max_attempts"),
		},
		Unleashed: UnleashedConfig{
			BaseURL:        v.GetString("unleashed.base_url"),
			APIID:          v.GetString("unleashed.api_id"),
			APIKey:         v.GetString("unleashed.api_key"),
			WebhookSecret:  v.GetString("unleashed.webhook_secret"),
			TimeoutSeconds: v.GetInt("unleashed.timeout_seconds"),
			InitialBackoff: v.GetDuration("unleashed.initial_backoff"),
			MaxRetries:     v.GetInt("unleashed.max_retries"),
		},
		Roar: RoarConfig{
			BaseURL:        v.GetString("roar.base_url"),
			TimeoutSeconds: v.GetInt("roar.timeout_seconds"),
		},
		Secrets: SecretsConfig{
			Passphrase: v.GetString("secrets.passphrase"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			DrainInterval:  v.GetDuration("scheduler.drain_interval"),
			SweepInterval:  v.GetDuration("scheduler.sweep_interval"),
			ProbeInterval:  v.GetDuration("scheduler.probe_interval"),
			RunTimeout:     v.GetDuration("scheduler.run_timeout"),
			SweepBatchSize: v.GetInt("scheduler.sweep_batch_size"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ordersync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ordersync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, webhooks are small
	}
	if cfg.Queue.Key == "" {
		cfg.Queue.Key = "queue:unleashed"
	}
	if cfg.Queue.DedupTTL == 0 {
		cfg.Queue.DedupTTL = 600 * time.Second
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 25
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 8
	}
	if cfg.Unleashed.BaseURL == "" {
		cfg.Unleashed.BaseURL = "https://api.unleashedsoftware.com"
	}
	if cfg.Unleashed.TimeoutSeconds == 0 {
		cfg.Unleashed.TimeoutSeconds = 30
	}
	if cfg.Unleashed.InitialBackoff == 0 {
		cfg.Unleashed.InitialBackoff = 2 * time.Second
	}
	if cfg.Unleashed.MaxRetries == 0 {
		cfg.Unleashed.MaxRetries = 8
	}
	if cfg.Roar.TimeoutSeconds == 0 {
		cfg.Roar.TimeoutSeconds = 30
	}
	if cfg.Scheduler.DrainInterval == 0 {
		cfg.Scheduler.DrainInterval = time.Minute
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = 5 * time.Minute
	}
	if cfg.Scheduler.ProbeInterval == 0 {
		cfg.Scheduler.ProbeInterval = 5 * time.Minute
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 4 * time.Minute
	}
	if cfg.Scheduler.SweepBatchSize == 0 {
		cfg.Scheduler.SweepBatchSize = 50
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}

	if c.App.Env == "production" {
		if c.Unleashed.WebhookSecret == "" {
			return fmt.Errorf("unleashed.webhook_secret is required in production")
		}
		if c.Unleashed.APIID == "" || c.Unleashed.APIKey == "" {
			return fmt.Errorf("unleashed.api_id and unleashed.api_key are required in production")
		}
		if c.Secrets.Passphrase == "" {
			return fmt.Errorf("secrets.passphrase is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
