package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Booking    BookingPolicy    `yaml:"booking"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Push       PushConfig       `yaml:"push"`
	Broker     BrokerConfig     `yaml:"broker"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// BookingPolicy holds the tunable limits of the booking lifecycle.
type BookingPolicy struct {
	Timezone            string         `yaml:"timezone"`
	Location            *time.Location `yaml:"-"`
	GraceMinutes        int            `yaml:"grace_minutes"`
	MaxMonthlySessions  int            `yaml:"max_monthly_sessions"`
	DailyMaxMinutes     int            `yaml:"daily_max_minutes"`
	MinReasonLength     int            `yaml:"min_reason_length"`
	EarlyCheckInMinutes int            `yaml:"early_check_in_minutes"`
}

// Grace returns the grace period as a duration.
func (p BookingPolicy) Grace() time.Duration {
	return time.Duration(p.GraceMinutes) * time.Minute
}

// EarlyCheckIn returns how long before start a check-in is accepted.
func (p BookingPolicy) EarlyCheckIn() time.Duration {
	return time.Duration(p.EarlyCheckInMinutes) * time.Minute
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// BrokerConfig points at the AMQP broker receiving booking events. Empty URL disables publishing.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DirectoryConfig holds the upstream facility directory sync configuration.
type DirectoryConfig struct {
	Enabled         bool              `yaml:"enabled"`
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	PageSize        int               `yaml:"page_size"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the configuration from the given path. A .env file in the working
// directory is loaded first so its values can override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// ApplyDefaults fills unset values and resolves the booking time zone.
func (cfg *Config) ApplyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if err := cfg.Booking.applyDefaults(); err != nil {
		return err
	}

	if cfg.Directory.IntervalSeconds <= 0 {
		cfg.Directory.IntervalSeconds = 300
	}
	cfg.Directory.Interval = time.Duration(cfg.Directory.IntervalSeconds) * time.Second
	if cfg.Directory.PageSize <= 0 {
		cfg.Directory.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Broker.Exchange == "" {
		cfg.Broker.Exchange = "facility.bookings"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Warn().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}
	return nil
}

// DefaultBookingPolicy returns the policy used when the config file has no booking section.
func DefaultBookingPolicy() BookingPolicy {
	var p BookingPolicy
	_ = p.applyDefaults()
	return p
}

func (p *BookingPolicy) applyDefaults() error {
	if p.Timezone == "" {
		p.Timezone = "Asia/Bangkok"
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return err
	}
	p.Location = loc

	if p.GraceMinutes <= 0 {
		p.GraceMinutes = 15
	}
	if p.MaxMonthlySessions <= 0 {
		p.MaxMonthlySessions = 10
	}
	if p.DailyMaxMinutes <= 0 {
		p.DailyMaxMinutes = 120
	}
	if p.MinReasonLength <= 0 {
		p.MinReasonLength = 5
	}
	if p.EarlyCheckInMinutes < 0 {
		p.EarlyCheckInMinutes = 0
	} else if p.EarlyCheckInMinutes == 0 {
		p.EarlyCheckInMinutes = 15
	}
	return nil
}
