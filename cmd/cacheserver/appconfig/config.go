// Package appconfig loads the cacheserver demo's configuration from a YAML
// file plus environment overrides, the way the teacher's internal/config
// package layers viper defaults under a config file under env vars.
package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

// WriterBackend selects the write-through/read-through store the demo cache
// is wired to.
type WriterBackend string

const (
	WriterNone  WriterBackend = "none"
	WriterRedis WriterBackend = "redis"
	WriterSQL   WriterBackend = "sql"
)

// Config is the cacheserver demo's top-level configuration.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache" validate:"required"`
	Writer  WriterConfig  `mapstructure:"writer" validate:"required"`
	Redis   RedisConfig   `mapstructure:"redis"`
	SQL     SQLConfig     `mapstructure:"sql"`
	Metrics MetricsConfig `mapstructure:"metrics" validate:"required"`
	Events  EventsConfig  `mapstructure:"events" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
}

// CacheConfig maps onto cachecore.Config.
type CacheConfig struct {
	MaxEntries       int           `mapstructure:"max_entries" validate:"required,gt=0"`
	EvictionPolicy   string        `mapstructure:"eviction_policy" validate:"required,oneof=lfu lru fifo"`
	ExpirationPolicy string        `mapstructure:"expiration_policy" validate:"required,oneof=eternal created modified accessed"`
	TTL              time.Duration `mapstructure:"ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SampleSize       int           `mapstructure:"sample_size" validate:"gte=0"`
	AsyncQueueSize   int           `mapstructure:"async_queue_size" validate:"gte=0"`
	AsyncTimeout     time.Duration `mapstructure:"async_timeout"`
	DrainTimeout     time.Duration `mapstructure:"drain_timeout"`
}

// ToCacheCoreConfig builds a validated cachecore.Config from the loaded CacheConfig.
func (c CacheConfig) ToCacheCoreConfig() (cachecore.Config, error) {
	b := cachecore.NewConfigBuilder().
		MaxEntries(c.MaxEntries).
		WithEvictionPolicy(cachecore.EvictionPolicyName(c.EvictionPolicy)).
		WithExpirationPolicy(cachecore.ExpirationPolicyName(c.ExpirationPolicy), c.TTL)
	if c.SweepInterval > 0 {
		b = b.SweepInterval(c.SweepInterval)
	}
	if c.SampleSize > 0 {
		b = b.SampleSize(c.SampleSize)
	}
	if c.AsyncQueueSize > 0 {
		b = b.AsyncQueueSize(c.AsyncQueueSize)
	}
	if c.AsyncTimeout > 0 {
		b = b.AsyncTimeout(c.AsyncTimeout)
	}
	if c.DrainTimeout > 0 {
		b = b.DrainTimeout(c.DrainTimeout)
	}
	return b.Build()
}

// WriterConfig selects and tunes the optional write-through backend.
type WriterConfig struct {
	Backend WriterBackend `mapstructure:"backend" validate:"required,oneof=none redis sql"`
}

// RedisConfig configures the rediswriter backend.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`
	Compression bool          `mapstructure:"compression"`
}

// SQLConfig configures the sqlwriter backend. Dialect is a goose dialect
// name ("sqlite3" or "postgres"), not a database/sql driver name.
type SQLConfig struct {
	Dialect string `mapstructure:"dialect" validate:"omitempty,oneof=sqlite3 postgres"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig configures the Prometheus registry namespace.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// EventsConfig configures the websocket event-stream admin server.
type EventsConfig struct {
	Addr                   string  `mapstructure:"addr" validate:"required"`
	RegistrationsPerSecond float64 `mapstructure:"registrations_per_second" validate:"gt=0"`
	Burst                  int     `mapstructure:"burst" validate:"gt=0"`
}

// LogConfig mirrors the teacher's pkg/logger configuration surface.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json text"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

var validate = validator.New()

// Load reads configPath (if non-empty) layered under defaults and
// CACHESERVER_-prefixed environment overrides, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("cacheserver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("appconfig: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("appconfig: unmarshal: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("appconfig: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.max_entries", 10_000)
	v.SetDefault("cache.eviction_policy", "lfu")
	v.SetDefault("cache.expiration_policy", "eternal")
	v.SetDefault("cache.sweep_interval", "30s")
	v.SetDefault("cache.sample_size", 64)
	v.SetDefault("cache.async_queue_size", 256)
	v.SetDefault("cache.async_timeout", "2s")
	v.SetDefault("cache.drain_timeout", "5s")

	v.SetDefault("writer.backend", "none")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "cachecore:")
	v.SetDefault("redis.ttl", "0s")
	v.SetDefault("redis.compression", false)

	v.SetDefault("sql.dialect", "sqlite3")
	v.SetDefault("sql.dsn", "file::memory:?cache=shared")

	v.SetDefault("metrics.namespace", "cachecore")

	v.SetDefault("events.addr", ":8090")
	v.SetDefault("events.registrations_per_second", 5)
	v.SetDefault("events.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
}
