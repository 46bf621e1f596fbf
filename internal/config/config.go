package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type APIConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
	AdminKey  string `yaml:"admin_key"` // login credential that mints a session token
	// RateLimit is requests per user per minute on mutating routes.
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig holds the TTL policy for entitlement resources. One coherent
// policy: plans are slow-moving (long TTL), quota counters are hot (short
// TTL plus explicit invalidation on every recorded increment).
type CacheConfig struct {
	PlanTTL      time.Duration `yaml:"plan_ttl"`
	QuotaTTL     time.Duration `yaml:"quota_ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type RenewalConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchLimit int           `yaml:"batch_limit"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Renewal  RenewalConfig  `yaml:"renewal"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.RateLimit <= 0 {
		cfg.API.RateLimit = 120
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Cache.PlanTTL <= 0 {
		cfg.Cache.PlanTTL = 30 * time.Minute
	}
	if cfg.Cache.QuotaTTL <= 0 {
		cfg.Cache.QuotaTTL = 30 * time.Second
	}
	if cfg.Cache.FetchTimeout <= 0 {
		cfg.Cache.FetchTimeout = 10 * time.Second
	}
	if cfg.Renewal.Interval <= 0 {
		cfg.Renewal.Interval = time.Hour
	}
	if cfg.Renewal.BatchLimit <= 0 {
		cfg.Renewal.BatchLimit = 100
	}
	if cfg.Renewal.LockTTL <= 0 {
		cfg.Renewal.LockTTL = 5 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.API.JWTSecret == "" && !dev {
		return nil, errors.New("api.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
