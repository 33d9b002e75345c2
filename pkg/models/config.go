package models

import "time"

// Storage backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Select-all scopes.
const (
	SelectScopeVisible = "visible"
	SelectScopeAll     = "all"
)

// StorageConfig selects and configures the key-value backend behind the
// persistence gateway.
type StorageConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	Path        string `yaml:"path" mapstructure:"path"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// LatencyConfig holds the simulated per-operation delays and fault rate.
type LatencyConfig struct {
	Read        time.Duration `yaml:"read" mapstructure:"read"`
	Create      time.Duration `yaml:"create" mapstructure:"create"`
	Update      time.Duration `yaml:"update" mapstructure:"update"`
	Delete      time.Duration `yaml:"delete" mapstructure:"delete"`
	FailureRate float64       `yaml:"failure_rate" mapstructure:"failure_rate"`
}

// GlobalConfig holds system-wide settings read from .taskdeck.yaml via Viper.
type GlobalConfig struct {
	Storage        StorageConfig `yaml:"storage" mapstructure:"storage"`
	Latency        LatencyConfig `yaml:"latency" mapstructure:"latency"`
	SeedDefaults   bool          `yaml:"seed_defaults" mapstructure:"seed_defaults"`
	SelectAllScope string        `yaml:"select_all_scope" mapstructure:"select_all_scope"`
	DefaultSort    TaskSort      `yaml:"sort" mapstructure:"sort"`
	Locale         string        `yaml:"locale" mapstructure:"locale"`
	LogLevel       string        `yaml:"log_level" mapstructure:"log_level"`
}
