// Package core contains the business logic for taskdeck: the task
// repository, the search/filter/sort pipeline, the session state store,
// validation and configuration.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/taskdeck/internal/storage"
	"github.com/valter-silva-au/taskdeck/pkg/models"
	"golang.org/x/text/language"
)

// ConfigFileName is the base name of the configuration file, without the
// .yaml extension.
const ConfigFileName = ".taskdeck"

// ConfigurationManager loads and validates the global configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	// basePath is the directory holding .taskdeck.yaml.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager reading from
// basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns the configuration used when no file exists.
func DefaultGlobalConfig() *models.GlobalConfig {
	lat := storage.DefaultLatency()
	return &models.GlobalConfig{
		Storage: models.StorageConfig{
			Backend:     models.BackendFile,
			Path:        "data",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "taskdeck:",
		},
		Latency: models.LatencyConfig{
			Read:   lat.Read,
			Create: lat.Create,
			Update: lat.Update,
			Delete: lat.Delete,
		},
		SeedDefaults:   true,
		SelectAllScope: models.SelectScopeVisible,
		DefaultSort:    models.DefaultSort(),
		Locale:         "en",
		LogLevel:       "warn",
	}
}

// LoadGlobalConfig reads .taskdeck.yaml from the base path. If the file does
// not exist, defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.redis.addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis.prefix", cfg.Storage.RedisPrefix)
	v.SetDefault("latency.read", cfg.Latency.Read)
	v.SetDefault("latency.create", cfg.Latency.Create)
	v.SetDefault("latency.update", cfg.Latency.Update)
	v.SetDefault("latency.delete", cfg.Latency.Delete)
	v.SetDefault("latency.failure_rate", cfg.Latency.FailureRate)
	v.SetDefault("seed_defaults", cfg.SeedDefaults)
	v.SetDefault("selection.select_all_scope", cfg.SelectAllScope)
	v.SetDefault("sort.by", string(cfg.DefaultSort.By))
	v.SetDefault("sort.order", string(cfg.DefaultSort.Order))
	v.SetDefault("locale", cfg.Locale)
	v.SetDefault("log.level", cfg.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg.Storage = models.StorageConfig{
		Backend:     v.GetString("storage.backend"),
		Path:        v.GetString("storage.path"),
		RedisAddr:   v.GetString("storage.redis.addr"),
		RedisPrefix: v.GetString("storage.redis.prefix"),
	}
	cfg.Latency = models.LatencyConfig{
		Read:        v.GetDuration("latency.read"),
		Create:      v.GetDuration("latency.create"),
		Update:      v.GetDuration("latency.update"),
		Delete:      v.GetDuration("latency.delete"),
		FailureRate: v.GetFloat64("latency.failure_rate"),
	}
	cfg.SeedDefaults = v.GetBool("seed_defaults")
	cfg.SelectAllScope = v.GetString("selection.select_all_scope")
	cfg.DefaultSort = models.TaskSort{
		By:    models.SortField(v.GetString("sort.by")),
		Order: models.SortOrder(v.GetString("sort.order")),
	}
	cfg.Locale = v.GetString("locale")
	cfg.LogLevel = v.GetString("log.level")

	return cfg, nil
}

var validBackends = map[string]bool{
	models.BackendMemory: true,
	models.BackendFile:   true,
	models.BackendSQLite: true,
	models.BackendRedis:  true,
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ValidateConfig checks cfg and reports every invalid value at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validBackends[cfg.Storage.Backend] {
		errs = append(errs, fmt.Sprintf(
			"storage.backend %q is invalid, must be one of: memory, file, sqlite, redis",
			cfg.Storage.Backend,
		))
	}
	if (cfg.Storage.Backend == models.BackendFile || cfg.Storage.Backend == models.BackendSQLite) && cfg.Storage.Path == "" {
		errs = append(errs, "storage.path must not be empty for file and sqlite backends")
	}
	if cfg.Storage.Backend == models.BackendRedis && cfg.Storage.RedisAddr == "" {
		errs = append(errs, "storage.redis.addr must not be empty for the redis backend")
	}

	latencies := []struct {
		key string
		d   time.Duration
	}{
		{"latency.read", cfg.Latency.Read},
		{"latency.create", cfg.Latency.Create},
		{"latency.update", cfg.Latency.Update},
		{"latency.delete", cfg.Latency.Delete},
	}
	for _, l := range latencies {
		if l.d < 0 {
			errs = append(errs, fmt.Sprintf("%s must be non-negative, got %s", l.key, l.d))
		}
	}
	if cfg.Latency.FailureRate < 0 || cfg.Latency.FailureRate > 1 {
		errs = append(errs, fmt.Sprintf("latency.failure_rate %v must be between 0 and 1", cfg.Latency.FailureRate))
	}

	if cfg.SelectAllScope != models.SelectScopeVisible && cfg.SelectAllScope != models.SelectScopeAll {
		errs = append(errs, fmt.Sprintf(
			"selection.select_all_scope %q is invalid, must be visible or all",
			cfg.SelectAllScope,
		))
	}
	if !cfg.DefaultSort.By.Valid() {
		errs = append(errs, fmt.Sprintf("sort.by %q is invalid", cfg.DefaultSort.By))
	}
	if cfg.DefaultSort.Order != models.SortAsc && cfg.DefaultSort.Order != models.SortDesc {
		errs = append(errs, fmt.Sprintf("sort.order %q is invalid, must be asc or desc", cfg.DefaultSort.Order))
	}
	if _, err := language.Parse(cfg.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("locale %q is not a valid language tag", cfg.Locale))
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be debug, info, warn or error", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
