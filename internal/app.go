// Package internal provides the App struct that wires all components of
// taskdeck together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/taskdeck/internal/cli"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/identity"
	"github.com/valter-silva-au/taskdeck/internal/observability"
	"github.com/valter-silva-au/taskdeck/internal/storage"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

const (
	eventLogFileName = "events.jsonl"
	sqliteFileName   = "tasks.db"
	redisDialTimeout = 5 * time.Second
)

// App holds all service dependencies for taskdeck.
type App struct {
	BasePath string
	Logger   *slog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	KV      storage.KVStore
	Gateway *storage.Gateway

	// Core services
	Repo  core.TaskRepository
	Store *core.Store

	// Identity
	Registry *identity.Registry

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components of taskdeck. basePath is the
// directory holding the configuration, account and task data (typically
// ~/.taskdeck).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", basePath, err)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Logger = newLogger(cfg.LogLevel)

	// --- Storage layer ---
	app.KV, err = openKV(basePath, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.Gateway = storage.NewGateway(app.KV, storage.GatewayOptions{
		Latency: storage.Latency{
			Read:   cfg.Latency.Read,
			Create: cfg.Latency.Create,
			Update: cfg.Latency.Update,
			Delete: cfg.Latency.Delete,
		},
		FailureRate: cfg.Latency.FailureRate,
		Seed:        cfg.SeedDefaults,
		Logger:      app.Logger,
	})

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, eventLogFileName))
	if err != nil {
		// Non-fatal: run without the event log.
		app.Logger.Warn("event log disabled", "error", err)
		app.EventLog = nil
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Core services ---
	app.Repo = core.NewTaskRepository(app.Gateway, evtAdapter, nil)
	app.Store = core.NewStore(app.Repo, core.NewQueryPipeline(cfg.Locale, nil), core.StoreOptions{
		SelectAllScope: cfg.SelectAllScope,
		DefaultSort:    cfg.DefaultSort,
	})

	// --- Identity ---
	app.Registry = identity.NewRegistry(basePath)
	if id := app.Registry.Current(); id.Active {
		if err := app.Store.SetIdentity(context.Background(), storeIdentity(id)); err != nil {
			// Non-fatal: commands report the load failure through the store.
			app.Logger.Warn("loading tasks for signed-in user", "owner", id.OwnerID, "error", err)
		}
	}

	cli.BasePath = basePath
	cli.Store = app.Store
	cli.Repo = app.Repo
	cli.Auth = app.Registry
	cli.Backups = app.Gateway
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Close releases the storage backend and event log.
func (a *App) Close() error {
	var firstErr error
	if a.Gateway != nil {
		if err := a.Gateway.Close(); err != nil {
			firstErr = err
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath returns TASKDECK_HOME when set, otherwise ~/.taskdeck.
func ResolveBasePath() string {
	if home := os.Getenv("TASKDECK_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskdeck"
	}
	return filepath.Join(home, ".taskdeck")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openKV opens the configured backend. Relative storage paths are resolved
// against basePath.
func openKV(basePath string, cfg models.StorageConfig) (storage.KVStore, error) {
	dataDir := cfg.Path
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(basePath, dataDir)
	}

	switch cfg.Backend {
	case models.BackendMemory:
		return storage.NewMemoryKV(), nil
	case models.BackendFile:
		return storage.NewFileKV(dataDir), nil
	case models.BackendSQLite:
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		kv, err := storage.OpenSQLiteKV(filepath.Join(dataDir, sqliteFileName))
		if err != nil {
			return nil, err
		}
		return kv, nil
	case models.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		defer cancel()
		kv, err := storage.DialRedisKV(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   observability.LevelInfo,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}

func storeIdentity(id identity.Identity) core.Identity {
	return core.Identity{OwnerID: id.OwnerID, Active: id.Active}
}
