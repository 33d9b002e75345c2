package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Backend != models.BackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, models.BackendFile)
	}
	if cfg.Latency.Read != 300*time.Millisecond {
		t.Errorf("Latency.Read = %v, want 300ms", cfg.Latency.Read)
	}
	if cfg.Latency.Delete != 600*time.Millisecond {
		t.Errorf("Latency.Delete = %v, want 600ms", cfg.Latency.Delete)
	}
	if !cfg.SeedDefaults {
		t.Error("SeedDefaults = false, want true")
	}
	if cfg.SelectAllScope != models.SelectScopeVisible {
		t.Errorf("SelectAllScope = %q, want visible", cfg.SelectAllScope)
	}
	if cfg.DefaultSort != models.DefaultSort() {
		t.Errorf("DefaultSort = %+v, want createdAt desc", cfg.DefaultSort)
	}
	if err := cm.ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadGlobalConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskdeck.yaml", `
storage:
  backend: sqlite
  path: tasks.db
latency:
  read: 10ms
  create: 20ms
  update: 30ms
  delete: 40ms
  failure_rate: 0.25
seed_defaults: false
selection:
  select_all_scope: all
sort:
  by: priority
  order: asc
locale: de
log:
  level: debug
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Backend != models.BackendSQLite || cfg.Storage.Path != "tasks.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Latency.Create != 20*time.Millisecond || cfg.Latency.FailureRate != 0.25 {
		t.Errorf("Latency = %+v", cfg.Latency)
	}
	if cfg.SeedDefaults {
		t.Error("SeedDefaults = true, want false")
	}
	if cfg.SelectAllScope != models.SelectScopeAll {
		t.Errorf("SelectAllScope = %q, want all", cfg.SelectAllScope)
	}
	if cfg.DefaultSort.By != models.SortByPriority || cfg.DefaultSort.Order != models.SortAsc {
		t.Errorf("DefaultSort = %+v", cfg.DefaultSort)
	}
	if cfg.Locale != "de" || cfg.LogLevel != "debug" {
		t.Errorf("Locale = %q, LogLevel = %q", cfg.Locale, cfg.LogLevel)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want default", cfg.Storage.RedisAddr)
	}
}

func TestLoadGlobalConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskdeck.yaml", "storage: [unclosed\n")

	if _, err := NewConfigurationManager(dir).LoadGlobalConfig(); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidateConfig_CollectsAllProblems(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultGlobalConfig()
	cfg.Storage.Backend = "postgres"
	cfg.Latency.Update = -time.Second
	cfg.Latency.FailureRate = 1.5
	cfg.SelectAllScope = "page"
	cfg.DefaultSort = models.TaskSort{By: "size", Order: "up"}
	cfg.LogLevel = "loud"

	err := cm.ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"storage.backend", "latency.update", "latency.failure_rate",
		"selection.select_all_scope", "sort.by", "sort.order", "log.level",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%s", want, err)
		}
	}
}

func TestValidateConfig_BackendRequirements(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg := DefaultGlobalConfig()
	cfg.Storage.Backend = models.BackendSQLite
	cfg.Storage.Path = ""
	if err := cm.ValidateConfig(cfg); err == nil || !strings.Contains(err.Error(), "storage.path") {
		t.Errorf("sqlite without path: got %v", err)
	}

	cfg = DefaultGlobalConfig()
	cfg.Storage.Backend = models.BackendRedis
	cfg.Storage.RedisAddr = ""
	if err := cm.ValidateConfig(cfg); err == nil || !strings.Contains(err.Error(), "storage.redis.addr") {
		t.Errorf("redis without addr: got %v", err)
	}

	cfg = DefaultGlobalConfig()
	cfg.Storage.Backend = models.BackendMemory
	cfg.Storage.Path = ""
	if err := cm.ValidateConfig(cfg); err != nil {
		t.Errorf("memory backend needs no path, got %v", err)
	}

	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
}
