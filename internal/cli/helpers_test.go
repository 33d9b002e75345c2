package cli

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/identity"
	"github.com/valter-silva-au/taskdeck/internal/storage"
	"github.com/valter-silva-au/taskdeck/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// captureStdout runs fn and returns everything it printed to os.Stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

type cliFixture struct {
	store *core.Store
	repo  core.TaskRepository
	gw    *storage.Gateway
}

// withTestStore installs a store over an in-memory gateway, signed in as
// alice, and restores the package services when the test ends.
func withTestStore(t *testing.T) *cliFixture {
	t.Helper()
	origStore, origRepo, origBackups, origMetrics := Store, Repo, Backups, MetricsCalc
	t.Cleanup(func() {
		Store, Repo, Backups, MetricsCalc = origStore, origRepo, origBackups, origMetrics
	})

	gw := storage.NewGateway(storage.NewMemoryKV(), storage.GatewayOptions{})
	repo := core.NewTaskRepository(gw, nil, time.Now)
	store := core.NewStore(repo, core.NewQueryPipeline("en", time.Now), core.StoreOptions{})
	if err := store.SetIdentity(context.Background(), core.Identity{OwnerID: "alice", Active: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	Store, Repo, Backups, MetricsCalc = store, repo, gw, nil
	return &cliFixture{store: store, repo: repo, gw: gw}
}

// withSignedOutStore installs a store with no identity.
func withSignedOutStore(t *testing.T) {
	t.Helper()
	origStore := Store
	t.Cleanup(func() { Store = origStore })
	gw := storage.NewGateway(storage.NewMemoryKV(), storage.GatewayOptions{})
	Store = core.NewStore(core.NewTaskRepository(gw, nil, nil), nil, core.StoreOptions{})
}

// withTestRegistry installs an identity registry in a temp dir.
func withTestRegistry(t *testing.T) *identity.Registry {
	t.Helper()
	origAuth := Auth
	t.Cleanup(func() { Auth = origAuth })
	reg := identity.NewRegistry(t.TempDir()).WithCost(bcrypt.MinCost)
	Auth = reg
	return reg
}

func (f *cliFixture) add(t *testing.T, d models.TaskDraft) models.Task {
	t.Helper()
	task, err := f.store.AddTask(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return task
}

// resetFlags restores cmd's flags to their defaults after the test.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	})
}

func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting --%s: %v", name, err)
	}
}
