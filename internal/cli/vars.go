package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/identity"
	"github.com/valter-silva-au/taskdeck/internal/observability"
)

// Authenticator is the identity provider the auth commands drive.
type Authenticator interface {
	Signup(req identity.SignupRequest) (identity.User, error)
	Login(email, password string) (identity.User, error)
	Logout() error
	Current() identity.Identity
}

// BackupArchive keeps the most recent backup document per owner.
type BackupArchive interface {
	StoreBackup(ctx context.Context, ownerID string, data []byte) error
	LastBackup(ctx context.Context, ownerID string) ([]byte, bool, error)
}

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Store    *core.Store
	Repo     core.TaskRepository
	Auth     Authenticator
	Backups  BackupArchive

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
)

var errNotSignedIn = errors.New("not signed in (run 'taskdeck auth login' or 'taskdeck auth signup')")

// requireSession returns the store when a user is signed in.
func requireSession() (*core.Store, error) {
	if Store == nil {
		return nil, fmt.Errorf("task store not initialized")
	}
	if !Store.Identity().Active {
		return nil, errNotSignedIn
	}
	return Store, nil
}
