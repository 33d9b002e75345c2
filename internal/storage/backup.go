package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
	"gopkg.in/yaml.v3"
)

// BackupVersion is the only backup document version this build understands.
const BackupVersion = "1.0.0"

// ErrInvalidBackup is returned for documents that are not task backups.
var ErrInvalidBackup = errors.New("invalid backup format")

// Backup is a point-in-time copy of one owner's collection.
type Backup struct {
	Version    string        `json:"version" yaml:"version"`
	BackedUpAt time.Time     `json:"backedUpAt" yaml:"backed_up_at"`
	OwnerID    string        `json:"ownerId" yaml:"owner_id"`
	Tasks      []models.Task `json:"-" yaml:"tasks"`
}

type backupDocument struct {
	Version    string        `json:"version"`
	BackedUpAt string        `json:"backedUpAt"`
	OwnerID    string        `json:"ownerId,omitempty"`
	Tasks      *[]taskRecord `json:"tasks"`
}

// EncodeBackup renders b as the canonical JSON document.
func EncodeBackup(b Backup) ([]byte, error) {
	records := make([]taskRecord, len(b.Tasks))
	for i, t := range b.Tasks {
		records[i] = toRecord(t)
	}
	doc := backupDocument{
		Version:    b.Version,
		BackedUpAt: formatTime(b.BackedUpAt),
		OwnerID:    b.OwnerID,
		Tasks:      &records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// DecodeBackup parses a JSON backup document. A document without a task
// array, with an unknown version or with unreadable tasks wraps
// ErrInvalidBackup.
func DecodeBackup(data []byte) (Backup, error) {
	var doc backupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if doc.Tasks == nil {
		return Backup{}, fmt.Errorf("%w: missing tasks", ErrInvalidBackup)
	}
	if doc.Version != BackupVersion {
		return Backup{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidBackup, doc.Version)
	}

	b := Backup{Version: doc.Version, OwnerID: doc.OwnerID, Tasks: make([]models.Task, 0, len(*doc.Tasks))}
	if doc.BackedUpAt != "" {
		at, err := parseTime("backedUpAt", doc.BackedUpAt)
		if err != nil {
			return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
		}
		b.BackedUpAt = at
	}
	for _, r := range *doc.Tasks {
		t, err := fromRecord(r)
		if err != nil {
			return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
		}
		b.Tasks = append(b.Tasks, t)
	}
	return b, nil
}

// EncodeBackupYAML renders b as YAML for human inspection.
func EncodeBackupYAML(b Backup) ([]byte, error) {
	data, err := yaml.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding backup as yaml: %w", err)
	}
	return data, nil
}

// BackupKey is the storage key of an owner's most recent backup.
func BackupKey(ownerID string) string {
	return "taskdeck:backup:" + ownerID
}

// StoreBackup keeps data as the owner's most recent backup.
func (g *Gateway) StoreBackup(ctx context.Context, ownerID string, data []byte) error {
	if err := g.kv.Set(ctx, BackupKey(ownerID), data); err != nil {
		return &PersistenceError{Op: OpUpdate, OwnerID: ownerID, Err: err}
	}
	return nil
}

// LastBackup returns the owner's most recent stored backup, if any.
func (g *Gateway) LastBackup(ctx context.Context, ownerID string) ([]byte, bool, error) {
	data, found, err := g.kv.Get(ctx, BackupKey(ownerID))
	if err != nil {
		return nil, false, &PersistenceError{Op: OpRead, OwnerID: ownerID, Err: err}
	}
	return data, found, nil
}
