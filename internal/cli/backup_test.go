package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/taskdeck/internal/storage"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

func TestBackupCreateAndRestoreFile(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "one"})
	f.add(t, models.TaskDraft{Title: "two"})
	path := filepath.Join(t.TempDir(), "backup.json")

	resetFlags(t, backupCreateCmd)
	setFlag(t, backupCreateCmd, "out", path)
	out := captureStdout(t, func() {
		if err := backupCreateCmd.RunE(backupCreateCmd, nil); err != nil {
			t.Fatalf("backup create: %v", err)
		}
	})
	if !strings.Contains(out, "Backed up 2 task(s)") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("backup is not JSON: %v", err)
	}

	f.add(t, models.TaskDraft{Title: "three"})

	resetFlags(t, backupRestoreCmd)
	out = captureStdout(t, func() {
		if err := backupRestoreCmd.RunE(backupRestoreCmd, []string{path}); err != nil {
			t.Fatalf("backup restore: %v", err)
		}
	})
	if !strings.Contains(out, "Restored 2 task(s)") {
		t.Errorf("output = %q", out)
	}
	if n := len(f.store.Tasks()); n != 2 {
		t.Errorf("store holds %d tasks after restore, want 2", n)
	}
}

func TestBackupRestoreLast(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "kept"})

	resetFlags(t, backupCreateCmd)
	captureStdout(t, func() {
		if err := backupCreateCmd.RunE(backupCreateCmd, nil); err != nil {
			t.Fatalf("backup create: %v", err)
		}
	})

	for _, task := range f.store.Tasks() {
		if err := f.store.DeleteTask(t.Context(), task.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	resetFlags(t, backupRestoreCmd)
	setFlag(t, backupRestoreCmd, "last", "true")
	captureStdout(t, func() {
		if err := backupRestoreCmd.RunE(backupRestoreCmd, nil); err != nil {
			t.Fatalf("backup restore --last: %v", err)
		}
	})
	tasks := f.store.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "kept" {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestBackupRestoreLast_NoneStored(t *testing.T) {
	withTestStore(t)
	resetFlags(t, backupRestoreCmd)
	setFlag(t, backupRestoreCmd, "last", "true")

	err := backupRestoreCmd.RunE(backupRestoreCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "no stored backup") {
		t.Errorf("error = %v", err)
	}
}

func TestBackupRestore_InvalidDocumentKeepsTasks(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "safe"})
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"version":"1.0"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	resetFlags(t, backupRestoreCmd)
	err := backupRestoreCmd.RunE(backupRestoreCmd, []string{path})
	if err == nil || !strings.Contains(err.Error(), storage.ErrInvalidBackup.Error()) {
		t.Fatalf("error = %v, want invalid backup", err)
	}
	if n := len(f.store.Tasks()); n != 1 {
		t.Errorf("store holds %d tasks, want 1", n)
	}
}

func TestBackupCreate_YAMLToStdout(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "yaml me"})

	resetFlags(t, backupCreateCmd)
	setFlag(t, backupCreateCmd, "format", "yaml")
	out := captureStdout(t, func() {
		if err := backupCreateCmd.RunE(backupCreateCmd, nil); err != nil {
			t.Fatalf("backup create: %v", err)
		}
	})
	if !strings.Contains(out, "yaml me") {
		t.Errorf("output = %q", out)
	}
	if _, ok, _ := f.gw.LastBackup(t.Context(), "alice"); ok {
		t.Error("YAML export should not replace the stored backup")
	}
}
