package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

func TestTaskCmd_Subcommands(t *testing.T) {
	expected := []string{"add", "list", "show", "edit", "delete", "toggle", "reorder", "bulk-delete", "bulk-status"}
	subs := make(map[string]bool)
	for _, cmd := range taskCmd.Commands() {
		subs[cmd.Name()] = true
	}
	for _, name := range expected {
		if !subs[name] {
			t.Errorf("expected subcommand %q on 'task', but it was not registered", name)
		}
	}
}

func TestTaskCmds_RequireSession(t *testing.T) {
	withSignedOutStore(t)

	err := taskListCmd.RunE(taskListCmd, nil)
	if !errors.Is(err, errNotSignedIn) {
		t.Fatalf("list error = %v, want errNotSignedIn", err)
	}
	err = taskAddCmd.RunE(taskAddCmd, []string{"x"})
	if !errors.Is(err, errNotSignedIn) {
		t.Fatalf("add error = %v, want errNotSignedIn", err)
	}
}

func TestTaskAdd(t *testing.T) {
	f := withTestStore(t)
	resetFlags(t, taskAddCmd)
	setFlag(t, taskAddCmd, "priority", "high")
	setFlag(t, taskAddCmd, "due", "2030-01-15")
	setFlag(t, taskAddCmd, "tag", "work")
	setFlag(t, taskAddCmd, "tag", "q1")

	out := captureStdout(t, func() {
		if err := taskAddCmd.RunE(taskAddCmd, []string{"Write report"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tasks := f.store.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Title != "Write report" || got.Priority != models.PriorityHigh {
		t.Errorf("task = %+v", got)
	}
	if got.DueDate == nil || got.DueDate.In(time.Local).Format(time.DateOnly) != "2030-01-15" {
		t.Errorf("due = %v, want 2030-01-15", got.DueDate)
	}
	if strings.Join(got.Tags, ",") != "work,q1" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !strings.Contains(out, "Created task "+shortID(got.ID)) {
		t.Errorf("output missing created line:\n%s", out)
	}
}

func TestTaskAdd_InvalidInput(t *testing.T) {
	f := withTestStore(t)
	resetFlags(t, taskAddCmd)

	if err := taskAddCmd.RunE(taskAddCmd, []string{"   "}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("blank title error = %v, want ErrValidation", err)
	}

	setFlag(t, taskAddCmd, "due", "next tuesday")
	if err := taskAddCmd.RunE(taskAddCmd, []string{"ok"}); err == nil || !strings.Contains(err.Error(), "invalid date") {
		t.Errorf("bad due error = %v", err)
	}
	if n := len(f.store.Tasks()); n != 0 {
		t.Errorf("got %d tasks, want 0", n)
	}
}

func TestTaskList_FiltersAndFormats(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "Alpha report", Priority: models.PriorityHigh, Tags: []string{"work"}})
	f.add(t, models.TaskDraft{Title: "Beta chores", Priority: models.PriorityLow, Tags: []string{"home"}})
	f.add(t, models.TaskDraft{Title: "Gamma report", Priority: models.PriorityUrgent})

	resetFlags(t, taskListCmd)
	setFlag(t, taskListCmd, "query", "report")
	setFlag(t, taskListCmd, "sort", "title")
	setFlag(t, taskListCmd, "order", "asc")
	setFlag(t, taskListCmd, "format", "json")

	out := captureStdout(t, func() {
		if err := taskListCmd.RunE(taskListCmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	var tasks []models.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(tasks) != 2 || tasks[0].Title != "Alpha report" || tasks[1].Title != "Gamma report" {
		t.Errorf("tasks = %v", tasks)
	}

	// The session's own search params are untouched.
	if q := f.store.SearchParams().Query; q != "" {
		t.Errorf("store query = %q, want empty", q)
	}
}

func TestTaskList_PriorityOrWithinCategory(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "a", Priority: models.PriorityHigh})
	f.add(t, models.TaskDraft{Title: "b", Priority: models.PriorityLow})
	f.add(t, models.TaskDraft{Title: "c", Priority: models.PriorityUrgent})

	resetFlags(t, taskListCmd)
	setFlag(t, taskListCmd, "priority", "high")
	setFlag(t, taskListCmd, "priority", "urgent")

	out := captureStdout(t, func() {
		if err := taskListCmd.RunE(taskListCmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, "2 task(s)") {
		t.Errorf("expected two tasks:\n%s", out)
	}
	if strings.Contains(out, " b") && strings.Contains(out, "low") {
		t.Errorf("low priority task listed:\n%s", out)
	}
}

func TestTaskList_Empty(t *testing.T) {
	withTestStore(t)
	resetFlags(t, taskListCmd)

	out := captureStdout(t, func() {
		if err := taskListCmd.RunE(taskListCmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("output = %q", out)
	}
}

func TestListParams_Invalid(t *testing.T) {
	withTestStore(t)

	tests := []struct {
		name  string
		flag  string
		value string
		want  string
	}{
		{"status", "status", "done", "invalid --status"},
		{"priority", "priority", "P0", "invalid --priority"},
		{"sort", "sort", "owner", "invalid --sort"},
		{"order", "order", "up", "invalid --order"},
		{"overdue", "overdue", "maybe", "invalid --overdue"},
		{"half range", "due-from", "2026-03-01", "must be given together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t, taskListCmd)
			setFlag(t, taskListCmd, tt.flag, tt.value)
			_, err := listParams()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestListParams_DueRangeCoversEndDay(t *testing.T) {
	withTestStore(t)
	resetFlags(t, taskListCmd)
	setFlag(t, taskListCmd, "due-from", "2026-03-01")
	setFlag(t, taskListCmd, "due-to", "2026-03-31")
	setFlag(t, taskListCmd, "overdue", "false")

	p, err := listParams()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := p.Filters.DueDateRange
	if r == nil {
		t.Fatal("expected a due date range")
	}
	if r.End.Hour() != 23 || r.End.Day() != 31 {
		t.Errorf("range end = %v, want the end of 31 March", r.End)
	}
	if p.Filters.IsOverdue == nil || *p.Filters.IsOverdue {
		t.Errorf("IsOverdue = %v, want false", p.Filters.IsOverdue)
	}
}

func TestTaskShow_ByPrefix(t *testing.T) {
	f := withTestStore(t)
	task := f.add(t, models.TaskDraft{Title: "Find me", Description: "details here"})
	resetFlags(t, taskShowCmd)

	out := captureStdout(t, func() {
		if err := taskShowCmd.RunE(taskShowCmd, []string{task.ID[:6]}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, task.ID) || !strings.Contains(out, "details here") {
		t.Errorf("output missing task fields:\n%s", out)
	}
}

func TestTaskShow_NotFound(t *testing.T) {
	withTestStore(t)
	resetFlags(t, taskShowCmd)

	err := taskShowCmd.RunE(taskShowCmd, []string{"nope"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTaskEdit_OnlyChangedFields(t *testing.T) {
	f := withTestStore(t)
	due := time.Date(2030, 5, 1, 0, 0, 0, 0, time.Local)
	task := f.add(t, models.TaskDraft{Title: "Old", Description: "keep", Priority: models.PriorityLow, DueDate: &due, Tags: []string{"a"}})

	resetFlags(t, taskEditCmd)
	setFlag(t, taskEditCmd, "title", "New")
	setFlag(t, taskEditCmd, "status", "in_progress")
	setFlag(t, taskEditCmd, "clear-due", "true")

	captureStdout(t, func() {
		if err := taskEditCmd.RunE(taskEditCmd, []string{task.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	got, _ := f.store.Find(task.ID)
	if got.Title != "New" || got.Status != models.StatusInProgress {
		t.Errorf("task = %+v", got)
	}
	if got.Description != "keep" || got.Priority != models.PriorityLow || len(got.Tags) != 1 {
		t.Errorf("unchanged fields were modified: %+v", got)
	}
	if got.DueDate != nil {
		t.Errorf("due = %v, want cleared", got.DueDate)
	}
}

func TestTaskEdit_NothingToChange(t *testing.T) {
	f := withTestStore(t)
	task := f.add(t, models.TaskDraft{Title: "x"})
	resetFlags(t, taskEditCmd)

	err := taskEditCmd.RunE(taskEditCmd, []string{task.ID})
	if err == nil || !strings.Contains(err.Error(), "nothing to change") {
		t.Errorf("error = %v", err)
	}
}

func TestTaskDelete(t *testing.T) {
	f := withTestStore(t)
	task := f.add(t, models.TaskDraft{Title: "bye"})

	captureStdout(t, func() {
		if err := taskDeleteCmd.RunE(taskDeleteCmd, []string{task.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if _, ok := f.store.Find(task.ID); ok {
		t.Error("task still present after delete")
	}
	if err := taskDeleteCmd.RunE(taskDeleteCmd, []string{task.ID}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestTaskToggle(t *testing.T) {
	f := withTestStore(t)
	task := f.add(t, models.TaskDraft{Title: "cycle"})

	out := captureStdout(t, func() {
		if err := taskToggleCmd.RunE(taskToggleCmd, []string{task.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, "in_progress") {
		t.Errorf("output = %q", out)
	}
}

func TestTaskReorder(t *testing.T) {
	f := withTestStore(t)
	a := f.add(t, models.TaskDraft{Title: "a"})
	b := f.add(t, models.TaskDraft{Title: "b"})
	c := f.add(t, models.TaskDraft{Title: "c"})
	before := f.store.Tasks()
	if before[0].ID != a.ID || before[2].ID != c.ID {
		t.Fatalf("unexpected initial order %v", before)
	}

	captureStdout(t, func() {
		if err := taskReorderCmd.RunE(taskReorderCmd, []string{a.ID, c.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	got := f.store.Tasks()
	want := []string{b.ID, c.ID, a.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTaskBulkDelete(t *testing.T) {
	f := withTestStore(t)
	a := f.add(t, models.TaskDraft{Title: "a"})
	b := f.add(t, models.TaskDraft{Title: "b"})
	keep := f.add(t, models.TaskDraft{Title: "keep"})

	out := captureStdout(t, func() {
		// A repeated id is selected once.
		if err := taskBulkDeleteCmd.RunE(taskBulkDeleteCmd, []string{a.ID, b.ID, a.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, "Deleted 2 task(s)") {
		t.Errorf("output = %q", out)
	}
	tasks := f.store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("remaining = %v", tasks)
	}
	if len(f.store.Selection()) != 0 {
		t.Errorf("selection = %v, want empty", f.store.Selection())
	}
}

func TestTaskBulkStatus(t *testing.T) {
	f := withTestStore(t)
	a := f.add(t, models.TaskDraft{Title: "a"})
	b := f.add(t, models.TaskDraft{Title: "b"})

	if err := taskBulkStatusCmd.RunE(taskBulkStatusCmd, []string{"done", a.ID}); err == nil {
		t.Error("expected error for invalid status")
	}

	captureStdout(t, func() {
		if err := taskBulkStatusCmd.RunE(taskBulkStatusCmd, []string{"completed", a.ID, b.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	for _, task := range f.store.Tasks() {
		if task.Status != models.StatusCompleted {
			t.Errorf("task %s status = %s, want completed", task.Title, task.Status)
		}
	}
}

func TestTaskBulkStatus_UnknownIDLeavesTasksUnchanged(t *testing.T) {
	f := withTestStore(t)
	a := f.add(t, models.TaskDraft{Title: "a"})

	err := taskBulkStatusCmd.RunE(taskBulkStatusCmd, []string{"completed", a.ID, "missing"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	got, _ := f.store.Find(a.ID)
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestResolveTaskID_Ambiguous(t *testing.T) {
	f := withTestStore(t)
	f.add(t, models.TaskDraft{Title: "a"})
	f.add(t, models.TaskDraft{Title: "b"})

	// The empty prefix matches every task.
	_, err := resolveTaskID(f.store, "")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("error = %v, want ambiguity", err)
	}
}

func TestCompleteTaskIDs(t *testing.T) {
	f := withTestStore(t)
	task := f.add(t, models.TaskDraft{Title: "complete me"})

	got, _ := completeTaskIDs(nil, nil, task.ID[:4])
	if len(got) != 1 || got[0] != task.ID+"\tcomplete me" {
		t.Errorf("completions = %v", got)
	}

	if err := f.store.SetIdentity(context.Background(), core.Identity{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := completeTaskIDs(nil, nil, ""); len(got) != 0 {
		t.Errorf("signed-out completions = %v, want none", got)
	}
}
