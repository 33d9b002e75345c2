package core

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/taskdeck/internal/storage"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// Gateway loads and replaces whole task collections per owner.
type Gateway interface {
	Load(ctx context.Context, ownerID string) ([]models.Task, error)
	Save(ctx context.Context, ownerID string, tasks []models.Task) error
}

// BulkResult reports how many tasks a bulk update touched and their new
// canonical state.
type BulkResult struct {
	Count int
	Tasks []models.Task
}

// TaskRepository performs owner-scoped CRUD over the gateway. Every write
// replaces the owner's whole collection.
type TaskRepository interface {
	Create(ctx context.Context, ownerID string, draft models.TaskDraft) (models.Task, error)
	Get(ctx context.Context, ownerID, id string) (models.Task, error)
	Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
	BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error)
	BulkUpdate(ctx context.Context, ownerID string, ids []string, patch models.TaskPatch) (BulkResult, error)
	Reorder(ctx context.Context, ownerID, activeID, overID string) ([]models.Task, error)
	List(ctx context.Context, ownerID string) ([]models.Task, error)
	Backup(ctx context.Context, ownerID string) (storage.Backup, error)
	Restore(ctx context.Context, ownerID string, b storage.Backup) (int, error)
}

type taskRepository struct {
	gateway     Gateway
	eventLogger EventLogger
	queue       *writeQueue
	now         func() time.Time
}

// NewTaskRepository creates a TaskRepository over gateway. eventLogger may
// be nil. now defaults to time.Now.
func NewTaskRepository(gateway Gateway, eventLogger EventLogger, now func() time.Time) TaskRepository {
	if now == nil {
		now = time.Now
	}
	return &taskRepository{
		gateway:     gateway,
		eventLogger: eventLogger,
		queue:       newWriteQueue(),
		now:         now,
	}
}

func (r *taskRepository) logEvent(eventType string, data map[string]any) {
	if r.eventLogger != nil {
		_ = r.eventLogger.LogEvent(eventType, data)
	}
}

func (r *taskRepository) load(ctx context.Context, ownerID string) ([]models.Task, error) {
	tasks, err := r.gateway.Load(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w: %w", ErrPersistence, err)
	}
	return tasks, nil
}

func (r *taskRepository) save(ctx context.Context, op storage.Operation, ownerID string, tasks []models.Task) error {
	if err := r.gateway.Save(storage.WithOperation(ctx, op), ownerID, tasks); err != nil {
		return fmt.Errorf("saving tasks: %w: %w", ErrPersistence, err)
	}
	return nil
}

// mutate runs fn inside the owner's write lane on a freshly loaded
// collection and saves the result when fn reports a change.
func (r *taskRepository) mutate(ctx context.Context, op storage.Operation, ownerID string, fn func([]models.Task) ([]models.Task, bool, error)) error {
	release, err := r.queue.acquire(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("waiting for write lane: %w: %w", ErrPersistence, err)
	}
	defer release()

	tasks, err := r.load(ctx, ownerID)
	if err != nil {
		return err
	}
	next, changed, err := fn(tasks)
	if err != nil || !changed {
		return err
	}
	return r.save(ctx, op, ownerID, next)
}

func indexOf(tasks []models.Task, id string) int {
	return slices.IndexFunc(tasks, func(t models.Task) bool { return t.ID == id })
}

func notFound(id string) error {
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}

func (r *taskRepository) Create(ctx context.Context, ownerID string, draft models.TaskDraft) (models.Task, error) {
	if err := ValidateTitle(draft.Title); err != nil {
		return models.Task{}, err
	}

	now := r.now().UTC()
	task := models.Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      models.StatusPending,
		Priority:    draft.Priority,
		Tags:        NormalizeTags(draft.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if draft.DueDate != nil {
		due := draft.DueDate.UTC()
		task.DueDate = &due
	}

	err := r.mutate(ctx, storage.OpCreate, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		return append(tasks, task), true, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	r.logEvent(EventTaskCreated, map[string]any{
		"task_id":  task.ID,
		"owner_id": ownerID,
		"priority": string(task.Priority),
		"title":    task.Title,
	})
	return task.Clone(), nil
}

func (r *taskRepository) Get(ctx context.Context, ownerID, id string) (models.Task, error) {
	tasks, err := r.load(ctx, ownerID)
	if err != nil {
		return models.Task{}, err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return models.Task{}, notFound(id)
	}
	return tasks[i], nil
}

// applyPatch merges p into t and stamps updatedAt, never earlier than
// createdAt.
func applyPatch(t models.Task, p models.TaskPatch, now time.Time) models.Task {
	t = t.Clone()
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := p.DueDate.UTC()
		t.DueDate = &due
	}
	if p.Tags != nil {
		t.Tags = NormalizeTags(p.Tags)
	}
	t.UpdatedAt = now
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	return t
}

func (r *taskRepository) Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.Title != nil {
		if err := ValidateTitle(*patch.Title); err != nil {
			return models.Task{}, err
		}
	}

	var before, after models.Task
	err := r.mutate(ctx, storage.OpUpdate, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, false, notFound(id)
		}
		before = tasks[i]
		after = applyPatch(before, patch, r.now().UTC())
		tasks[i] = after
		return tasks, true, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if before.Status != after.Status {
		r.logEvent(EventTaskStatusChanged, map[string]any{
			"task_id":    id,
			"owner_id":   ownerID,
			"old_status": string(before.Status),
			"new_status": string(after.Status),
		})
	} else {
		r.logEvent(EventTaskUpdated, map[string]any{"task_id": id, "owner_id": ownerID})
	}
	return after.Clone(), nil
}

func (r *taskRepository) Delete(ctx context.Context, ownerID, id string) error {
	err := r.mutate(ctx, storage.OpDelete, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, false, notFound(id)
		}
		return slices.Delete(tasks, i, i+1), true, nil
	})
	if err != nil {
		return err
	}

	r.logEvent(EventTaskDeleted, map[string]any{"task_id": id, "owner_id": ownerID})
	return nil
}

// BulkDelete removes every listed task that exists and ignores the rest.
func (r *taskRepository) BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	removed := 0
	err := r.mutate(ctx, storage.OpDelete, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		kept := slices.DeleteFunc(tasks, func(t models.Task) bool { return drop[t.ID] })
		removed = len(tasks) - len(kept)
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logEvent(EventTasksBulkDeleted, map[string]any{"owner_id": ownerID, "count": removed})
	}
	return removed, nil
}

// BulkUpdate applies patch to every listed task that exists, in one save.
func (r *taskRepository) BulkUpdate(ctx context.Context, ownerID string, ids []string, patch models.TaskPatch) (BulkResult, error) {
	if patch.Title != nil {
		if err := ValidateTitle(*patch.Title); err != nil {
			return BulkResult{}, err
		}
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var result BulkResult
	err := r.mutate(ctx, storage.OpUpdate, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		now := r.now().UTC()
		for i, t := range tasks {
			if !want[t.ID] {
				continue
			}
			tasks[i] = applyPatch(t, patch, now)
			result.Tasks = append(result.Tasks, tasks[i].Clone())
		}
		result.Count = len(result.Tasks)
		return tasks, result.Count > 0, nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	if result.Count > 0 {
		data := map[string]any{"owner_id": ownerID, "count": result.Count}
		if patch.Status != nil {
			data["new_status"] = string(*patch.Status)
		}
		r.logEvent(EventTasksBulkUpdated, data)
	}
	return result, nil
}

// Reorder moves activeID to the position currently held by overID and
// persists the new order.
func (r *taskRepository) Reorder(ctx context.Context, ownerID, activeID, overID string) ([]models.Task, error) {
	var (
		out   []models.Task
		moved bool
	)
	err := r.mutate(ctx, storage.OpUpdate, ownerID, func(tasks []models.Task) ([]models.Task, bool, error) {
		from := indexOf(tasks, activeID)
		if from < 0 {
			return nil, false, notFound(activeID)
		}
		to := indexOf(tasks, overID)
		if to < 0 {
			return nil, false, notFound(overID)
		}
		moved = from != to
		out = moveTask(tasks, from, to)
		return out, moved, nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		r.logEvent(EventTasksReordered, map[string]any{"owner_id": ownerID, "task_id": activeID, "over_id": overID})
	}
	return models.CloneTasks(out), nil
}

// moveTask removes the element at from and inserts it at to.
func moveTask(tasks []models.Task, from, to int) []models.Task {
	if from == to {
		return tasks
	}
	moved := tasks[from]
	tasks = slices.Delete(tasks, from, from+1)
	return slices.Insert(tasks, to, moved)
}

func (r *taskRepository) List(ctx context.Context, ownerID string) ([]models.Task, error) {
	return r.load(ctx, ownerID)
}

func (r *taskRepository) Backup(ctx context.Context, ownerID string) (storage.Backup, error) {
	tasks, err := r.load(ctx, ownerID)
	if err != nil {
		return storage.Backup{}, err
	}
	return storage.Backup{
		Version:    storage.BackupVersion,
		BackedUpAt: r.now().UTC(),
		OwnerID:    ownerID,
		Tasks:      tasks,
	}, nil
}

// Restore replaces the owner's collection with the backup's tasks, taking
// ownership of every restored task.
func (r *taskRepository) Restore(ctx context.Context, ownerID string, b storage.Backup) (int, error) {
	if b.Version != storage.BackupVersion {
		return 0, fmt.Errorf("restoring backup: %w", storage.ErrInvalidBackup)
	}
	restored := models.CloneTasks(b.Tasks)
	for i := range restored {
		restored[i].OwnerID = ownerID
	}
	if err := checkRestored(restored); err != nil {
		return 0, fmt.Errorf("restoring backup: %w: %w", storage.ErrInvalidBackup, err)
	}

	err := r.mutate(ctx, storage.OpUpdate, ownerID, func([]models.Task) ([]models.Task, bool, error) {
		return restored, true, nil
	})
	if err != nil {
		return 0, err
	}

	r.logEvent(EventTasksRestored, map[string]any{"owner_id": ownerID, "count": len(restored)})
	return len(restored), nil
}
