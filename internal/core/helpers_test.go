package core

import (
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// testNow is a Tuesday.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ptr[T any](v T) *T { return &v }

func at(days int) *time.Time {
	t := testNow.AddDate(0, 0, days)
	return &t
}

func mkTask(id, title string, opts ...func(*models.Task)) models.Task {
	t := models.Task{
		ID:        id,
		OwnerID:   "alice",
		Title:     title,
		Status:    models.StatusPending,
		Priority:  models.PriorityMedium,
		Tags:      []string{},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func withPriority(p models.Priority) func(*models.Task) {
	return func(t *models.Task) { t.Priority = p }
}

func withStatus(s models.TaskStatus) func(*models.Task) {
	return func(t *models.Task) { t.Status = s }
}

func withTags(tags ...string) func(*models.Task) {
	return func(t *models.Task) { t.Tags = tags }
}

func withDue(d *time.Time) func(*models.Task) {
	return func(t *models.Task) { t.DueDate = d }
}

func withCreated(c time.Time) func(*models.Task) {
	return func(t *models.Task) { t.CreatedAt = c; t.UpdatedAt = c }
}

func withDescription(d string) func(*models.Task) {
	return func(t *models.Task) { t.Description = d }
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// recordingLogger captures events for assertions.
type recordingLogger struct {
	events []recordedEvent
}

type recordedEvent struct {
	Type string
	Data map[string]any
}

func (l *recordingLogger) LogEvent(eventType string, data map[string]any) error {
	l.events = append(l.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (l *recordingLogger) types() []string {
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}
