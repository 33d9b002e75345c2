package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// ErrCorrupt marks a stored collection that could not be decoded.
var ErrCorrupt = errors.New("corrupt task collection")

// taskRecord is the wire form of a task. Timestamps travel as RFC 3339
// strings so the stored value stays readable and portable.
type taskRecord struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s %q", ErrCorrupt, field, s)
	}
	return t.UTC(), nil
}

func toRecord(t models.Task) taskRecord {
	r := taskRecord{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Tags:        t.Tags,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if t.DueDate != nil {
		r.DueDate = formatTime(*t.DueDate)
	}
	return r
}

func fromRecord(r taskRecord) (models.Task, error) {
	if r.ID == "" {
		return models.Task{}, fmt.Errorf("%w: record without id", ErrCorrupt)
	}
	status := models.TaskStatus(r.Status)
	if !status.Valid() {
		return models.Task{}, fmt.Errorf("%w: task %s has status %q", ErrCorrupt, r.ID, r.Status)
	}
	priority := models.Priority(r.Priority)
	if !priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: task %s has priority %q", ErrCorrupt, r.ID, r.Priority)
	}

	created, err := parseTime("createdAt", r.CreatedAt)
	if err != nil {
		return models.Task{}, err
	}
	updated, err := parseTime("updatedAt", r.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}

	t := models.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		Priority:    priority,
		Tags:        r.Tags,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if r.DueDate != "" {
		due, err := parseTime("dueDate", r.DueDate)
		if err != nil {
			return models.Task{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

// EncodeTasks serializes a collection as a JSON array, preserving order.
func EncodeTasks(tasks []models.Task) ([]byte, error) {
	records := make([]taskRecord, len(tasks))
	for i, t := range tasks {
		records[i] = toRecord(t)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding tasks: %w", err)
	}
	return data, nil
}

// DecodeTasks parses a stored collection. Any malformed record makes the
// whole value corrupt; the error wraps ErrCorrupt.
func DecodeTasks(data []byte) ([]models.Task, error) {
	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		t, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
