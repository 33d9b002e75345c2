package observability

import (
	"fmt"
	"time"
)

// Metrics summarizes task activity recorded in the event log.
type Metrics struct {
	TasksCreated      int            `json:"tasks_created"`
	TasksCompleted    int            `json:"tasks_completed"`
	TasksUpdated      int            `json:"tasks_updated"`
	TasksDeleted      int            `json:"tasks_deleted"`
	StatusTransitions map[string]int `json:"status_transitions"`
	CreatedByPriority map[string]int `json:"created_by_priority"`
	Reorders          int            `json:"reorders"`
	Restores          int            `json:"restores"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	// Calculate aggregates events since the given time. An empty ownerID
	// covers every owner.
	Calculate(ownerID string, since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

func (mc *metricsCalculator) Calculate(ownerID string, since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since, OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		StatusTransitions: make(map[string]int),
		CreatedByPriority: make(map[string]int),
		EventCount:        len(events),
	}

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		newStatus, _ := event.Data["new_status"].(string)
		switch event.Type {
		case "task.created":
			m.TasksCreated++
			if p, ok := event.Data["priority"].(string); ok {
				m.CreatedByPriority[p]++
			}
		case "task.updated":
			m.TasksUpdated++
		case "task.status_changed":
			m.TasksUpdated++
			if old, ok := event.Data["old_status"].(string); ok && newStatus != "" {
				m.StatusTransitions[old+"->"+newStatus]++
			}
			if newStatus == "completed" {
				m.TasksCompleted++
			}
		case "task.bulk_updated":
			n := count(event.Data)
			m.TasksUpdated += n
			if newStatus == "completed" {
				m.TasksCompleted += n
			}
		case "task.deleted":
			m.TasksDeleted++
		case "task.bulk_deleted":
			m.TasksDeleted += count(event.Data)
		case "task.reordered":
			m.Reorders++
		case "tasks.restored":
			m.Restores++
		}
	}

	return m, nil
}

// count reads data["count"], which decodes from JSON as float64.
func count(data map[string]any) int {
	switch v := data["count"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
