package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

const day = 24 * time.Hour

// seedTask describes a sample task with timestamps relative to now.
type seedTask struct {
	title       string
	description string
	status      models.TaskStatus
	priority    models.Priority
	due         time.Duration
	created     time.Duration
	updated     time.Duration
	tags        []string
}

var seedTasks = []seedTask{
	{"Welcome to your task list!", "A sample task to get you started. Edit it, delete it or mark it complete.",
		models.StatusPending, models.PriorityMedium, day, 0, 0, []string{"welcome", "sample"}},
	{"Complete project documentation", "Write documentation for the new feature implementation.",
		models.StatusInProgress, models.PriorityHigh, 7 * day, -day, 0, []string{"work", "documentation", "project"}},
	{"Buy groceries", "Milk, bread, eggs and vegetables for the week.",
		models.StatusPending, models.PriorityLow, day, -2 * day, -2 * day, []string{"personal", "shopping"}},
	{"Team meeting preparation", "Prepare slides and agenda for the weekly team meeting.",
		models.StatusCompleted, models.PriorityMedium, -day, -3 * day, -day, []string{"work", "meeting"}},
	{"Fix critical bug in authentication", "Users are unable to log in. Priority fix needed.",
		models.StatusPending, models.PriorityUrgent, 0, -time.Hour, -time.Hour, []string{"work", "bug", "urgent"}},
	{"Review code for new feature", "Review the user dashboard feature before deployment.",
		models.StatusPending, models.PriorityHigh, 2 * day, -2 * time.Hour, -2 * time.Hour, []string{"work", "review", "feature"}},
	{"Book dentist appointment", "Schedule the annual checkup and cleaning.",
		models.StatusPending, models.PriorityMedium, 7 * day, -4 * day, -4 * day, []string{"personal", "health"}},
	{"Plan weekend trip", "Research and book a hotel in the mountains.",
		models.StatusCompleted, models.PriorityLow, -3 * day, -7 * day, -3 * day, []string{"personal", "travel"}},
	{"Database optimization", "Optimize queries behind the analytics dashboard.",
		models.StatusInProgress, models.PriorityMedium, 5 * day, -5 * day, -12 * time.Hour, []string{"work", "database", "performance"}},
	{"Setup CI/CD pipeline", "Configure automated testing and deployment for the new service.",
		models.StatusPending, models.PriorityHigh, 4 * day, -3 * day, -3 * day, []string{"work", "devops", "automation"}},
}

// DefaultCollection returns the sample collection shown to an owner with no
// stored tasks. Every call yields fresh ids.
func DefaultCollection(ownerID string, now time.Time) []models.Task {
	now = now.UTC()
	tasks := make([]models.Task, 0, len(seedTasks))
	for _, s := range seedTasks {
		due := now.Add(s.due)
		tasks = append(tasks, models.Task{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Title:       s.title,
			Description: s.description,
			Status:      s.status,
			Priority:    s.priority,
			DueDate:     &due,
			Tags:        append([]string(nil), s.tags...),
			CreatedAt:   now.Add(s.created),
			UpdatedAt:   now.Add(s.updated),
		})
	}
	return tasks
}
