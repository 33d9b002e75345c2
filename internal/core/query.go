package core

import (
	"slices"
	"strings"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Ordinal ranks used by the priority and status sorts.
var (
	priorityRank = map[models.Priority]int{
		models.PriorityUrgent: 4,
		models.PriorityHigh:   3,
		models.PriorityMedium: 2,
		models.PriorityLow:    1,
	}
	statusRank = map[models.TaskStatus]int{
		models.StatusInProgress: 3,
		models.StatusPending:    2,
		models.StatusCompleted:  1,
	}
)

var epoch = time.Unix(0, 0)

// QueryPipeline derives the visible list from a raw collection. Every stage
// returns a new slice and leaves its input untouched.
type QueryPipeline struct {
	locale language.Tag
	now    func() time.Time
}

// NewQueryPipeline creates a pipeline collating titles for locale (a BCP 47
// tag; unparsable tags fall back to English) and evaluating overdue filters
// against now.
func NewQueryPipeline(locale string, now func() time.Time) *QueryPipeline {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if now == nil {
		now = time.Now
	}
	return &QueryPipeline{locale: tag, now: now}
}

// Apply runs search, then filter, then sort.
func (q *QueryPipeline) Apply(tasks []models.Task, params models.SearchParams) []models.Task {
	return q.Sort(q.Filter(q.Search(tasks, params.Query), params.Filters), params.Sort)
}

// Search keeps tasks whose title, description or any tag contains query,
// ignoring case. A blank query keeps everything.
func (q *QueryPipeline) Search(tasks []models.Task, query string) []models.Task {
	if strings.TrimSpace(query) == "" {
		return slices.Clone(tasks)
	}
	needle := strings.ToLower(query)

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if matchesQuery(t, needle) {
			out = append(out, t)
		}
	}
	return out
}

func matchesQuery(t models.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Filter keeps tasks satisfying every active category of f.
func (q *QueryPipeline) Filter(tasks []models.Task, f models.TaskFilters) []models.Task {
	if f.IsZero() {
		return slices.Clone(tasks)
	}
	now := q.now()

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if matchesFilters(t, f, now) {
			out = append(out, t)
		}
	}
	return out
}

func matchesFilters(t models.Task, f models.TaskFilters, now time.Time) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 && !slices.Contains(f.Priority, t.Priority) {
		return false
	}
	if len(f.Tags) > 0 && !sharesTag(t.Tags, f.Tags) {
		return false
	}
	if r := f.DueDateRange; r != nil {
		if t.DueDate == nil || t.DueDate.Before(r.Start) || t.DueDate.After(r.End) {
			return false
		}
	}
	if f.IsOverdue != nil && IsOverdue(t.DueDate, now) != *f.IsOverdue {
		return false
	}
	return true
}

func sharesTag(taskTags, wanted []string) bool {
	for _, w := range wanted {
		for _, tag := range taskTags {
			if strings.EqualFold(tag, w) {
				return true
			}
		}
	}
	return false
}

// Sort orders tasks stably by s. Priority and status compare rank(b) against
// rank(a), so ascending puts urgent and in-progress work first. Tasks with no
// due date sort as if due at the Unix epoch.
func (q *QueryPipeline) Sort(tasks []models.Task, s models.TaskSort) []models.Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []models.Task{}
	}

	var cmp func(a, b models.Task) int
	switch s.By {
	case models.SortByTitle:
		col := collate.New(q.locale)
		cmp = func(a, b models.Task) int { return col.CompareString(a.Title, b.Title) }
	case models.SortByDueDate:
		cmp = func(a, b models.Task) int { return dueOrEpoch(a).Compare(dueOrEpoch(b)) }
	case models.SortByPriority:
		cmp = func(a, b models.Task) int { return priorityRank[b.Priority] - priorityRank[a.Priority] }
	case models.SortByStatus:
		cmp = func(a, b models.Task) int { return statusRank[b.Status] - statusRank[a.Status] }
	case models.SortByCreatedAt:
		cmp = func(a, b models.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return out
	}

	if s.Order == models.SortDesc {
		asc := cmp
		cmp = func(a, b models.Task) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func dueOrEpoch(t models.Task) time.Time {
	if t.DueDate == nil {
		return epoch
	}
	return *t.DueDate
}
