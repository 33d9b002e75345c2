package models

import "time"

// SortField names a task attribute the list can be ordered by.
type SortField string

const (
	SortByTitle     SortField = "title"
	SortByDueDate   SortField = "dueDate"
	SortByPriority  SortField = "priority"
	SortByStatus    SortField = "status"
	SortByCreatedAt SortField = "createdAt"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByTitle, SortByDueDate, SortByPriority, SortByStatus, SortByCreatedAt:
		return true
	}
	return false
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TaskSort selects the ordering of the visible list.
type TaskSort struct {
	By    SortField `json:"by" yaml:"by"`
	Order SortOrder `json:"order" yaml:"order"`
}

// DefaultSort is newest first.
func DefaultSort() TaskSort {
	return TaskSort{By: SortByCreatedAt, Order: SortDesc}
}

// DateRange is an inclusive window on the due date.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// TaskFilters holds the optional filter categories. Categories combine with
// AND; values inside one category combine with OR. An empty category does
// not constrain.
type TaskFilters struct {
	Status       []TaskStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Priority     []Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	DueDateRange *DateRange   `json:"dueDateRange,omitempty" yaml:"due_date_range,omitempty"`
	IsOverdue    *bool        `json:"isOverdue,omitempty" yaml:"is_overdue,omitempty"`
}

// IsZero reports whether no filter category is active.
func (f TaskFilters) IsZero() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 && len(f.Tags) == 0 &&
		f.DueDateRange == nil && f.IsOverdue == nil
}

// SearchParams combines the free-text query, filters and sort that derive
// the visible list from the raw collection.
type SearchParams struct {
	Query   string      `json:"query" yaml:"query"`
	Filters TaskFilters `json:"filters" yaml:"filters"`
	Sort    TaskSort    `json:"sort" yaml:"sort"`
}

// DefaultSearchParams returns an empty query, no filters and the default sort.
func DefaultSearchParams() SearchParams {
	return SearchParams{Sort: DefaultSort()}
}
