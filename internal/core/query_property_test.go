package core

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
	"pgregory.net/rapid"
)

func genWord(t *rapid.T, label string) string {
	return rapid.SampledFrom([]string{"alpha", "beta", "gamma", "delta", "work", "home"}).Draw(t, label)
}

func genTasks(t *rapid.T) []models.Task {
	n := rapid.IntRange(0, 15).Draw(t, "n")
	tasks := make([]models.Task, n)
	for i := range tasks {
		task := mkTask(fmt.Sprintf("t%02d", i), genWord(t, "title"),
			withPriority(rapid.SampledFrom(models.AllPriorities).Draw(t, "priority")),
			withStatus(rapid.SampledFrom(models.AllStatuses).Draw(t, "status")),
			withTags(genWord(t, "tag")),
			withCreated(testNow.Add(-time.Duration(rapid.IntRange(0, 5).Draw(t, "age"))*time.Hour)),
		)
		if rapid.Bool().Draw(t, "hasDue") {
			task.DueDate = at(rapid.IntRange(-5, 5).Draw(t, "due"))
		}
		tasks[i] = task
	}
	return tasks
}

func genParams(t *rapid.T) models.SearchParams {
	p := models.SearchParams{Sort: models.TaskSort{
		By:    rapid.SampledFrom([]models.SortField{models.SortByTitle, models.SortByDueDate, models.SortByPriority, models.SortByStatus, models.SortByCreatedAt}).Draw(t, "sortBy"),
		Order: rapid.SampledFrom([]models.SortOrder{models.SortAsc, models.SortDesc}).Draw(t, "order"),
	}}
	if rapid.Bool().Draw(t, "hasQuery") {
		p.Query = genWord(t, "query")
	}
	if rapid.Bool().Draw(t, "hasPriority") {
		p.Filters.Priority = []models.Priority{rapid.SampledFrom(models.AllPriorities).Draw(t, "fPriority")}
	}
	if rapid.Bool().Draw(t, "hasStatus") {
		p.Filters.Status = []models.TaskStatus{rapid.SampledFrom(models.AllStatuses).Draw(t, "fStatus")}
	}
	if rapid.Bool().Draw(t, "hasOverdue") {
		p.Filters.IsOverdue = ptr(rapid.Bool().Draw(t, "overdue"))
	}
	return p
}

// The visible list is a permutation of a subset of the input and never
// contains a task the filters reject.
func TestProperty_ApplyReturnsMatchingSubset(t *testing.T) {
	q := newTestPipeline()
	rapid.Check(t, func(t *rapid.T) {
		tasks := genTasks(t)
		params := genParams(t)
		before := ids(tasks)

		out := q.Apply(tasks, params)

		if !slices.Equal(ids(tasks), before) {
			t.Fatalf("input mutated")
		}
		for _, task := range out {
			if !slices.Contains(before, task.ID) {
				t.Fatalf("unknown task %s in output", task.ID)
			}
			if !matchesFilters(task, params.Filters, testNow) {
				t.Fatalf("task %s violates filters %+v", task.ID, params.Filters)
			}
		}
		want := q.Sort(q.Filter(q.Search(tasks, params.Query), params.Filters), params.Sort)
		if !slices.Equal(ids(out), ids(want)) {
			t.Fatalf("Apply = %v, sort(filter(search)) = %v", ids(out), ids(want))
		}
	})
}

// Sorting ascending and then descending yields reversed key order, and
// equal keys keep their input order in both directions.
func TestProperty_SortIsStable(t *testing.T) {
	q := newTestPipeline()
	rapid.Check(t, func(t *rapid.T) {
		tasks := genTasks(t)
		sortBy := models.SortByPriority
		asc := q.Sort(tasks, models.TaskSort{By: sortBy, Order: models.SortAsc})
		desc := q.Sort(tasks, models.TaskSort{By: sortBy, Order: models.SortDesc})

		for _, out := range [][]models.Task{asc, desc} {
			for i := 1; i < len(out); i++ {
				a, b := out[i-1], out[i]
				if a.Priority == b.Priority && a.ID > b.ID {
					t.Fatalf("ties out of input order: %s before %s", a.ID, b.ID)
				}
			}
		}
		for i := 1; i < len(asc); i++ {
			if priorityRank[asc[i-1].Priority] < priorityRank[asc[i].Priority] {
				t.Fatalf("ascending priority not highest-first at %d", i)
			}
		}
	})
}

// A search result always contains the needle in some searchable field.
func TestProperty_SearchMatchesSomeField(t *testing.T) {
	q := newTestPipeline()
	rapid.Check(t, func(t *rapid.T) {
		tasks := genTasks(t)
		needle := genWord(t, "needle")
		for _, task := range q.Search(tasks, needle) {
			if !matchesQuery(task, needle) {
				t.Fatalf("task %s does not contain %q", task.ID, needle)
			}
		}
	})
}
