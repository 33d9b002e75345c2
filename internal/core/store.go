package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// Identity is the slice of the signed-in user the store needs.
type Identity struct {
	OwnerID string
	Active  bool
}

// StoreState is a copy of the store's fields at one instant.
type StoreState struct {
	Identity         Identity
	Tasks            []models.Task
	PendingOperation bool
	LastError        string
	SearchParams     models.SearchParams
	Selection        []string
}

// TaskStats summarizes a collection for list headers and dashboards.
type TaskStats struct {
	Total       int                       `json:"total"`
	ByStatus    map[models.TaskStatus]int `json:"by_status"`
	ByPriority  map[models.Priority]int   `json:"by_priority"`
	Overdue     int                       `json:"overdue"`
	DueToday    int                       `json:"due_today"`
	DueThisWeek int                       `json:"due_this_week"`
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// SelectAllScope is models.SelectScopeVisible (default) or
	// models.SelectScopeAll.
	SelectAllScope string
	DefaultSort    models.TaskSort
	Now            func() time.Time
}

// Store is the in-memory state manager for one session. It holds the raw
// collection and applies changes only after the repository confirms them.
// All methods are safe for concurrent use; repository calls run without the
// lock held.
type Store struct {
	repo        TaskRepository
	pipeline    *QueryPipeline
	now         func() time.Time
	selectScope string
	defaultSort models.TaskSort

	mu        sync.RWMutex
	identity  Identity
	tasks     []models.Task
	pending   int
	lastError error
	params    models.SearchParams
	selection []string
	listeners map[int]func(StoreState)
	nextID    int
}

// NewStore creates an empty, signed-out store.
func NewStore(repo TaskRepository, pipeline *QueryPipeline, opts StoreOptions) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SelectAllScope == "" {
		opts.SelectAllScope = models.SelectScopeVisible
	}
	if !opts.DefaultSort.By.Valid() {
		opts.DefaultSort = models.DefaultSort()
	}
	if pipeline == nil {
		pipeline = NewQueryPipeline("en", opts.Now)
	}
	return &Store{
		repo:        repo,
		pipeline:    pipeline,
		now:         opts.Now,
		selectScope: opts.SelectAllScope,
		defaultSort: opts.DefaultSort,
		params:      models.SearchParams{Sort: opts.DefaultSort},
		tasks:       []models.Task{},
		listeners:   make(map[int]func(StoreState)),
	}
}

// Subscribe registers fn to run after every state change and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(StoreState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	state := s.snapshotLocked()
	fns := make([]func(StoreState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *Store) snapshotLocked() StoreState {
	return StoreState{
		Identity:         s.identity,
		Tasks:            models.CloneTasks(s.tasks),
		PendingOperation: s.pending > 0,
		LastError:        errString(s.lastError),
		SearchParams:     s.params,
		Selection:        slices.Clone(s.selection),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() StoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Tasks returns a copy of the raw collection in stored order.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneTasks(s.tasks)
}

// Pending reports whether a mutating operation is in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// LastError returns the error recorded by the most recent failed operation.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Selection returns the selected ids in selection order.
func (s *Store) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selection)
}

// SearchParams returns the current query, filters and sort.
func (s *Store) SearchParams() models.SearchParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Identity returns the identity the store is scoped to.
func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Visible derives the list a caller should render.
func (s *Store) Visible() []models.Task {
	s.mu.RLock()
	tasks, params := models.CloneTasks(s.tasks), s.params
	s.mu.RUnlock()
	return s.pipeline.Apply(tasks, params)
}

// Query runs params over the collection without changing the store's own
// search parameters.
func (s *Store) Query(params models.SearchParams) []models.Task {
	return s.pipeline.Apply(s.Tasks(), params)
}

// Find returns the task with id from the in-memory collection.
func (s *Store) Find(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.tasks, id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// begin marks an operation pending and returns the owner it runs for.
func (s *Store) begin() (string, error) {
	s.mu.Lock()
	if !s.identity.Active {
		s.lastError = ErrNoIdentity
		s.mu.Unlock()
		s.notify()
		return "", ErrNoIdentity
	}
	s.pending++
	s.lastError = nil
	owner := s.identity.OwnerID
	s.mu.Unlock()
	s.notify()
	return owner, nil
}

// finish clears the pending mark and either records err or applies the
// delta. A delta computed for an owner that is no longer current is dropped.
func (s *Store) finish(owner string, err error, apply func()) error {
	s.mu.Lock()
	s.pending--
	switch {
	case err != nil:
		s.lastError = err
	case s.identity.Active && s.identity.OwnerID == owner && apply != nil:
		apply()
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// reject records a validation failure without touching the pending flag.
func (s *Store) reject(err error) error {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	s.notify()
	return err
}

// SetIdentity switches the store to id. An active identity reloads its
// collection; an inactive one clears all task state.
func (s *Store) SetIdentity(ctx context.Context, id Identity) error {
	s.mu.Lock()
	s.identity = id
	s.tasks = []models.Task{}
	s.selection = nil
	s.lastError = nil
	s.mu.Unlock()

	if !id.Active {
		s.notify()
		return nil
	}
	return s.Reload(ctx)
}

// Reload replaces the in-memory collection with the persisted one.
func (s *Store) Reload(ctx context.Context) error {
	owner, err := s.begin()
	if err != nil {
		return err
	}
	tasks, err := s.repo.List(ctx, owner)
	return s.finish(owner, err, func() {
		s.tasks = tasks
		s.pruneSelectionLocked()
	})
}

func (s *Store) pruneSelectionLocked() {
	s.selection = slices.DeleteFunc(s.selection, func(id string) bool {
		return indexOf(s.tasks, id) < 0
	})
}

// AddTask validates d, creates it and appends the created task.
func (s *Store) AddTask(ctx context.Context, d models.TaskDraft) (models.Task, error) {
	if err := ValidateDraft(d, s.now()); err != nil {
		return models.Task{}, s.reject(err)
	}
	owner, err := s.begin()
	if err != nil {
		return models.Task{}, err
	}
	task, err := s.repo.Create(ctx, owner, d)
	err = s.finish(owner, err, func() {
		s.tasks = append(s.tasks, task.Clone())
	})
	return task, err
}

// UpdateTask validates p, applies it through the repository and replaces the
// local copy with the task the repository returned.
func (s *Store) UpdateTask(ctx context.Context, id string, p models.TaskPatch) (models.Task, error) {
	if err := ValidatePatch(p, s.now()); err != nil {
		return models.Task{}, s.reject(err)
	}
	owner, err := s.begin()
	if err != nil {
		return models.Task{}, err
	}
	task, err := s.repo.Update(ctx, owner, id, p)
	err = s.finish(owner, err, func() {
		s.replaceLocked(task)
	})
	return task, err
}

func (s *Store) replaceLocked(t models.Task) {
	if i := indexOf(s.tasks, t.ID); i >= 0 {
		s.tasks[i] = t.Clone()
	}
}

// ToggleStatus advances the task along pending, in_progress, completed and
// back to pending.
func (s *Store) ToggleStatus(ctx context.Context, id string) (models.Task, error) {
	current, ok := s.Find(id)
	if !ok {
		return models.Task{}, s.reject(notFound(id))
	}
	next := current.Status.Next()
	return s.UpdateTask(ctx, id, models.TaskPatch{Status: &next})
}

// DeleteTask removes the task and drops it from the selection.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	owner, err := s.begin()
	if err != nil {
		return err
	}
	err = s.repo.Delete(ctx, owner, id)
	return s.finish(owner, err, func() {
		s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
		s.selection = slices.DeleteFunc(s.selection, func(sel string) bool { return sel == id })
	})
}

// BulkDelete deletes every selected task and clears the selection. It
// returns the number of tasks removed; an empty selection is a no-op.
func (s *Store) BulkDelete(ctx context.Context) (int, error) {
	ids := s.Selection()
	if len(ids) == 0 {
		return 0, nil
	}
	owner, err := s.begin()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.BulkDelete(ctx, owner, ids)
	err = s.finish(owner, err, func() {
		s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return slices.Contains(ids, t.ID) })
		s.selection = nil
	})
	return n, err
}

// BulkUpdateStatus sets status on every selected task and clears the
// selection. An empty selection is a no-op.
func (s *Store) BulkUpdateStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	if !status.Valid() {
		return 0, s.reject(&ValidationError{Fields: map[string]string{"status": "unknown status " + string(status)}})
	}
	ids := s.Selection()
	if len(ids) == 0 {
		return 0, nil
	}
	owner, err := s.begin()
	if err != nil {
		return 0, err
	}
	res, err := s.repo.BulkUpdate(ctx, owner, ids, models.TaskPatch{Status: &status})
	err = s.finish(owner, err, func() {
		for _, t := range res.Tasks {
			s.replaceLocked(t)
		}
		s.selection = nil
	})
	return res.Count, err
}

// Reorder moves activeID to overID's position and persists the order.
func (s *Store) Reorder(ctx context.Context, activeID, overID string) error {
	if activeID == overID {
		if _, ok := s.Find(activeID); ok {
			return nil
		}
	}
	owner, err := s.begin()
	if err != nil {
		return err
	}
	tasks, err := s.repo.Reorder(ctx, owner, activeID, overID)
	return s.finish(owner, err, func() {
		s.tasks = tasks
		s.pruneSelectionLocked()
	})
}

// Select toggles id in the selection. Ids not in the collection are ignored.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if indexOf(s.tasks, id) >= 0 {
		if i := slices.Index(s.selection, id); i >= 0 {
			s.selection = slices.Delete(s.selection, i, i+1)
		} else {
			s.selection = append(s.selection, id)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SetSelection replaces the selection with the ids that are in the
// collection, keeping their order and dropping repeats.
func (s *Store) SetSelection(ids []string) {
	s.mu.Lock()
	sel := make([]string, 0, len(ids))
	for _, id := range ids {
		if indexOf(s.tasks, id) >= 0 && !slices.Contains(sel, id) {
			sel = append(sel, id)
		}
	}
	s.selection = sel
	s.mu.Unlock()
	s.notify()
}

// SelectAll toggles between selecting every task in scope and selecting
// nothing. With the visible scope only tasks passing the current search and
// filters are selected.
func (s *Store) SelectAll() {
	var scope []string
	if s.selectScope == models.SelectScopeAll {
		for _, t := range s.Tasks() {
			scope = append(scope, t.ID)
		}
	} else {
		for _, t := range s.Visible() {
			scope = append(scope, t.ID)
		}
	}

	s.mu.Lock()
	allSelected := len(s.selection) == len(scope)
	for _, id := range scope {
		if !slices.Contains(s.selection, id) {
			allSelected = false
			break
		}
	}
	if allSelected {
		s.selection = nil
	} else {
		s.selection = scope
	}
	s.mu.Unlock()
	s.notify()
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
	s.notify()
}

// SetQuery replaces the free-text query.
func (s *Store) SetQuery(q string) {
	s.mu.Lock()
	s.params.Query = q
	s.mu.Unlock()
	s.notify()
}

// SetFilters replaces the filters.
func (s *Store) SetFilters(f models.TaskFilters) {
	s.mu.Lock()
	s.params.Filters = f
	s.mu.Unlock()
	s.notify()
}

// SetSort replaces the sort.
func (s *Store) SetSort(sort models.TaskSort) {
	s.mu.Lock()
	s.params.Sort = sort
	s.mu.Unlock()
	s.notify()
}

// ClearFilters resets the query, filters and sort to their defaults.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	s.params = models.SearchParams{Sort: s.defaultSort}
	s.mu.Unlock()
	s.notify()
}

// Stats counts the raw collection by status and priority and classifies
// due dates.
func (s *Store) Stats() TaskStats {
	now := s.now()
	tasks := s.Tasks()

	st := TaskStats{
		Total:      len(tasks),
		ByStatus:   make(map[models.TaskStatus]int),
		ByPriority: make(map[models.Priority]int),
	}
	for _, t := range tasks {
		st.ByStatus[t.Status]++
		st.ByPriority[t.Priority]++
		if t.Status == models.StatusCompleted {
			continue
		}
		switch {
		case IsOverdue(t.DueDate, now):
			st.Overdue++
		case IsDueToday(t.DueDate, now):
			st.DueToday++
		}
		if IsDueThisWeek(t.DueDate, now) {
			st.DueThisWeek++
		}
	}
	return st
}

// Describe renders err for display, naming its category.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return fmt.Sprintf("invalid input: %s", err)
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("not found: %s", err)
	case errors.Is(err, ErrNoIdentity):
		return "not signed in"
	case errors.Is(err, ErrPersistence):
		return fmt.Sprintf("storage error: %s", err)
	default:
		return err.Error()
	}
}
