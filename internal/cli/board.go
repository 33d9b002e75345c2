package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// Sort fields in the order the s key cycles through them.
var boardSortFields = []models.SortField{
	models.SortByCreatedAt,
	models.SortByDueDate,
	models.SortByPriority,
	models.SortByStatus,
	models.SortByTitle,
}

// Status filters in the order the f key cycles through them; "" shows all.
var boardStatusFilters = []models.TaskStatus{
	"",
	models.StatusPending,
	models.StatusInProgress,
	models.StatusCompleted,
}

type boardModel struct {
	store *core.Store
	ctx   context.Context
	now   func() time.Time

	width  int
	height int

	tasks     []models.Task
	selection map[string]bool
	stats     core.TaskStats
	cursor    int

	searching    bool
	query        string
	statusFilter int

	busy    bool
	message string
	err     error
}

// opDoneMsg reports the end of a store operation started by a key press.
type opDoneMsg struct {
	note string
	err  error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel(ctx context.Context, store *core.Store) boardModel {
	m := boardModel{store: store, ctx: ctx, now: time.Now}
	m.query = store.SearchParams().Query
	m.refresh()
	return m
}

func (m boardModel) Init() tea.Cmd {
	return m.run("", func(ctx context.Context) error {
		return m.store.Reload(ctx)
	})
}

// run executes op off the UI loop and reports the outcome as an opDoneMsg.
func (m boardModel) run(note string, op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := op(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{note: note}
	}
}

// refresh copies the store's derived state into the model.
func (m *boardModel) refresh() {
	m.tasks = m.store.Visible()
	m.stats = m.store.Stats()
	m.selection = make(map[string]bool)
	for _, id := range m.store.Selection() {
		m.selection[id] = true
	}
	if m.cursor >= len(m.tasks) {
		m.cursor = len(m.tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m boardModel) current() (models.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return models.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case opDoneMsg:
		m.busy = false
		m.err = msg.err
		m.message = msg.note
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m boardModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searching = false
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.store.SetQuery(m.query)
	m.cursor = 0
	m.refresh()
	return m, nil
}

func (m boardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
		return m, nil
	case "/":
		m.searching = true
		return m, nil
	case "s":
		sort := m.store.SearchParams().Sort
		sort.By = nextSortField(sort.By)
		m.store.SetSort(sort)
		m.refresh()
		return m, nil
	case "o":
		sort := m.store.SearchParams().Sort
		if sort.Order == models.SortAsc {
			sort.Order = models.SortDesc
		} else {
			sort.Order = models.SortAsc
		}
		m.store.SetSort(sort)
		m.refresh()
		return m, nil
	case "f":
		m.statusFilter = (m.statusFilter + 1) % len(boardStatusFilters)
		filters := m.store.SearchParams().Filters
		filters.Status = nil
		if st := boardStatusFilters[m.statusFilter]; st != "" {
			filters.Status = []models.TaskStatus{st}
		}
		m.store.SetFilters(filters)
		m.refresh()
		return m, nil
	case "F":
		m.store.ClearFilters()
		m.query = ""
		m.statusFilter = 0
		m.refresh()
		return m, nil
	case " ":
		if t, ok := m.current(); ok {
			m.store.Select(t.ID)
			m.refresh()
		}
		return m, nil
	case "a":
		m.store.SelectAll()
		m.refresh()
		return m, nil
	case "A":
		m.store.ClearSelection()
		m.refresh()
		return m, nil
	}

	// The remaining keys write through the repository; one at a time.
	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	switch key {
	case "r":
		cmd = m.run("reloaded", m.store.Reload)
	case "x":
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		cmd = m.run("", func(ctx context.Context) error {
			_, err := m.store.ToggleStatus(ctx, t.ID)
			return err
		})
	case "d":
		if len(m.selection) > 0 {
			cmd = m.run(fmt.Sprintf("deleted %d task(s)", len(m.selection)), func(ctx context.Context) error {
				_, err := m.store.BulkDelete(ctx)
				return err
			})
			break
		}
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		cmd = m.run("deleted "+shortID(t.ID), func(ctx context.Context) error {
			return m.store.DeleteTask(ctx, t.ID)
		})
	case "c":
		if len(m.selection) == 0 {
			return m, nil
		}
		cmd = m.run(fmt.Sprintf("completed %d task(s)", len(m.selection)), func(ctx context.Context) error {
			_, err := m.store.BulkUpdateStatus(ctx, models.StatusCompleted)
			return err
		})
	case "J", "K":
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		target := m.cursor + 1
		if key == "K" {
			target = m.cursor - 1
		}
		if target < 0 || target >= len(m.tasks) {
			return m, nil
		}
		over := m.tasks[target].ID
		m.cursor = target
		cmd = m.run("", func(ctx context.Context) error {
			return m.store.Reorder(ctx, t.ID, over)
		})
	default:
		return m, nil
	}
	m.busy = true
	m.err = nil
	m.message = ""
	return m, cmd
}

func nextSortField(f models.SortField) models.SortField {
	for i, v := range boardSortFields {
		if v == f {
			return boardSortFields[(i+1)%len(boardSortFields)]
		}
	}
	return boardSortFields[0]
}

func (m boardModel) View() string {
	var b strings.Builder
	now := m.now()

	b.WriteString(titleStyle.Render(" taskdeck "))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d total | %d pending | %d in progress | %d completed | %d overdue",
		m.stats.Total,
		m.stats.ByStatus[models.StatusPending],
		m.stats.ByStatus[models.StatusInProgress],
		m.stats.ByStatus[models.StatusCompleted],
		m.stats.Overdue)))
	b.WriteString("\n\n")

	params := m.store.SearchParams()
	search := params.Query
	if m.searching {
		search += "_"
	}
	filter := "all"
	if st := boardStatusFilters[m.statusFilter]; st != "" {
		filter = string(st)
	}
	b.WriteString(fmt.Sprintf("Search: %s  Status: %s  Sort: %s %s  Selected: %d\n\n",
		search, filter, params.Sort.By, params.Sort.Order, len(m.selection)))

	if len(m.tasks) == 0 {
		b.WriteString("  No tasks found.\n")
	}
	for i, t := range m.tasks {
		mark := "[ ]"
		if m.selection[t.ID] {
			mark = selectedStyle.Render("[x]")
		}
		status := statusStyles[t.Status].Width(11).Render(string(t.Status))
		priority := priorityStyles[t.Priority].Width(8).Render(string(t.Priority))
		due := lipgloss.NewStyle().Width(14).Render(formatDue(t.DueDate, now))
		line := fmt.Sprintf("%s %s %s %s %s", mark, status, priority, due, t.Title)
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString(dimStyle.Render("saving..."))
	case m.err != nil:
		b.WriteString(errorStyle.Render(core.Describe(m.err)))
	case m.message != "":
		b.WriteString(m.message)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k: move | space: select | a/A: select all/none | x: toggle | d: delete | c: complete selected\n" +
		"J/K: move task | /: search | f/F: status filter/clear | s/o: sort field/order | r: reload | q: quit"))
	return b.String()
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive task board",
	Long: `Launch an interactive terminal board over the signed-in user's tasks.

Move with j/k, select with space, and act on the selection with d (delete)
or c (complete). Press / to search and q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		p := tea.NewProgram(newBoardModel(cmdContext(cmd), store), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
