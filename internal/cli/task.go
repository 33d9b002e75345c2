package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (add, list, show, edit, delete, toggle, reorder, bulk changes)",
	Long: `Task management commands for the signed-in user.

Commands accept a full task id or any unique prefix of one, such as the
eight characters shown by 'task list'.`,
}

// --- task add ---

var (
	addDescription string
	addPriority    string
	addDue         string
	addTags        []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}

		draft := models.TaskDraft{
			Title:       args[0],
			Description: addDescription,
			Priority:    models.Priority(addPriority),
			Tags:        addTags,
		}
		if addDue != "" {
			due, err := core.ParseDate(addDue, nil)
			if err != nil {
				return err
			}
			draft.DueDate = &due
		}

		task, err := store.AddTask(cmdContext(cmd), draft)
		if err != nil {
			return fmt.Errorf("adding task: %w", err)
		}
		fmt.Printf("Created task %s\n", shortID(task.ID))
		fmt.Printf("  Title:    %s\n", task.Title)
		fmt.Printf("  Priority: %s\n", task.Priority)
		if task.DueDate != nil {
			fmt.Printf("  Due:      %s\n", task.DueDate.Format(time.DateOnly))
		}
		return nil
	},
}

// --- task list ---

var (
	listQuery    string
	listStatus   []string
	listPriority []string
	listTags     []string
	listDueFrom  string
	listDueTo    string
	listOverdue  string
	listSort     string
	listOrder    string
	listFormat   string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks with search, filters and sorting",
	Long: `List tasks. Filters combine with AND; repeated values of one filter
combine with OR. For example:

  taskdeck task list --priority high --priority urgent --status pending
  taskdeck task list --query report --sort dueDate --order asc
  taskdeck task list --due-from 2026-03-01 --due-to 2026-03-31 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		params, err := listParams()
		if err != nil {
			return err
		}

		tasks := store.Query(params)
		if listFormat == "" || listFormat == "table" {
			printTaskTable(tasks, time.Now())
			return nil
		}
		return printFormatted(listFormat, tasks)
	},
}

// listParams turns the list flags into search parameters.
func listParams() (models.SearchParams, error) {
	p := models.SearchParams{Query: listQuery, Sort: models.DefaultSort()}
	if Store != nil {
		p.Sort = Store.SearchParams().Sort
	}

	for _, v := range listStatus {
		st := models.TaskStatus(v)
		if !st.Valid() {
			return p, fmt.Errorf("invalid --status %q (use pending, in_progress or completed)", v)
		}
		p.Filters.Status = append(p.Filters.Status, st)
	}
	for _, v := range listPriority {
		pr := models.Priority(v)
		if !pr.Valid() {
			return p, fmt.Errorf("invalid --priority %q (use low, medium, high or urgent)", v)
		}
		p.Filters.Priority = append(p.Filters.Priority, pr)
	}
	p.Filters.Tags = listTags

	if listDueFrom != "" || listDueTo != "" {
		if listDueFrom == "" || listDueTo == "" {
			return p, fmt.Errorf("--due-from and --due-to must be given together")
		}
		from, err := core.ParseDate(listDueFrom, nil)
		if err != nil {
			return p, err
		}
		to, err := core.ParseDate(listDueTo, nil)
		if err != nil {
			return p, err
		}
		// A calendar end date covers the whole day.
		if len(listDueTo) == len(time.DateOnly) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		p.Filters.DueDateRange = &models.DateRange{Start: from, End: to}
	}

	switch listOverdue {
	case "":
	case "true":
		v := true
		p.Filters.IsOverdue = &v
	case "false":
		v := false
		p.Filters.IsOverdue = &v
	default:
		return p, fmt.Errorf("invalid --overdue %q (use true or false)", listOverdue)
	}

	if listSort != "" {
		p.Sort.By = models.SortField(listSort)
		if !p.Sort.By.Valid() {
			return p, fmt.Errorf("invalid --sort %q (use title, dueDate, priority, status or createdAt)", listSort)
		}
	}
	switch models.SortOrder(listOrder) {
	case "":
	case models.SortAsc, models.SortDesc:
		p.Sort.Order = models.SortOrder(listOrder)
	default:
		return p, fmt.Errorf("invalid --order %q (use asc or desc)", listOrder)
	}
	return p, nil
}

// --- task show ---

var showFormat string

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		id, err := resolveTaskID(store, args[0])
		if err != nil {
			return err
		}
		task, _ := store.Find(id)
		if showFormat == "" || showFormat == "table" {
			printTask(task, time.Now())
			return nil
		}
		return printFormatted(showFormat, task)
	},
}

// --- task edit ---

var (
	editTitle       string
	editDescription string
	editStatus      string
	editPriority    string
	editDue         string
	editClearDue    bool
	editTags        []string
)

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task's fields",
	Long: `Change any subset of a task's fields. Only the flags given are applied.
--tag replaces the whole tag list; --clear-due removes the due date.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		id, err := resolveTaskID(store, args[0])
		if err != nil {
			return err
		}

		var patch models.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &editTitle
		}
		if flags.Changed("description") {
			patch.Description = &editDescription
		}
		if flags.Changed("status") {
			st := models.TaskStatus(editStatus)
			patch.Status = &st
		}
		if flags.Changed("priority") {
			pr := models.Priority(editPriority)
			patch.Priority = &pr
		}
		if flags.Changed("due") {
			due, err := core.ParseDate(editDue, nil)
			if err != nil {
				return err
			}
			patch.DueDate = &due
		}
		patch.ClearDueDate = editClearDue
		if flags.Changed("tag") {
			patch.Tags = append([]string{}, editTags...)
		}
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to change: pass at least one field flag")
		}

		task, err := store.UpdateTask(cmdContext(cmd), id, patch)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		fmt.Printf("Updated task %s\n", shortID(task.ID))
		return nil
	},
}

// --- task delete ---

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		id, err := resolveTaskID(store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteTask(cmdContext(cmd), id); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		fmt.Printf("Deleted task %s\n", shortID(id))
		return nil
	},
}

// --- task toggle ---

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Advance a task's status (pending, in_progress, completed, pending)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		id, err := resolveTaskID(store, args[0])
		if err != nil {
			return err
		}
		task, err := store.ToggleStatus(cmdContext(cmd), id)
		if err != nil {
			return fmt.Errorf("toggling task: %w", err)
		}
		fmt.Printf("Task %s is now %s\n", shortID(task.ID), task.Status)
		return nil
	},
}

// --- task reorder ---

var taskReorderCmd = &cobra.Command{
	Use:   "reorder <id> <over-id>",
	Short: "Move a task to another task's position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		active, err := resolveTaskID(store, args[0])
		if err != nil {
			return err
		}
		over, err := resolveTaskID(store, args[1])
		if err != nil {
			return err
		}
		if err := store.Reorder(cmdContext(cmd), active, over); err != nil {
			return fmt.Errorf("reordering tasks: %w", err)
		}
		fmt.Printf("Moved task %s to the position of %s\n", shortID(active), shortID(over))
		return nil
	},
}

// --- task bulk-delete / bulk-status ---

var taskBulkDeleteCmd = &cobra.Command{
	Use:   "bulk-delete <id>...",
	Short: "Delete several tasks in one write",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := selectArgs(args)
		if err != nil {
			return err
		}
		n, err := store.BulkDelete(cmdContext(cmd))
		if err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		fmt.Printf("Deleted %d task(s)\n", n)
		return nil
	},
}

var taskBulkStatusCmd = &cobra.Command{
	Use:   "bulk-status <status> <id>...",
	Short: "Set the status of several tasks in one write",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.TaskStatus(args[0])
		if !status.Valid() {
			return fmt.Errorf("invalid status %q (use pending, in_progress or completed)", args[0])
		}
		store, err := selectArgs(args[1:])
		if err != nil {
			return err
		}
		n, err := store.BulkUpdateStatus(cmdContext(cmd), status)
		if err != nil {
			return fmt.Errorf("updating tasks: %w", err)
		}
		fmt.Printf("Updated %d task(s) to %s\n", n, status)
		return nil
	},
}

// selectArgs replaces the store's selection with the tasks named by args.
func selectArgs(args []string) (*core.Store, error) {
	store, err := requireSession()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := resolveTaskID(store, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	store.SetSelection(ids)
	return store, nil
}

func init() {
	taskAddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Task description")
	taskAddCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "Priority: low, medium, high or urgent (default medium)")
	taskAddCmd.Flags().StringVar(&addDue, "due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	taskAddCmd.Flags().StringSliceVarP(&addTags, "tag", "t", nil, "Tag (repeatable)")

	taskListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Text to find in title, description or tags")
	taskListCmd.Flags().StringSliceVar(&listStatus, "status", nil, "Status filter (repeatable)")
	taskListCmd.Flags().StringSliceVar(&listPriority, "priority", nil, "Priority filter (repeatable)")
	taskListCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Tag filter (repeatable)")
	taskListCmd.Flags().StringVar(&listDueFrom, "due-from", "", "Earliest due date")
	taskListCmd.Flags().StringVar(&listDueTo, "due-to", "", "Latest due date")
	taskListCmd.Flags().StringVar(&listOverdue, "overdue", "", "true for overdue tasks only, false to hide them")
	taskListCmd.Flags().StringVar(&listSort, "sort", "", "Sort by title, dueDate, priority, status or createdAt")
	taskListCmd.Flags().StringVar(&listOrder, "order", "", "Sort order: asc or desc")
	taskListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format: table, json or yaml")

	taskShowCmd.Flags().StringVarP(&showFormat, "format", "f", "table", "Output format: table, json or yaml")

	taskEditCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	taskEditCmd.Flags().StringVarP(&editStatus, "status", "s", "", "New status")
	taskEditCmd.Flags().StringVarP(&editPriority, "priority", "p", "", "New priority")
	taskEditCmd.Flags().StringVar(&editDue, "due", "", "New due date")
	taskEditCmd.Flags().BoolVar(&editClearDue, "clear-due", false, "Remove the due date")
	taskEditCmd.Flags().StringSliceVarP(&editTags, "tag", "t", nil, "Replacement tags (repeatable)")
	taskEditCmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	taskCmd.AddCommand(
		taskAddCmd,
		taskListCmd,
		taskShowCmd,
		taskEditCmd,
		taskDeleteCmd,
		taskToggleCmd,
		taskReorderCmd,
		taskBulkDeleteCmd,
		taskBulkStatusCmd,
	)
	rootCmd.AddCommand(taskCmd)
}
