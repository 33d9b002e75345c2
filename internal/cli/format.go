package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/pkg/models"
	"gopkg.in/yaml.v3"
)

// shortIDLen is how much of a task id the table shows; commands accept any
// unique prefix.
const shortIDLen = 8

var (
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusStyles = map[models.TaskStatus]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		models.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}
	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		models.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func formatDue(due *time.Time, now time.Time) string {
	if due == nil {
		return "-"
	}
	s := due.In(now.Location()).Format(time.DateOnly)
	switch {
	case core.IsOverdue(due, now):
		return overdueStyle.Render(s + " !")
	case core.IsDueToday(due, now):
		return s + " *"
	default:
		return s
	}
}

func printTaskTable(tasks []models.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return
	}

	fmt.Println(headerRowStyle.Render(fmt.Sprintf("%-8s  %-11s  %-8s  %-12s  %s", "ID", "STATUS", "PRIORITY", "DUE", "TITLE")))
	for _, t := range tasks {
		status := statusStyles[t.Status].Width(11).Render(string(t.Status))
		priority := priorityStyles[t.Priority].Width(8).Render(string(t.Priority))
		due := lipgloss.NewStyle().Width(12).Render(formatDue(t.DueDate, now))
		line := fmt.Sprintf("%-8s  %s  %s  %s  %s", shortID(t.ID), status, priority, due, t.Title)
		if len(t.Tags) > 0 {
			line += " " + dimStyle.Render("#"+strings.Join(t.Tags, " #"))
		}
		fmt.Println(line)
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("\n%d task(s)", len(tasks))))
}

func printTask(t models.Task, now time.Time) {
	fmt.Printf("%s\n", lipgloss.NewStyle().Bold(true).Render(t.Title))
	fmt.Printf("  %-12s %s\n", "ID:", t.ID)
	fmt.Printf("  %-12s %s\n", "Status:", statusStyles[t.Status].Render(string(t.Status)))
	fmt.Printf("  %-12s %s\n", "Priority:", priorityStyles[t.Priority].Render(string(t.Priority)))
	fmt.Printf("  %-12s %s\n", "Due:", formatDue(t.DueDate, now))
	if len(t.Tags) > 0 {
		fmt.Printf("  %-12s %s\n", "Tags:", strings.Join(t.Tags, ", "))
	}
	fmt.Printf("  %-12s %s\n", "Created:", t.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  %-12s %s\n", "Updated:", t.UpdatedAt.Format(time.RFC3339))
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
}

// printFormatted writes v as JSON or YAML.
func printFormatted(format string, v any) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting as JSON: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("formatting as YAML: %w", err)
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unsupported format %q (use table, json or yaml)", format)
	}
	return nil
}

// resolveTaskID maps an id or unique id prefix to a full task id.
func resolveTaskID(store *core.Store, arg string) (string, error) {
	if _, ok := store.Find(arg); ok {
		return arg, nil
	}
	var match string
	for _, t := range store.Tasks() {
		if strings.HasPrefix(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("task %s: %w", arg, core.ErrNotFound)
	}
	return match, nil
}
