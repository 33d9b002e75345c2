package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/observability"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

var (
	statsJSON  bool
	statsSince string
)

// statsReport is the JSON shape of 'taskdeck stats'.
type statsReport struct {
	Tasks    core.TaskStats         `json:"tasks"`
	Since    time.Time              `json:"since"`
	Activity *observability.Metrics `json:"activity,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"metrics"},
	Short:   "Display task counts and recent activity",
	Long: `Display counts of the signed-in user's tasks by status, priority and due
date, followed by activity metrics derived from the event log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}

		sinceTime, err := parseSinceDuration(statsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		report := statsReport{Tasks: store.Stats(), Since: sinceTime}
		if MetricsCalc != nil {
			report.Activity, err = MetricsCalc.Calculate(store.Identity().OwnerID, sinceTime)
			if err != nil {
				return fmt.Errorf("calculating metrics: %w", err)
			}
		}

		if statsJSON {
			return printFormatted("json", report)
		}

		st := report.Tasks
		fmt.Println(headerRowStyle.Render("Tasks"))
		fmt.Printf("  %-24s %d\n", "Total:", st.Total)
		for _, s := range models.AllStatuses {
			fmt.Printf("  %-24s %d\n", string(s)+":", st.ByStatus[s])
		}
		for _, p := range models.AllPriorities {
			fmt.Printf("  %-24s %d\n", string(p)+" priority:", st.ByPriority[p])
		}
		fmt.Printf("  %-24s %d\n", "Overdue:", st.Overdue)
		fmt.Printf("  %-24s %d\n", "Due today:", st.DueToday)
		fmt.Printf("  %-24s %d\n", "Due this week:", st.DueThisWeek)

		m := report.Activity
		if m == nil {
			return nil
		}
		fmt.Printf("\n%s\n", headerRowStyle.Render(fmt.Sprintf("Activity (since %s)", sinceTime.Format(time.DateOnly))))
		fmt.Printf("  %-24s %d\n", "Events recorded:", m.EventCount)
		fmt.Printf("  %-24s %d\n", "Tasks created:", m.TasksCreated)
		fmt.Printf("  %-24s %d\n", "Tasks completed:", m.TasksCompleted)
		fmt.Printf("  %-24s %d\n", "Tasks updated:", m.TasksUpdated)
		fmt.Printf("  %-24s %d\n", "Tasks deleted:", m.TasksDeleted)
		fmt.Printf("  %-24s %d\n", "Reorders:", m.Reorders)
		fmt.Printf("  %-24s %d\n", "Restores:", m.Restores)

		if len(m.StatusTransitions) > 0 {
			fmt.Println("\n  Status transitions:")
			for _, k := range slices.Sorted(maps.Keys(m.StatusTransitions)) {
				fmt.Printf("    %-26s %d\n", k+":", m.StatusTransitions[k])
			}
		}

		if m.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", m.OldestEvent.Format(time.RFC3339))
		}
		if m.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", m.NewestEvent.Format(time.RFC3339))
		}
		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().StringVar(&statsSince, "since", "7d", "Time window for activity (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(statsCmd)
}
