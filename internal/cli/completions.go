package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// completeTaskIDs completes task id arguments with the task title as the
// description. Every positional argument is a task id.
func completeTaskIDs(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if Store == nil || !Store.Identity().Active {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	for _, t := range Store.Tasks() {
		if strings.HasPrefix(t.ID, toComplete) {
			ids = append(ids, t.ID+"\t"+t.Title)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeBulkStatus completes the status first and task ids after it.
func completeBulkStatus(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeStatuses(cmd, args, toComplete)
	}
	return completeTaskIDs(cmd, args, toComplete)
}

func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(models.AllPriorities))
	for _, p := range models.AllPriorities {
		out = append(out, string(p))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"pending\tNot started",
		"in_progress\tBeing worked on",
		"completed\tDone",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeSortFields(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(models.SortByTitle),
		string(models.SortByDueDate),
		string(models.SortByPriority),
		string(models.SortByStatus),
		string(models.SortByCreatedAt),
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	for _, cmd := range []*cobra.Command{taskShowCmd, taskEditCmd, taskDeleteCmd, taskToggleCmd, taskReorderCmd, taskBulkDeleteCmd} {
		cmd.ValidArgsFunction = completeTaskIDs
	}
	taskBulkStatusCmd.ValidArgsFunction = completeBulkStatus

	_ = taskAddCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskEditCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskEditCmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = taskListCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskListCmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = taskListCmd.RegisterFlagCompletionFunc("sort", completeSortFields)
	_ = taskListCmd.RegisterFlagCompletionFunc("format", completeFormats)
	_ = taskShowCmd.RegisterFlagCompletionFunc("format", completeFormats)
}
