package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/internal/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export and restore the signed-in user's tasks",
}

var (
	backupOut    string
	backupFormat string
	restoreLast  bool
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a backup document of all tasks",
	Long: `Write a backup of the signed-in user's tasks to stdout or --out.

JSON backups are also kept in storage as the most recent backup, which
'backup restore --last' reads back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		if Repo == nil {
			return fmt.Errorf("task repository not initialized")
		}
		ctx := cmdContext(cmd)
		owner := store.Identity().OwnerID

		b, err := Repo.Backup(ctx, owner)
		if err != nil {
			return fmt.Errorf("creating backup: %w", err)
		}

		var data []byte
		switch backupFormat {
		case "", "json":
			data, err = storage.EncodeBackup(b)
		case "yaml":
			data, err = storage.EncodeBackupYAML(b)
		default:
			return fmt.Errorf("unsupported format %q (use json or yaml)", backupFormat)
		}
		if err != nil {
			return fmt.Errorf("encoding backup: %w", err)
		}

		if Backups != nil && backupFormat != "yaml" {
			if err := Backups.StoreBackup(ctx, owner, data); err != nil {
				return fmt.Errorf("keeping backup: %w", err)
			}
		}

		if backupOut == "" {
			fmt.Print(string(data))
			return nil
		}
		if err := os.WriteFile(backupOut, data, 0o600); err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}
		fmt.Printf("Backed up %d task(s) to %s\n", len(b.Tasks), backupOut)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Replace all tasks with the contents of a JSON backup",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := requireSession()
		if err != nil {
			return err
		}
		if Repo == nil {
			return fmt.Errorf("task repository not initialized")
		}
		ctx := cmdContext(cmd)
		owner := store.Identity().OwnerID

		var data []byte
		switch {
		case restoreLast && len(args) > 0:
			return fmt.Errorf("pass a file or --last, not both")
		case restoreLast:
			if Backups == nil {
				return fmt.Errorf("backup storage not initialized")
			}
			var ok bool
			data, ok, err = Backups.LastBackup(ctx, owner)
			if err != nil {
				return fmt.Errorf("reading last backup: %w", err)
			}
			if !ok {
				return fmt.Errorf("no stored backup (run 'taskdeck backup create' first)")
			}
		case len(args) == 1:
			data, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}
		default:
			return fmt.Errorf("pass a backup file or --last")
		}

		b, err := storage.DecodeBackup(data)
		if err != nil {
			return err
		}
		n, err := Repo.Restore(ctx, owner, b)
		if err != nil {
			return fmt.Errorf("restoring backup: %w", err)
		}
		if err := store.Reload(ctx); err != nil {
			return fmt.Errorf("reloading tasks: %w", err)
		}
		fmt.Printf("Restored %d task(s)\n", n)
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVarP(&backupOut, "out", "o", "", "File to write (default stdout)")
	backupCreateCmd.Flags().StringVarP(&backupFormat, "format", "f", "json", "Document format: json or yaml")
	backupRestoreCmd.Flags().BoolVar(&restoreLast, "last", false, "Restore the most recent stored backup")

	backupCmd.AddCommand(backupCreateCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
