package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gridtask/internal/utils"
	"gridtask/internal/views"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Show the recycle bin",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Print(views.RenderTrash(a.engine.Tombstones(), a.cfg.Retention(), time.Now()))
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a task from the recycle bin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.attachRemote(cmd.Context()); err != nil {
			utils.Warnf("%v", err)
		}

		id, err := resolveTombstone(a, args[0])
		if err != nil {
			return err
		}
		t, err := a.engine.Restore(id)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s: %s\n", t.ID[:8], t.Text)
		a.syncAfterMutation()
		return nil
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge <id>",
	Short: "Permanently delete a recycle-bin entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		id, err := resolveTombstone(a, args[0])
		if err != nil {
			return err
		}
		if err := a.engine.PurgePermanently(id); err != nil {
			return err
		}
		fmt.Printf("Permanently deleted %s\n", id[:8])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tasks and empty the recycle bin",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.attachRemote(cmd.Context()); err != nil {
			utils.Warnf("%v", err)
		}

		if !flagYes && !confirm("This deletes ALL tasks. A backup snapshot is taken first. Continue? [y/N] ") {
			fmt.Println("Aborted.")
			return nil
		}

		if err := a.engine.ClearAll(); err != nil {
			return err
		}
		fmt.Println("All data cleared. Backup snapshot saved.")
		a.syncAfterMutation()
		return nil
	},
}

// resolveTombstone finds a recycle-bin entry by ID prefix or text match.
func resolveTombstone(a *app, ref string) (string, error) {
	lower := strings.ToLower(ref)
	var matches []string
	for _, ts := range a.engine.Tombstones() {
		if ts.Task.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(ts.Task.ID, ref) || strings.Contains(strings.ToLower(ts.Task.Text), lower) {
			matches = append(matches, ts.Task.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", utils.ErrTombstoneNotFound(ref)
	default:
		return "", utils.WrapWithSuggestion(
			fmt.Errorf("ambiguous reference: %s", ref),
			"Use a longer ID prefix from 'gridtask trash'")
	}
}

// confirm reads a yes/no answer from stdin.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func init() {
	trashCmd.AddCommand(trashRestoreCmd, trashPurgeCmd)
	rootCmd.AddCommand(trashCmd, clearCmd)
}
