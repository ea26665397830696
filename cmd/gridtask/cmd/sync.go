package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gridtask/internal/utils"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local changes and pull remote ones now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		attached, err := a.attachRemote(cmd.Context())
		if err != nil {
			return err
		}
		if !attached {
			return utils.ErrSyncNotConfigured()
		}

		if err := a.engine.Reconcile(cmd.Context()); err != nil {
			return err
		}
		if err := a.engine.SyncNow(); err != nil {
			return err
		}
		fmt.Println("Synced.")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync scheduler status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if !a.cfg.SyncConfigured() {
			fmt.Println("Sync: not configured (set remote.url in the config file)")
			return nil
		}

		fmt.Printf("Remote:    %s\n", a.cfg.Remote.URL)
		fmt.Printf("Account:   %s\n", orNone(a.cfg.Remote.Account))
		fmt.Printf("Scheduler: %s\n", a.engine.SchedulerState())

		runs, lastRun, lastErr := a.engine.SyncStatus()
		fmt.Printf("Cycles:    %d\n", runs)
		if !lastRun.IsZero() {
			fmt.Printf("Last run:  %s\n", lastRun.Format("2006-01-02 15:04:05"))
		}
		if lastErr != nil {
			fmt.Printf("Last err:  %s\n", lastErr)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
