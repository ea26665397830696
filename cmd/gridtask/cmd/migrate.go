package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gridtask/backend"
	"gridtask/internal/migrate"
	"gridtask/internal/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upload an existing offline installation to the remote store",
	Long: `Uploads every local task to the remote store. Run once when an
installation that predates sync first signs in. Safe to re-run: uploads
are idempotent by task ID.`,
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

		rs := backend.NewRecordSet()
		for _, t := range a.engine.Tasks() {
			rs.Tasks[t.ID] = t
		}

		res, err := migrate.Run(cmd.Context(), rs, a.cfg.Remote.Account, a.remote)
		if err != nil {
			return err
		}

		fmt.Printf("Migrated %d task(s).\n", res.Migrated)
		for _, f := range res.Failures {
			fmt.Printf("  failed %s: %s\n", f.TaskID[:8], f.Reason)
		}
		if len(res.Failures) > 0 {
			return fmt.Errorf("%d task(s) failed to migrate", len(res.Failures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
