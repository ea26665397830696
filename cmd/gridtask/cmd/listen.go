package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridtask/internal/realtime"
	"gridtask/internal/utils"
	"gridtask/internal/watcher"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run in the foreground, applying remote changes as they happen",
	Long: `Keeps the process alive, subscribed to the realtime change channel
for the signed-in account. Every notification triggers a reconcile, so
edits made on other devices appear in the local cache within moments.
Local cache writes by other processes are picked up too.`,
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
		if a.cfg.Remote.RealtimeURL == "" {
			return utils.WrapWithSuggestion(
				fmt.Errorf("no realtime endpoint configured"),
				"Set remote.realtime_url in the config file")
		}

		blog, err := utils.NewBackgroundLogger()
		if err != nil {
			utils.Warnf("background log unavailable: %v", err)
		}
		defer blog.Close()
		blog.Printf("listen started for %s", a.cfg.Remote.Account)

		ctx := cmd.Context()
		reconcile := func(reason string) {
			if err := a.engine.Reconcile(ctx); err != nil {
				blog.Printf("reconcile (%s) failed: %v", reason, err)
				utils.Warnf("reconcile failed: %v", err)
				return
			}
			blog.Printf("reconciled (%s)", reason)
		}

		listener, err := realtime.New(realtime.Config{
			URL:     a.cfg.Remote.RealtimeURL,
			Token:   a.token,
			OwnerID: a.cfg.Remote.Account,
			OnChange: func(ev realtime.Event) {
				blog.Printf("push: %s %s", ev.Type, ev.TaskID)
				reconcile("push")
			},
		})
		if err != nil {
			return err
		}
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer listener.Stop()

		// Another CLI invocation writing the cache, or a backup restore,
		// should reach the remote without waiting for this process to exit.
		w, err := watcher.New(&watcher.Config{
			Paths: []string{a.store.Path(), a.store.BackupPath()},
			OnChange: func() {
				blog.Printf("cache changed on disk")
				a.engine.MarkDirty()
			},
		})
		if err != nil {
			utils.Warnf("cache watcher unavailable: %v", err)
		} else {
			if err := w.Start(); err != nil {
				utils.Warnf("cache watcher: %v", err)
			}
			defer w.Stop()
		}

		fmt.Printf("Listening for changes as %s. Ctrl-C to stop.\n", a.cfg.Remote.Account)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			blog.Printf("shutting down on %v", sig)
			fmt.Println("\nStopping.")
		case <-ctx.Done():
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
