// Package cmd implements the gridtask command line interface. The CLI is
// an ordinary collaborator of the sync engine: it mutates state through
// the engine's mutation API and reads its record list; all distributed
// behavior lives below.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridtask/backend/remote"
	"gridtask/internal/config"
	"gridtask/internal/credentials"
	"gridtask/internal/engine"
	"gridtask/internal/store"
	"gridtask/internal/utils"
)

var (
	flagConfigPath string
	flagVerbose    bool
	flagYes        bool
)

var rootCmd = &cobra.Command{
	Use:           "gridtask",
	Short:         "Local-first task tracking on an urgency/importance grid",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.SetVerboseMode(flagVerbose)
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "skip confirmation prompts")
}

// app bundles the wired-up engine for one CLI invocation.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	creds  *credentials.Manager

	// set by attachRemote
	remote *remote.Client
	token  string
}

// newApp loads config, opens the local store and starts the engine. The
// engine is usable offline; attachRemote adds the network side.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	e := engine.New(st, engine.Options{
		Debounce:  cfg.Debounce(),
		Retention: cfg.Retention(),
	})
	e.Start()

	return &app{
		cfg:    cfg,
		store:  st,
		engine: e,
		creds:  credentials.NewManager(),
	}, nil
}

// close flushes and releases everything.
func (a *app) close() {
	a.engine.Stop()
	_ = a.store.Close()
}

// attachRemote signs the engine in when sync is configured and a token is
// available. Returns false (without error) when running purely offline.
func (a *app) attachRemote(ctx context.Context) (bool, error) {
	if !a.cfg.SyncConfigured() {
		return false, nil
	}
	if a.cfg.Remote.Account == "" {
		return false, utils.ErrNotSignedIn()
	}

	info, err := a.creds.Get(ctx, a.cfg.Remote.Account)
	if err != nil {
		return false, err
	}
	if !info.Found {
		return false, utils.ErrCredentialsNotFound(a.cfg.Remote.Account)
	}

	client, err := remote.New(remote.Config{
		BaseURL:    a.cfg.Remote.URL,
		Token:      info.Token,
		MaxRetries: 2,
	})
	if err != nil {
		return false, err
	}
	a.remote = client
	a.token = info.Token

	if err := a.engine.SignIn(ctx, a.cfg.Remote.Account, client); err != nil {
		// Offline is normal for a local-first tool: keep working locally
		// and let the next cycle retry.
		utils.Warnf("could not reach remote store, continuing offline: %v", err)
	}
	return true, nil
}

// syncAfterMutation pushes immediately when a remote is attached, so
// one-shot CLI invocations propagate before the process exits.
func (a *app) syncAfterMutation() {
	if !a.engine.SignedIn() {
		return
	}
	if err := a.engine.SyncNow(); err != nil {
		utils.Warnf("sync deferred: %v", err)
	}
}
