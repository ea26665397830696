package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gridtask/internal/utils"
)

var signinCmd = &cobra.Command{
	Use:   "signin <account>",
	Short: "Sign in and start syncing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if !a.cfg.SyncConfigured() {
			return utils.ErrSyncNotConfigured()
		}

		account := args[0]
		token, err := readToken()
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("empty token")
		}

		if err := a.creds.Set(cmd.Context(), account, token); err != nil {
			return utils.WrapWithSuggestion(err,
				"Keyring unavailable; export GRIDTASK_TOKEN instead")
		}

		a.cfg.Remote.Account = account
		if _, err := a.attachRemote(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Signed in as %s.\n", account)
		fmt.Println("Add 'remote.account: " + account + "' to the config file to stay signed in.")
		a.syncAfterMutation()
		return nil
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and stop syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.Remote.Account == "" {
			fmt.Println("Not signed in.")
			return nil
		}

		if err := a.creds.Delete(cmd.Context(), a.cfg.Remote.Account); err != nil {
			return err
		}
		a.engine.SignOut()
		fmt.Printf("Signed out of %s. Local data is untouched.\n", a.cfg.Remote.Account)
		return nil
	},
}

var themeCmd = &cobra.Command{
	Use:   "theme [name]",
	Short: "Show or set the display theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 0 {
			theme := a.engine.Theme()
			if theme == "" {
				theme = "default"
			}
			fmt.Println(theme)
			return nil
		}
		return a.engine.SetTheme(args[0])
	},
}

// readToken prompts for the auth token, hiding input when stdin is a
// terminal and falling back to a plain line read when piped.
func readToken() (string, error) {
	fmt.Fprint(os.Stderr, "Token: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func init() {
	rootCmd.AddCommand(signinCmd, signoutCmd, themeCmd)
}
