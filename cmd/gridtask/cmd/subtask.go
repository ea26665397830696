package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gridtask/backend"
	"gridtask/internal/utils"
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Manage subtasks",
}

var subAddCmd = &cobra.Command{
	Use:   "add <task> <text>",
	Short: "Add a subtask",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := a.engine.AddSubtask(t.ID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("Added subtask %s to %s\n", sub.ID[:8], t.ID[:8])
			return nil
		})
	},
}

var subDoneCmd = &cobra.Command{
	Use:   "done <task> <subtask>",
	Short: "Toggle a subtask's completion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := resolveSubtask(t, args[1])
			if err != nil {
				return err
			}
			return a.engine.ToggleSubtask(t.ID, sub.ID)
		})
	},
}

var subEditCmd = &cobra.Command{
	Use:   "edit <task> <subtask> <text>",
	Short: "Edit a subtask's text",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := resolveSubtask(t, args[1])
			if err != nil {
				return err
			}
			return a.engine.EditSubtask(t.ID, sub.ID, strings.Join(args[2:], " "), sub.Note)
		})
	},
}

var subRmCmd = &cobra.Command{
	Use:   "rm <task> <subtask>",
	Short: "Remove a subtask",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := resolveSubtask(t, args[1])
			if err != nil {
				return err
			}
			return a.engine.RemoveSubtask(t.ID, sub.ID)
		})
	},
}

var subExtractCmd = &cobra.Command{
	Use:   "extract <task> <subtask> <urgency> <importance>",
	Short: "Place a subtask onto the grid as an independent node",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return utils.ErrInvalidPosition("urgency", 0)
		}
		i, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return utils.ErrInvalidPosition("importance", 0)
		}
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := resolveSubtask(t, args[1])
			if err != nil {
				return err
			}
			if err := a.engine.ExtractSubtask(t.ID, sub.ID, u, i); err != nil {
				return err
			}
			fmt.Printf("Extracted %s onto the grid at u%.0f/i%.0f\n", sub.ID[:8], u, i)
			return nil
		})
	},
}

var subReturnCmd = &cobra.Command{
	Use:   "return <task> <subtask>",
	Short: "Return an extracted subtask to its parent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			sub, err := resolveSubtask(t, args[1])
			if err != nil {
				return err
			}
			return a.engine.ReturnSubtask(t.ID, sub.ID)
		})
	},
}

// resolveSubtask finds a subtask by ID prefix or text match on its parent.
func resolveSubtask(t backend.Task, ref string) (backend.Subtask, error) {
	lower := strings.ToLower(ref)
	var matches []backend.Subtask
	for _, s := range t.Subtasks {
		if s.ID == ref {
			return s, nil
		}
		if strings.HasPrefix(s.ID, ref) || strings.Contains(strings.ToLower(s.Text), lower) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return backend.Subtask{}, utils.ErrSubtaskNotFound(t.ID, ref)
	default:
		return backend.Subtask{}, utils.WrapWithSuggestion(
			fmt.Errorf("ambiguous subtask reference: %s", ref),
			"Use a longer ID prefix from 'gridtask list'")
	}
}

func init() {
	subCmd.AddCommand(subAddCmd, subDoneCmd, subEditCmd, subRmCmd, subExtractCmd, subReturnCmd)
	rootCmd.AddCommand(subCmd)
}
