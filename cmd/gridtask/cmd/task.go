package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gridtask/backend"
	"gridtask/internal/engine"
	"gridtask/internal/utils"
	"gridtask/internal/views"
)

var (
	flagUrgency    float64
	flagImportance float64
	flagDue        string
	flagEstimate   int
	flagAuto       bool
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task to the grid",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.attachRemote(cmd.Context()); err != nil {
			utils.Warnf("%v", err)
		}

		t, err := a.engine.Create(strings.Join(args, " "), flagUrgency, flagImportance)
		if err != nil {
			return err
		}

		if flagDue != "" {
			due, perr := time.Parse("2006-01-02", flagDue)
			if perr != nil {
				return utils.ErrInvalidDate(flagDue)
			}
			if err := a.engine.SetDueDate(t.ID, &due); err != nil {
				return err
			}
		}
		if flagEstimate > 0 {
			if err := a.engine.SetEstimate(t.ID, flagEstimate); err != nil {
				return err
			}
		}
		if flagAuto {
			if err := a.engine.SetAutoUrgency(t.ID, true); err != nil {
				return err
			}
		}

		fmt.Printf("Added %s: %s\n", t.ID[:8], t.Text)
		a.syncAfterMutation()
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.attachRemote(cmd.Context()); err != nil {
			utils.Debugf("%v", err)
		}

		fmt.Print(views.RenderTasks(a.engine.Tasks(), time.Now()))
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <text>",
	Short: "Edit a task's text",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if err := a.engine.EditText(t.ID, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", t.ID[:8])
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <id> <urgency> <importance>",
	Short: "Move a task on the grid",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return utils.ErrInvalidPosition("urgency", 0)
		}
		i, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return utils.ErrInvalidPosition("importance", 0)
		}
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if _, err := a.engine.CommitMove(t.ID, u, i); err != nil {
				return err
			}
			fmt.Printf("Moved %s to u%.0f/i%.0f (%s)\n", t.ID[:8], u, i, views.Quadrant(u, i))
			return nil
		})
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if err := a.engine.Complete(t.ID); err != nil {
				return err
			}
			fmt.Printf("Completed %s\n", t.ID[:8])
			return nil
		})
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a completed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if err := a.engine.Reopen(t.ID); err != nil {
				return err
			}
			fmt.Printf("Reopened %s\n", t.ID[:8])
			return nil
		})
	},
}

var dueCmd = &cobra.Command{
	Use:   "due <id> <date|none>",
	Short: "Set or clear a task's due date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if args[1] == "none" {
				return a.engine.SetDueDate(t.ID, nil)
			}
			due, err := time.Parse("2006-01-02", args[1])
			if err != nil {
				return utils.ErrInvalidDate(args[1])
			}
			return a.engine.SetDueDate(t.ID, &due)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Move a task to the recycle bin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTask(cmd.Context(), args[0], func(a *app, t backend.Task) error {
			if err := a.engine.Delete(t.ID); err != nil {
				return err
			}
			fmt.Printf("Moved %s to recycle bin (recoverable for 24h)\n", t.ID[:8])
			return nil
		})
	},
}

// withTask wires up the app, resolves a task reference and runs fn, then
// pushes the mutation if a remote is attached.
func withTask(ctx context.Context, ref string, fn func(*app, backend.Task) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.attachRemote(ctx); err != nil {
		utils.Warnf("%v", err)
	}

	t, err := resolveTask(a.engine, ref)
	if err != nil {
		return err
	}
	if err := fn(a, t); err != nil {
		return err
	}
	a.syncAfterMutation()
	return nil
}

// resolveTask finds a task by full ID, unique ID prefix or case-insensitive
// text match.
func resolveTask(e *engine.Engine, ref string) (backend.Task, error) {
	if t, err := e.Get(ref); err == nil {
		return t, nil
	}

	var matches []backend.Task
	lower := strings.ToLower(ref)
	for _, t := range e.Tasks() {
		if strings.HasPrefix(t.ID, ref) || strings.Contains(strings.ToLower(t.Text), lower) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return backend.Task{}, utils.ErrTaskNotFound(ref)
	default:
		return backend.Task{}, utils.WrapWithSuggestion(
			fmt.Errorf("ambiguous task reference: %s matches %d tasks", ref, len(matches)),
			"Use a longer ID prefix from 'gridtask list'")
	}
}

func init() {
	addCmd.Flags().Float64VarP(&flagUrgency, "urgency", "u", 50, "urgency position (0-100)")
	addCmd.Flags().Float64VarP(&flagImportance, "importance", "i", 50, "importance position (0-100)")
	addCmd.Flags().StringVar(&flagDue, "due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().IntVar(&flagEstimate, "estimate", 0, "estimated duration in minutes")
	addCmd.Flags().BoolVar(&flagAuto, "auto-urgency", false, "auto-advance urgency as the due date nears")

	rootCmd.AddCommand(addCmd, listCmd, editCmd, moveCmd, doneCmd, reopenCmd, dueCmd, rmCmd)
}
