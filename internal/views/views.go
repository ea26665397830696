// Package views renders task and recycle-bin listings for the CLI. The
// grid itself is drawn by external collaborators; these listings are the
// engine's read surface in text form.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gridtask/backend"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	urgentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle  = lipgloss.NewStyle().Faint(true)
	quadrantTags = map[string]string{
		"do":       "do now",
		"schedule": "schedule",
		"delegate": "delegate",
		"drop":     "drop",
	}
)

// Quadrant names the grid quadrant for a position.
func Quadrant(urgency, importance float64) string {
	switch {
	case urgency >= 50 && importance >= 50:
		return quadrantTags["do"]
	case importance >= 50:
		return quadrantTags["schedule"]
	case urgency >= 50:
		return quadrantTags["delegate"]
	default:
		return quadrantTags["drop"]
	}
}

// RenderTasks renders the active task listing.
func RenderTasks(tasks []backend.Task, now time.Time) string {
	if len(tasks) == 0 {
		return "No tasks. Add one with 'gridtask add <text>'.\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks (%d)", len(tasks))))
	b.WriteString("\n")

	for _, t := range tasks {
		line := t.Text
		if t.Completed {
			line = doneStyle.Render(line)
		}
		urgency := t.EffectiveUrgency(now)
		pos := fmt.Sprintf("u%.0f/i%.0f %s", urgency, t.Importance, Quadrant(urgency, t.Importance))
		if urgency >= 75 && !t.Completed {
			pos = urgentStyle.Render(pos)
		} else {
			pos = subtleStyle.Render(pos)
		}

		b.WriteString(fmt.Sprintf("  %s  %s  %s\n", shortID(t.ID), line, pos))

		if t.DueDate != nil {
			b.WriteString(subtleStyle.Render(fmt.Sprintf("      due %s", t.DueDate.Format("2006-01-02"))))
			b.WriteString("\n")
		}
		for _, s := range t.Subtasks {
			mark := "[ ]"
			if s.Completed {
				mark = "[x]"
			}
			sub := fmt.Sprintf("      %s %s %s", mark, shortID(s.ID), s.Text)
			if s.OnBoard() {
				sub += subtleStyle.Render(fmt.Sprintf(" (on board u%.0f/i%.0f)", *s.Urgency, *s.Importance))
			}
			b.WriteString(sub)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderTrash renders the recycle-bin listing with time remaining before
// each entry is purged.
func RenderTrash(tombstones []backend.Tombstone, retention time.Duration, now time.Time) string {
	if len(tombstones) == 0 {
		return "Recycle bin is empty.\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Recycle bin (%d)", len(tombstones))))
	b.WriteString("\n")

	for _, ts := range tombstones {
		left := retention - now.Sub(ts.DeletedAt)
		if left < 0 {
			left = 0
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			shortID(ts.Task.ID), ts.Task.Text,
			subtleStyle.Render(fmt.Sprintf("purges in %s", left.Round(time.Minute)))))
	}
	return b.String()
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
