package ui

import (
	"github.com/fatih/color"

	"github.com/ldi/trellis/pkg/models"
)

// Sprint color functions for command output.
var (
	Bold      = color.New(color.Bold).SprintFunc()
	Dim       = color.New(color.Faint).SprintFunc()
	Cyan      = color.New(color.FgCyan).SprintFunc()
	Green     = color.New(color.FgGreen).SprintFunc()
	Red       = color.New(color.FgRed).SprintFunc()
	Yellow    = color.New(color.FgYellow).SprintFunc()
	BoldCyan  = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldWhite = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// StatusIcon returns a colored icon for a workflow status.
func StatusIcon(status models.Status) string {
	switch status {
	case models.StatusCompleted:
		return Green("✓")
	case models.StatusInProgress:
		return Cyan("●")
	case models.StatusInReview:
		return Yellow("◐")
	case models.StatusBlocked:
		return Red("✗")
	case models.StatusPending:
		return "○"
	default:
		return Dim("◌")
	}
}

// PriorityLabel colors a priority, leaving medium and unset plain.
func PriorityLabel(p models.Priority) string {
	switch p {
	case models.PriorityUrgent:
		return Red(string(p))
	case models.PriorityHigh:
		return Yellow(string(p))
	case models.PriorityLow:
		return Dim(string(p))
	default:
		return string(p)
	}
}
