package boardview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ldi/trellis/internal/board"
)

var (
	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	detailTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	detailLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
)

const maxDetailWidth = 44

// renderDetail draws the detail panel for card at the given outer size.
func renderDetail(card board.Card, columns board.Columns, width, height int, now time.Time) string {
	inner := width - 4
	if inner < 1 {
		inner = 1
	}

	status := columns.Label(card.Status)
	if col, ok := columns.Lookup(card.Status); ok {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color(col.Color)).Render(col.Label)
	}

	deadline := "none"
	if card.Deadline != nil {
		deadline = card.Deadline.Format(board.DateLayout) + " (" +
			humanize.RelTime(*card.Deadline, now, "overdue", "left") + ")"
	}

	priority := string(card.Priority)
	if priority == "" {
		priority = "none"
	}

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, detailLabelStyle.Render(label), value)
	}

	barWidth := inner - 15
	if barWidth < 3 {
		barWidth = 3
	}

	lines := []string{
		detailTitleStyle.Width(inner).Render(card.Title),
		"",
		row("Kind", card.Kind.Noun()),
		row("Status", status),
		row("Priority", priority),
		row("Progress", progressBar(card.Progress, barWidth)+fmt.Sprintf(" %d%%", clampPercent(card.Progress))),
		row("Deadline", deadline),
		row("ID", cardDimStyle.Render(card.ID)),
		"",
		cardDimStyle.Render("esc to close"),
	}
	return detailStyle.
		Width(width - 2).
		Height(height - 2).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}
