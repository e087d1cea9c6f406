package boardview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/pkg/models"
)

// cardLines is the number of content lines in a card: title, priority and
// progress, deadline. Every card has the same height so that a placeholder
// can stand in for a lifted card without moving its neighbours.
const cardLines = 3

type cardState int

const (
	cardNormal cardState = iota
	cardFocused
	cardTarget
	cardPlaceholder
	cardFloating
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	cardFocusedStyle = cardStyle.
				BorderStyle(lipgloss.ThickBorder()).
				BorderForeground(lipgloss.Color("12"))

	cardTargetStyle = cardStyle.
			BorderForeground(lipgloss.Color("63"))

	cardFloatingStyle = cardStyle.
				BorderStyle(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("12"))

	placeholderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("236")).
				Foreground(lipgloss.Color("237")).
				Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().Bold(true)
	cardDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	progressFill   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressTrack  = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))

	priorityColors = map[models.Priority]lipgloss.Color{
		models.PriorityLow:    lipgloss.Color("245"),
		models.PriorityMedium: lipgloss.Color("39"),
		models.PriorityHigh:   lipgloss.Color("214"),
		models.PriorityUrgent: lipgloss.Color("196"),
	}
)

// renderCard draws card at the given outer width.
func renderCard(card board.Card, width int, state cardState, now time.Time) string {
	inner := width - 4
	if inner < 1 {
		inner = 1
	}

	if state == cardPlaceholder {
		hint := strings.Repeat("·", inner)
		lines := []string{"", hint, ""}
		return placeholderStyle.Width(width - 2).Height(cardLines).Render(strings.Join(lines, "\n"))
	}

	lines := []string{
		cardTitleStyle.Render(ansi.Truncate(card.Title, inner, "…")),
		ansi.Truncate(metaLine(card, inner), inner, ""),
		ansi.Truncate(deadlineLine(card, now), inner, "…"),
	}

	style := cardStyle
	switch state {
	case cardFocused:
		style = cardFocusedStyle
	case cardTarget:
		style = cardTargetStyle
	case cardFloating:
		style = cardFloatingStyle
	}
	return style.Width(width - 2).Height(cardLines).Render(strings.Join(lines, "\n"))
}

func priorityBadge(p models.Priority) string {
	color, ok := priorityColors[p]
	if !ok {
		return cardDimStyle.Render("○")
	}
	return lipgloss.NewStyle().Foreground(color).Render("● " + string(p))
}

func metaLine(card board.Card, width int) string {
	badge := priorityBadge(card.Priority)
	pct := fmt.Sprintf("%3d%%", clampPercent(card.Progress))
	barWidth := width - ansi.StringWidth(badge) - len(pct) - 2
	if barWidth < 3 {
		return badge + " " + pct
	}
	return badge + " " + progressBar(card.Progress, barWidth) + " " + pct
}

func progressBar(progress, width int) string {
	filled := clampPercent(progress) * width / 100
	return progressFill.Render(strings.Repeat("█", filled)) +
		progressTrack.Render(strings.Repeat("░", width-filled))
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func deadlineLine(card board.Card, now time.Time) string {
	if card.Deadline == nil {
		return cardDimStyle.Render("no deadline")
	}
	if card.Status == models.StatusCompleted {
		return cardDimStyle.Render("due " + card.Deadline.Format(board.DateLayout))
	}
	rel := humanize.RelTime(*card.Deadline, now, "overdue", "left")
	if card.Deadline.Before(now) {
		return overdueStyle.Render(rel)
	}
	return cardDimStyle.Render(rel)
}
