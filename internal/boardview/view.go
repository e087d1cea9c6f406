package boardview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/ui/components"
)

var (
	orbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	inFlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	var body string
	if m.loaded {
		cols := make([]string, len(m.views))
		for i, v := range m.views {
			cols[i] = v.View()
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	} else {
		body = components.NewSkeleton(len(m.columns), m.colWidth*len(m.columns), m.boardHeight).View()
	}

	if m.detailID != "" {
		if card, ok := board.FindCard(m.cards, m.detailID); ok {
			panel := renderDetail(card, m.columns, m.detailWidth(), m.boardHeight, m.now())
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, panel)
		}
	}

	view := m.renderHeader() + "\n" + body + "\n" + m.renderHelp()

	if session, ok := m.controller.Session(); ok {
		if card, ok := board.FindCard(m.cards, session.ActiveCardID); ok {
			r := session.Overlay()
			view = splice(view, renderCard(card, r.W, cardFloating, m.now()), r.X, r.Y)
		}
	}

	if m.toasts.Len() > 0 {
		toasts := m.toasts.View()
		x := m.width - lipgloss.Width(toasts) - 1
		view = splice(view, toasts, x, headerHeight)
	}
	return view
}

func (m *Model) renderHeader() string {
	title := orbStyle.Render("⬤") + titleStyle.Render(m.scope.Title())

	var stats string
	switch {
	case m.loadErr != nil && !m.loaded:
		stats = errorTextStyle.Render(fmt.Sprintf("could not load cards: %v (r to retry)", m.loadErr))
	case !m.loaded:
		stats = statsStyle.Render("loading…")
	default:
		stats = statsStyle.Render(fmt.Sprintf("%d cards", len(m.cards)))
	}
	if m.inFlight > 0 {
		stats += "  " + inFlightStyle.Render(fmt.Sprintf("%d in flight", m.inFlight))
	}
	if session, ok := m.controller.Session(); ok {
		stats += "  " + statsStyle.Render(m.dragStatus(session))
	}

	return lipgloss.NewStyle().MaxWidth(m.width).Render(title + " " + stats)
}

func (m *Model) dragStatus(s board.Session) string {
	card, _ := board.FindCard(m.cards, s.ActiveCardID)
	if s.HoveredTarget == nil {
		return fmt.Sprintf("moving %q", card.Title)
	}
	target, ok := board.ResolveTarget(s.HoveredTarget, m.cards)
	if !ok {
		return fmt.Sprintf("moving %q", card.Title)
	}
	return fmt.Sprintf("moving %q to %s", card.Title, m.columns.Label(target))
}

func (m *Model) renderHelp() string {
	var bindings []key.Binding
	if m.controller.Dragging() {
		bindings = []key.Binding{m.keys.Left, m.keys.Right, m.keys.Lift, m.keys.Cancel}
	} else {
		bindings = []key.Binding{m.keys.Left, m.keys.Up, m.keys.Lift, m.keys.Open, m.keys.Refresh, m.keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.MaxWidth(m.width).Render(strings.Join(parts, " • "))
}
