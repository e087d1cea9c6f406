package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/trellis/internal/board"
)

var (
	successToastStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("42")).
				Padding(0, 1)

	errorToastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)
)

// DefaultToastLimit is how many toasts are kept on screen at once.
const DefaultToastLimit = 3

type Toast struct {
	ID     int
	Notice board.Notice
}

// Toasts is the stack of transient notices shown in the corner of the
// board. Newest toasts are drawn last.
type Toasts struct {
	items  []Toast
	nextID int
	Limit  int
	Width  int
}

func NewToasts(width int) *Toasts {
	return &Toasts{Limit: DefaultToastLimit, Width: width}
}

// Push adds a toast and returns its id for a later Dismiss. The oldest
// toasts are dropped beyond Limit.
func (t *Toasts) Push(n board.Notice) int {
	t.nextID++
	t.items = append(t.items, Toast{ID: t.nextID, Notice: n})
	if t.Limit > 0 && len(t.items) > t.Limit {
		t.items = t.items[len(t.items)-t.Limit:]
	}
	return t.nextID
}

// Dismiss removes the toast with the given id, if it is still shown.
func (t *Toasts) Dismiss(id int) {
	for i, item := range t.items {
		if item.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

func (t *Toasts) Len() int { return len(t.items) }

func (t *Toasts) Items() []Toast { return t.items }

func (t *Toasts) View() string {
	if len(t.items) == 0 {
		return ""
	}

	boxes := make([]string, 0, len(t.items))
	for _, item := range t.items {
		boxes = append(boxes, t.renderBox(item.Notice))
	}
	return strings.Join(boxes, "\n")
}

func (t *Toasts) renderBox(n board.Notice) string {
	style, icon := successToastStyle, "✓"
	if n.Level == board.NoticeError {
		style, icon = errorToastStyle, "✗"
	}

	// Border and padding take two columns on each side.
	innerWidth := t.Width - 4
	if innerWidth < 4 {
		innerWidth = 4
	}
	wrapped := lipgloss.NewStyle().Width(innerWidth - 2).Render(n.Message)

	var lines []string
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			lines = append(lines, icon+" "+line)
		} else {
			lines = append(lines, "  "+line)
		}
	}
	return style.Width(innerWidth + 2).Render(strings.Join(lines, "\n"))
}
