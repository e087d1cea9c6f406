package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/trellis/internal/board"
)

var (
	columnBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("238"))

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true)

	columnCountStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	moreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	emptyColumnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

const (
	// Lines above the card list: header, top marker.
	columnChromeTop = 2
	// Lines below the card list: bottom marker.
	columnChromeBottom = 1
	// Border on each side.
	columnBorder = 1
)

// ColumnView renders one status column: a header, a scrollable list of
// rendered cards, a scrollbar, and "more" markers when cards are hidden above
// or below.
type ColumnView struct {
	column   board.Column
	viewport viewport.Model
	observer *board.OverflowObserver

	blocks []string
	starts []int
	lines  int

	width   int
	height  int
	hovered bool
}

func NewColumnView(column board.Column, width, height int) *ColumnView {
	v := &ColumnView{
		column:   column,
		observer: &board.OverflowObserver{},
	}
	v.SetSize(width, height)
	return v
}

func (v *ColumnView) Column() board.Column { return v.column }

// SetSize sets the outer size of the column, border included.
func (v *ColumnView) SetSize(width, height int) {
	v.width = width
	v.height = height
	vpWidth, vpHeight := v.bodySize()
	v.viewport = viewport.New(vpWidth, vpHeight)
	v.refresh()
}

// CardWidth is the width cards must be rendered at to fit the column.
func (v *ColumnView) CardWidth() int {
	w, _ := v.bodySize()
	return w
}

func (v *ColumnView) bodySize() (int, int) {
	w := v.width - 2*columnBorder - 1
	h := v.height - 2*columnBorder - columnChromeTop - columnChromeBottom
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w, h
}

// BodyOrigin is the offset of the first card line from the column's top-left
// corner.
func (v *ColumnView) BodyOrigin() (x, y int) {
	return columnBorder, columnBorder + columnChromeTop
}

// SetCards replaces the rendered card blocks. The scroll offset is kept where
// possible.
func (v *ColumnView) SetCards(blocks []string) {
	v.blocks = blocks
	v.refresh()
}

func (v *ColumnView) refresh() {
	v.starts = v.starts[:0]
	var parts []string
	line := 0
	for _, b := range v.blocks {
		v.starts = append(v.starts, line)
		parts = append(parts, b)
		line += lipgloss.Height(b)
	}
	v.lines = line

	offset := v.viewport.YOffset
	v.viewport.SetContent(strings.Join(parts, "\n"))
	v.viewport.SetYOffset(offset)
	v.observer.Resize(v.viewport.Height, v.lines)
	v.observer.Scroll(v.viewport.YOffset)
}

// CardSpan returns where card i sits relative to the body origin, clipped to
// the visible part of the body. ok is false when the card is scrolled out of
// view.
func (v *ColumnView) CardSpan(i int) (y, h int, ok bool) {
	if i < 0 || i >= len(v.blocks) {
		return 0, 0, false
	}
	top := v.starts[i] - v.viewport.YOffset
	bottom := top + lipgloss.Height(v.blocks[i])
	if top < 0 {
		top = 0
	}
	if bottom > v.viewport.Height {
		bottom = v.viewport.Height
	}
	if bottom <= top {
		return 0, 0, false
	}
	return top, bottom - top, true
}

// ScrollTo scrolls so that card i is fully visible, if it fits.
func (v *ColumnView) ScrollTo(i int) {
	if i < 0 || i >= len(v.blocks) {
		return
	}
	top := v.starts[i]
	bottom := top + lipgloss.Height(v.blocks[i])
	switch {
	case top < v.viewport.YOffset:
		v.viewport.SetYOffset(top)
	case bottom > v.viewport.YOffset+v.viewport.Height:
		v.viewport.SetYOffset(bottom - v.viewport.Height)
	}
	v.observer.Scroll(v.viewport.YOffset)
}

// ScrollBy scrolls the card list by n lines.
func (v *ColumnView) ScrollBy(n int) {
	v.viewport.SetYOffset(v.viewport.YOffset + n)
	v.observer.Scroll(v.viewport.YOffset)
}

func (v *ColumnView) Offset() int { return v.viewport.YOffset }

func (v *ColumnView) Overflow() board.Overflow { return v.observer.State() }

// SetHovered highlights the column as the current drop target.
func (v *ColumnView) SetHovered(hovered bool) { v.hovered = hovered }

func (v *ColumnView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	v.observer.Scroll(v.viewport.YOffset)
	return cmd
}

func (v *ColumnView) View() string {
	innerWidth := v.width - 2*columnBorder
	if innerWidth < 0 {
		innerWidth = 0
	}

	color := lipgloss.Color(v.column.Color)
	header := columnHeaderStyle.Foreground(color).Render(v.column.Label) +
		" " + columnCountStyle.Render(fmt.Sprintf("(%d)", len(v.blocks)))
	header = lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Render(header)

	overflow := v.observer.State()
	top, bottom := "", ""
	if overflow.ShowTop {
		top = moreStyle.Render("▲ more")
	}
	if overflow.ShowBottom {
		bottom = moreStyle.Render("▼ more")
	}

	var body string
	if len(v.blocks) == 0 {
		body = emptyColumnStyle.Width(v.viewport.Width).Height(v.viewport.Height).Render("No cards")
	} else {
		body = lipgloss.NewStyle().Width(v.viewport.Width).Height(v.viewport.Height).Render(v.viewport.View())
	}
	body = lipgloss.JoinHorizontal(lipgloss.Top, body, v.scrollbar())

	inner := lipgloss.JoinVertical(lipgloss.Left, header, top, body, bottom)

	style := columnBorderStyle
	if v.hovered {
		style = style.BorderForeground(color).BorderStyle(lipgloss.ThickBorder())
	}
	return style.Width(innerWidth).Height(v.height - 2*columnBorder).Render(inner)
}

func (v *ColumnView) scrollbar() string {
	h := v.viewport.Height
	if h <= 0 {
		return ""
	}
	if v.lines <= h {
		return strings.TrimSuffix(strings.Repeat(" \n", h), "\n")
	}

	handlePos := int(float64(h-1) * v.viewport.ScrollPercent())
	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
