package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	skeletonBlockStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("237"))

	skeletonBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("236"))
)

// Skeleton is the placeholder board drawn while cards are loading: one
// outlined column per status with a few shaded card shapes in each.
type Skeleton struct {
	Columns int
	Cards   int
	Width   int
	Height  int
}

func NewSkeleton(columns, width, height int) Skeleton {
	return Skeleton{Columns: columns, Cards: 3, Width: width, Height: height}
}

func (s Skeleton) View() string {
	if s.Columns <= 0 || s.Width <= 0 || s.Height <= 0 {
		return ""
	}
	colWidth := s.Width / s.Columns
	inner := colWidth - 2
	if inner < 1 {
		inner = 1
	}
	innerHeight := s.Height - 2
	if innerHeight < 1 {
		innerHeight = 1
	}

	bar := skeletonBlockStyle.Render(strings.Repeat("░", inner))
	short := skeletonBlockStyle.Render(strings.Repeat("░", inner*2/3))

	var lines []string
	lines = append(lines, short, "")
	for i := 0; i < s.Cards; i++ {
		lines = append(lines, bar, short, "")
	}
	if len(lines) > innerHeight {
		lines = lines[:innerHeight]
	}
	column := skeletonBorderStyle.
		Width(inner).
		Height(innerHeight).
		Render(strings.Join(lines, "\n"))

	cols := make([]string, s.Columns)
	for i := range cols {
		cols[i] = column
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}
