package boardview

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const resetSGR = "\x1b[0m"

// splice draws block over view with its top-left corner at (x, y). Cells of
// block that fall left of the view are cut; rows outside the view are
// skipped. Styling on both sides of the block is preserved.
func splice(view, block string, x, y int) string {
	if block == "" {
		return view
	}
	rows := strings.Split(view, "\n")
	for i, line := range strings.Split(block, "\n") {
		row := y + i
		if row < 0 || row >= len(rows) {
			continue
		}
		left := x
		if left < 0 {
			line = ansi.TruncateLeft(line, -left, "")
			left = 0
		}

		base := rows[row]
		var sb strings.Builder
		prefix := ansi.Truncate(base, left, "")
		sb.WriteString(prefix)
		if gap := left - ansi.StringWidth(prefix); gap > 0 {
			sb.WriteString(strings.Repeat(" ", gap))
		}
		sb.WriteString(resetSGR)
		sb.WriteString(line)
		sb.WriteString(resetSGR)
		if end := left + ansi.StringWidth(line); end < ansi.StringWidth(base) {
			sb.WriteString(ansi.TruncateLeft(base, end, ""))
		}
		rows[row] = sb.String()
	}
	return strings.Join(rows, "\n")
}
