package board

import "github.com/ldi/trellis/pkg/models"

// Column describes one status bucket of a board.
type Column struct {
	Key   models.Status
	Label string
	Color string // terminal color code
}

// Columns is the ordered column catalogue of a board. It is configuration:
// every board of the same kind shares it and it never changes at runtime.
type Columns []Column

// DefaultColumns returns the workflow columns shared by the task and module
// boards.
func DefaultColumns() Columns {
	return Columns{
		{Key: models.StatusDraft, Label: "Draft", Color: "245"},
		{Key: models.StatusPending, Label: "Pending", Color: "214"},
		{Key: models.StatusInProgress, Label: "In Progress", Color: "39"},
		{Key: models.StatusInReview, Label: "In Review", Color: "141"},
		{Key: models.StatusCompleted, Label: "Completed", Color: "42"},
		{Key: models.StatusBlocked, Label: "Blocked", Color: "196"},
	}
}

// Index returns the position of key, or -1.
func (c Columns) Index(key models.Status) int {
	for i, col := range c {
		if col.Key == key {
			return i
		}
	}
	return -1
}

// Lookup returns the column keyed by key.
func (c Columns) Lookup(key models.Status) (Column, bool) {
	if i := c.Index(key); i >= 0 {
		return c[i], true
	}
	return Column{}, false
}

// Valid reports whether key names one of the columns.
func (c Columns) Valid(key models.Status) bool {
	return c.Index(key) >= 0
}

// Label returns the display label for key, falling back to the raw key.
func (c Columns) Label(key models.Status) string {
	if col, ok := c.Lookup(key); ok {
		return col.Label
	}
	return string(key)
}

// Initial is the status new cards start in.
func (c Columns) Initial() models.Status {
	if len(c) == 0 {
		return models.StatusDraft
	}
	return c[0].Key
}
