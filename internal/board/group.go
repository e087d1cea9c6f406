package board

import "github.com/ldi/trellis/pkg/models"

// GroupByStatus partitions cards into columns by their status. Every column
// key is present in the result, with an empty slice when no card matches.
// Cards keep their input order within a column. Cards whose status is not a
// column key are left out.
//
// The result is derived from cards alone; callers must regroup whenever the
// card list changes instead of keeping a previous grouping around.
func GroupByStatus(cards []Card, columns Columns) map[models.Status][]Card {
	groups := make(map[models.Status][]Card, len(columns))
	for _, col := range columns {
		groups[col.Key] = []Card{}
	}
	for _, c := range cards {
		if list, ok := groups[c.Status]; ok {
			groups[c.Status] = append(list, c)
		}
	}
	return groups
}

// Ungrouped returns the cards whose status matches no column.
func Ungrouped(cards []Card, columns Columns) []Card {
	var out []Card
	for _, c := range cards {
		if !columns.Valid(c.Status) {
			out = append(out, c)
		}
	}
	return out
}
