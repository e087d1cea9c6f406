package board

import "github.com/ldi/trellis/pkg/models"

// DropTarget is where a dragged card can land: either a column container or
// another card. The two variants are ColumnTarget and CardTarget.
type DropTarget interface {
	// TargetID identifies the region; ids are unique across both variants.
	TargetID() string
	dropTarget()
}

type ColumnTarget struct {
	Key models.Status
}

func (t ColumnTarget) TargetID() string { return "column:" + string(t.Key) }
func (ColumnTarget) dropTarget()        {}

type CardTarget struct {
	CardID string
}

func (t CardTarget) TargetID() string { return "card:" + t.CardID }
func (CardTarget) dropTarget()        {}

// Region is a droppable area on screen.
type Region struct {
	Target DropTarget
	Bounds Rect
}

// ResolveTarget maps a drop target to the status a card dropped there should
// get. A column resolves to its own key; a card resolves to that card's
// current status, so dropping on a card means joining its column.
func ResolveTarget(target DropTarget, cards []Card) (models.Status, bool) {
	switch t := target.(type) {
	case ColumnTarget:
		return t.Key, true
	case CardTarget:
		c, ok := FindCard(cards, t.CardID)
		if !ok {
			return "", false
		}
		return c.Status, true
	default:
		return "", false
	}
}

// ClosestCenter returns the region whose center is nearest the center of
// active. Regions are scanned in order and a later region only wins when it
// is strictly closer, so ties go to the earlier one.
func ClosestCenter(active Rect, regions []Region) (DropTarget, bool) {
	var best DropTarget
	bestDist := 0.0
	for _, r := range regions {
		if r.Bounds.Empty() {
			continue
		}
		d := centerDistance(active, r.Bounds)
		if best == nil || d < bestDist {
			best = r.Target
			bestDist = d
		}
	}
	return best, best != nil
}

// SameTarget reports whether a and b identify the same region.
func SameTarget(a, b DropTarget) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.TargetID() == b.TargetID()
}
