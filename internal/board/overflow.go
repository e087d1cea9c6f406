package board

// OverflowEpsilon is how far, in lines, a column must be scrolled away from
// an edge before the indicator for that edge shows.
const OverflowEpsilon = 0.5

// Overflow tells a column which "more" indicators to draw.
type Overflow struct {
	ShowTop    bool
	ShowBottom bool
}

// MeasureOverflow computes the indicators for a scroll container of the
// given viewport and content heights scrolled to offset.
func MeasureOverflow(offset, viewport, content float64) Overflow {
	if content <= viewport {
		return Overflow{}
	}
	maxOffset := content - viewport
	return Overflow{
		ShowTop:    offset > OverflowEpsilon,
		ShowBottom: maxOffset-offset > OverflowEpsilon,
	}
}

// OverflowObserver tracks one column's scroll state. It is recomputed on
// scroll and on content resize and knows nothing about drags.
type OverflowObserver struct {
	offset   int
	viewport int
	content  int
	state    Overflow
}

// Scroll records a new scroll offset.
func (o *OverflowObserver) Scroll(offset int) Overflow {
	o.offset = offset
	return o.recompute()
}

// Resize records new viewport and content heights.
func (o *OverflowObserver) Resize(viewport, content int) Overflow {
	o.viewport = viewport
	o.content = content
	return o.recompute()
}

func (o *OverflowObserver) State() Overflow { return o.state }

func (o *OverflowObserver) recompute() Overflow {
	o.state = MeasureOverflow(float64(o.offset), float64(o.viewport), float64(o.content))
	return o.state
}
