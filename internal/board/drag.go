package board

import (
	"fmt"
	"math"

	"github.com/ldi/trellis/pkg/models"
)

// DefaultActivationDistance is how far, in cells, the pointer has to travel
// after pressing a card before the press becomes a drag.
const DefaultActivationDistance = 2

type State int

const (
	StateIdle State = iota
	StateDragging
	StateResolving
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateResolving:
		return "resolving"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sensor is the input device driving a drag.
type Sensor int

const (
	SensorPointer Sensor = iota
	SensorKeyboard
)

// Session is the state of one drag gesture, from lift to drop or cancel.
type Session struct {
	ActiveCardID  string
	HoveredTarget DropTarget

	// Origin is the lifted card's slot; Offset is how far the floating
	// copy has moved away from it.
	Origin Rect
	Offset Point
	Sensor Sensor
}

// Overlay is where the floating copy of the card is drawn.
func (s Session) Overlay() Rect {
	return s.Origin.Translate(s.Offset)
}

type OutcomeKind int

const (
	// OutcomeNone means the input did not end a gesture.
	OutcomeNone OutcomeKind = iota
	// OutcomeClick is a press released before the activation distance.
	OutcomeClick
	// OutcomeNoTarget is a drop outside every droppable region.
	OutcomeNoTarget
	// OutcomeCancelled is an aborted drag.
	OutcomeCancelled
	// OutcomeNoOp is a drop that resolves to the card's own status.
	OutcomeNoOp
	// OutcomeTransition asks for Card to be moved to Target.
	OutcomeTransition
)

// Outcome is what ending a gesture amounts to.
type Outcome struct {
	Kind   OutcomeKind
	CardID string
	Card   Card
	Target models.Status
}

type press struct {
	cardID string
	origin Rect
	at     Point
}

// Controller runs the drag state machine for one board. At most one session
// exists at a time; it is dropped as soon as the gesture ends, whatever the
// outcome.
type Controller struct {
	columns    Columns
	activation float64

	state   State
	session Session
	pending *press
	pointer Point

	observer func(from, to State)
}

func NewController(columns Columns, activationDistance int) *Controller {
	if activationDistance < 0 {
		activationDistance = 0
	}
	return &Controller{
		columns:    columns,
		activation: float64(activationDistance),
	}
}

// SetObserver registers fn to be called on every state change.
func (c *Controller) SetObserver(fn func(from, to State)) {
	c.observer = fn
}

func (c *Controller) State() State { return c.state }

// Dragging reports whether a drag session is active.
func (c *Controller) Dragging() bool { return c.state == StateDragging }

// Session returns a copy of the active session.
func (c *Controller) Session() (Session, bool) {
	if c.state != StateDragging {
		return Session{}, false
	}
	return c.session, true
}

// Pressed reports whether a pointer press is waiting to become a click or a drag.
func (c *Controller) Pressed() bool { return c.pending != nil }

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	if c.observer != nil {
		c.observer(from, s)
	}
}

// Press records a pointer press on a card. Nothing is lifted until the
// pointer moves past the activation distance.
func (c *Controller) Press(cardID string, origin Rect, at Point) {
	if c.state != StateIdle {
		return
	}
	c.pending = &press{cardID: cardID, origin: origin, at: at}
}

// Move feeds a pointer position. It starts the drag once the activation
// distance is exceeded and then re-targets on every call. It reports whether
// the visible drag state changed.
func (c *Controller) Move(at Point, regions []Region) bool {
	switch c.state {
	case StateIdle:
		if c.pending == nil {
			return false
		}
		if displacement(at, c.pending.at) <= c.activation {
			return false
		}
		c.session = Session{
			ActiveCardID: c.pending.cardID,
			Origin:       c.pending.origin,
			Offset:       at.Sub(c.pending.at),
			Sensor:       SensorPointer,
		}
		c.pointer = at
		c.setState(StateDragging)
		c.retarget(regions)
		return true

	case StateDragging:
		if c.session.Sensor != SensorPointer || c.pending == nil {
			return false
		}
		offset := at.Sub(c.pending.at)
		if offset == c.session.Offset {
			return false
		}
		c.session.Offset = offset
		c.pointer = at
		c.retarget(regions)
		return true
	}
	return false
}

// Release ends a pointer gesture. A press released within the activation
// distance is a click; anything further is a drop at at.
func (c *Controller) Release(at Point, regions []Region, cards []Card) Outcome {
	switch c.state {
	case StateIdle:
		if c.pending == nil {
			return Outcome{}
		}
		// Motion reports can be dropped, so a release far from the press
		// is still a drag.
		if displacement(at, c.pending.at) > c.activation {
			c.Move(at, regions)
			return c.drop(cards)
		}
		cardID := c.pending.cardID
		c.pending = nil
		return Outcome{Kind: OutcomeClick, CardID: cardID}

	case StateDragging:
		if c.session.Sensor != SensorPointer {
			return Outcome{}
		}
		c.Move(at, regions)
		return c.drop(cards)
	}
	return Outcome{}
}

// Lift starts a keyboard drag of the focused card.
func (c *Controller) Lift(cardID string, origin Rect, regions []Region) bool {
	if c.state != StateIdle {
		return false
	}
	c.pending = nil
	c.session = Session{
		ActiveCardID: cardID,
		Origin:       origin,
		Sensor:       SensorKeyboard,
	}
	c.setState(StateDragging)
	c.retarget(regions)
	return true
}

// Direction is an arrow key direction for the keyboard sensor.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Nudge moves a keyboard-lifted card to the nearest droppable region in the
// given direction. It reports whether the card moved.
func (c *Controller) Nudge(dir Direction, regions []Region) bool {
	if c.state != StateDragging || c.session.Sensor != SensorKeyboard {
		return false
	}

	cx, cy := c.session.Overlay().Center()
	var next *Region
	best := math.Inf(1)
	for i := range regions {
		r := regions[i]
		if r.Bounds.Empty() || c.isActiveCard(r.Target) {
			continue
		}
		rx, ry := r.Bounds.Center()
		dx, dy := rx-cx, ry-cy
		var ahead bool
		switch dir {
		case Up:
			ahead = dy < 0
		case Down:
			ahead = dy > 0
		case Left:
			ahead = dx < 0
		case Right:
			ahead = dx > 0
		}
		if !ahead {
			continue
		}
		if d := math.Hypot(dx, dy); d < best {
			best = d
			next = &regions[i]
		}
	}
	if next == nil {
		return false
	}

	ox, oy := c.session.Origin.Center()
	nx, ny := next.Bounds.Center()
	c.session.Offset = Point{X: int(math.Round(nx - ox)), Y: int(math.Round(ny - oy))}
	c.session.HoveredTarget = next.Target
	return true
}

// Confirm drops a keyboard-lifted card where it hovers.
func (c *Controller) Confirm(cards []Card) Outcome {
	if c.state != StateDragging || c.session.Sensor != SensorKeyboard {
		return Outcome{}
	}
	return c.drop(cards)
}

// Cancel aborts the active drag or pending press without side effects.
func (c *Controller) Cancel() Outcome {
	c.pending = nil
	if c.state != StateDragging {
		return Outcome{}
	}
	cardID := c.session.ActiveCardID
	c.setState(StateCancelled)
	c.reset()
	return Outcome{Kind: OutcomeCancelled, CardID: cardID}
}

func (c *Controller) reset() {
	c.session = Session{}
	c.pending = nil
	c.setState(StateIdle)
}

func (c *Controller) drop(cards []Card) Outcome {
	s := c.session
	c.setState(StateResolving)
	c.reset()

	out := Outcome{CardID: s.ActiveCardID}
	card, ok := FindCard(cards, s.ActiveCardID)
	if !ok || s.HoveredTarget == nil {
		out.Kind = OutcomeNoTarget
		return out
	}
	out.Card = card

	target, ok := ResolveTarget(s.HoveredTarget, cards)
	if !ok || !c.columns.Valid(target) {
		out.Kind = OutcomeNoTarget
		return out
	}
	out.Target = target

	if target == card.Status {
		out.Kind = OutcomeNoOp
		return out
	}
	out.Kind = OutcomeTransition
	return out
}

// retarget recomputes the hovered region. A pointer that is not over any
// region hovers nothing, so releasing it there drops nowhere.
func (c *Controller) retarget(regions []Region) {
	if c.session.Sensor == SensorPointer && !overAny(c.pointer, regions) {
		c.session.HoveredTarget = nil
		return
	}
	candidates := make([]Region, 0, len(regions))
	for _, r := range regions {
		if !c.isActiveCard(r.Target) {
			candidates = append(candidates, r)
		}
	}
	target, _ := ClosestCenter(c.session.Overlay(), candidates)
	c.session.HoveredTarget = target
}

func (c *Controller) isActiveCard(t DropTarget) bool {
	ct, ok := t.(CardTarget)
	return ok && ct.CardID == c.session.ActiveCardID
}

func overAny(p Point, regions []Region) bool {
	for _, r := range regions {
		if r.Bounds.Contains(p) {
			return true
		}
	}
	return false
}
