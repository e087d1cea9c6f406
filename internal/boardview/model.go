package boardview

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/ui/components"
	"github.com/ldi/trellis/pkg/models"
)

const (
	headerHeight = 1
	helpHeight   = 1
	wheelStep    = 3
	toastWidth   = 40

	DefaultToastDuration  = 4 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Options configures a board. Zero fields take defaults.
type Options struct {
	Columns            board.Columns
	ActivationDistance int
	ToastDuration      time.Duration
	RequestTimeout     time.Duration
	Keys               *KeyMap
	Logger             log.FieldLogger
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if len(o.Columns) == 0 {
		o.Columns = board.DefaultColumns()
	}
	if o.ActivationDistance <= 0 {
		o.ActivationDistance = board.DefaultActivationDistance
	}
	if o.ToastDuration <= 0 {
		o.ToastDuration = DefaultToastDuration
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Keys == nil {
		keys := DefaultKeyMap
		o.Keys = &keys
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Model is the board program: one column per status, cards grouped by their
// server-confirmed status, and a drag controller that turns gestures into
// status transitions.
type Model struct {
	scope      board.Scope
	columns    board.Columns
	source     Source
	service    *board.TransitionService
	controller *board.Controller
	notices    *NoticeQueue
	keys       KeyMap
	logger     log.FieldLogger
	now        func() time.Time

	toastDuration  time.Duration
	requestTimeout time.Duration

	cards      []board.Card
	groups     map[models.Status][]board.Card
	loaded     bool
	loadErr    error
	fetchSeq   int
	appliedSeq int
	inFlight   int

	views     []*components.ColumnView
	toasts    *components.Toasts
	regions   []board.Region
	cardRects map[string]board.Rect

	focusCol    int
	focusRow    int
	scrollFocus bool
	detailID    string

	width        int
	height       int
	colWidth     int
	boardHeight  int
	layoutDetail bool
	ready        bool
	quitting     bool
}

func New(backend Backend, scope board.Scope, opts Options) *Model {
	opts = opts.withDefaults()
	notices := NewNoticeQueue()

	m := &Model{
		scope:          scope,
		columns:        opts.Columns,
		source:         backend,
		controller:     board.NewController(opts.Columns, opts.ActivationDistance),
		notices:        notices,
		keys:           *opts.Keys,
		logger:         opts.Logger.WithField("board", scope.ID),
		now:            opts.Now,
		toastDuration:  opts.ToastDuration,
		requestTimeout: opts.RequestTimeout,
		groups:         board.GroupByStatus(nil, opts.Columns),
		toasts:         components.NewToasts(toastWidth),
		cardRects:      make(map[string]board.Rect),
	}
	m.service = board.NewTransitionService(backend, notices, opts.Columns,
		board.WithClock(opts.Now),
		board.WithLogger(m.logger),
	)
	m.controller.SetObserver(func(from, to board.State) {
		m.logger.WithFields(log.Fields{"from": from, "to": to}).Debug("drag state changed")
	})
	for _, col := range opts.Columns {
		m.views = append(m.views, components.NewColumnView(col, 0, 0))
	}
	return m
}

// Notifier is where notices for this board should be sent from outside the
// UI loop.
func (m *Model) Notifier() board.Notifier { return m.notices }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.notices.listen())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()

	case tea.KeyMsg:
		cmd = m.handleKey(msg)

	case tea.MouseMsg:
		cmd = m.handleMouse(msg)

	case cardsLoadedMsg:
		cmd = m.handleLoaded(msg)

	case transitionDoneMsg:
		m.inFlight--
		if msg.result.Refresh {
			cmd = m.fetch()
		}

	case noticeMsg:
		cmd = tea.Batch(m.pushToast(msg.notice), m.notices.listen())

	case toastFadeMsg:
		m.toasts.Dismiss(msg.id)
	}

	m.sync()
	return m, cmd
}

func (m *Model) fetch() tea.Cmd {
	m.fetchSeq++
	seq := m.fetchSeq
	source, scope, timeout := m.source, m.scope, m.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cards, err := source.Cards(ctx, scope)
		return cardsLoadedMsg{seq: seq, cards: cards, err: err}
	}
}

func (m *Model) handleLoaded(msg cardsLoadedMsg) tea.Cmd {
	if msg.seq <= m.appliedSeq {
		return nil
	}
	m.appliedSeq = msg.seq

	if msg.err != nil {
		m.loadErr = msg.err
		m.logger.WithError(msg.err).WithField(board.NoticeField, true).Warn("failed to load cards")
		return m.pushToast(board.Notice{Level: board.NoticeError, Message: "Failed to load cards"})
	}
	m.loadErr = nil
	m.loaded = true
	m.setCards(msg.cards)
	return nil
}

// setCards replaces the card list wholesale and regroups it.
func (m *Model) setCards(cards []board.Card) {
	focused, hadFocus := m.focusedCard()

	m.cards = cards
	m.groups = board.GroupByStatus(cards, m.columns)
	if stray := board.Ungrouped(cards, m.columns); len(stray) > 0 {
		m.logger.WithField("count", len(stray)).Debug("cards with unknown status left off the board")
	}

	if m.detailID != "" {
		if _, ok := board.FindCard(cards, m.detailID); !ok {
			m.detailID = ""
		}
	}
	if hadFocus {
		m.focusCard(focused.ID)
	}
	m.clampFocus()
}

// requestTransition hands an outcome to the transition service without
// waiting for it. Each drop gets its own request.
func (m *Model) requestTransition(card board.Card, target models.Status) tea.Cmd {
	m.inFlight++
	service, timeout := m.service, m.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return transitionDoneMsg{result: service.Request(ctx, card, target)}
	}
}

func (m *Model) pushToast(n board.Notice) tea.Cmd {
	id := m.toasts.Push(n)
	return tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastFadeMsg{id: id}
	})
}

// resolve acts on the end of a gesture.
func (m *Model) resolve(out board.Outcome) tea.Cmd {
	logger := m.logger.WithField("card", out.CardID)
	switch out.Kind {
	case board.OutcomeClick:
		m.focusCard(out.CardID)
		m.detailID = out.CardID
	case board.OutcomeTransition:
		m.focusCard(out.CardID)
		return m.requestTransition(out.Card, out.Target)
	case board.OutcomeNoOp:
		logger.Debug("dropped on own column")
	case board.OutcomeNoTarget:
		logger.Debug("dropped outside the board")
	case board.OutcomeCancelled:
		logger.Debug("drag cancelled")
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return tea.Quit
	}
	if m.controller.Dragging() {
		return m.handleDragKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.controller.Cancel()
		m.detailID = ""
	case key.Matches(msg, m.keys.Up):
		m.moveFocus(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveFocus(0, 1)
	case key.Matches(msg, m.keys.Left):
		m.moveFocus(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.moveFocus(1, 0)
	case key.Matches(msg, m.keys.Lift):
		m.lift()
	case key.Matches(msg, m.keys.Open):
		if card, ok := m.focusedCard(); ok {
			m.detailID = card.ID
		}
	case key.Matches(msg, m.keys.Refresh):
		return m.fetch()
	}
	return nil
}

func (m *Model) handleDragKey(msg tea.KeyMsg) tea.Cmd {
	session, _ := m.controller.Session()
	if key.Matches(msg, m.keys.Cancel) {
		return m.resolve(m.controller.Cancel())
	}
	if session.Sensor != board.SensorKeyboard {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Lift):
		return m.resolve(m.controller.Confirm(m.cards))
	case key.Matches(msg, m.keys.Up):
		m.controller.Nudge(board.Up, m.regions)
	case key.Matches(msg, m.keys.Down):
		m.controller.Nudge(board.Down, m.regions)
	case key.Matches(msg, m.keys.Left):
		m.controller.Nudge(board.Left, m.regions)
	case key.Matches(msg, m.keys.Right):
		m.controller.Nudge(board.Right, m.regions)
	}
	return nil
}

func (m *Model) lift() {
	card, ok := m.focusedCard()
	if !ok {
		return
	}
	origin, ok := m.cardRects[card.ID]
	if !ok {
		m.views[m.focusCol].ScrollTo(m.focusRow)
		m.computeRegions()
		if origin, ok = m.cardRects[card.ID]; !ok {
			return
		}
	}
	m.controller.Lift(card.ID, origin, m.regions)
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	at := board.Point{X: msg.X, Y: msg.Y}

	// A pointer gesture in progress takes every event until release. A new
	// left press means the release was lost, so it ends the gesture there.
	session, dragging := m.controller.Session()
	if m.controller.Pressed() || (dragging && session.Sensor == board.SensorPointer) {
		switch {
		case msg.Action == tea.MouseActionMotion:
			m.controller.Move(at, m.regions)
		case msg.Action == tea.MouseActionRelease,
			msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
			return m.resolve(m.controller.Release(at, m.regions, m.cards))
		}
		return nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if col := m.columnAt(at); col >= 0 {
			m.views[col].ScrollBy(-wheelStep)
		}
	case tea.MouseButtonWheelDown:
		if col := m.columnAt(at); col >= 0 {
			m.views[col].ScrollBy(wheelStep)
		}
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress || dragging {
			return nil
		}
		if id, rect, ok := m.cardAt(at); ok {
			m.focusCard(id)
			m.controller.Press(id, rect, at)
		}
	}
	return nil
}

func (m *Model) columnAt(p board.Point) int {
	for i := range m.columns {
		if m.columnRect(i).Contains(p) {
			return i
		}
	}
	return -1
}

func (m *Model) cardAt(p board.Point) (string, board.Rect, bool) {
	for id, r := range m.cardRects {
		if r.Contains(p) {
			return id, r, true
		}
	}
	return "", board.Rect{}, false
}

func (m *Model) focusedCard() (board.Card, bool) {
	if m.focusCol < 0 || m.focusCol >= len(m.columns) {
		return board.Card{}, false
	}
	cards := m.groups[m.columns[m.focusCol].Key]
	if m.focusRow < 0 || m.focusRow >= len(cards) {
		return board.Card{}, false
	}
	return cards[m.focusRow], true
}

func (m *Model) focusCard(id string) {
	for i, col := range m.columns {
		for j, c := range m.groups[col.Key] {
			if c.ID == id {
				m.focusCol, m.focusRow = i, j
				m.scrollFocus = true
				return
			}
		}
	}
}

func (m *Model) moveFocus(dx, dy int) {
	if len(m.columns) == 0 {
		return
	}
	m.focusCol += dx
	m.focusRow += dy
	m.clampFocus()
	m.scrollFocus = true
}

func (m *Model) clampFocus() {
	if m.focusCol < 0 {
		m.focusCol = 0
	}
	if m.focusCol >= len(m.columns) {
		m.focusCol = len(m.columns) - 1
	}
	if m.focusCol < 0 {
		return
	}
	n := len(m.groups[m.columns[m.focusCol].Key])
	if m.focusRow >= n {
		m.focusRow = n - 1
	}
	if m.focusRow < 0 {
		m.focusRow = 0
	}
}

func (m *Model) detailWidth() int {
	w := m.width / 3
	if w > maxDetailWidth {
		w = maxDetailWidth
	}
	return w
}

func (m *Model) recalculateLayout() {
	m.layoutDetail = m.detailID != ""
	boardWidth := m.width
	if m.layoutDetail {
		boardWidth -= m.detailWidth()
	}
	m.boardHeight = m.height - headerHeight - helpHeight
	if m.boardHeight < 0 {
		m.boardHeight = 0
	}
	if len(m.columns) > 0 {
		m.colWidth = boardWidth / len(m.columns)
	}
	for _, v := range m.views {
		v.SetSize(m.colWidth, m.boardHeight)
	}
	m.scrollFocus = true
}

func (m *Model) columnRect(i int) board.Rect {
	return board.Rect{X: i * m.colWidth, Y: headerHeight, W: m.colWidth, H: m.boardHeight}
}

// sync re-renders every column from the current cards and drag state and
// recomputes the droppable regions.
func (m *Model) sync() {
	if !m.ready {
		return
	}
	if (m.detailID != "") != m.layoutDetail {
		m.recalculateLayout()
	}

	session, dragging := m.controller.Session()
	hoveredCol, hoveredCard := -1, ""
	if dragging && session.HoveredTarget != nil {
		if status, ok := board.ResolveTarget(session.HoveredTarget, m.cards); ok {
			hoveredCol = m.columns.Index(status)
		}
		if t, ok := session.HoveredTarget.(board.CardTarget); ok {
			hoveredCard = t.CardID
		}
	}
	focused, hasFocus := m.focusedCard()
	now := m.now()

	for i, col := range m.columns {
		v := m.views[i]
		cards := m.groups[col.Key]
		blocks := make([]string, 0, len(cards))
		for _, c := range cards {
			state := cardNormal
			switch {
			case dragging && c.ID == session.ActiveCardID:
				state = cardPlaceholder
			case c.ID == hoveredCard:
				state = cardTarget
			case !dragging && hasFocus && c.ID == focused.ID:
				state = cardFocused
			}
			blocks = append(blocks, renderCard(c, v.CardWidth(), state, now))
		}
		v.SetCards(blocks)
		v.SetHovered(i == hoveredCol)
	}

	if m.scrollFocus && hasFocus && !dragging {
		m.views[m.focusCol].ScrollTo(m.focusRow)
	}
	m.scrollFocus = false
	m.computeRegions()
}

// computeRegions lists the droppable regions in document order: each column
// followed by its visible cards.
func (m *Model) computeRegions() {
	m.regions = m.regions[:0]
	m.cardRects = make(map[string]board.Rect, len(m.cards))
	for i, col := range m.columns {
		v := m.views[i]
		colRect := m.columnRect(i)
		m.regions = append(m.regions, board.Region{Target: board.ColumnTarget{Key: col.Key}, Bounds: colRect})

		bx, by := v.BodyOrigin()
		for j, c := range m.groups[col.Key] {
			y, h, ok := v.CardSpan(j)
			if !ok {
				continue
			}
			r := board.Rect{X: colRect.X + bx, Y: colRect.Y + by + y, W: v.CardWidth(), H: h}
			m.cardRects[c.ID] = r
			m.regions = append(m.regions, board.Region{Target: board.CardTarget{CardID: c.ID}, Bounds: r})
		}
	}
}
