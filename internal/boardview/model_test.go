package boardview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/pkg/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	cards     []board.Card
	updates   []models.StatusUpdate
	updateErr error
	loadErr   error
}

func (f *fakeBackend) Cards(ctx context.Context, scope board.Scope) ([]board.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]board.Card(nil), f.cards...), nil
}

func (f *fakeBackend) UpdateStatus(ctx context.Context, kind board.Kind, u models.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.cards {
		if f.cards[i].ID == u.ID {
			f.cards[i].Status = u.Status
			if u.Progress != nil {
				f.cards[i].Progress = *u.Progress
			}
		}
	}
	return nil
}

func (f *fakeBackend) sent() []models.StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StatusUpdate(nil), f.updates...)
}

type rejectErr struct{ msg string }

func (e rejectErr) Error() string         { return "rejected: " + e.msg }
func (e rejectErr) ServerMessage() string { return e.msg }

func testNow() time.Time {
	return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
}

func baseCards() []board.Card {
	return []board.Card{
		{ID: "T1", Kind: board.KindTask, Title: "Payment form", Status: models.StatusPending, Progress: 40},
		{ID: "T2", Kind: board.KindTask, Title: "Cart totals", Status: models.StatusInProgress, Progress: 10},
	}
}

// newTestModel returns a loaded 120x40 board: six columns of width 20, so
// the pending column spans x 20..39 and its first card sits at (21, 4).
func newTestModel(t *testing.T, cards []board.Card) (*Model, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{cards: cards}
	m := New(backend, board.ModuleScope("M1", "Checkout", "Website"), Options{Now: testNow})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	load(t, m)
	return m, backend
}

func load(t *testing.T, m *Model) {
	t.Helper()
	msg := m.fetch()()
	if _, ok := msg.(cardsLoadedMsg); !ok {
		t.Fatalf("expected cardsLoadedMsg, got %T", msg)
	}
	m.Update(msg)
}

func send(m *Model, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func mouse(x, y int, button tea.MouseButton, action tea.MouseAction) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Button: button, Action: action}
}

func ids(cards []board.Card) []string {
	var out []string
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestModelLoadsAndGroups(t *testing.T) {
	m, _ := newTestModel(t, baseCards())

	if got := ids(m.groups[models.StatusPending]); len(got) != 1 || got[0] != "T1" {
		t.Errorf("expected T1 in pending, got %v", got)
	}
	if got := ids(m.groups[models.StatusInProgress]); len(got) != 1 || got[0] != "T2" {
		t.Errorf("expected T2 in in_progress, got %v", got)
	}

	r, ok := m.cardRects["T1"]
	if !ok {
		t.Fatal("expected T1 to have a region")
	}
	if r.X != 21 || r.Y != 4 || r.W != 17 || r.H != 5 {
		t.Errorf("unexpected T1 rect %+v", r)
	}

	view := m.View()
	if !strings.Contains(view, "Website / Checkout · Tasks") {
		t.Errorf("expected scope title in header")
	}
	if !strings.Contains(view, "2 cards") {
		t.Errorf("expected card count in header")
	}
}

func TestModelSkeletonWhileLoading(t *testing.T) {
	m := New(&fakeBackend{}, board.ModuleScope("M1", "Checkout", ""), Options{Now: testNow})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("expected Initializing before the first size, got %q", got)
	}
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if !strings.Contains(m.View(), "░") {
		t.Errorf("expected skeleton board before the first load")
	}
}

// The end-to-end keyboard path: T1 goes from pending to in progress with
// progress passed through, one success toast, and T1 shows up only in the new
// column after the refetch.
func TestModelKeyboardTransition(t *testing.T) {
	m, backend := newTestModel(t, baseCards())

	send(m, keyMsg("l"))
	if card, ok := m.focusedCard(); !ok || card.ID != "T1" {
		t.Fatalf("expected focus on T1, got %+v", card)
	}

	send(m, keyMsg("space"))
	session, ok := m.controller.Session()
	if !ok || session.ActiveCardID != "T1" || session.Sensor != board.SensorKeyboard {
		t.Fatalf("expected keyboard lift of T1, got %+v", session)
	}

	send(m, keyMsg("l"))
	cmd := send(m, keyMsg("space"))
	if cmd == nil {
		t.Fatal("expected a transition command")
	}
	if m.controller.Dragging() {
		t.Errorf("controller must be idle right after the drop")
	}
	if m.inFlight != 1 {
		t.Errorf("expected 1 request in flight, got %d", m.inFlight)
	}
	// Nothing moves before the server answers.
	if got := ids(m.groups[models.StatusPending]); len(got) != 1 || got[0] != "T1" {
		t.Errorf("T1 must stay in pending until refetch, got %v", got)
	}

	done := cmd()
	refetch := send(m, done)
	if refetch == nil {
		t.Fatal("expected a refetch after success")
	}
	if m.inFlight != 0 {
		t.Errorf("expected no request in flight, got %d", m.inFlight)
	}

	updates := backend.sent()
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(updates))
	}
	u := updates[0]
	if u.ID != "T1" || u.Status != models.StatusInProgress || u.Progress == nil || *u.Progress != 40 || u.CompletedAt != nil {
		t.Errorf("unexpected payload %+v", u)
	}

	send(m, refetch())
	if got := ids(m.groups[models.StatusPending]); len(got) != 0 {
		t.Errorf("expected pending to be empty, got %v", got)
	}
	if got := ids(m.groups[models.StatusInProgress]); len(got) != 2 {
		t.Errorf("expected T1 and T2 in in_progress, got %v", got)
	}

	fade := send(m, m.notices.listen()())
	if m.toasts.Len() != 1 {
		t.Fatalf("expected one toast, got %d", m.toasts.Len())
	}
	toast := m.toasts.Items()[0]
	if toast.Notice.Level != board.NoticeSuccess || toast.Notice.Message != "Task moved to In Progress" {
		t.Errorf("unexpected toast %+v", toast.Notice)
	}
	if fade == nil {
		t.Errorf("expected a fade command")
	}
	send(m, toastFadeMsg{id: toast.ID})
	if m.toasts.Len() != 0 {
		t.Errorf("expected toast to fade")
	}
}

func TestModelPointerDragToColumn(t *testing.T) {
	m, backend := newTestModel(t, baseCards())

	send(m, mouse(25, 6, tea.MouseButtonLeft, tea.MouseActionPress))
	if m.controller.Dragging() {
		t.Fatal("a press alone must not start a drag")
	}
	send(m, mouse(65, 6, tea.MouseButtonLeft, tea.MouseActionMotion))
	session, ok := m.controller.Session()
	if !ok {
		t.Fatal("expected drag after moving past the threshold")
	}
	if !board.SameTarget(session.HoveredTarget, board.ColumnTarget{Key: models.StatusInReview}) {
		t.Errorf("expected in_review column hovered, got %v", session.HoveredTarget)
	}
	if !strings.Contains(m.View(), "to In Review") {
		t.Errorf("expected drag status in header")
	}

	cmd := send(m, mouse(65, 6, tea.MouseButtonNone, tea.MouseActionRelease))
	if cmd == nil {
		t.Fatal("expected a transition command")
	}
	send(m, cmd())

	updates := backend.sent()
	if len(updates) != 1 || updates[0].Status != models.StatusInReview {
		t.Errorf("expected one in_review update, got %+v", updates)
	}
}

func TestModelPressDuringPointerDragEndsIt(t *testing.T) {
	m, backend := newTestModel(t, baseCards())

	send(m, mouse(25, 6, tea.MouseButtonLeft, tea.MouseActionPress))
	send(m, mouse(65, 6, tea.MouseButtonLeft, tea.MouseActionMotion))
	if !m.controller.Dragging() {
		t.Fatal("expected a drag")
	}

	// The release happened outside the terminal; the next press drops there.
	cmd := send(m, mouse(65, 6, tea.MouseButtonLeft, tea.MouseActionPress))
	if m.controller.Dragging() || m.controller.Pressed() {
		t.Errorf("expected the press to end the gesture")
	}
	if cmd == nil {
		t.Fatal("expected a transition command")
	}
	send(m, cmd())

	updates := backend.sent()
	if len(updates) != 1 || updates[0].Status != models.StatusInReview {
		t.Errorf("expected one in_review update, got %+v", updates)
	}
}

func TestModelClickOpensDetail(t *testing.T) {
	m, backend := newTestModel(t, baseCards())

	send(m, mouse(25, 6, tea.MouseButtonLeft, tea.MouseActionPress))
	send(m, mouse(26, 6, tea.MouseButtonLeft, tea.MouseActionMotion))
	cmd := send(m, mouse(26, 6, tea.MouseButtonNone, tea.MouseActionRelease))
	if cmd != nil {
		t.Errorf("a click must not issue a command")
	}
	if m.detailID != "T1" {
		t.Fatalf("expected detail for T1, got %q", m.detailID)
	}
	if !strings.Contains(m.View(), "esc to close") {
		t.Errorf("expected detail panel in view")
	}
	if len(backend.sent()) != 0 {
		t.Errorf("a click must not update status")
	}

	send(m, keyMsg("esc"))
	if m.detailID != "" {
		t.Errorf("expected esc to close the detail panel")
	}

	send(m, keyMsg("enter"))
	if m.detailID != "T1" {
		t.Errorf("expected enter to open the focused card")
	}
}

func TestModelDropsWithoutRequest(t *testing.T) {
	tests := []struct {
		name  string
		steps []tea.Msg
	}{
		{
			name:  "drop on own column",
			steps: []tea.Msg{keyMsg("l"), keyMsg("space"), keyMsg("space")},
		},
		{
			name:  "keyboard cancel",
			steps: []tea.Msg{keyMsg("l"), keyMsg("space"), keyMsg("l"), keyMsg("esc")},
		},
		{
			name: "pointer cancel",
			steps: []tea.Msg{
				mouse(25, 6, tea.MouseButtonLeft, tea.MouseActionPress),
				mouse(65, 6, tea.MouseButtonLeft, tea.MouseActionMotion),
				keyMsg("esc"),
				mouse(65, 6, tea.MouseButtonNone, tea.MouseActionRelease),
			},
		},
		{
			name: "drop outside the board",
			steps: []tea.Msg{
				mouse(25, 6, tea.MouseButtonLeft, tea.MouseActionPress),
				mouse(25, 39, tea.MouseButtonLeft, tea.MouseActionMotion),
				mouse(25, 39, tea.MouseButtonNone, tea.MouseActionRelease),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, backend := newTestModel(t, baseCards())
			for _, step := range tt.steps {
				if cmd := send(m, step); cmd != nil {
					t.Fatalf("unexpected command after %v", step)
				}
			}
			if m.controller.Dragging() || m.controller.Pressed() {
				t.Errorf("expected the gesture to be over")
			}
			if len(backend.sent()) != 0 {
				t.Errorf("expected no update, got %+v", backend.sent())
			}
			if len(m.notices.ch) != 0 {
				t.Errorf("expected no notice")
			}
			if m.inFlight != 0 {
				t.Errorf("expected nothing in flight")
			}
		})
	}
}

func TestModelFailedTransitionKeepsCard(t *testing.T) {
	m, backend := newTestModel(t, baseCards())
	backend.updateErr = rejectErr{msg: "Module is locked"}

	send(m, keyMsg("l"))
	send(m, keyMsg("space"))
	send(m, keyMsg("l"))
	cmd := send(m, keyMsg("space"))
	if refetch := send(m, cmd()); refetch != nil {
		t.Errorf("a failed request must not refetch")
	}

	if got := ids(m.groups[models.StatusPending]); len(got) != 1 || got[0] != "T1" {
		t.Errorf("expected T1 to stay in pending, got %v", got)
	}

	send(m, m.notices.listen()())
	if m.toasts.Len() != 1 {
		t.Fatalf("expected one toast, got %d", m.toasts.Len())
	}
	n := m.toasts.Items()[0].Notice
	if n.Level != board.NoticeError || n.Message != "Module is locked" {
		t.Errorf("unexpected toast %+v", n)
	}

	// The next gesture is available right away.
	send(m, keyMsg("space"))
	if !m.controller.Dragging() {
		t.Errorf("expected a new lift after the failure")
	}
}

func TestModelConcurrentRequests(t *testing.T) {
	cards := append(baseCards(), board.Card{ID: "T3", Kind: board.KindTask, Title: "Receipts", Status: models.StatusPending})
	m, backend := newTestModel(t, cards)

	send(m, keyMsg("l"))
	send(m, keyMsg("space"))
	send(m, keyMsg("l"))
	first := send(m, keyMsg("space"))

	send(m, keyMsg("j"))
	if card, _ := m.focusedCard(); card.ID != "T3" {
		t.Fatalf("expected focus on T3, got %s", card.ID)
	}
	send(m, keyMsg("space"))
	send(m, keyMsg("l"))
	second := send(m, keyMsg("space"))

	if first == nil || second == nil {
		t.Fatal("expected two transition commands")
	}
	if m.inFlight != 2 {
		t.Errorf("expected 2 requests in flight, got %d", m.inFlight)
	}
	if !strings.Contains(m.View(), "2 in flight") {
		t.Errorf("expected in-flight count in header")
	}

	send(m, second())
	send(m, first())
	if got := len(backend.sent()); got != 2 {
		t.Errorf("expected 2 updates, got %d", got)
	}
	if m.inFlight != 0 {
		t.Errorf("expected nothing in flight, got %d", m.inFlight)
	}
}

func TestModelIgnoresStaleLoad(t *testing.T) {
	m, backend := newTestModel(t, baseCards())

	oldMsg := m.fetch()()
	backend.cards[0].Status = models.StatusBlocked
	send(m, m.fetch()())
	send(m, oldMsg)

	if got := ids(m.groups[models.StatusBlocked]); len(got) != 1 || got[0] != "T1" {
		t.Errorf("expected the newer load to win, got %v", got)
	}
}

func TestModelLoadError(t *testing.T) {
	backend := &fakeBackend{loadErr: errors.New("connection refused")}
	m := New(backend, board.ModuleScope("M1", "Checkout", ""), Options{Now: testNow})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if cmd := send(m, m.fetch()()); cmd == nil {
		t.Errorf("expected a fade command for the error toast")
	}
	if m.loaded {
		t.Errorf("board must not be marked loaded")
	}
	if m.toasts.Len() != 1 || m.toasts.Items()[0].Notice.Level != board.NoticeError {
		t.Errorf("expected an error toast")
	}
	if !strings.Contains(m.View(), "r to retry") {
		t.Errorf("expected retry hint in header")
	}

	backend.loadErr = nil
	backend.cards = baseCards()
	cmd := send(m, keyMsg("r"))
	if cmd == nil {
		t.Fatal("expected r to refetch")
	}
	send(m, cmd())
	if !m.loaded || len(m.cards) != 2 {
		t.Errorf("expected the retry to load the cards")
	}
}

func TestModelWheelScrollsColumn(t *testing.T) {
	var cards []board.Card
	for i := 0; i < 12; i++ {
		cards = append(cards, board.Card{
			ID:     string(rune('a' + i)),
			Kind:   board.KindTask,
			Title:  "Card",
			Status: models.StatusPending,
		})
	}
	m, _ := newTestModel(t, cards)

	send(m, mouse(25, 10, tea.MouseButtonWheelDown, tea.MouseActionPress))
	send(m, mouse(25, 10, tea.MouseButtonWheelDown, tea.MouseActionPress))
	if got := m.views[1].Offset(); got != 2*wheelStep {
		t.Errorf("expected offset %d, got %d", 2*wheelStep, got)
	}
	if !m.views[1].Overflow().ShowTop {
		t.Errorf("expected top indicator after scrolling")
	}
	if _, ok := m.cardRects["a"]; ok {
		t.Errorf("expected the first card to be clipped out of its region")
	}

	send(m, mouse(25, 10, tea.MouseButtonWheelUp, tea.MouseActionPress))
	send(m, mouse(25, 10, tea.MouseButtonWheelUp, tea.MouseActionPress))
	if got := m.views[1].Offset(); got != 0 {
		t.Errorf("expected offset 0, got %d", got)
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newTestModel(t, baseCards())
	cmd := send(m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
}

func TestSplice(t *testing.T) {
	got := splice("aaaaa\nbbbbb\nccccc", "XY", 1, 1)
	want := "aaaaa\nb" + resetSGR + "XY" + resetSGR + "bb\nccccc"
	if got != want {
		t.Errorf("splice = %q, want %q", got, want)
	}

	got = splice("aaaaa", "XYZ", -2, 0)
	want = resetSGR + "Z" + resetSGR + "aaaa"
	if got != want {
		t.Errorf("splice with negative x = %q, want %q", got, want)
	}
}

func TestRenderCardHeightIsFixed(t *testing.T) {
	deadline := testNow().AddDate(0, 0, -3)
	card := board.Card{ID: "T1", Title: "A rather long title that will not fit", Priority: models.PriorityHigh, Progress: 55, Deadline: &deadline}
	for _, state := range []cardState{cardNormal, cardFocused, cardTarget, cardPlaceholder, cardFloating} {
		if h := strings.Count(renderCard(card, 17, state, testNow()), "\n") + 1; h != cardLines+2 {
			t.Errorf("state %d: expected height %d, got %d", state, cardLines+2, h)
		}
	}
	if !strings.Contains(renderCard(card, 30, cardNormal, testNow()), "overdue") {
		t.Errorf("expected overdue deadline")
	}
}
