package boardview

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/trellis/internal/board"
)

// Source loads the cards of one board. The board never keeps a card across
// loads: every successful transition is followed by a fresh Cards call.
type Source interface {
	Cards(ctx context.Context, scope board.Scope) ([]board.Card, error)
}

// Backend is a Source that also owns card statuses. Both the HTTP client and
// the local database adapter satisfy it.
type Backend interface {
	Source
	board.Remote
}

const (
	noticeBuffer      = 100
	noticeSendTimeout = 100 * time.Millisecond
)

// NoticeQueue is a board.Notifier that hands notices to the UI loop. Notices
// are produced by transition commands and log hooks, which run off the loop.
type NoticeQueue struct {
	ch chan board.Notice
}

func NewNoticeQueue() *NoticeQueue {
	return &NoticeQueue{ch: make(chan board.Notice, noticeBuffer)}
}

// Notify queues n. If the UI has stopped draining the queue the notice is
// dropped after a short wait.
func (q *NoticeQueue) Notify(n board.Notice) {
	select {
	case q.ch <- n:
	case <-time.After(noticeSendTimeout):
	}
}

// listen waits for the next notice. The command is re-armed after every
// notice it delivers.
func (q *NoticeQueue) listen() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-q.ch
		if !ok {
			return nil
		}
		return noticeMsg{notice: n}
	}
}
