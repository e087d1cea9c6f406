package boardview

import (
	"github.com/ldi/trellis/internal/board"
)

// cardsLoadedMsg carries the result of one Cards call. seq orders loads so
// that a slow response never replaces a newer one.
type cardsLoadedMsg struct {
	seq   int
	cards []board.Card
	err   error
}

type transitionDoneMsg struct {
	result board.TransitionResult
}

type noticeMsg struct {
	notice board.Notice
}

type toastFadeMsg struct {
	id int
}
