package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/internal/board"
)

// New returns a logger writing text lines with full timestamps to out at the
// given level. An empty level means info.
func New(level string, out io.Writer) (*log.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	if out == nil {
		out = os.Stderr
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger, nil
}

// BoardHook forwards warnings and errors to the board's notice stream while
// a board is attached. Entries logged before Attach, or after Detach, are
// dropped.
type BoardHook struct {
	notifier atomic.Pointer[notifierBox]
}

type notifierBox struct{ n board.Notifier }

func NewBoardHook() *BoardHook {
	return &BoardHook{}
}

// Attach starts forwarding entries to n. Safe to call from any goroutine.
func (h *BoardHook) Attach(n board.Notifier) {
	if n == nil {
		h.notifier.Store(nil)
		return
	}
	h.notifier.Store(&notifierBox{n: n})
}

func (h *BoardHook) Detach() {
	h.notifier.Store(nil)
}

func (h *BoardHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}

func (h *BoardHook) Fire(entry *log.Entry) error {
	box := h.notifier.Load()
	if box == nil {
		return nil
	}
	// Rejected transitions already raise their own notice.
	if _, ok := entry.Data[board.NoticeField]; ok {
		return nil
	}
	box.n.Notify(board.Notice{Level: board.NoticeError, Message: summary(entry)})
	return nil
}

func summary(entry *log.Entry) string {
	msg := entry.Message
	if err, ok := entry.Data[log.ErrorKey].(error); ok && err != nil {
		msg += ": " + err.Error()
	}
	return msg
}
