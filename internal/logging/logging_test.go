package logging

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/internal/board"
)

type recorder struct {
	mu      sync.Mutex
	notices []board.Notice
}

func (r *recorder) Notify(n board.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.GetLevel() != log.WarnLevel {
		t.Errorf("Expected warn level, got %s", logger.GetLevel())
	}

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Expected warn line, got %q", out)
	}

	if _, err := New("chatty", &buf); err == nil {
		t.Errorf("Expected error for unknown level")
	}
	if logger, err := New("", nil); err != nil || logger.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info default, got %v, %v", logger, err)
	}
}

func TestBoardHook(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New("debug", &buf)
	hook := NewBoardHook()
	logger.AddHook(hook)

	logger.Error("dropped before attach")

	rec := &recorder{}
	hook.Attach(rec)
	logger.Info("not forwarded")
	logger.WithError(errors.New("timeout")).Warn("refresh failed")
	logger.WithField(board.NoticeField, true).Warn("already shown")

	hook.Detach()
	logger.Error("dropped after detach")

	if len(rec.notices) != 1 {
		t.Fatalf("Expected 1 notice, got %d: %+v", len(rec.notices), rec.notices)
	}
	n := rec.notices[0]
	if n.Level != board.NoticeError || n.Message != "refresh failed: timeout" {
		t.Errorf("Unexpected notice %+v", n)
	}
}
