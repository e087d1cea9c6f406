package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/pkg/models"
)

// FallbackErrorMessage is shown when a rejected update carries no message.
const FallbackErrorMessage = "Failed to update status"

// NoticeField marks log entries whose message has already been shown to the
// user as a notice.
const NoticeField = "notified"

// ErrNotATransition is returned for requests that would not change anything.
var ErrNotATransition = errors.New("not a status transition")

// Remote is the authority that owns card statuses.
type Remote interface {
	UpdateStatus(ctx context.Context, kind Kind, update models.StatusUpdate) error
}

// ServerMessage is implemented by errors that carry a message from the
// remote meant for the user.
type ServerMessage interface {
	ServerMessage() string
}

type NoticeLevel int

const (
	NoticeSuccess NoticeLevel = iota
	NoticeError
)

// Notice is a transient message for the user.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier displays notices. Notify must not block.
type Notifier interface {
	Notify(Notice)
}

// TransitionResult is the outcome of one status update request.
type TransitionResult struct {
	Card    Card
	Target  models.Status
	Payload models.StatusUpdate
	Err     error
	// Refresh is set when the caller must refetch its cards.
	Refresh bool
}

// TransitionService sends status updates to the remote and reports their
// outcome. It keeps no copy of any card's status: a failure needs no undo
// and a success is only visible after the caller refetches.
type TransitionService struct {
	remote   Remote
	notifier Notifier
	columns  Columns
	now      func() time.Time
	logger   log.FieldLogger
}

type TransitionOption func(*TransitionService)

// WithClock overrides the time source used for completion dates.
func WithClock(now func() time.Time) TransitionOption {
	return func(s *TransitionService) { s.now = now }
}

func WithLogger(logger log.FieldLogger) TransitionOption {
	return func(s *TransitionService) { s.logger = logger }
}

func NewTransitionService(remote Remote, notifier Notifier, columns Columns, opts ...TransitionOption) *TransitionService {
	s := &TransitionService{
		remote:   remote,
		notifier: notifier,
		columns:  columns,
		now:      time.Now,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPayload builds the update for moving card to target. Moving to
// completed forces progress to 100 and, for modules, stamps today's date as
// the completion date. Other moves pass progress through.
func BuildPayload(card Card, target models.Status, now time.Time) models.StatusUpdate {
	progress := card.Progress
	update := models.StatusUpdate{
		ID:     card.ID,
		Status: target,
	}
	if target == models.StatusCompleted {
		progress = 100
		if card.Kind == KindModule {
			date := now.Format(DateLayout)
			update.CompletedAt = &date
		}
	}
	update.Progress = &progress
	return update
}

// Request issues one status update for card and notifies the user of the
// result. It blocks for the duration of the remote call; callers run it off
// the UI loop.
func (s *TransitionService) Request(ctx context.Context, card Card, target models.Status) TransitionResult {
	result := TransitionResult{Card: card, Target: target}
	if !s.columns.Valid(target) || target == card.Status {
		result.Err = fmt.Errorf("%w: %s to %s", ErrNotATransition, card.Status, target)
		return result
	}

	result.Payload = BuildPayload(card, target, s.now())
	logger := s.logger.WithFields(log.Fields{
		"kind": card.Kind,
		"id":   card.ID,
		"from": card.Status,
		"to":   target,
	})
	logger.Debug("requesting status transition")

	if err := s.remote.UpdateStatus(ctx, card.Kind, result.Payload); err != nil {
		result.Err = err
		logger.WithError(err).WithField(NoticeField, true).Warn("status transition rejected")
		s.notify(Notice{Level: NoticeError, Message: ErrorMessage(err)})
		return result
	}

	result.Refresh = true
	s.notify(Notice{
		Level:   NoticeSuccess,
		Message: fmt.Sprintf("%s moved to %s", card.Kind.Noun(), s.columns.Label(target)),
	})
	return result
}

func (s *TransitionService) notify(n Notice) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

// ErrorMessage returns the user-facing text for a failed update.
func ErrorMessage(err error) string {
	var sm ServerMessage
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			return msg
		}
	}
	return FallbackErrorMessage
}
