package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

// Local serves a board straight from the database, without a server.
type Local struct {
	db *db.DB
}

func NewLocal(database *db.DB) *Local {
	return &Local{db: database}
}

func (l *Local) Cards(ctx context.Context, scope board.Scope) ([]board.Card, error) {
	switch scope.Kind {
	case board.KindTask:
		tasks, err := l.db.ListTasks(ctx, &scope.ID, nil)
		if err != nil {
			return nil, err
		}
		return board.FromTasks(tasks), nil
	case board.KindModule:
		modules, err := l.db.ListModules(ctx, &scope.ID)
		if err != nil {
			return nil, err
		}
		return board.FromModules(modules), nil
	default:
		return nil, fmt.Errorf("unknown board kind %q", scope.Kind)
	}
}

func (l *Local) UpdateStatus(ctx context.Context, kind board.Kind, u models.StatusUpdate) error {
	var err error
	switch kind {
	case board.KindTask:
		_, err = l.db.UpdateTaskStatus(ctx, u.ID, u)
	case board.KindModule:
		_, err = l.db.UpdateModuleStatus(ctx, u.ID, u)
	default:
		return fmt.Errorf("unknown card kind %q", kind)
	}
	if errors.Is(err, db.ErrInvalidStatus) || errors.Is(err, db.ErrNotFound) {
		return &rejection{err: err}
	}
	return err
}

// rejection is a database refusal whose text is fit to show the user.
type rejection struct {
	err error
}

func (r *rejection) Error() string         { return r.err.Error() }
func (r *rejection) Unwrap() error         { return r.err }
func (r *rejection) ServerMessage() string { return r.err.Error() }
