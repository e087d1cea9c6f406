package boardview

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/logging"
)

// Run opens the board for scope and blocks until the user quits. When hook
// is set, warnings logged while the board is open show up as error toasts.
func Run(ctx context.Context, backend Backend, scope board.Scope, opts Options, hook *logging.BoardHook) error {
	m := New(backend, scope, opts)
	if hook != nil {
		hook.Attach(m.Notifier())
		defer hook.Detach()
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("board exited: %w", err)
	}
	return nil
}
