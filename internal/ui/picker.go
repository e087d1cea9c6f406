package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/pkg/models"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	sectionStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).MarginTop(1)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
	parentStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	emptyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).PaddingLeft(2)
)

const logo = `
 ▗▄▄▄▖▗▄▄▖ ▗▄▄▄▖▗▖   ▗▖   ▗▄▄▄▖ ▗▄▄▖
   █  ▐▌ ▐▌▐▌   ▐▌   ▐▌     █  ▐▌
   █  ▐▛▀▚▖▐▛▀▀▘▐▌   ▐▌     █   ▝▀▚▖
   █  ▐▌ ▐▌▐▙▄▄▖▐▙▄▄▖▐▙▄▄▖▗▄█▄▖▗▄▄▞▘
`

// ScopePicker lets the user choose which board to open: a project's module
// board or a module's task board.
type ScopePicker struct {
	scopes   []board.Scope
	cursor   int
	selected *board.Scope
	quitting bool
}

// NewScopePicker lists one module board per project followed by one task
// board per module.
func NewScopePicker(projects []*models.Project, modules []*models.Module) ScopePicker {
	var scopes []board.Scope
	for _, p := range projects {
		scopes = append(scopes, board.ProjectScope(p.ID, p.Name, p.OrganizationName))
	}
	for _, m := range modules {
		scopes = append(scopes, board.ModuleScope(m.ID, m.Name, m.ProjectName))
	}
	return ScopePicker{scopes: scopes}
}

func (m ScopePicker) Init() tea.Cmd {
	return nil
}

func (m ScopePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.scopes)-1 {
				m.cursor++
			}

		case "enter":
			if len(m.scopes) == 0 {
				return m, nil
			}
			s := m.scopes[m.cursor]
			m.selected = &s
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m ScopePicker) View() string {
	if m.quitting || m.selected != nil {
		return ""
	}

	var s strings.Builder
	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n")

	if len(m.scopes) == 0 {
		s.WriteString(emptyStyle.Render("No projects yet. Run `trellis init` to create one."))
		s.WriteString("\n\n(q to quit)\n")
		return s.String()
	}

	section := board.Kind("")
	for i, scope := range m.scopes {
		if scope.Kind != section {
			section = scope.Kind
			title := "Module boards (by project)"
			if section == board.KindTask {
				title = "Task boards (by module)"
			}
			s.WriteString(sectionStyle.Render(title))
			s.WriteString("\n")
		}

		label := scope.Name
		if scope.Parent != "" {
			label += " " + parentStyle.Render(scope.Parent)
		}
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render(fmt.Sprintf("> %s", label)))
		} else {
			s.WriteString(itemStyle.Render(fmt.Sprintf("  %s", label)))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n(use arrow keys or j/k to navigate, enter to open, q to quit)\n")
	return s.String()
}

// Selected returns the chosen scope, or false if the picker was quit.
func (m ScopePicker) Selected() (board.Scope, bool) {
	if m.selected == nil {
		return board.Scope{}, false
	}
	return *m.selected, true
}

// RunScopePicker shows the picker and returns the chosen scope.
func RunScopePicker(projects []*models.Project, modules []*models.Module) (board.Scope, bool, error) {
	p := tea.NewProgram(NewScopePicker(projects, modules))
	finalModel, err := p.Run()
	if err != nil {
		return board.Scope{}, false, err
	}
	scope, ok := finalModel.(ScopePicker).Selected()
	return scope, ok, nil
}
