package board

// Scope selects what a board shows: the modules of one project, or the tasks
// of one module.
type Scope struct {
	// Kind is the kind of card on the board. KindModule boards are scoped to
	// a project, KindTask boards to a module.
	Kind   Kind
	ID     string
	Name   string
	Parent string
}

func ProjectScope(id, name, organization string) Scope {
	return Scope{Kind: KindModule, ID: id, Name: name, Parent: organization}
}

func ModuleScope(id, name, project string) Scope {
	return Scope{Kind: KindTask, ID: id, Name: name, Parent: project}
}

// Title is the board heading, e.g. "Acme / Website · Modules".
func (s Scope) Title() string {
	name := s.Name
	if s.Parent != "" {
		name = s.Parent + " / " + name
	}
	return name + " · " + s.Kind.Noun() + "s"
}
