package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/boardview"
	"github.com/ldi/trellis/internal/client"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

type boardFlags struct {
	server  string
	project string
	module  string
}

func boardCmd(a *app) *cobra.Command {
	var flags boardFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open a module or task board",
		Long: `Open a board. With --project the board shows that project's modules; with
--module it shows that module's tasks. Without either, a picker lists every
board. Boards read from the server given by --server or server_url in the
config, or straight from the local database when neither is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.openBoard(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.server, "server", "", "Board server URL (overrides server_url)")
	cmd.Flags().StringVar(&flags.project, "project", "", "Open the module board of this project ID")
	cmd.Flags().StringVar(&flags.module, "module", "", "Open the task board of this module ID")
	cmd.MarkFlagsMutuallyExclusive("project", "module")
	return cmd
}

// catalog lists what boards exist. Both the REST client and the local
// database serve it.
type catalog interface {
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	ListProjects(ctx context.Context, organizationID string) ([]*models.Project, error)
	ListModules(ctx context.Context, projectID string) ([]*models.Module, error)
}

type dbCatalog struct{ db *db.DB }

func (c dbCatalog) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return c.db.ListOrganizations(ctx)
}

func (c dbCatalog) ListProjects(ctx context.Context, organizationID string) ([]*models.Project, error) {
	return c.db.ListProjects(ctx, optional(organizationID))
}

func (c dbCatalog) ListModules(ctx context.Context, projectID string) ([]*models.Module, error) {
	return c.db.ListModules(ctx, optional(projectID))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *app) openBoard(ctx context.Context, flags boardFlags) error {
	var (
		backend boardview.Backend
		cat     catalog
	)

	serverURL := flags.server
	if serverURL == "" {
		serverURL = a.cfg.ServerURL
	}
	if serverURL != "" {
		c := client.New(serverURL)
		backend, cat = c, c
		a.logger.WithField("server", serverURL).Debug("opening remote board")
	} else {
		database, err := a.openDB(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		a.autoSnapshot(database)
		backend, cat = client.NewLocal(database), dbCatalog{db: database}
	}

	projects, modules, err := collectBoards(ctx, cat)
	if err != nil {
		return err
	}

	scope, ok, err := a.resolveScope(flags, projects, modules)
	if err != nil || !ok {
		return err
	}

	closeLog, err := a.redirectLogs()
	if err != nil {
		return err
	}
	defer closeLog()

	opts := boardview.Options{
		ActivationDistance: a.cfg.Board.ActivationDistance,
		ToastDuration:      a.cfg.Board.ToastDuration.Std(),
		RequestTimeout:     a.cfg.Board.RequestTimeout.Std(),
		Logger:             a.logger,
	}
	a.logger.WithField("board", scope.Title()).Info("board opened")
	return a.runBoard(ctx, backend, scope, opts)
}

// collectBoards walks organizations, projects and modules, filling in the
// parent names the board titles need.
func collectBoards(ctx context.Context, cat catalog) ([]*models.Project, []*models.Module, error) {
	orgs, err := cat.ListOrganizations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	var (
		projects []*models.Project
		modules  []*models.Module
	)
	for _, o := range orgs {
		ps, err := cat.ListProjects(ctx, o.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list projects of %s: %w", o.Name, err)
		}
		for _, p := range ps {
			p.OrganizationName = o.Name
			ms, err := cat.ListModules(ctx, p.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to list modules of %s: %w", p.Name, err)
			}
			for _, m := range ms {
				m.ProjectName = p.Name
			}
			projects = append(projects, p)
			modules = append(modules, ms...)
		}
	}
	return projects, modules, nil
}

func (a *app) resolveScope(flags boardFlags, projects []*models.Project, modules []*models.Module) (board.Scope, bool, error) {
	switch {
	case flags.project != "":
		for _, p := range projects {
			if p.ID == flags.project {
				return board.ProjectScope(p.ID, p.Name, p.OrganizationName), true, nil
			}
		}
		return board.Scope{}, false, fmt.Errorf("project %q not found", flags.project)
	case flags.module != "":
		for _, m := range modules {
			if m.ID == flags.module {
				return board.ModuleScope(m.ID, m.Name, m.ProjectName), true, nil
			}
		}
		return board.Scope{}, false, fmt.Errorf("module %q not found", flags.module)
	}

	if len(projects) == 0 {
		return board.Scope{}, false, fmt.Errorf("no boards yet; run trellis init or create a project first")
	}
	return a.pickScope(projects, modules)
}

// redirectLogs sends log output to a file next to the database while the
// board owns the terminal.
func (a *app) redirectLogs() (func(), error) {
	dir := filepath.Dir(a.cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "trellis.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	prev := a.logger.Out
	a.logger.SetOutput(f)
	return func() {
		a.logger.SetOutput(prev)
		f.Close()
	}, nil
}
