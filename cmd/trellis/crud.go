package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/internal/ui"
	"github.com/ldi/trellis/pkg/models"
)

// withDB opens the database for one command and keeps the snapshot current
// while it runs.
func (a *app) withDB(ctx context.Context, fn func(*db.DB) error) error {
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	a.autoSnapshot(database)
	return fn(database)
}

func taskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and move tasks",
	}

	var (
		t        models.Task
		deadline string
		status   string
		priority string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a task to a module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Status = models.Status(status)
			t.Priority = models.Priority(priority)
			t.Deadline = optional(deadline)
			if err := validateCard(t.Status, t.Priority); err != nil {
				return err
			}
			return a.withDB(cmd.Context(), func(database *db.DB) error {
				if err := database.CreateTask(cmd.Context(), &t); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s Created task %s %s\n", ui.Green("✓"), ui.Bold(t.Title), ui.Dim(t.ID))
				return nil
			})
		},
	}
	add.Flags().StringVar(&t.ModuleID, "module", "", "Module ID")
	add.Flags().StringVar(&t.Title, "title", "", "Task title")
	add.Flags().StringVar(&t.Description, "description", "", "Task description")
	add.Flags().StringVar(&priority, "priority", "", "Priority (low|medium|high|urgent)")
	add.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	add.Flags().StringVar(&status, "status", string(board.DefaultColumns().Initial()), "Initial status")
	add.MarkFlagRequired("module")
	add.MarkFlagRequired("title")

	cmd.AddCommand(add, moveCmd(a, board.KindTask))
	return cmd
}

func moduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Create and move modules",
	}

	var (
		m        models.Module
		deadline string
		priority string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a module to a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m.Priority = models.Priority(priority)
			m.Deadline = optional(deadline)
			if err := validateCard("", m.Priority); err != nil {
				return err
			}
			return a.withDB(cmd.Context(), func(database *db.DB) error {
				if err := database.CreateModule(cmd.Context(), &m); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s Created module %s %s\n", ui.Green("✓"), ui.Bold(m.Name), ui.Dim(m.ID))
				return nil
			})
		},
	}
	add.Flags().StringVar(&m.ProjectID, "project", "", "Project ID")
	add.Flags().StringVar(&m.Name, "name", "", "Module name")
	add.Flags().StringVar(&m.Description, "description", "", "Module description")
	add.Flags().StringVar(&priority, "priority", "", "Priority (low|medium|high|urgent)")
	add.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	add.MarkFlagRequired("project")
	add.MarkFlagRequired("name")

	cmd.AddCommand(add, moveCmd(a, board.KindModule))
	return cmd
}

func validateCard(status models.Status, priority models.Priority) error {
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	if priority != "" && !priority.Valid() {
		return fmt.Errorf("unknown priority %q", priority)
	}
	return nil
}

// moveCmd moves a card the way a drop on its board would, so completion
// rules match the board exactly.
func moveCmd(a *app, kind board.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: fmt.Sprintf("Move a %s to another column", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, target := args[0], models.Status(args[1])
			columns := board.DefaultColumns()
			if !columns.Valid(target) {
				return fmt.Errorf("unknown status %q", target)
			}

			return a.withDB(ctx, func(database *db.DB) error {
				card, err := loadCard(ctx, database, kind, id)
				if err != nil {
					return err
				}
				if card.Status == target {
					fmt.Fprintf(a.out, "%s %s is already in %s\n", ui.Dim("·"), card.Title, columns.Label(target))
					return nil
				}

				u := board.BuildPayload(card, target, time.Now())
				if kind == board.KindTask {
					_, err = database.UpdateTaskStatus(ctx, id, u)
				} else {
					_, err = database.UpdateModuleStatus(ctx, id, u)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s %s moved to %s\n", ui.StatusIcon(target), kind.Noun(), columns.Label(target))
				return nil
			})
		},
	}
}

func loadCard(ctx context.Context, database *db.DB, kind board.Kind, id string) (board.Card, error) {
	if kind == board.KindTask {
		t, err := database.GetTask(ctx, id)
		if err != nil {
			return board.Card{}, err
		}
		if t == nil {
			return board.Card{}, fmt.Errorf("task %q not found", id)
		}
		return board.FromTask(t), nil
	}
	m, err := database.GetModule(ctx, id)
	if err != nil {
		return board.Card{}, err
	}
	if m == nil {
		return board.Card{}, fmt.Errorf("module %q not found", id)
	}
	return board.FromModule(m), nil
}

func listCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, modules or tasks",
	}

	projects := &cobra.Command{
		Use:   "projects",
		Short: "List projects with their organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(database *db.DB) error {
				list, err := database.ListProjects(cmd.Context(), nil)
				if err != nil {
					return err
				}
				for _, p := range list {
					fmt.Fprintf(a.out, "%s  %s / %s\n", ui.Dim(p.ID), p.OrganizationName, ui.Bold(p.Name))
				}
				return nil
			})
		},
	}

	var project string
	modules := &cobra.Command{
		Use:   "modules",
		Short: "List modules, optionally within one project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(database *db.DB) error {
				list, err := database.ListModules(cmd.Context(), optional(project))
				if err != nil {
					return err
				}
				for _, m := range list {
					fmt.Fprintf(a.out, "%s %s  %s %s %3d%%  %s\n", ui.StatusIcon(m.Status), ui.Dim(m.ID),
						ui.Bold(m.Name), ui.Dim("("+m.ProjectName+")"), m.Progress, ui.PriorityLabel(m.Priority))
				}
				return nil
			})
		},
	}
	modules.Flags().StringVar(&project, "project", "", "Project ID")

	var (
		module string
		status string
	)
	tasks := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, optionally filtered by module and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st *models.Status
			if status != "" {
				s := models.Status(status)
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				st = &s
			}
			return a.withDB(cmd.Context(), func(database *db.DB) error {
				list, err := database.ListTasks(cmd.Context(), optional(module), st)
				if err != nil {
					return err
				}
				for _, t := range list {
					fmt.Fprintf(a.out, "%s %s  %s %s %3d%%  %s\n", ui.StatusIcon(t.Status), ui.Dim(t.ID),
						ui.Bold(t.Title), ui.Dim("("+t.ModuleName+")"), t.Progress, ui.PriorityLabel(t.Priority))
				}
				return nil
			})
		},
	}
	tasks.Flags().StringVar(&module, "module", "", "Module ID")
	tasks.Flags().StringVar(&status, "status", "", "Status filter")

	cmd.AddCommand(projects, modules, tasks)
	return cmd
}
