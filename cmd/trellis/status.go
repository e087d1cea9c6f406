package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/internal/ui"
)

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize every board in the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()
			return a.printStatus(cmd.Context(), database)
		},
	}
}

func (a *app) printStatus(ctx context.Context, database *db.DB) error {
	counts, err := database.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %d organizations · %d projects · %d modules · %d tasks\n",
		ui.BoldCyan("Trellis:"), counts["organizations"], counts["projects"], counts["modules"], counts["tasks"])

	projects, modules, err := collectBoards(ctx, dbCatalog{db: database})
	if err != nil {
		return err
	}
	columns := board.DefaultColumns()

	for _, p := range projects {
		fmt.Fprintf(a.out, "\n%s\n", ui.BoldWhite(board.ProjectScope(p.ID, p.Name, p.OrganizationName).Title()))
		found := false
		for _, m := range modules {
			if m.ProjectID != p.ID {
				continue
			}
			found = true
			fmt.Fprintf(a.out, "  %s %s %s %s\n", ui.StatusIcon(m.Status), ui.Bold(m.Name),
				ui.Dim(fmt.Sprintf("%d%%", m.Progress)), columns.Label(m.Status))

			tasks, err := database.ListTasks(ctx, &m.ID, nil)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintf(a.out, "      %s\n", ui.Dim("no tasks"))
				continue
			}
			grouped := board.GroupByStatus(board.FromTasks(tasks), columns)
			var parts []string
			for _, col := range columns {
				if n := len(grouped[col.Key]); n > 0 {
					parts = append(parts, fmt.Sprintf("%s %d", col.Label, n))
				}
			}
			fmt.Fprintf(a.out, "      %s\n", strings.Join(parts, " · "))
		}
		if !found {
			fmt.Fprintf(a.out, "  %s\n", ui.Dim("no modules"))
		}
	}
	return nil
}
