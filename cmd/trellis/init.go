package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/config"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

func initCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create the .trellis directory, config and database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return a.runInit(cmd.Context(), cmd.Flags().Changed, dir)
		},
	}
}

func (a *app) runInit(ctx context.Context, changed func(string) bool, dir string) error {
	trellisDir := filepath.Join(dir, config.Dir)
	if err := os.MkdirAll(trellisDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.Dir, err)
	}
	fmt.Fprintf(a.out, "✓ Created %s/ directory\n", config.Dir)

	gitignore := filepath.Join(trellisDir, ".gitignore")
	if err := os.WriteFile(gitignore, []byte("trellis.db*\ntrellis.log\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Created %s/.gitignore\n", config.Dir)

	configPath := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Write(configPath, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Wrote default config to %s\n", configPath)
	}

	// Paths from flags are taken as given; configured ones live under dir.
	dbPath, snapshotPath := a.cfg.DBPath, a.cfg.SnapshotPath
	if !changed("db-path") && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(dir, dbPath)
	}
	if !changed("snapshot-path") && snapshotPath != "" && !filepath.IsAbs(snapshotPath) {
		snapshotPath = filepath.Join(dir, snapshotPath)
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Initialized database at %s\n", dbPath)

	if _, err := os.Stat(snapshotPath); snapshotPath != "" && err == nil {
		if err := database.ImportSnapshot(ctx, snapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(a.out, "✓ Imported snapshot from %s\n", snapshotPath)
	} else {
		seeded, err := seedDemo(ctx, database)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(a.out, "✓ Seeded a demo organization")
		}
	}

	fmt.Fprintln(a.out, "✓ Trellis initialized successfully")
	return nil
}

const demoOrganization = "Personal"

// seedDemo creates a small organization to try the boards on. It does
// nothing if the organization already exists.
func seedDemo(ctx context.Context, database *db.DB) (bool, error) {
	existing, err := database.GetOrganizationByName(ctx, demoOrganization)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	err = database.InBatch(ctx, func(b *db.Batch) error {
		org := &models.Organization{Name: demoOrganization}
		if err := b.CreateOrganization(org); err != nil {
			return err
		}
		project := &models.Project{OrganizationID: org.ID, Name: "Getting Started", Description: "A sample project"}
		if err := b.CreateProject(project); err != nil {
			return err
		}
		module := &models.Module{ProjectID: project.ID, Name: "Onboarding", Status: models.StatusInProgress, Progress: 30}
		if err := b.CreateModule(module); err != nil {
			return err
		}

		tasks := []*models.Task{
			{Title: "Open the task board", Status: models.StatusCompleted, Progress: 100},
			{Title: "Drag a card to another column", Status: models.StatusInProgress, Progress: 50, Priority: models.PriorityHigh},
			{Title: "Lift a card with space and move it with the arrows", Status: models.StatusPending},
			{Title: "Press enter for card details", Status: models.StatusDraft, Priority: models.PriorityLow},
		}
		for _, t := range tasks {
			t.ModuleID = module.ID
			if err := b.CreateTask(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed demo data: %w", err)
	}
	return true, nil
}
