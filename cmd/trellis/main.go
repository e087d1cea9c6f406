package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/boardview"
	"github.com/ldi/trellis/internal/config"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/internal/logging"
	"github.com/ldi/trellis/internal/ui"
	"github.com/ldi/trellis/pkg/models"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath   string
	dbPath       string
	snapshotPath string
	logLevel     string

	cfg    config.Config
	logger *log.Logger
	hook   *logging.BoardHook
	out    io.Writer
	errOut io.Writer

	// Interactive steps, replaced in tests.
	runBoard  func(ctx context.Context, backend boardview.Backend, scope board.Scope, opts boardview.Options) error
	pickScope func(projects []*models.Project, modules []*models.Module) (board.Scope, bool, error)
}

func newApp(out, errOut io.Writer) *app {
	a := &app{
		out:       out,
		errOut:    errOut,
		hook:      logging.NewBoardHook(),
		pickScope: ui.RunScopePicker,
	}
	a.runBoard = func(ctx context.Context, backend boardview.Backend, scope board.Scope, opts boardview.Options) error {
		return boardview.Run(ctx, backend, scope, opts, a.hook)
	}
	return a
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func execute(args []string, out, errOut io.Writer) error {
	root := newRootCmd(newApp(out, errOut))
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "trellis",
		Short: "Kanban boards for organizations, projects, modules and tasks",
		Long: `Trellis tracks work as cards on status boards. A module board shows the
modules of one project; a task board shows the tasks of one module. Cards move
between columns by dragging them with the mouse or lifting them with the
keyboard.

Running trellis with no command opens the board picker.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup(cmd.Flags()) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.openBoard(cmd.Context(), boardFlags{})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Path to config file (.json or .yaml)")
	flags.StringVar(&a.dbPath, "db-path", "", "Path to database file")
	flags.StringVar(&a.snapshotPath, "snapshot-path", "", "Path to snapshot file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		initCmd(a),
		serveCmd(a),
		boardCmd(a),
		mcpCmd(a),
		statusCmd(a),
		taskCmd(a),
		moduleCmd(a),
		listCmd(a),
	)
	return root
}

// setup loads the config file and lets flags that were set override it.
func (a *app) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	override(flags, "db-path", a.dbPath, &cfg.DBPath)
	override(flags, "snapshot-path", a.snapshotPath, &cfg.SnapshotPath)
	override(flags, "log-level", a.logLevel, &cfg.LogLevel)
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, a.errOut)
	if err != nil {
		return err
	}
	logger.AddHook(a.hook)
	a.logger = logger
	return nil
}

func override(flags *pflag.FlagSet, name, value string, target *string) {
	if flags.Changed(name) {
		*target = value
	}
}

// openDB opens and migrates the configured database.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

// autoSnapshot keeps the snapshot file current after every write.
func (a *app) autoSnapshot(database *db.DB) {
	if a.cfg.SnapshotPath == "" {
		return
	}
	database.EnableAutoSnapshot(a.cfg.SnapshotPath, func(err error) {
		a.logger.WithError(err).Error("failed to export snapshot")
	})
}
