// tasks keeps a history of plain-text task files and shows how tasks changed.
//
// Usage:
//
//	tasks update-and-store --file todo.md   # number new tasks and store a snapshot
//	tasks debug --file todo.md              # print the file as it would be stored
//	tasks diff --since "1 week ago"         # show what changed in a period
//	tasks history --task t42                # show every change of one task
//	tasks align old.txt new.txt             # word diff of two files
//	tasks lsp                               # "@" task completion for editors
//	tasks version                           # show version
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RobinCoderZhao/tasktrail/internal/history"
	taskscfg "github.com/RobinCoderZhao/tasktrail/internal/tasks/config"
	"github.com/RobinCoderZhao/tasktrail/pkg/differ"
	"github.com/RobinCoderZhao/tasktrail/pkg/storage"
)

var version = "dev"

// app carries what the commands share once flags and config are resolved.
type app struct {
	configPath string
	dbPath     string
	style      string

	cfg    taskscfg.Config
	logger *slog.Logger
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "tasks",
		Short:        "Track the history of plain-text task files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default .tasks.yaml or ~/.tasks.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "snapshot database path")
	rootCmd.PersistentFlags().StringVar(&a.style, "style", "", "output style: auto, ansi, markers or plain")

	rootCmd.AddCommand(updateAndStoreCmd(a))
	rootCmd.AddCommand(debugCmd(a))
	rootCmd.AddCommand(diffCmd(a))
	rootCmd.AddCommand(historyCmd(a))
	rootCmd.AddCommand(alignCmd(a))
	rootCmd.AddCommand(lspCmd(a))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:              "version",
		Short:            "Show version",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tasks %s\n", version)
		},
	}
}

// setup loads the config, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := taskscfg.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.DSN = a.dbPath
	}
	if a.style != "" {
		cfg.Style = a.style
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	level, _ := cfg.Level()
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	a.out = cmd.OutOrStdout()
	return nil
}

// styler picks the output styling. Auto mode colours only terminals.
func (a *app) styler() differ.Styler {
	switch a.cfg.Style {
	case taskscfg.StyleANSI:
		return differ.NewANSIStyler(true)
	case taskscfg.StyleMarkers:
		return differ.MarkerStyler{}
	case taskscfg.StylePlain:
		return differ.PlainStyler{}
	}
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return differ.NewANSIStyler(true)
	}
	return differ.PlainStyler{}
}

// openHistory opens the snapshot database, creating its directory if needed.
func (a *app) openHistory(ctx context.Context) (*history.Store, func(), error) {
	if err := ensureDir(a.cfg.Database.DSN); err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store, err := history.NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

func (a *app) printLines(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(a.out, line)
	}
}
