package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/tasktrail/internal/completion"
	"github.com/RobinCoderZhao/tasktrail/internal/history"
	"github.com/RobinCoderZhao/tasktrail/internal/taskfile"
	"github.com/RobinCoderZhao/tasktrail/pkg/differ"
	"github.com/RobinCoderZhao/tasktrail/pkg/lspserver"
)

func updateAndStoreCmd(a *app) *cobra.Command {
	var file string
	var resolve bool

	cmd := &cobra.Command{
		Use:   "update-and-store",
		Short: "Add missing ids to a task file and store a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdateAndStore(cmd, file, resolve || a.cfg.Store.Resolve)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "task file")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "also merge @task references and convert legacy section ids")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func debugCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Parse a task file and print it as it would be stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(file)
			if errors.Is(err, taskfile.ErrNotTaskFile) {
				fmt.Fprintln(a.out, "Not a task file")
				return nil
			}
			if err != nil {
				return err
			}
			f.AddMissingIDs()
			a.printLines(f.Lines())
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "task file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func diffCmd(a *app) *cobra.Command {
	var since, until string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show how tasks changed in a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("since") {
				since = a.cfg.Diff.Since
			}
			if !cmd.Flags().Changed("until") {
				until = a.cfg.Diff.Until
			}
			return a.runDiff(cmd, since, until)
		},
	}

	cmd.Flags().StringVar(&since, "since", "3 weeks ago", "start of the period")
	cmd.Flags().StringVar(&until, "until", "now", "end of the period")
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var task string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every change of one task",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			changes, err := store.TaskHistory(cmd.Context(), task)
			if err != nil {
				return err
			}
			styler := a.styler()
			for _, c := range changes {
				a.printLines(c.Lines(styler))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task id, e.g. t42")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func alignCmd(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "align LEFT RIGHT",
		Short: "Show a word diff of two text files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			right, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			result := differ.TextDiff(string(left), string(right))
			a.printLines(result.Lines(a.styler()))
			if summary {
				fmt.Fprintf(a.out, "%s (cost %.1f)\n", result.Summary(), result.Cost)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "print change counts after the diff")
	return cmd
}

func lspCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run a language server completing \"@\" task references",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := lspserver.New("tasks", version)
			s.SetLogger(a.logger)
			s.Use(lspserver.RecoveryMiddleware(a.logger))
			s.Use(lspserver.LoggingMiddleware(a.logger))
			completion.NewCache(a.logger).Register(s)
			return s.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runUpdateAndStore(cmd *cobra.Command, file string, resolve bool) error {
	f, err := loadFile(file)
	if errors.Is(err, taskfile.ErrNotTaskFile) {
		fmt.Fprintln(a.out, "Not a task file")
		return nil
	}
	if err != nil {
		return err
	}

	var changed bool
	if resolve {
		changed = f.ResolveIssues(time.Now())
	} else {
		changed = f.AddMissingIDs()
	}
	if changed {
		if err := writeFile(file, f.Lines()); err != nil {
			return err
		}
		a.logger.Info("task file updated", "file", file, "counter", f.Header.TaskCounter)
	}

	store, closeDB, err := a.openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	snap, appended, err := store.Append(cmd.Context(), f, a.cfg.Store.SkipUnchanged)
	if err != nil {
		return err
	}
	if appended {
		a.logger.Info("snapshot stored", "id", snap.ID, "tasks", len(f.Tasks))
	}
	return nil
}

func (a *app) runDiff(cmd *cobra.Command, since, until string) error {
	now := time.Now()
	from, err := history.ParseWhen(since, now)
	if err != nil {
		return err
	}
	to, err := history.ParseWhen(until, now)
	if err != nil {
		return err
	}

	store, closeDB, err := a.openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	d, err := store.Diff(cmd.Context(), from, to)
	if errors.Is(err, history.ErrNoSnapshot) {
		fmt.Fprintln(a.out, "Unable to find any files matching your description")
		return nil
	}
	if err != nil {
		return err
	}
	a.printLines(d.Lines(a.styler()))
	return nil
}

// loadFile parses a task file and records where the snapshot comes from.
func loadFile(path string) (*taskfile.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer fh.Close()

	ids := taskfile.FileIdentifiers{Filename: abs}
	ids.Hostname, _ = os.Hostname()
	if u, err := user.Current(); err == nil {
		ids.Username = u.Username
	}
	return taskfile.Parse(fh, ids)
}

// writeFile replaces path with lines, one per line, through a temporary file
// in the same directory.
func writeFile(path string, lines []string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	defer os.Remove(tmp.Name())

	body := strings.Join(slices.Concat(lines, []string{""}), "\n")
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write task file: %w", err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("write task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}
