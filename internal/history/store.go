// Package history keeps an append-only log of task file snapshots and answers
// questions about how the file and its tasks changed over time.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/RobinCoderZhao/tasktrail/internal/taskfile"
	"github.com/RobinCoderZhao/tasktrail/pkg/differ"
	"github.com/RobinCoderZhao/tasktrail/pkg/storage"
)

// Schema is the SQLite schema of the snapshot log.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	filename       TEXT NOT NULL,
	hostname       TEXT NOT NULL,
	username       TEXT NOT NULL,
	update_time_ns INTEGER NOT NULL,
	checksum       TEXT NOT NULL,
	payload        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(update_time_ns);
CREATE INDEX IF NOT EXISTS idx_snapshots_file ON snapshots(filename, update_time_ns);
`

var (
	// ErrNoSnapshot is returned when no snapshot matches a point in time.
	ErrNoSnapshot = errors.New("no snapshot found")
	// ErrUnknownTask is returned when a task id never appears in the log.
	ErrUnknownTask = errors.New("unknown task")
)

// UnknownTaskError carries the closest known tasks for an unknown id.
type UnknownTaskError struct {
	ID          string
	Suggestions []string
}

func (e *UnknownTaskError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown task %q", e.ID)
	}
	return fmt.Sprintf("unknown task %q, did you mean: %s", e.ID, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownTaskError) Unwrap() error { return ErrUnknownTask }

// Snapshot is one stored version of a task file.
type Snapshot struct {
	ID       int64
	Time     time.Time
	Checksum string
	File     *taskfile.File
}

// Store persists snapshots in SQLite.
type Store struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewStore creates the schema if needed and returns a store on db.
func NewStore(ctx context.Context, db *storage.DB) (*Store, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// Checksum is the hex blake2b-256 digest of the serialised file.
func Checksum(f *taskfile.File) string {
	sum := blake2b.Sum256([]byte(f.Text()))
	return hex.EncodeToString(sum[:])
}

// Append stores f. With skipUnchanged set, nothing is written when the latest
// snapshot of the same file has the same checksum; the returned bool reports
// whether a row was added.
func (s *Store) Append(ctx context.Context, f *taskfile.File, skipUnchanged bool) (Snapshot, bool, error) {
	snap := Snapshot{Time: f.UpdateTime, Checksum: Checksum(f), File: f}
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return snap, false, fmt.Errorf("encode snapshot: %w", err)
	}

	appended := false
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if skipUnchanged {
			var last string
			err := tx.QueryRowContext(ctx,
				`SELECT checksum FROM snapshots WHERE filename = ? ORDER BY update_time_ns DESC, id DESC LIMIT 1`,
				f.FileIdentifiers.Filename).Scan(&last)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("latest checksum: %w", err)
			}
			if last == snap.Checksum {
				return nil
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (filename, hostname, username, update_time_ns, checksum, payload) VALUES (?, ?, ?, ?, ?, ?)`,
			f.FileIdentifiers.Filename, f.FileIdentifiers.Hostname, f.FileIdentifiers.Username,
			f.UpdateTime.UnixNano(), snap.Checksum, payload)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		snap.ID, _ = res.LastInsertId()
		appended = true
		return nil
	})
	if err != nil {
		return snap, false, err
	}
	if appended {
		s.logger.Debug("snapshot stored", "id", snap.ID, "file", f.FileIdentifiers.Filename, "checksum", snap.Checksum[:12])
	} else {
		s.logger.Debug("snapshot unchanged", "file", f.FileIdentifiers.Filename)
	}
	return snap, appended, nil
}

// At returns the latest snapshot taken at or before t.
func (s *Store) At(ctx context.Context, t time.Time) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, update_time_ns, checksum, payload FROM snapshots WHERE update_time_ns <= ? ORDER BY update_time_ns DESC, id DESC LIMIT 1`,
		t.UnixNano())
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("at %s: %w", t.Format(time.RFC3339), ErrNoSnapshot)
	}
	return snap, err
}

// All returns every snapshot, oldest first.
func (s *Store) All(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, update_time_ns, checksum, payload FROM snapshots ORDER BY update_time_ns, id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		snap    Snapshot
		ns      int64
		payload []byte
	)
	if err := row.Scan(&snap.ID, &ns, &snap.Checksum, &payload); err != nil {
		return snap, err
	}
	snap.Time = time.Unix(0, ns)
	snap.File = new(taskfile.File)
	if err := msgpack.Unmarshal(payload, snap.File); err != nil {
		return snap, fmt.Errorf("decode snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}

// Diff compares the file as it was at since with the file as it was at until.
func (s *Store) Diff(ctx context.Context, since, until time.Time) (*taskfile.FileDiff, error) {
	start, err := s.At(ctx, since)
	if err != nil {
		return nil, err
	}
	end, err := s.At(ctx, until)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("diffing snapshots", "from", start.ID, "to", end.ID)
	return end.File.Diff(start.File), nil
}

// Change is one step in the history of a task.
type Change struct {
	At   time.Time
	Diff *taskfile.FileDiff
}

// Lines renders the change under an "Updated at" banner.
func (c Change) Lines(styler differ.Styler) []string {
	banner := styler.Style(differ.StyleBanner, "Updated at "+c.At.Format("2006-01-02 15:04:05"))
	return append([]string{banner}, c.Diff.Lines(styler)...)
}

// TaskHistory walks the log and returns every snapshot in which the task's
// text or section differs from the previous version. A snapshot where the
// task disappeared yields a removal.
func (s *Store) TaskHistory(ctx context.Context, id string) ([]Change, error) {
	snaps, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	var (
		changes []Change
		prev    *taskfile.Task
		prevF   *taskfile.File
		seen    bool
	)
	for _, snap := range snaps {
		cur := snap.File.Task(id)
		if cur == nil && prev == nil {
			continue
		}
		seen = true
		if cur != nil && prev != nil && cur.Text() == prev.Text() && cur.Section == prev.Section {
			prevF = snap.File
			continue
		}
		d := &taskfile.FileDiff{
			Tasks:    []taskfile.TaskDiff{taskfile.DiffTasks(prev, cur)},
			Sections: snap.File.Sections,
		}
		if prevF != nil {
			d.OldSections = prevF.Sections
		}
		changes = append(changes, Change{At: snap.Time, Diff: d})
		prev, prevF = cur, snap.File
	}
	if !seen {
		var latest *taskfile.File
		if len(snaps) > 0 {
			latest = snaps[len(snaps)-1].File
		}
		return nil, &UnknownTaskError{ID: id, Suggestions: suggest(id, latest)}
	}
	return changes, nil
}

// taskSource exposes tasks to fuzzy matching as "id title".
type taskSource []*taskfile.Task

func (t taskSource) String(i int) string { return t[i].Identifier + " " + t[i].Title }
func (t taskSource) Len() int            { return len(t) }

func suggest(id string, f *taskfile.File) []string {
	if f == nil {
		return nil
	}
	src := taskSource(f.Tasks)
	var out []string
	for _, m := range fuzzy.FindFrom(id, src) {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}
