// Package taskfile parses and serialises plain-text task files.
//
// A task file starts with a header block holding the task counter and the file
// identifier, followed by markdown-like sections. Inside a section, lines such
// as "- [ ] t12 #tag write docs" are tasks, "@t12 ..." lines reference a task
// declared elsewhere and any other line is description text of the preceding
// task, reference or section.
package taskfile

import (
	"slices"
	"strings"
	"time"
)

const (
	HeaderBegin = "TASK FILE HEADER BEGIN"
	HeaderEnd   = "TASK FILE HEADER END"

	// EmptyTaskState is the state of a task that was not started yet.
	EmptyTaskState = "[ ]"
	// DoneTaskState marks finished tasks.
	DoneTaskState = "[x]"
)

// Header is the counter block at the top of a task file.
type Header struct {
	TaskCounter string `msgpack:"task_counter" json:"task_counter"`
	Identifier  string `msgpack:"identifier" json:"identifier"`
}

func (h Header) Lines() []string {
	return []string{HeaderBegin, h.TaskCounter, h.Identifier, HeaderEnd}
}

// Section is a "#"-prefixed heading with its free-form description.
type Section struct {
	Identifier  string   `msgpack:"identifier" json:"identifier,omitempty"`
	Title       string   `msgpack:"title" json:"title"`
	Level       int      `msgpack:"level" json:"level"`
	Description []string `msgpack:"description" json:"description,omitempty"`
}

// Key is how tasks refer to their section.
func (s *Section) Key() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.Title
}

func (s *Section) Lines() []string {
	words := []string{strings.Repeat("#", s.Level)}
	if s.Identifier != "" {
		words = append(words, s.Identifier)
	}
	if s.Title != "" {
		words = append(words, s.Title)
	}
	return append([]string{strings.Join(words, " ")}, s.Description...)
}

// Task is a single task line plus its description lines.
type Task struct {
	Identifier   string   `msgpack:"identifier" json:"identifier,omitempty"`
	State        string   `msgpack:"state" json:"state"`
	RelatedTasks []string `msgpack:"related_tasks" json:"related_tasks"`
	Tags         []string `msgpack:"tags" json:"tags"`
	Meta         []string `msgpack:"meta" json:"meta,omitempty"`
	Title        string   `msgpack:"content" json:"content"`
	Section      string   `msgpack:"section" json:"section"`
	Prefix       string   `msgpack:"prefix" json:"prefix"`
	Description  []string `msgpack:"description" json:"description,omitempty"`
}

// Lines renders the task back into file lines. The metadata words keep the
// order they had in front of the title; an identifier assigned later goes
// first.
func (t *Task) Lines() []string {
	words := []string{t.State}
	if t.Identifier != "" && !slices.Contains(t.Meta, t.Identifier) {
		words = append(words, t.Identifier)
	}
	words = append(words, t.Meta...)
	if t.Title != "" {
		words = append(words, t.Title)
	}
	return append([]string{t.Prefix + strings.Join(words, " ")}, t.Description...)
}

// Text is the canonical form of the task used for comparisons.
func (t *Task) Text() string {
	return strings.Join(t.Lines(), "\n")
}

// Done reports whether the task is finished.
func (t *Task) Done() bool {
	return t.State == DoneTaskState
}

// TaskRef is an "@tNN" line pointing at a task, with text to be merged into it.
type TaskRef struct {
	Task        string   `msgpack:"task" json:"task"`
	Section     string   `msgpack:"section" json:"section"`
	Title       string   `msgpack:"title" json:"title"`
	Description []string `msgpack:"description" json:"description,omitempty"`
}

func (r *TaskRef) Lines() []string {
	return append([]string{r.Title}, r.Description...)
}

// FileIdentifiers tells where a snapshot of a file was taken.
type FileIdentifiers struct {
	Filename string `msgpack:"filename" json:"filename"`
	Hostname string `msgpack:"hostname" json:"hostname"`
	Username string `msgpack:"username" json:"username"`
}

// entry is one top-level element of a file, in file order.
type entry interface {
	Lines() []string
}

// File is a parsed task file.
type File struct {
	Header           Header          `msgpack:"header" json:"header"`
	FileIdentifiers  FileIdentifiers `msgpack:"file_identifiers" json:"file_identifiers"`
	UpdateTimePretty string          `msgpack:"update_time_pretty" json:"update_time_pretty"`
	UpdateTime       time.Time       `msgpack:"update_time" json:"update_time"`
	Sections         []*Section      `msgpack:"sections" json:"sections"`
	Tasks            []*Task         `msgpack:"tasks" json:"tasks"`
	NonIDTasks       []*Task         `msgpack:"non_id_tasks" json:"non_id_tasks"`
	TaskRefs         []*TaskRef      `msgpack:"task_refs" json:"task_refs"`
	Prefix           []string        `msgpack:"prefix" json:"prefix"`
	HeaderSuffix     []string        `msgpack:"header_suffix" json:"header_suffix"`

	order []entry
}

// Task returns the task with the given identifier, or nil.
func (f *File) Task(id string) *Task {
	for _, t := range f.Tasks {
		if t.Identifier == id {
			return t
		}
	}
	return nil
}

// Section returns the section with the given key, or nil.
func (f *File) Section(key string) *Section {
	for _, s := range f.Sections {
		if s.Key() == key {
			return s
		}
	}
	return nil
}

// TaskIDs lists the identifiers of all tasks in file order.
func (f *File) TaskIDs() []string {
	ids := make([]string, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		ids = append(ids, t.Identifier)
	}
	return ids
}

// Lines serialises the file. Files decoded from a snapshot carry no line order
// and only produce the header part.
func (f *File) Lines() []string {
	var out []string
	out = append(out, f.Prefix...)
	out = append(out, f.Header.Lines()...)
	out = append(out, f.HeaderSuffix...)
	for _, e := range f.order {
		out = append(out, e.Lines()...)
	}
	return out
}

// Text joins Lines with newlines.
func (f *File) Text() string {
	return strings.Join(f.Lines(), "\n")
}
