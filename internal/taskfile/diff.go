package taskfile

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RobinCoderZhao/tasktrail/pkg/differ"
)

// TaskDiff is the change of a single task between two versions of a file.
// OldSection is empty for new tasks and NewSection is empty for removed ones.
type TaskDiff struct {
	ID         string
	OldSection string
	NewSection string
	Result     differ.DiffResult
}

// Moved reports whether the task changed section.
func (d TaskDiff) Moved() bool {
	return d.OldSection != "" && d.NewSection != "" && d.OldSection != d.NewSection
}

func (d TaskDiff) sectionKey() string {
	if d.NewSection != "" {
		return d.NewSection
	}
	return d.OldSection
}

// FileDiff lists the changed tasks of a file together with the sections
// needed to place them.
type FileDiff struct {
	Tasks       []TaskDiff
	Sections    []*Section
	OldSections []*Section
}

// DiffTasks compares two versions of a task. Either side may be nil.
func DiffTasks(old, cur *Task) TaskDiff {
	var d TaskDiff
	var oldText, newText string
	if old != nil {
		d.ID, d.OldSection, oldText = old.Identifier, old.Section, old.Text()
	}
	if cur != nil {
		d.ID, d.NewSection, newText = cur.Identifier, cur.Section, cur.Text()
	}
	d.Result = differ.TextDiff(oldText, newText)
	return d
}

type taskPair struct {
	old, cur *Task
}

// Diff compares f against an older version of the same file. Tasks are matched
// by identifier; tasks without one are ignored.
func (f *File) Diff(old *File) *FileDiff {
	var pairs []taskPair
	seen := make(map[string]bool)
	for _, t := range f.Tasks {
		if t.Identifier == "" {
			continue
		}
		seen[t.Identifier] = true
		o := old.Task(t.Identifier)
		if o == nil || o.Text() != t.Text() {
			pairs = append(pairs, taskPair{old: o, cur: t})
		}
	}
	for _, o := range old.Tasks {
		if o.Identifier != "" && !seen[o.Identifier] {
			pairs = append(pairs, taskPair{old: o})
		}
	}

	return &FileDiff{
		Tasks:       diffAll(pairs),
		Sections:    f.Sections,
		OldSections: old.Sections,
	}
}

// diffAll aligns every pair concurrently. Results keep the input order.
func diffAll(pairs []taskPair) []TaskDiff {
	out := make([]TaskDiff, len(pairs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pairs {
		g.Go(func() error {
			out[i] = DiffTasks(p.old, p.cur)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Empty reports whether no task changed.
func (d *FileDiff) Empty() bool {
	return len(d.Tasks) == 0
}

// Lines renders the diff. Tasks are grouped by the position of their section;
// each section, and any of its enclosing sections not shown yet, is printed as
// a heading before the first task in it.
func (d *FileDiff) Lines(styler differ.Styler) []string {
	index := make(map[string]int, len(d.Sections))
	for i, s := range d.Sections {
		index[s.Key()] = i
	}
	position := func(t TaskDiff) int {
		if i, ok := index[t.sectionKey()]; ok {
			return i
		}
		return -1
	}
	tasks := make([]TaskDiff, len(d.Tasks))
	copy(tasks, d.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool { return position(tasks[i]) < position(tasks[j]) })

	var out []string
	printed := make(map[string]bool)
	for _, t := range tasks {
		if i, ok := index[t.sectionKey()]; ok && !printed[t.sectionKey()] {
			for _, s := range d.breadcrumbs(i, printed) {
				for _, line := range s.Lines() {
					out = append(out, styler.Style(differ.StyleHeading, line))
				}
			}
		}
		if t.Moved() {
			from := t.OldSection
			for _, s := range d.OldSections {
				if s.Key() == t.OldSection {
					from = strings.Join(s.Lines(), "\n")
					break
				}
			}
			out = append(out, styler.Style(differ.StyleNotice, fmt.Sprintf("Following task was moved from section '%s'", from)))
		}
		out = append(out, t.Result.Lines(styler)...)
	}
	return out
}

// breadcrumbs returns the section at i preceded by its enclosing sections that
// were not printed yet, outermost first, and marks them printed.
func (d *FileDiff) breadcrumbs(i int, printed map[string]bool) []*Section {
	s := d.Sections[i]
	chain := []*Section{s}
	printed[s.Key()] = true
	level := s.Level
	for k := i - 1; k >= 0 && level > 1; k-- {
		p := d.Sections[k]
		if p.Level >= level {
			continue
		}
		if printed[p.Key()] {
			break
		}
		printed[p.Key()] = true
		chain = append(chain, p)
		level = p.Level
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}
