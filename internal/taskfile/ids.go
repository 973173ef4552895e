package taskfile

import (
	"strconv"
	"strings"
	"time"
)

// increaseCounter adds one to a decimal counter, keeping its zero padding.
func increaseCounter(counter string) string {
	n, err := strconv.Atoi(counter)
	if err != nil {
		n = 0
	}
	next := strconv.Itoa(n + 1)
	if len(counter) > len(next) {
		return counter[:len(counter)-len(next)] + next
	}
	return next
}

// nextID advances the header counter until it yields an unused task id.
func (f *File) nextID() string {
	for {
		f.Header.TaskCounter = increaseCounter(f.Header.TaskCounter)
		id := "t" + f.Header.TaskCounter
		if f.Task(id) == nil && f.Section(id) == nil {
			return id
		}
	}
}

// renameSection gives s a new identifier and moves its tasks along.
func (f *File) renameSection(s *Section, id string) {
	old := s.Key()
	var current *Section
	for _, e := range f.order {
		switch v := e.(type) {
		case *Section:
			current = v
		case *Task:
			if current == s && v.Section == old {
				v.Section = id
			}
		case *TaskRef:
			if current == s && v.Section == old {
				v.Section = id
			}
		}
	}
	s.Identifier = id
}

// AddMissingIDs numbers sections and tasks that have no identifier yet. It
// reports whether anything changed.
func (f *File) AddMissingIDs() bool {
	updated := false
	for _, s := range f.Sections {
		if s.Identifier == "" {
			f.renameSection(s, f.nextID())
			updated = true
		}
	}
	for _, t := range f.NonIDTasks {
		t.Identifier = f.nextID()
		f.Tasks = append(f.Tasks, t)
		updated = true
	}
	f.NonIDTasks = nil
	return updated
}

// ConvertSectionIDs replaces legacy "s" section identifiers with task ids.
func (f *File) ConvertSectionIDs() bool {
	updated := false
	for _, s := range f.Sections {
		if strings.HasPrefix(s.Identifier, "s") {
			f.renameSection(s, f.nextID())
			updated = true
		}
	}
	return updated
}

// ResolveTaskRefs merges the text written under "@tNN" lines into the
// referenced tasks and rewrites the reference line to "@tNN <title>".
func (f *File) ResolveTaskRefs(now time.Time) bool {
	updated := false
	for _, ref := range f.TaskRefs {
		task := f.Task(ref.Task)
		if task == nil {
			continue
		}
		if strings.TrimSpace(strings.Join(ref.Description, "")) != "" {
			updated = true
			if len(task.Description) > 0 {
				task.Description = append(task.Description, "")
			}
			task.Description = append(task.Description, "Updated at "+now.Truncate(time.Second).Format(updateLayout))
			task.Description = append(task.Description, ref.Description...)
		}
		ref.Description = nil
		title := "@" + task.Identifier + " " + task.Title
		if ref.Title != title {
			ref.Title = title
			updated = true
		}
	}
	f.TaskRefs = nil
	return updated
}

// ResolveIssues runs every fix-up and reports whether the file changed.
func (f *File) ResolveIssues(now time.Time) bool {
	changed := f.AddMissingIDs()
	changed = f.ResolveTaskRefs(now) || changed
	changed = f.ConvertSectionIDs() || changed
	return changed
}
