package taskfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ErrNotTaskFile is returned when the input has no task file header.
var ErrNotTaskFile = errors.New("not a task file")

var (
	counterRE  = regexp.MustCompile(`^[0-9]+$`)
	fileIDRE   = regexp.MustCompile(`^[a-zA-Z0-9][-a-zA-Z0-9]*$`)
	sectionRE  = regexp.MustCompile(`^#+[ \t]`)
	idRE       = regexp.MustCompile(`^[st][0-9]+$`) // "s" ids predate the shared counter
	taskLineRE = regexp.MustCompile(`^(?P<prefix>[ *-]*)(?P<state>\[[^\]]*\])(?P<rest>.*)$`)
	tagRE      = regexp.MustCompile(`^#[-a-zA-Z_0-9]*$`)
	refLineRE  = regexp.MustCompile(`^\s*@(?P<task>t[0-9]+)\b`)
	spaceRE    = regexp.MustCompile(`\s+`)
)

const updateLayout = "2006-01-02T15:04:05"

// Parse reads a task file. It returns ErrNotTaskFile when no header is found.
func Parse(r io.Reader, ids FileIdentifiers) (*File, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return ParseLines(lines, ids, time.Now())
}

// ParseLines parses already split lines and stamps the result with now.
func ParseLines(lines []string, ids FileIdentifiers, now time.Time) (*File, error) {
	c := &cursor{lines: lines}
	header, prefix, suffix, ok := parseHeader(c.untilSection())
	if !ok {
		return nil, ErrNotTaskFile
	}
	f := &File{
		Header:           header,
		FileIdentifiers:  ids,
		UpdateTime:       now,
		UpdateTimePretty: now.Format(updateLayout),
		Prefix:           prefix,
		HeaderSuffix:     suffix,
	}
	for c.more() {
		section := parseSectionLine(c.next())
		f.Sections = append(f.Sections, section)
		f.order = append(f.order, section)

		var last interface{ addDescription(string) }
		for _, raw := range c.untilSection() {
			if ref := parseRefLine(section, raw); ref != nil {
				f.TaskRefs = append(f.TaskRefs, ref)
				f.order = append(f.order, ref)
				last = ref
				continue
			}
			if task := parseTaskLine(section, raw); task != nil {
				if task.Identifier == "" {
					f.NonIDTasks = append(f.NonIDTasks, task)
				} else {
					f.Tasks = append(f.Tasks, task)
				}
				f.order = append(f.order, task)
				last = task
				continue
			}
			if last != nil {
				last.addDescription(raw)
			} else {
				section.Description = append(section.Description, raw)
			}
		}
	}
	return f, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return lines, nil
}

type cursor struct {
	lines []string
	pos   int
}

func (c *cursor) more() bool { return c.pos < len(c.lines) }

func (c *cursor) next() string {
	line := c.lines[c.pos]
	c.pos++
	return line
}

// untilSection consumes lines up to, not including, the next section line.
func (c *cursor) untilSection() []string {
	start := c.pos
	for c.more() && !sectionRE.MatchString(strings.TrimRightFunc(c.lines[c.pos], isSpace)) {
		c.pos++
	}
	return c.lines[start:c.pos]
}

// parseHeader finds the header block. Lines before it form the prefix and lines
// after it the suffix. The older five-line header with a separate section
// counter is accepted and upgraded.
func parseHeader(lines []string) (h Header, prefix, suffix []string, ok bool) {
	at := func(i int) string { return strings.TrimSpace(lines[i]) }
	for i := 0; i < len(lines); {
		if !ok && at(i) == HeaderBegin {
			if i+4 < len(lines) && at(i+4) == HeaderEnd &&
				counterRE.MatchString(at(i+1)) && counterRE.MatchString(at(i+2)) && fileIDRE.MatchString(at(i+3)) {
				h, ok = Header{TaskCounter: at(i + 1), Identifier: at(i + 3)}, true
				i += 5
				continue
			}
			if i+3 < len(lines) && at(i+3) == HeaderEnd &&
				counterRE.MatchString(at(i+1)) && fileIDRE.MatchString(at(i+2)) {
				h, ok = Header{TaskCounter: at(i + 1), Identifier: at(i + 2)}, true
				i += 4
				continue
			}
		}
		if ok {
			suffix = append(suffix, lines[i])
		} else {
			prefix = append(prefix, lines[i])
		}
		i++
	}
	return h, prefix, suffix, ok
}

func parseSectionLine(line string) *Section {
	line = strings.TrimSpace(line)
	title := strings.TrimLeft(line, "#")
	level := len(line) - len(title)
	s := &Section{Level: level}
	var words []string
	for _, w := range spaceRE.Split(strings.TrimSpace(title), -1) {
		if s.Identifier == "" && idRE.MatchString(w) {
			s.Identifier = w
			continue
		}
		words = append(words, w)
	}
	s.Title = strings.Join(words, " ")
	return s
}

// parseTaskLine parses "<prefix>[state] ids-and-tags title". Identifiers and
// tags in front of the title are metadata; once the title starts they are
// kept in it as well.
func parseTaskLine(section *Section, line string) *Task {
	m := taskLineRE.FindStringSubmatch(strings.TrimRightFunc(line, isSpace))
	if m == nil {
		return nil
	}
	t := &Task{
		State:        m[taskLineRE.SubexpIndex("state")],
		Prefix:       m[taskLineRE.SubexpIndex("prefix")],
		Section:      section.Key(),
		RelatedTasks: []string{},
		Tags:         []string{},
	}
	rest := strings.TrimSpace(m[taskLineRE.SubexpIndex("rest")])
	skipping := true
	var words []string
	for _, w := range spaceRE.Split(rest, -1) {
		switch {
		case idRE.MatchString(w):
			if t.Identifier == "" {
				t.Identifier = w
			} else {
				t.RelatedTasks = append(t.RelatedTasks, w)
			}
		case tagRE.MatchString(w):
			t.Tags = append(t.Tags, w)
		default:
			skipping = false
		}
		if skipping {
			t.Meta = append(t.Meta, w)
		} else {
			words = append(words, w)
		}
	}
	t.Title = strings.Join(words, " ")
	return t
}

func parseRefLine(section *Section, line string) *TaskRef {
	raw := strings.TrimRightFunc(line, isSpace)
	m := refLineRE.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return &TaskRef{Task: m[1], Section: section.Key(), Title: raw}
}

func (t *Task) addDescription(line string) {
	t.Description = append(t.Description, line)
	for _, w := range spaceRE.Split(line, -1) {
		if tagRE.MatchString(w) && !slices.Contains(t.Tags, w) {
			t.Tags = append(t.Tags, w)
		}
	}
}

func (r *TaskRef) addDescription(line string) {
	r.Description = append(r.Description, line)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
