package differ

import "github.com/fatih/color"

// Style names the highlighting applied to a span of rendered text.
type Style uint8

const (
	StyleNone Style = iota
	StyleDeleted
	StyleAdded
	StyleStruck  // deleted text that is shown crossed out
	StyleHeading // section breadcrumbs
	StyleNotice  // "moved from section" notes
	StyleBanner  // history entry headers
)

// Styler turns a styled span into printable text.
type Styler interface {
	Style(s Style, text string) string
}

// PlainStyler drops all styling.
type PlainStyler struct{}

func (PlainStyler) Style(_ Style, text string) string { return text }

// MarkerStyler wraps styled spans in textual markers. It is meant for logs,
// pipes and tests.
type MarkerStyler struct{}

func (MarkerStyler) Style(s Style, text string) string {
	switch s {
	case StyleDeleted:
		return "[-" + text + "-]"
	case StyleAdded:
		return "{+" + text + "+}"
	case StyleStruck:
		return "~~" + text + "~~"
	case StyleHeading:
		return "**" + text + "**"
	case StyleNotice:
		return "!!" + text + "!!"
	case StyleBanner:
		return "==" + text + "=="
	default:
		return text
	}
}

// ANSIStyler renders styles with terminal escape sequences.
type ANSIStyler struct {
	colors map[Style]*color.Color
}

// NewANSIStyler returns a styler emitting escape codes. When enabled is false
// the codes are suppressed, whatever the terminal.
func NewANSIStyler(enabled bool) *ANSIStyler {
	colors := map[Style]*color.Color{
		StyleDeleted: color.New(color.FgRed),
		StyleAdded:   color.New(color.FgGreen),
		StyleStruck:  color.New(color.FgRed, color.CrossedOut),
		StyleHeading: color.New(color.Bold),
		StyleNotice:  color.New(color.FgYellow),
		StyleBanner:  color.New(color.FgHiBlue, color.Bold),
	}
	for _, c := range colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &ANSIStyler{colors: colors}
}

func (a *ANSIStyler) Style(s Style, text string) string {
	c, ok := a.colors[s]
	if !ok || text == "" {
		return text
	}
	return c.Sprint(text)
}
