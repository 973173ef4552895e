package differ

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// richString is a piece of text made of plain and styled parts. Styled parts
// are rich strings themselves, so styles nest.
type richString struct {
	style Style
	parts []richPart
	size  int // in runes
}

type richPart struct {
	text   string
	nested *richString
}

func styled(s Style, text string) *richString {
	r := &richString{style: s}
	return r.text(text)
}

func (r *richString) text(s string) *richString {
	r.parts = append(r.parts, richPart{text: s})
	r.size += utf8.RuneCountInString(s)
	return r
}

func (r *richString) pad(n int) *richString {
	if n <= 0 {
		return r
	}
	return r.text(strings.Repeat(" ", n))
}

func (r *richString) append(n *richString) *richString {
	r.parts = append(r.parts, richPart{nested: n})
	r.size += n.size
	return r
}

// isSpace reports whether r is non-empty and holds nothing but whitespace.
func (r *richString) isSpace() bool {
	for _, p := range r.parts {
		if p.nested != nil {
			if p.nested.size > 0 && !p.nested.isSpace() {
				return false
			}
			continue
		}
		if p.text != "" && strings.TrimFunc(p.text, unicode.IsSpace) != "" {
			return false
		}
	}
	return r.size > 0
}

func (r *richString) render(s Styler) string {
	var b strings.Builder
	r.writeTo(&b, s)
	return b.String()
}

func (r *richString) writeTo(b *strings.Builder, s Styler) {
	if r.style != StyleNone {
		if r.size == 0 {
			return
		}
		var inner strings.Builder
		r.writeParts(&inner, s)
		b.WriteString(s.Style(r.style, inner.String()))
		return
	}
	r.writeParts(b, s)
}

func (r *richString) writeParts(b *strings.Builder, s Styler) {
	for _, p := range r.parts {
		if p.nested != nil {
			p.nested.writeTo(b, s)
		} else {
			b.WriteString(p.text)
		}
	}
}

// lineRenderer accumulates the old (left) and new (right) versions of the
// current display line.
type lineRenderer struct {
	styler Styler
	left   *richString
	right  *richString
}

func (lr *lineRenderer) reset() {
	lr.left = &richString{}
	lr.right = &richString{}
}

// flush emits the current line pair. Identical lines are emitted once;
// otherwise each side is emitted unless it is blank.
func (lr *lineRenderer) flush(yield func(string) bool) bool {
	left, right := lr.left.render(lr.styler), lr.right.render(lr.styler)
	leftBlank, rightBlank := lr.left.isSpace(), lr.right.isSpace()
	lr.reset()
	if left == right {
		return yield(right)
	}
	if !leftBlank && !yield(left) {
		return false
	}
	if !rightBlank && !yield(right) {
		return false
	}
	return true
}

// alignWidths pads the narrower of the two lines so the columns that follow
// stay aligned.
func (lr *lineRenderer) alignWidths(leftText, rightText string) {
	lw, rw := runewidth.StringWidth(leftText), runewidth.StringWidth(rightText)
	if lw < rw {
		lr.left.pad(rw - lw)
	} else if rw < lw {
		lr.right.pad(lw - rw)
	}
}

// Render lays an alignment out as display lines. Unchanged text shows on a
// single line; changed text produces an old line (deletions) above a new line
// (additions), column aligned.
func Render(a Alignment, styler Styler) iter.Seq[string] {
	return func(yield func(string) bool) {
		lr := &lineRenderer{styler: styler}
		lr.reset()
		prevWasSpace := true
		for _, op := range a {
			switch op.Kind() {
			case OpPair:
				lt, rt := op.Left.Text(), op.Right.Text()
				if strings.EqualFold(lt, rt) {
					lr.left.pad(runewidth.StringWidth(lt))
					lr.right.text(rt)
				} else {
					lr.left.append(styled(StyleDeleted, lt))
					lr.right.append(styled(StyleAdded, rt))
				}
				lr.alignWidths(lt, rt)
				prevWasSpace = false

			case OpDelete:
				if op.Left.Kind.IsWhitespace() {
					if !prevWasSpace {
						lr.left.append(styled(StyleStruck, " "))
						lr.right.text(" ")
					}
					prevWasSpace = true
					continue
				}
				text := op.Left.Text()
				lr.left.append(styled(StyleStruck, text))
				lr.right.pad(runewidth.StringWidth(text))
				prevWasSpace = false

			case OpInsert:
				text := op.Right.Text()
				if !op.Right.Kind.IsWhitespace() {
					lr.left.pad(runewidth.StringWidth(text))
					lr.right.append(styled(StyleAdded, text))
					prevWasSpace = false
					continue
				}
				segments := strings.Split(text, "\n")
				lr.left.text(segments[0])
				lr.right.text(segments[0])
				for _, seg := range segments[1:] {
					if !lr.flush(yield) {
						return
					}
					lr.left.text(seg)
					lr.right.text(seg)
				}
				prevWasSpace = true
			}
		}
		lr.flush(yield)
	}
}
