package differ

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CharKind classifies a single character of the source text.
type CharKind uint8

const (
	Whitespace CharKind = iota
	Word
	Other
)

func (k CharKind) String() string {
	switch k {
	case Whitespace:
		return "whitespace"
	case Word:
		return "word"
	default:
		return "other"
	}
}

// BlockEdge tells whether a block marker opens or closes an indentation level.
type BlockEdge uint8

const (
	BlockStart BlockEdge = iota
	BlockEnd
)

// TokenKind is either a character-run kind or a zero-width block marker.
type TokenKind struct {
	marker bool
	char   CharKind
	edge   BlockEdge
	depth  int
}

// RunKind returns the kind of a run of characters of class c.
func RunKind(c CharKind) TokenKind {
	return TokenKind{char: c}
}

// MarkerKind returns the kind of a block marker at the given depth.
func MarkerKind(edge BlockEdge, depth int) TokenKind {
	return TokenKind{marker: true, edge: edge, depth: depth}
}

// IsMarker reports whether the kind is a block marker.
func (k TokenKind) IsMarker() bool { return k.marker }

// Char returns the character class of a run. It is meaningless for markers.
func (k TokenKind) Char() CharKind { return k.char }

// Edge returns the marker edge. It is meaningless for character runs.
func (k TokenKind) Edge() BlockEdge { return k.edge }

// Depth returns the marker depth in columns.
func (k TokenKind) Depth() int { return k.depth }

// IsWhitespace reports whether the kind is a whitespace run.
func (k TokenKind) IsWhitespace() bool { return !k.marker && k.char == Whitespace }

func (k TokenKind) String() string {
	if !k.marker {
		return k.char.String()
	}
	if k.edge == BlockEnd {
		return fmt.Sprintf("block-end(%d)", k.depth)
	}
	return fmt.Sprintf("block-start(%d)", k.depth)
}

// Token is a classified view over Source[Start:End].
type Token struct {
	Source string
	Start  int
	End    int
	Kind   TokenKind
}

// Text returns the covered substring. Markers return "".
func (t Token) Text() string {
	return t.Source[t.Start:t.End]
}

func (t Token) String() string {
	return fmt.Sprintf("%q %s %d %d", t.Text(), t.Kind, t.Start, t.End)
}

// classify returns the class of the rune r that sits between prev and next.
// hasPrev/hasNext are false at the string boundaries.
func classify(r, prev, next rune, hasPrev, hasNext bool) CharKind {
	// Anything wrapped in a single pair of brackets, like the state in "[x]", is a word.
	if hasPrev && hasNext && prev == '[' && next == ']' {
		return Word
	}
	switch {
	case unicode.IsSpace(r):
		return Whitespace
	case r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r):
		return Word
	default:
		return Other
	}
}

// runeKinds yields the byte offset and class of every rune of source. Each
// rune is classified when it is reached, looking one rune ahead.
func runeKinds(source string) iter.Seq2[int, CharKind] {
	return func(yield func(int, CharKind) bool) {
		var prev rune
		for i := 0; i < len(source); {
			r, size := utf8.DecodeRuneInString(source[i:])
			next, _ := utf8.DecodeRuneInString(source[i+size:])
			if !yield(i, classify(r, prev, next, i > 0, i+size < len(source))) {
				return
			}
			prev = r
			i += size
		}
	}
}

// indentation returns the column count after the last newline of a whitespace
// run, or prev when the run stays on one line.
func indentation(ws string, prev int) int {
	idx := strings.LastIndexByte(ws, '\n')
	if idx < 0 {
		return prev
	}
	return utf8.RuneCountInString(ws[idx+1:])
}

// Tokenize splits source into maximal runs of equally classified characters.
// Every change of indentation between lines is announced by a zero-width block
// marker yielded right before the whitespace run that causes it.
func Tokenize(source string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		prevIndent := 0
		emit := func(start, end int, kind CharKind) bool {
			if kind == Whitespace {
				indent := indentation(source[start:end], prevIndent)
				if indent != prevIndent {
					marker := MarkerKind(BlockStart, indent)
					if indent < prevIndent {
						marker = MarkerKind(BlockEnd, prevIndent)
					}
					if !yield(Token{Source: source, Start: end, End: end, Kind: marker}) {
						return false
					}
					prevIndent = indent
				}
			}
			return yield(Token{Source: source, Start: start, End: end, Kind: RunKind(kind)})
		}

		start, kind := -1, Whitespace
		for i, k := range runeKinds(source) {
			switch {
			case start < 0:
				start, kind = i, k
			case k != kind:
				if !emit(start, i, kind) {
					return
				}
				start, kind = i, k
			}
		}
		if start >= 0 {
			emit(start, len(source), kind)
		}
	}
}

// splitWhitespace partitions tokens into non-whitespace and whitespace tokens,
// keeping the relative order of each group.
func splitWhitespace(seq iter.Seq[Token]) (solid, ws []Token) {
	for tok := range seq {
		if tok.Kind.IsWhitespace() {
			ws = append(ws, tok)
		} else {
			solid = append(solid, tok)
		}
	}
	return solid, ws
}
