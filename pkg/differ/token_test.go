package differ

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type tokenView struct {
	text string
	kind TokenKind
}

func viewTokens(source string) []tokenView {
	var out []tokenView
	for tok := range Tokenize(source) {
		out = append(out, tokenView{text: tok.Text(), kind: tok.Kind})
	}
	return out
}

func TestTokenize_Runs(t *testing.T) {
	got := viewTokens("foo, bar_2!")
	require.Equal(t, []tokenView{
		{"foo", RunKind(Word)},
		{",", RunKind(Other)},
		{" ", RunKind(Whitespace)},
		{"bar_2", RunKind(Word)},
		{"!", RunKind(Other)},
	}, got)
}

func TestTokenize_BracketInterior(t *testing.T) {
	got := viewTokens("[t12] done")
	require.Equal(t, []tokenView{
		{"[", RunKind(Other)},
		{"t12", RunKind(Word)},
		{"]", RunKind(Other)},
		{" ", RunKind(Whitespace)},
		{"done", RunKind(Word)},
	}, got)

	// The blank of an open task state is a word, not whitespace.
	got = viewTokens("[ ] x")
	require.Equal(t, []tokenView{
		{"[", RunKind(Other)},
		{" ", RunKind(Word)},
		{"]", RunKind(Other)},
		{" ", RunKind(Whitespace)},
		{"x", RunKind(Word)},
	}, got)
}

func TestTokenize_BlockMarkers(t *testing.T) {
	source := "a\n  b\nc"
	toks := slices.Collect(Tokenize(source))
	require.Len(t, toks, 7)

	require.Equal(t, MarkerKind(BlockStart, 2), toks[1].Kind)
	require.Equal(t, 4, toks[1].Start)
	require.Equal(t, 4, toks[1].End)
	require.Equal(t, "\n  ", toks[2].Text())

	require.Equal(t, MarkerKind(BlockEnd, 2), toks[4].Kind)
	require.Equal(t, "", toks[4].Text())
	require.Equal(t, "\n", toks[5].Text())
	require.Equal(t, "c", toks[6].Text())
}

func TestTokenize_OneMarkerPerChange(t *testing.T) {
	var markers []TokenKind
	for tok := range Tokenize("a\n      b\nc") {
		if tok.Kind.IsMarker() {
			markers = append(markers, tok.Kind)
		}
	}
	require.Equal(t, []TokenKind{MarkerKind(BlockStart, 6), MarkerKind(BlockEnd, 6)}, markers)
}

func TestTokenize_SameLineWhitespaceKeepsIndent(t *testing.T) {
	for tok := range Tokenize("  a   b") {
		require.False(t, tok.Kind.IsMarker(), "unexpected marker %v", tok)
	}
}

func TestTokenize_CoversSource(t *testing.T) {
	for _, source := range []string{"", "x", "  [x] done #tag\n    note\n\tnext", "héllo wörld ✓"} {
		prev := 0
		var text string
		for tok := range Tokenize(source) {
			require.GreaterOrEqual(t, tok.End, tok.Start)
			if !tok.Kind.IsMarker() {
				require.Equal(t, prev, tok.Start)
				prev = tok.End
			}
			text += tok.Text()
		}
		require.Equal(t, len(source), prev)
		require.Equal(t, source, text)
	}
}

func TestTokenize_StopsEarly(t *testing.T) {
	n := 0
	for range Tokenize("a b c d") {
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)
}

func TestRuneKinds_ClassifiesOnTheWay(t *testing.T) {
	var offsets []int
	var kinds []CharKind
	for i, k := range runeKinds("é[x] \xff") {
		offsets = append(offsets, i)
		kinds = append(kinds, k)
	}
	require.Equal(t, []int{0, 2, 3, 4, 5, 6}, offsets)
	require.Equal(t, []CharKind{Word, Other, Word, Other, Whitespace, Other}, kinds)

	// Stopping after the first rune leaves the rest of the source unread.
	n := 0
	for range runeKinds("abc") {
		n++
		break
	}
	require.Equal(t, 1, n)
}
