package differ

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sideText(a Alignment, left bool) string {
	var b strings.Builder
	for _, op := range a {
		tok := op.Right
		if left {
			tok = op.Left
		}
		if tok != nil {
			b.WriteString(tok.Text())
		}
	}
	return b.String()
}

func TestPairCost(t *testing.T) {
	word := func(s string) *Token { return &Token{Source: s, End: len(s), Kind: RunKind(Word)} }
	other := &Token{Source: "-", End: 1, Kind: RunKind(Other)}
	start2 := &Token{Kind: MarkerKind(BlockStart, 2)}
	start4 := &Token{Kind: MarkerKind(BlockStart, 4)}
	end4 := &Token{Kind: MarkerKind(BlockEnd, 4)}

	require.Equal(t, 0.0, pairCost(word("Done"), word("done")))
	require.Equal(t, 1.0, pairCost(word("bar"), word("baz")))
	require.Equal(t, 100.0, pairCost(word("bar"), other))
	require.Equal(t, 100.0, pairCost(word("bar"), start2))
	require.Equal(t, 2.0, pairCost(start2, start4))
	require.Equal(t, 0.0, pairCost(start4, end4))
}

func TestInsCost(t *testing.T) {
	word := &Token{Source: "x", End: 1, Kind: RunKind(Word)}
	end := &Token{Kind: MarkerKind(BlockEnd, 2)}
	start := &Token{Kind: MarkerKind(BlockStart, 2)}

	require.InDelta(t, 0.7, insCost(word, false), 1e-9)
	require.InDelta(t, 0.3, insCost(word, true), 1e-9)
	require.InDelta(t, 1.7, insCost(end, false), 1e-9)
	require.InDelta(t, 1.3, insCost(end, true), 1e-9)
	require.InDelta(t, 0.7, insCost(start, false), 1e-9)
}

func TestPickBest_TieBreak(t *testing.T) {
	s := &alignmentState{
		mutation:    alternative{path: &pathNode{}},
		insertLeft:  alternative{path: &pathNode{}},
		insertRight: alternative{path: &pathNode{}},
	}
	cases := []struct {
		name           string
		mutation, l, r float64
		want           *pathNode
		wantScore      float64
	}{
		{"three-way tie goes to mutation", 1, 1, 1, s.mutation.path, 1},
		{"insertion tie goes to insert-right", 2, 1, 1, s.insertRight.path, 1},
		{"strictly cheaper insert-left", 1, 0.5, 1, s.insertLeft.path, 0.5},
		{"insert-left tied with mutation", 0.5, 0.5, 1, s.mutation.path, 0.5},
		{"insert-right tied with mutation", 0.5, 1, 0.5, s.mutation.path, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.pickBest(Op{}, tc.mutation, tc.l, tc.r)
			require.Same(t, tc.want, got.path.prev)
			require.Equal(t, tc.wantScore, got.score)
		})
	}
}

func TestBest_TieBreak(t *testing.T) {
	cases := []struct {
		name     string
		m, l, r  float64
		wantKind string
	}{
		{"three-way tie goes to insert-right", 2, 2, 2, "right"},
		{"mutation tied with insert-left", 1, 1, 2, "left"},
		{"mutation tied with insert-right", 1, 2, 1, "right"},
		{"strictly cheaper mutation", 1, 2, 2, "mutation"},
		{"insert-left tied with insert-right", 2, 1, 1, "right"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &alignmentState{
				mutation:    alternative{score: tc.m, path: &pathNode{}},
				insertLeft:  alternative{score: tc.l, path: &pathNode{}},
				insertRight: alternative{score: tc.r, path: &pathNode{}},
			}
			want := map[string]*pathNode{
				"mutation": s.mutation.path,
				"left":     s.insertLeft.path,
				"right":    s.insertRight.path,
			}[tc.wantKind]
			require.Same(t, want, s.best().path)
		})
	}
}

func TestAlignTexts_TerminalTieDeletesThenInserts(t *testing.T) {
	a := AlignTexts("a b", "c d")

	var kinds []OpKind
	var texts []string
	for _, op := range a {
		kinds = append(kinds, op.Kind())
		if op.Left != nil {
			texts = append(texts, op.Left.Text())
		} else {
			texts = append(texts, op.Right.Text())
		}
	}
	require.Equal(t, []OpKind{OpDelete, OpDelete, OpDelete, OpInsert, OpInsert, OpInsert}, kinds)
	require.Equal(t, []string{"a", " ", "b", "c", " ", "d"}, texts)
	require.InDelta(t, 2.0, a.Cost(), 1e-9)
}

func TestPickBest_NeverChoosesUnreachable(t *testing.T) {
	s := &alignmentState{mutation: unreachable, insertLeft: unreachable, insertRight: alternative{score: 3}}
	got := s.pickBest(Op{}, math.Inf(1), math.Inf(1), 3.7)
	require.Equal(t, 3.7, got.score)

	s = &alignmentState{mutation: unreachable, insertLeft: alternative{score: 2}, insertRight: unreachable}
	got = s.pickBest(Op{}, math.Inf(1), 2.3, math.Inf(1))
	require.Equal(t, 2.3, got.score)
}

func TestAlign_Empty(t *testing.T) {
	require.Empty(t, Align(nil, nil))
	require.Empty(t, AlignTexts("", ""))
}

func TestAlignTexts_Identity(t *testing.T) {
	for _, s := range []string{"foo", "[ ] t3 write #docs\n  details here\n", "  a\n    b\n  c\n"} {
		a := AlignTexts(s, s)
		for _, op := range a {
			if op.Kind() == OpPair {
				require.Equal(t, 0.0, pairCost(op.Left, op.Right))
				continue
			}
			// Only whitespace travels unpaired.
			tok := op.Left
			if tok == nil {
				tok = op.Right
			}
			require.True(t, tok.Kind.IsWhitespace(), "unexpected unpaired %v", tok)
		}
		require.Equal(t, 0.0, a.Cost())
	}
}

func TestAlignTexts_Coverage(t *testing.T) {
	pairs := [][2]string{
		{"foo bar", "foo baz qux"},
		{"[ ] t1 buy milk\n  and bread", "[x] t1 buy oat milk\n    and bread\nlater"},
		{"", "only right"},
		{"only left\n\tindented", ""},
		{"a,b;c", "c;b,a"},
	}
	for _, p := range pairs {
		a := AlignTexts(p[0], p[1])
		require.Equal(t, p[0], sideText(a, true))
		require.Equal(t, p[1], sideText(a, false))
	}
}

func TestAlignTexts_EmptySide(t *testing.T) {
	a := AlignTexts("", "a b")
	require.Len(t, a, 3)
	for _, op := range a {
		require.Equal(t, OpInsert, op.Kind())
	}

	a = AlignTexts("a b", "")
	require.Len(t, a, 3)
	for _, op := range a {
		require.Equal(t, OpDelete, op.Kind())
	}
}

func TestAlignTexts_FooBar(t *testing.T) {
	a := AlignTexts("foo bar", "foo baz")
	require.Len(t, a, 4)

	require.Equal(t, OpPair, a[0].Kind())
	require.Equal(t, "foo", a[0].Left.Text())
	require.Equal(t, 0.0, pairCost(a[0].Left, a[0].Right))

	require.Equal(t, OpInsert, a[1].Kind())
	require.Equal(t, " ", a[1].Right.Text())
	require.Equal(t, OpDelete, a[2].Kind())
	require.Equal(t, " ", a[2].Left.Text())

	require.Equal(t, OpPair, a[3].Kind())
	require.Equal(t, "bar", a[3].Left.Text())
	require.Equal(t, "baz", a[3].Right.Text())
	require.Equal(t, 1.0, pairCost(a[3].Left, a[3].Right))

	require.Equal(t, 1.0, a.Cost())
}

func TestAlignTexts_IndentationShift(t *testing.T) {
	// One column of difference is cheaper to pair than to drop and re-add.
	a := AlignTexts("a\n  b", "a\n   b")
	var marker *Op
	for i := range a {
		if a[i].Kind() == OpPair && a[i].Left.Kind.IsMarker() {
			marker = &a[i]
		}
	}
	require.NotNil(t, marker)
	require.Equal(t, MarkerKind(BlockStart, 2), marker.Left.Kind)
	require.Equal(t, MarkerKind(BlockStart, 3), marker.Right.Kind)
	require.Equal(t, 1.0, a.Cost())

	// Two columns: both markers survive, nowhere near a kind mismatch.
	a = AlignTexts("a\n  b", "a\n    b")
	var left, right []TokenKind
	for _, op := range a {
		if op.Left != nil && op.Left.Kind.IsMarker() {
			left = append(left, op.Left.Kind)
		}
		if op.Right != nil && op.Right.Kind.IsMarker() {
			right = append(right, op.Right.Kind)
		}
	}
	require.Equal(t, []TokenKind{MarkerKind(BlockStart, 2)}, left)
	require.Equal(t, []TokenKind{MarkerKind(BlockStart, 4)}, right)
	require.InDelta(t, 1.4, a.Cost(), 1e-9)
	require.Less(t, a.Cost(), mismatchCost)
}

func TestAlignTexts_NonNegativeCost(t *testing.T) {
	require.Equal(t, 0.0, AlignTexts("Fix Bug", "fix bug").Cost())
	require.Greater(t, AlignTexts("fix bug", "fix the bug").Cost(), 0.0)
	require.Greater(t, AlignTexts("x", "").Cost(), 0.0)
}

func TestAlignTexts_Deterministic(t *testing.T) {
	left := "[ ] t4 review #ops\n  check alerts, dashboards\n  page on-call"
	right := "[x] t4 review alerts #ops\n    check dashboards\n  page someone"
	want := sideOps(AlignTexts(left, right))
	for range 5 {
		require.Equal(t, want, sideOps(AlignTexts(left, right)))
	}
}

func sideOps(a Alignment) []string {
	out := make([]string, 0, len(a))
	for _, op := range a {
		var l, r string
		if op.Left != nil {
			l = op.Left.String()
		}
		if op.Right != nil {
			r = op.Right.String()
		}
		out = append(out, l+"|"+r)
	}
	return out
}
