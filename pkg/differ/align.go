package differ

import (
	"math"
	"slices"
	"strings"
)

// Op is one step of an alignment. A pair has both sides set, a deletion only
// Left and an insertion only Right.
type Op struct {
	Left  *Token
	Right *Token
}

// OpKind names the three shapes an Op can take.
type OpKind uint8

const (
	OpPair OpKind = iota
	OpDelete
	OpInsert
)

// Kind returns the shape of the operation.
func (o Op) Kind() OpKind {
	switch {
	case o.Right == nil:
		return OpDelete
	case o.Left == nil:
		return OpInsert
	default:
		return OpPair
	}
}

// Alignment is an ordered list of operations. Reading the Left tokens in order
// gives the left document back; the same holds for Right.
type Alignment []Op

const (
	mismatchCost      = 100.0
	substituteCost    = 1.0
	insertCost        = 0.7
	insertAgainCost   = 0.3
	blockEndSurcharge = 1.0 // dropping a closing block should surface
)

// pairCost is the price of treating a and b as corresponding tokens.
func pairCost(a, b *Token) float64 {
	ka, kb := a.Kind, b.Kind
	switch {
	case ka.marker && kb.marker:
		return math.Abs(float64(ka.depth - kb.depth))
	case ka.marker != kb.marker, ka.char != kb.char:
		return mismatchCost
	case strings.EqualFold(a.Text(), b.Text()):
		return 0
	default:
		return substituteCost
	}
}

// insCost is the price of leaving tok unmatched. sameAsPrev is set when the
// previous operation was the same kind of insertion.
func insCost(tok *Token, sameAsPrev bool) float64 {
	cost := insertCost
	if sameAsPrev {
		cost = insertAgainCost
	}
	if tok.Kind.marker && tok.Kind.edge == BlockEnd {
		cost += blockEndSurcharge
	}
	return cost
}

// pathNode is a link of a backpointer chain. Many cells may point at the same
// predecessor; a chain is only walked once, from the terminal cell.
type pathNode struct {
	op   Op
	prev *pathNode
}

// collect walks the chain and returns the operations in document order.
func (p *pathNode) collect() Alignment {
	var out Alignment
	for n := p; n != nil; n = n.prev {
		out = append(out, n.op)
	}
	slices.Reverse(out)
	return out
}

type alternative struct {
	score float64
	path  *pathNode
}

var unreachable = alternative{score: math.Inf(1)}

// alignmentState holds the best alternatives of one DP cell, keyed by the
// kind of the last operation.
type alignmentState struct {
	mutation    alternative
	insertLeft  alternative
	insertRight alternative
}

// pickBest chooses the predecessor alternative for an outgoing edge. Ties go to
// insert-right over insert-left, and to the mutation over either insertion.
func (s *alignmentState) pickBest(op Op, mutation, left, right float64) alternative {
	var score float64
	var prev *pathNode
	if left < right {
		if left < mutation {
			score, prev = left, s.insertLeft.path
		} else {
			score, prev = mutation, s.mutation.path
		}
	} else {
		if right < mutation {
			score, prev = right, s.insertRight.path
		} else {
			score, prev = mutation, s.mutation.path
		}
	}
	return alternative{score: score, path: &pathNode{op: op, prev: prev}}
}

// best returns the cheapest alternative of a terminal cell.
func (s *alignmentState) best() alternative {
	if s.mutation.score < s.insertLeft.score {
		if s.mutation.score < s.insertRight.score {
			return s.mutation
		}
		return s.insertRight
	}
	if s.insertLeft.score < s.insertRight.score {
		return s.insertLeft
	}
	return s.insertRight
}

func (s *alignmentState) withLeft(l *Token) alternative {
	return s.pickBest(Op{Left: l},
		s.mutation.score+insCost(l, false),
		s.insertLeft.score+insCost(l, true),
		s.insertRight.score+insCost(l, false),
	)
}

func (s *alignmentState) withRight(r *Token) alternative {
	return s.pickBest(Op{Right: r},
		s.mutation.score+insCost(r, false),
		s.insertLeft.score+insCost(r, false),
		s.insertRight.score+insCost(r, true),
	)
}

func (s *alignmentState) withPair(l, r *Token) alternative {
	c := pairCost(l, r)
	return s.pickBest(Op{Left: l, Right: r},
		s.mutation.score+c,
		s.insertLeft.score+c,
		s.insertRight.score+c,
	)
}

// Align computes the cheapest alignment of left against right. Only the
// previous and the current DP rows are kept; the result is recovered from the
// shared backpointer chains of the terminal cell.
func Align(left, right []Token) Alignment {
	row := make([]alignmentState, len(left)+1)
	row[0] = alignmentState{mutation: alternative{}, insertLeft: unreachable, insertRight: unreachable}
	for i := range left {
		row[i+1] = alignmentState{
			mutation:    unreachable,
			insertLeft:  row[i].withLeft(&left[i]),
			insertRight: unreachable,
		}
	}

	next := make([]alignmentState, len(left)+1)
	for j := range right {
		r := &right[j]
		next[0] = alignmentState{
			mutation:    unreachable,
			insertLeft:  unreachable,
			insertRight: row[0].withRight(r),
		}
		for i := range left {
			l := &left[i]
			next[i+1] = alignmentState{
				mutation:    row[i].withPair(l, r),
				insertLeft:  next[i].withLeft(l),
				insertRight: row[i+1].withRight(r),
			}
		}
		row, next = next, row
	}

	return row[len(left)].best().path.collect()
}

// Cost returns the total cost the aligner assigns to a. Whitespace operations
// are free since they never take part in the alignment.
func (a Alignment) Cost() float64 {
	total := 0.0
	prev := OpPair
	for _, op := range a {
		if op.Left != nil && op.Left.Kind.IsWhitespace() || op.Right != nil && op.Right.Kind.IsWhitespace() {
			continue
		}
		kind := op.Kind()
		switch kind {
		case OpPair:
			total += pairCost(op.Left, op.Right)
		case OpDelete:
			total += insCost(op.Left, prev == OpDelete)
		case OpInsert:
			total += insCost(op.Right, prev == OpInsert)
		}
		prev = kind
	}
	return total
}
