package differ

import "fmt"

// mergeWhitespace puts the whitespace tokens, which were left out of the
// alignment, back in front of the first aligned token that follows them.
func mergeWhitespace(a Alignment, leftWS, rightWS []Token) Alignment {
	out := make(Alignment, 0, len(a)+len(leftWS)+len(rightWS))
	li, ri := 0, 0
	var leftAt, rightAt *Token
	for _, op := range a {
		if op.Right != nil {
			rightAt = op.Right
		}
		if rightAt != nil {
			for ri < len(rightWS) && rightWS[ri].Start < rightAt.Start {
				checkOrder(&rightWS[ri], rightAt)
				out = append(out, Op{Right: &rightWS[ri]})
				ri++
			}
		}
		if op.Left != nil {
			leftAt = op.Left
		}
		if leftAt != nil {
			for li < len(leftWS) && leftWS[li].Start < leftAt.Start {
				checkOrder(&leftWS[li], leftAt)
				out = append(out, Op{Left: &leftWS[li]})
				li++
			}
		}
		out = append(out, op)
	}
	for ri < len(rightWS) {
		out = append(out, Op{Right: &rightWS[ri]})
		ri++
	}
	for li < len(leftWS) {
		out = append(out, Op{Left: &leftWS[li]})
		li++
	}
	return out
}

// checkOrder panics when a whitespace token overlaps the token it is placed
// before. The tokenizer never produces such ranges.
func checkOrder(ws, at *Token) {
	if ws.End > at.Start {
		panic(fmt.Sprintf("differ: whitespace %v overlaps %v", ws, at))
	}
}
