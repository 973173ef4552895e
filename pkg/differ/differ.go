// Package differ computes and renders word-level differences between two
// versions of a task record.
//
// Text is split into runs of word, punctuation and whitespace characters, with
// zero-width block markers wherever the indentation changes. The non-whitespace
// tokens are aligned with a dynamic program whose costs favour readable diffs
// of structured task text over minimal edit scripts; whitespace is then merged
// back by position. Render turns the result into display lines.
package differ

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// AlignTexts aligns the tokens of left against the tokens of right.
func AlignTexts(left, right string) Alignment {
	leftSolid, leftWS := splitWhitespace(Tokenize(left))
	rightSolid, rightWS := splitWhitespace(Tokenize(right))
	return mergeWhitespace(Align(leftSolid, rightSolid), leftWS, rightWS)
}

// RenderTexts is shorthand for rendering AlignTexts(left, right).
func RenderTexts(left, right string, styler Styler) iter.Seq[string] {
	return Render(AlignTexts(left, right), styler)
}

// DiffResult holds the result of comparing two text versions.
type DiffResult struct {
	HasChanges bool
	Alignment  Alignment
	Cost       float64
	Stats      Stats
}

// Stats counts the changed non-whitespace tokens.
type Stats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Mutations int `json:"mutations"`
}

// TextDiff aligns oldText against newText and summarises the changes.
func TextDiff(oldText, newText string) DiffResult {
	a := AlignTexts(oldText, newText)
	res := DiffResult{Alignment: a, Cost: a.Cost()}
	for _, op := range a {
		switch op.Kind() {
		case OpPair:
			if !strings.EqualFold(op.Left.Text(), op.Right.Text()) {
				res.Stats.Mutations++
			}
		case OpDelete:
			if !op.Left.Kind.IsWhitespace() && !op.Left.Kind.IsMarker() {
				res.Stats.Deletions++
			}
		case OpInsert:
			if !op.Right.Kind.IsWhitespace() && !op.Right.Kind.IsMarker() {
				res.Stats.Additions++
			}
		}
	}
	res.HasChanges = oldText != newText
	return res
}

// Lines renders the diff with the given styler.
func (d DiffResult) Lines(styler Styler) []string {
	return slices.Collect(Render(d.Alignment, styler))
}

// Summary returns a human-readable summary of the diff.
func (d DiffResult) Summary() string {
	if !d.HasChanges {
		return "No changes detected"
	}
	return fmt.Sprintf("%d additions, %d deletions, %d changes", d.Stats.Additions, d.Stats.Deletions, d.Stats.Mutations)
}
