package taskfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/tasktrail/pkg/differ"
)

const header = "TASK FILE HEADER BEGIN\n5\nf\nTASK FILE HEADER END\n"

func lineIndex(t *testing.T, lines []string, substr string) int {
	t.Helper()
	for i, l := range lines {
		if strings.Contains(l, substr) {
			return i
		}
	}
	t.Fatalf("no line contains %q in %q", substr, lines)
	return -1
}

func TestDiff_NoChanges(t *testing.T) {
	a := mustParse(t, sample)
	b := mustParse(t, sample)
	d := b.Diff(a)
	require.True(t, d.Empty())
	require.Empty(t, d.Lines(differ.MarkerStyler{}))
}

func TestDiff_AddedChangedRemovedMoved(t *testing.T) {
	old := mustParse(t, header+"# t1 Inbox\n[ ] t2 foo bar\n[ ] t3 gone\n# t4 Later")
	cur := mustParse(t, header+"# t1 Inbox\n# t4 Later\n[ ] t2 foo baz\n[ ] t5 fresh")

	d := cur.Diff(old)
	require.Len(t, d.Tasks, 3)
	require.Equal(t, []string{"t2", "t5", "t3"}, []string{d.Tasks[0].ID, d.Tasks[1].ID, d.Tasks[2].ID})
	require.True(t, d.Tasks[0].Moved())
	require.Empty(t, d.Tasks[1].OldSection)
	require.Empty(t, d.Tasks[2].NewSection)

	lines := d.Lines(differ.MarkerStyler{})
	inbox := lineIndex(t, lines, "**# t1 Inbox**")
	gone := lineIndex(t, lines, "~~gone~~")
	later := lineIndex(t, lines, "**# t4 Later**")
	moved := lineIndex(t, lines, "!!Following task was moved from section '# t1 Inbox'!!")
	baz := lineIndex(t, lines, "{+baz+}")
	fresh := lineIndex(t, lines, "{+fresh+}")

	require.Less(t, inbox, gone)
	require.Less(t, gone, later)
	require.Less(t, later, moved)
	require.Less(t, moved, baz)
	require.Less(t, baz, fresh)
	require.Contains(t, lines, "**# t4 Later**")
	require.Equal(t, 1, strings.Count(strings.Join(lines, "\n"), "# t4 Later"))
}

func TestDiff_SectionOnlyMoveIsNotReported(t *testing.T) {
	old := mustParse(t, header+"# t1 A\n[ ] t2 same\n# t3 B")
	cur := mustParse(t, header+"# t1 A\n# t3 B\n[ ] t2 same")
	require.True(t, cur.Diff(old).Empty())
}

func TestDiff_Breadcrumbs(t *testing.T) {
	old := mustParse(t, header+"# t1 Top\n## t2 Mid\n### t3 Leaf\n[ ] t4 a")
	cur := mustParse(t, header+"# t1 Top\n## t2 Mid\n### t3 Leaf\n[ ] t4 b")

	lines := cur.Diff(old).Lines(differ.MarkerStyler{})
	require.GreaterOrEqual(t, len(lines), 4)
	require.Equal(t, []string{"**# t1 Top**", "**## t2 Mid**", "**### t3 Leaf**"}, lines[:3])
}

func TestDiff_BreadcrumbsSkipSiblings(t *testing.T) {
	old := mustParse(t, header+"# t1 Top\n## t2 Other\n## t3 Mine\n[ ] t4 a")
	cur := mustParse(t, header+"# t1 Top\n## t2 Other\n## t3 Mine\n[ ] t4 b")

	lines := cur.Diff(old).Lines(differ.MarkerStyler{})
	require.Equal(t, []string{"**# t1 Top**", "**## t3 Mine**"}, lines[:2])
	require.NotContains(t, strings.Join(lines, "\n"), "Other")
}

func TestDiff_TasksWithoutIDsAreIgnored(t *testing.T) {
	old := mustParse(t, header+"# t1 A\n[ ] one")
	cur := mustParse(t, header+"# t1 A\n[ ] two")
	require.True(t, cur.Diff(old).Empty())
}
