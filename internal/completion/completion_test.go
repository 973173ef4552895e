package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/tasktrail/pkg/lspserver"
)

const doc = `TASK FILE HEADER BEGIN
4
f
TASK FILE HEADER END
# t1 Home
[ ] t2 Buy milk
  two litres
[x] t3 Buy bread
[ ] t4 Fix bike
[ ] call the bank
notes: see @bu`

func TestComplete(t *testing.T) {
	c := NewCache(nil)
	c.Set("file:///todo.md", doc)

	list := c.Complete("file:///todo.md", lspserver.Position{Line: 10, Character: 14})
	require.True(t, list.IsIncomplete)
	require.Len(t, list.Items, 1)

	item := list.Items[0]
	require.Equal(t, "[ ] Buy milk (t2)", item.Label)
	require.Equal(t, "bu", item.FilterText)
	require.Equal(t, "  two litres", item.Documentation)
	require.Equal(t, lspserver.CompletionItemKindReference, item.Kind)
	require.Equal(t, &lspserver.TextEdit{
		Range: lspserver.Range{
			Start: lspserver.Position{Line: 10, Character: 12},
			End:   lspserver.Position{Line: 10, Character: 14},
		},
		NewText: "t2",
	}, item.TextEdit)
}

func TestComplete_EmptyFragmentListsOpenTasks(t *testing.T) {
	c := NewCache(nil)
	c.Set("u", doc)
	list := c.Complete("u", lspserver.Position{Line: 10, Character: 12})
	var ids []string
	for _, it := range list.Items {
		ids = append(ids, it.TextEdit.NewText)
	}
	require.Equal(t, []string{"t2", "t4"}, ids)
}

func TestComplete_NoCandidates(t *testing.T) {
	c := NewCache(nil)
	c.Set("u", doc)

	for _, pos := range []lspserver.Position{
		{Line: 5, Character: 6},   // no "@" before the cursor
		{Line: 99, Character: 0},  // past the end
		{Line: 10, Character: 11}, // cursor before the "@"
	} {
		list := c.Complete("u", pos)
		require.False(t, list.IsIncomplete, "%+v", pos)
		require.Empty(t, list.Items, "%+v", pos)
	}
	require.Empty(t, c.Complete("missing", lspserver.Position{}).Items)
}

func TestSet_KeepsTasksOfLastGoodVersion(t *testing.T) {
	c := NewCache(nil)
	c.Set("u", doc)
	c.Set("u", "not a task file\n@fix")

	list := c.Complete("u", lspserver.Position{Line: 1, Character: 4})
	require.Len(t, list.Items, 1)
	require.Equal(t, "t4", list.Items[0].TextEdit.NewText)
}

func TestComplete_UTF16Positions(t *testing.T) {
	c := NewCache(nil)
	c.Set("u", doc+"\n😀 @fi")

	// The emoji takes two UTF-16 units.
	list := c.Complete("u", lspserver.Position{Line: 11, Character: 6})
	require.Len(t, list.Items, 1)
	require.Equal(t, 4, list.Items[0].TextEdit.Range.Start.Character)
}

func TestRegister_Session(t *testing.T) {
	s := lspserver.New("tasks", "test")
	NewCache(nil).Register(s)

	var in bytes.Buffer
	for _, m := range []map[string]any{
		{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]any{}},
		{"jsonrpc": "2.0", "method": "textDocument/didOpen", "params": map[string]any{
			"textDocument": map[string]any{"uri": "u", "languageId": "markdown", "version": 1, "text": "x"},
		}},
		{"jsonrpc": "2.0", "method": "textDocument/didChange", "params": map[string]any{
			"textDocument":   map[string]any{"uri": "u"},
			"contentChanges": []map[string]any{{"text": doc}},
		}},
		{"jsonrpc": "2.0", "id": 2, "method": "textDocument/completion", "params": map[string]any{
			"textDocument": map[string]any{"uri": "u"},
			"position":     map[string]any{"line": 10, "character": 14},
		}},
		{"jsonrpc": "2.0", "method": "exit"},
	} {
		body, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, lspserver.WriteMessage(&in, body))
	}

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), &in, &out))

	r := bufio.NewReader(&out)
	var responses []json.RawMessage
	for {
		body, err := lspserver.ReadMessage(r)
		if err != nil {
			break
		}
		responses = append(responses, body)
	}
	require.Len(t, responses, 2)

	var init struct {
		Result lspserver.InitializeResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(responses[0], &init))
	require.Equal(t, []string{"@"}, init.Result.Capabilities.CompletionProvider.TriggerCharacters)

	var completion struct {
		Result lspserver.CompletionList `json:"result"`
	}
	require.NoError(t, json.Unmarshal(responses[1], &completion))
	require.Len(t, completion.Result.Items, 1)
	require.Equal(t, "t2", completion.Result.Items[0].TextEdit.NewText)
}
