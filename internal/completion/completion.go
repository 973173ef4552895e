// Package completion offers "@" task reference completion for open task
// files over the language server protocol.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/RobinCoderZhao/tasktrail/internal/taskfile"
	"github.com/RobinCoderZhao/tasktrail/pkg/lspserver"
)

type document struct {
	lines []string
	tasks []*taskfile.Task
}

// Cache holds the open documents and the tasks parsed from them.
type Cache struct {
	mu     sync.Mutex
	docs   map[string]*document
	logger *slog.Logger
}

func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{docs: make(map[string]*document), logger: logger}
}

// Set stores the full text of a document. If the text does not parse as a
// task file, or has no tasks, the tasks of the previous version are kept.
func (c *Cache) Set(uri, text string) {
	lines := strings.Split(text, "\n")
	f, err := taskfile.ParseLines(lines, taskfile.FileIdentifiers{Filename: uri}, time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	doc := c.docs[uri]
	if doc == nil {
		doc = &document{}
		c.docs[uri] = doc
	}
	doc.lines = lines
	if err == nil && len(f.Tasks) > 0 {
		doc.tasks = f.Tasks
	} else {
		c.logger.Debug("keeping previous tasks", "uri", uri, "error", err)
	}
}

// Complete returns completions for the position. The text between the last
// "@" before the cursor and the cursor selects open tasks whose title
// contains it, ignoring case.
func (c *Cache) Complete(uri string, pos lspserver.Position) lspserver.CompletionList {
	empty := lspserver.CompletionList{Items: []lspserver.CompletionItem{}}

	c.mu.Lock()
	doc := c.docs[uri]
	var line string
	var tasks []*taskfile.Task
	if doc != nil && pos.Line >= 0 && pos.Line < len(doc.lines) {
		line, tasks = doc.lines[pos.Line], doc.tasks
	}
	c.mu.Unlock()

	if len(tasks) == 0 {
		return empty
	}
	before := prefixUTF16(line, pos.Character)
	at := strings.LastIndex(before, "@")
	if at < 0 {
		return empty
	}
	typed := before[at+1:]
	needle := strings.ToLower(typed)
	start := pos.Character - utf16Len(typed)

	list := lspserver.CompletionList{IsIncomplete: true, Items: []lspserver.CompletionItem{}}
	for _, t := range tasks {
		if t.Identifier == "" || t.Done() || !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		label := fmt.Sprintf("%s %s (%s)", t.State, t.Title, t.Identifier)
		list.Items = append(list.Items, lspserver.CompletionItem{
			Label:         label,
			Detail:        label,
			Kind:          lspserver.CompletionItemKindReference,
			FilterText:    typed,
			Documentation: strings.Join(t.Description, "\n"),
			TextEdit: &lspserver.TextEdit{
				Range: lspserver.Range{
					Start: lspserver.Position{Line: pos.Line, Character: start},
					End:   pos,
				},
				NewText: t.Identifier,
			},
		})
	}
	return list
}

// Register installs the document sync and completion handlers on s and
// advertises them.
func (c *Cache) Register(s *lspserver.Server) {
	s.SetCapabilities(lspserver.ServerCapabilities{
		TextDocumentSync: &lspserver.TextDocumentSyncOptions{OpenClose: true, Change: lspserver.TextDocumentSyncKindFull},
		CompletionProvider: &lspserver.CompletionOptions{
			TriggerCharacters: []string{"@"},
		},
	})
	s.Register("textDocument/didOpen", func(_ context.Context, params json.RawMessage) (any, error) {
		p, err := lspserver.DecodeParams[lspserver.DidOpenTextDocumentParams](params)
		if err != nil {
			return nil, err
		}
		c.Set(p.TextDocument.URI, p.TextDocument.Text)
		return nil, nil
	})
	s.Register("textDocument/didChange", func(_ context.Context, params json.RawMessage) (any, error) {
		p, err := lspserver.DecodeParams[lspserver.DidChangeTextDocumentParams](params)
		if err != nil {
			return nil, err
		}
		if len(p.ContentChanges) > 0 {
			c.Set(p.TextDocument.URI, p.ContentChanges[len(p.ContentChanges)-1].Text)
		}
		return nil, nil
	})
	s.Register("textDocument/completion", func(_ context.Context, params json.RawMessage) (any, error) {
		p, err := lspserver.DecodeParams[lspserver.CompletionParams](params)
		if err != nil {
			return nil, err
		}
		return c.Complete(p.TextDocument.URI, p.Position), nil
	})
}

// prefixUTF16 returns the longest prefix of s spanning at most n UTF-16 units.
func prefixUTF16(s string, n int) string {
	units := 0
	for i, r := range s {
		units += utf16.RuneLen(r)
		if units > n {
			return s[:i]
		}
	}
	return s
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
