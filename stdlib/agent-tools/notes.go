package agent_tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/d0rc/scribe-agents/agency"
	"github.com/tidwall/gjson"
)

const maxListedNotes = 50

// Notebook keeps notes by section for as long as its tools live.
type Notebook struct {
	lock     sync.RWMutex
	sections map[string]string
	order    []string
}

func NewNotebook() *Notebook {
	return &Notebook{
		sections: make(map[string]string),
		order:    make([]string, 0),
	}
}

func (n *Notebook) Write(section, text string) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if existing, ok := n.sections[section]; ok {
		n.sections[section] = existing + "\n" + text
		return
	}
	n.sections[section] = text
	n.order = append(n.order, section)
}

func (n *Notebook) Read(section string) (string, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()

	text, ok := n.sections[section]
	return text, ok
}

// Sections returns up to the last 50 section names, oldest first.
func (n *Notebook) Sections() []string {
	n.lock.RLock()
	defer n.lock.RUnlock()

	start := 0
	if len(n.order) > maxListedNotes {
		start = len(n.order) - maxListedNotes
	}
	return append([]string(nil), n.order[start:]...)
}

type WriteNote struct {
	Notebook *Notebook
}

func (w *WriteNote) Name() string {
	return "write-note"
}

func (w *WriteNote) ContextDescription() string {
	return "use it to take a note, text is appended to the section"
}

func (w *WriteNote) Arguments() []agency.Argument {
	return []agency.Argument{
		{Name: "section", Type: agency.ArgString, Required: true, Description: "section name"},
		{Name: "text", Type: agency.ArgString, Required: true, Description: "text to remember"},
	}
}

func (w *WriteNote) Run(_ context.Context, args gjson.Result) (string, error) {
	section := strings.TrimSpace(args.Get("section").String())
	w.Notebook.Write(section, strings.TrimSpace(args.Get("text").String()))

	return fmt.Sprintf("Note saved to section %q.", section), nil
}

type ReadNote struct {
	Notebook *Notebook
}

func (r *ReadNote) Name() string {
	return "read-note"
}

func (r *ReadNote) ContextDescription() string {
	return "use it to read a note"
}

func (r *ReadNote) Arguments() []agency.Argument {
	return []agency.Argument{
		{Name: "section", Type: agency.ArgString, Required: true, Description: "section name"},
	}
}

func (r *ReadNote) Run(_ context.Context, args gjson.Result) (string, error) {
	section := strings.TrimSpace(args.Get("section").String())
	text, ok := r.Notebook.Read(section)
	if !ok {
		return "", fmt.Errorf("no note in section %q", section)
	}

	return text, nil
}

type ListNotes struct {
	Notebook *Notebook
}

func (l *ListNotes) Name() string {
	return "list-notes"
}

func (l *ListNotes) ContextDescription() string {
	return "use it to get names of the last 50 notes you've made"
}

func (l *ListNotes) Arguments() []agency.Argument {
	return nil
}

func (l *ListNotes) Run(_ context.Context, _ gjson.Result) (string, error) {
	sections := l.Notebook.Sections()
	if len(sections) == 0 {
		return "No notes yet.", nil
	}

	return "Sections: " + strings.Join(sections, ", "), nil
}
