// Package command applies formatting commands to a document's live selection.
package command

import (
	"fmt"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/document"
)

// Command names accepted by Apply.
const (
	Bold           = "bold"
	Italic         = "italic"
	UnorderedList  = "unordered-list"
	OrderedList    = "ordered-list"
	Heading1       = "heading-1"
	Heading2       = "heading-2"
	InsertImage    = "insert-image"
	InsertFragment = "insert-fragment"
	InsertText     = "insert-text"
)

// Names lists every command in the order clients should present them.
var Names = []string{
	Bold, Italic, UnorderedList, OrderedList, Heading1, Heading2,
	InsertImage, InsertFragment, InsertText,
}

// Mode reports whether the document currently accepts edits.
type Mode interface {
	Editable() bool
}

// Executor runs commands against one document.
type Executor struct {
	doc  *document.Document
	mode Mode
}

// New returns an executor for doc. A nil mode means always editable.
func New(doc *document.Document, mode Mode) *Executor {
	return &Executor{doc: doc, mode: mode}
}

func (e *Executor) editable() bool {
	return e.mode == nil || e.mode.Editable()
}

// Apply runs the named command on the current selection. While the document
// is not editable every command is silently ignored.
func (e *Executor) Apply(name, arg string) error {
	if !e.editable() {
		return nil
	}
	sel, ok := e.doc.CurrentSelection()
	if !ok {
		if !known(name) {
			return fmt.Errorf("command: %q: %w", name, apperr.ErrUnknownCommand)
		}
		return fmt.Errorf("command: %s: %w", name, apperr.ErrNoSelection)
	}
	switch name {
	case Bold:
		return e.toggleInline(sel, "b", "strong")
	case Italic:
		return e.toggleInline(sel, "i", "em")
	case UnorderedList:
		return e.toggleList(sel, "ul")
	case OrderedList:
		return e.toggleList(sel, "ol")
	case Heading1:
		return e.toggleHeading(sel, "h1")
	case Heading2:
		return e.toggleHeading(sel, "h2")
	case InsertImage:
		return e.insertImage(sel, arg)
	case InsertFragment:
		return e.InsertFragment(sel, arg)
	case InsertText:
		return e.InsertText(sel, arg)
	default:
		return fmt.Errorf("command: %q: %w", name, apperr.ErrUnknownCommand)
	}
}

func known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// InsertFragment makes r the live selection and replaces it with the
// sanitised nodes parsed from markup.
func (e *Executor) InsertFragment(r document.Range, markup string) error {
	if !e.editable() {
		return nil
	}
	if err := e.doc.Validate(r); err != nil {
		return fmt.Errorf("command: insert fragment: %w", err)
	}
	nodes, err := document.ParseFragment(markup)
	if err != nil {
		return fmt.Errorf("command: insert fragment: %w", err)
	}
	return e.replace(r, nodes)
}

// InsertText makes r the live selection and replaces it with literal text.
func (e *Executor) InsertText(r document.Range, text string) error {
	if !e.editable() {
		return nil
	}
	var nodes []*document.Node
	if t := document.NewText(text); t.Text != "" {
		nodes = []*document.Node{t}
	}
	return e.replace(r, nodes)
}

func (e *Executor) replace(r document.Range, nodes []*document.Node) error {
	if err := e.doc.SetSelection(r); err != nil {
		return fmt.Errorf("command: rehydrate selection: %w", err)
	}
	if _, err := e.doc.ReplaceRange(r, nodes); err != nil {
		return fmt.Errorf("command: replace: %w", err)
	}
	return nil
}
