// Package preview switches a document between its editable raw form and a
// read-only form with math rendered.
package preview

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/mathrender"
)

// State is the preview mode of a document.
type State int

const (
	Editing State = iota
	Previewing
)

func (s State) String() string {
	if s == Previewing {
		return "previewing"
	}
	return "editing"
}

// WrapperAttr marks the span that holds one rendered text leaf.
const WrapperAttr = "data-preview"

// Renderer renders one text leaf to an HTML fragment.
type Renderer interface {
	Render(text string) string
}

type defaultRenderer struct{}

func (defaultRenderer) Render(text string) string { return mathrender.Render(text) }

// Machine holds the preview state of one document. It is not safe for
// concurrent use.
type Machine struct {
	doc      *document.Document
	renderer Renderer
	state    State
	snapshot string
}

// New returns a machine in the Editing state. A nil renderer uses the shared
// math renderer.
func New(doc *document.Document, r Renderer) *Machine {
	if r == nil {
		r = defaultRenderer{}
	}
	return &Machine{doc: doc, renderer: r}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Editable reports whether commands may run.
func (m *Machine) Editable() bool { return m.state == Editing }

// Snapshot returns the raw content held while previewing.
func (m *Machine) Snapshot() (string, bool) {
	if m.state != Previewing {
		return "", false
	}
	return m.snapshot, true
}

// Enter stores the raw content and renders math in place. Listeners are not
// notified: the rendered tree is never content.
func (m *Machine) Enter() {
	if m.state == Previewing {
		return
	}
	m.snapshot = m.doc.Serialize()
	m.state = Previewing
	m.doc.ClearSelection()

	for _, leaf := range m.doc.TextLeaves() {
		if !strings.Contains(leaf.Text, "$") || inWrapper(leaf) {
			continue
		}
		nodes, err := document.ParseFragment(m.renderer.Render(leaf.Text))
		if err != nil {
			slog.Warn("preview: rendered leaf not parsable", slog.String("error", err.Error()))
			continue
		}
		leaf.ReplaceWith(document.NewElement("span", []document.Attr{{Key: WrapperAttr, Val: "math"}}, nodes...))
	}
}

// Exit discards the rendered tree and restores the stored raw content.
func (m *Machine) Exit() error {
	if m.state == Editing {
		return nil
	}
	if err := m.doc.Restore(m.snapshot); err != nil {
		return fmt.Errorf("preview: restore: %w", err)
	}
	m.state = Editing
	m.snapshot = ""
	return nil
}

// Toggle flips the state and returns the new one.
func (m *Machine) Toggle() (State, error) {
	if m.state == Editing {
		m.Enter()
		return m.state, nil
	}
	if err := m.Exit(); err != nil {
		return m.state, err
	}
	return m.state, nil
}

func inWrapper(n *document.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if _, ok := p.Attr(WrapperAttr); ok && p.IsElement("span") {
			return true
		}
	}
	return false
}
