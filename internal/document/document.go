package document

import (
	"strings"
)

// RootTag is the tag of the implicit container holding a document's content.
const RootTag = "body"

// Document is one note's live tree plus its current selection.
//
// A Document is not safe for concurrent use; callers serialise access.
type Document struct {
	root      *Node
	selection *Range
	listeners []func()
	revision  uint64
}

// New returns an empty document.
func New() *Document {
	return &Document{root: NewElement(RootTag, nil)}
}

// Root returns the implicit root container.
func (d *Document) Root() *Node { return d.root }

// Revision counts change notifications since the document was created.
func (d *Document) Revision() uint64 { return d.revision }

// OnChange registers fn to run after every content mutation.
func (d *Document) OnChange(fn func()) {
	d.listeners = append(d.listeners, fn)
}

// NotifyChanged bumps the revision and runs the change listeners. Packages
// that mutate nodes directly call it once their mutation is complete.
func (d *Document) NotifyChanged() {
	d.revision++
	for _, fn := range d.listeners {
		fn()
	}
}

// CurrentSelection returns the live selection, if any. A selection whose
// nodes were edited underneath it is dropped.
func (d *Document) CurrentSelection() (Range, bool) {
	if d.selection == nil {
		return Range{}, false
	}
	if d.Validate(*d.selection) != nil {
		d.selection = nil
		return Range{}, false
	}
	return *d.selection, true
}

// SetSelection validates r against the live tree and makes it current.
func (d *Document) SetSelection(r Range) error {
	if err := d.Validate(r); err != nil {
		return err
	}
	d.selection = &r
	return nil
}

// ClearSelection drops the live selection.
func (d *Document) ClearSelection() { d.selection = nil }

// Contains reports whether n is attached to this document's tree.
func (d *Document) Contains(n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
		if p.Index() < 0 {
			return false
		}
	}
	return false
}

// TextLeaves returns every text leaf in document order.
func (d *Document) TextLeaves() []*Node {
	var out []*Node
	d.root.Walk(func(n *Node) bool {
		if n.IsText() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Text returns the plain-text projection of the document, one line per block.
func (d *Document) Text() string {
	var sb strings.Builder
	writeText(&sb, d.root)
	return strings.TrimSpace(sb.String())
}

func writeText(sb *strings.Builder, n *Node) {
	if n.IsText() {
		sb.WriteString(n.Text)
		return
	}
	if n.Tag == "br" {
		sb.WriteByte('\n')
		return
	}
	for _, c := range n.Children {
		writeText(sb, c)
	}
	if blockTags[n.Tag] {
		sb.WriteByte('\n')
	}
}

// Load replaces the whole content with the parsed raw markup, clears the
// selection and notifies listeners.
func (d *Document) Load(raw string) error {
	if err := d.Restore(raw); err != nil {
		return err
	}
	d.NotifyChanged()
	return nil
}

// Restore replaces the whole content with the parsed raw markup without
// notifying listeners. Every previously captured range becomes stale.
func (d *Document) Restore(raw string) error {
	nodes, err := ParseFragment(raw)
	if err != nil {
		return err
	}
	d.Reset(nodes)
	return nil
}

// Reset swaps the root's children for nodes without notifying listeners.
func (d *Document) Reset(nodes []*Node) {
	root := NewElement(RootTag, nil)
	root.AppendChild(nodes...)
	d.root = root
	d.selection = nil
	Normalize(root, nil)
}

// PathOf returns the child-index path from the root to n.
func (d *Document) PathOf(n *Node) ([]int, bool) {
	if !d.Contains(n) {
		return nil, false
	}
	return nodePath(n), true
}

func nodePath(n *Node) []int {
	var rev []int
	for p := n; p.Parent != nil; p = p.Parent {
		rev = append(rev, p.Index())
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// NodeAt resolves a child-index path from the root.
func (d *Document) NodeAt(path []int) (*Node, bool) {
	n := d.root
	for _, i := range path {
		if n.IsText() || i < 0 || i >= len(n.Children) {
			return nil, false
		}
		n = n.Children[i]
	}
	return n, true
}

// blockTags lists elements that start a new line in plain-text projection and
// that may hold flow content when inserted into.
var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "ul": true, "ol": true, "li": true, "pre": true,
	"blockquote": true, "table": true, "tr": true, "hr": true,
}

// IsBlock reports whether tag is a block-level element.
func IsBlock(tag string) bool { return blockTags[tag] }
