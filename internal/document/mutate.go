package document

import "fmt"

// phrasingTags only accept inline content; block markup inserted beneath one
// of them is flattened.
var phrasingTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "pre": true, "b": true, "strong": true, "i": true, "em": true,
	"u": true, "s": true, "span": true, "a": true, "code": true, "sub": true,
	"sup": true, "mark": true, "small": true, "label": true,
}

// ReplaceRange deletes the contents of r and inserts nodes at its start.
// It returns the position directly after the inserted content, makes that
// position the live selection and notifies listeners.
func (d *Document) ReplaceRange(r Range, nodes []*Node) (Position, error) {
	if err := d.Validate(r); err != nil {
		return Position{}, err
	}
	start, end := r.Ordered()
	d.deleteContents(start, end)
	if !acceptsBlocks(start.Node) {
		nodes = flattenBlocks(nodes)
	}
	after := d.insertNodes(start, nodes)
	sel := d.Caret(after)
	d.selection = &sel
	d.NotifyChanged()
	return after, nil
}

// deleteContents removes everything between two validated, ordered points.
// Partially covered elements keep their uncovered parts.
func (d *Document) deleteContents(start, end Position) {
	if start.Node == end.Node {
		if start.Node.IsText() {
			t := start.Node
			t.SetText(t.Text[:start.Offset] + t.Text[end.Offset:])
			return
		}
		for i := end.Offset - 1; i >= start.Offset; i-- {
			start.Node.removeAt(i)
		}
		return
	}

	startKey, endKey := positionKey(start), positionKey(end)
	var contained []*Node
	d.root.Walk(func(n *Node) bool {
		if n == d.root {
			return true
		}
		before := nodePath(n)
		after := append(nodePath(n.Parent), n.Index()+1)
		if compareKeys(before, startKey) >= 0 && compareKeys(after, endKey) <= 0 {
			contained = append(contained, n)
			return false
		}
		return true
	})

	if start.Node.IsText() {
		start.Node.SetText(start.Node.Text[:start.Offset])
	}
	if end.Node.IsText() {
		end.Node.SetText(end.Node.Text[end.Offset:])
	}
	for _, n := range contained {
		n.Parent.RemoveChild(n)
	}
}

// insertNodes splices nodes at p and returns the point after them.
func (d *Document) insertNodes(p Position, nodes []*Node) Position {
	parent, index := p.Node, p.Offset
	if p.Node.IsText() {
		t := p.Node
		parent, index = t.Parent, t.Index()
		switch {
		case p.Offset == 0:
		case p.Offset == len(t.Text):
			index++
		default:
			tail := NewText(t.Text[p.Offset:])
			t.SetText(t.Text[:p.Offset])
			parent.InsertChildren(index+1, tail)
			index++
		}
	}
	if len(nodes) == 0 {
		after := p
		Normalize(d.root, []*Position{&after})
		return after
	}
	parent.InsertChildren(index, nodes...)
	last := nodes[len(nodes)-1]
	after := Position{Node: parent, Offset: last.Index() + 1}
	if last.IsText() {
		after = Position{Node: last, Offset: len(last.Text)}
	}
	Normalize(d.root, []*Position{&after})
	return after
}

// Normalize repairs markup the parser would restructure, then merges
// adjacent text leaves and drops empty ones beneath n, remapping every
// tracked position (and nothing else) onto the survivors.
func Normalize(n *Node, track []*Position) {
	repair(n, track)
	merge(n, track)
}

func merge(n *Node, track []*Position) {
	if n.IsText() {
		return
	}
	for i := 0; i < len(n.Children); {
		c := n.Children[i]
		if !c.IsText() {
			merge(c, track)
			i++
			continue
		}
		if c.Text == "" && !tracked(c, track) {
			for _, p := range track {
				if p.Node == n && p.Offset > i {
					p.Offset--
				}
			}
			n.removeAt(i)
			continue
		}
		if i+1 < len(n.Children) && n.Children[i+1].IsText() {
			next := n.Children[i+1]
			for _, p := range track {
				switch {
				case p.Node == next:
					p.Node, p.Offset = c, len(c.Text)+p.Offset
				case p.Node == n && p.Offset == i+1:
					p.Node, p.Offset = c, len(c.Text)
				case p.Node == n && p.Offset > i+1:
					p.Offset--
				}
			}
			c.Text += next.Text
			n.removeAt(i + 1)
			continue
		}
		i++
	}
}

func tracked(n *Node, track []*Position) bool {
	for _, p := range track {
		if p.Node == n {
			return true
		}
	}
	return false
}

// Normalize tidies the whole tree, carrying the live selection along.
func (d *Document) Normalize() {
	if d.selection == nil {
		Normalize(d.root, nil)
		return
	}
	anchor, focus := d.selection.Anchor, d.selection.Focus
	Normalize(d.root, []*Position{&anchor, &focus})
	sel := d.NewRange(anchor, focus)
	d.selection = &sel
}

// acceptsBlocks reports whether block markup may be inserted at n.
func acceptsBlocks(n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == ElementNode && phrasingTags[p.Tag] {
			return false
		}
	}
	return true
}

// flattenBlocks replaces block elements by their inline content, separating
// blocks from their neighbours with <br>.
func flattenBlocks(nodes []*Node) []*Node {
	var out []*Node
	prevBlock := false
	for _, n := range nodes {
		block := n.Type == ElementNode && blockTags[n.Tag]
		if len(out) > 0 && (block || prevBlock) {
			out = append(out, NewElement("br", nil))
		}
		if block {
			out = append(out, flattenBlocks(detachChildren(n))...)
		} else {
			if n.Type == ElementNode {
				n.AppendChild(flattenBlocks(detachChildren(n))...)
			}
			out = append(out, n)
		}
		prevBlock = block
	}
	return out
}

func detachChildren(n *Node) []*Node {
	children := n.Children
	n.Children = nil
	for _, c := range children {
		c.Parent = nil
	}
	return children
}

// String renders a position for logs and errors.
func (p Position) String() string {
	if p.Node == nil {
		return "<nil>"
	}
	if p.Node.IsText() {
		return fmt.Sprintf("text(%q)@%d", p.Node.Text, p.Offset)
	}
	return fmt.Sprintf("<%s>@%d", p.Node.Tag, p.Offset)
}
