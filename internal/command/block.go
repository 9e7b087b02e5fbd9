package command

import (
	"strings"

	"github.com/starford/quire/internal/document"
)

// toggleHeading retags the innermost touched blocks as tag, or back to
// paragraphs when all of them already are. Lists are left alone.
func (e *Executor) toggleHeading(sel document.Range, tag string) error {
	blocks := e.touchedBlocks(sel)
	var targets []*document.Node
	for _, b := range blocks {
		targets = append(targets, headingTargets(b)...)
	}
	if len(targets) == 0 {
		return nil
	}
	all := true
	for _, b := range targets {
		if b.Tag != tag {
			all = false
			break
		}
	}
	for _, b := range targets {
		if all {
			b.Tag = "p"
		} else {
			b.Tag = tag
		}
	}
	return e.finishBlocks(sel, blocks[0], blocks[len(blocks)-1])
}

// headingTargets returns the blocks beneath b that hold only inline content.
func headingTargets(b *document.Node) []*document.Node {
	switch {
	case isList(b), b.IsElement("table"), b.IsElement("tr"), b.IsElement("hr"):
		return nil
	case !hasBlockChild(b):
		return []*document.Node{b}
	}
	var out []*document.Node
	for _, c := range b.Children {
		if isBlockNode(c) {
			out = append(out, headingTargets(c)...)
		}
	}
	return out
}

// toggleList turns the touched blocks into one list of kind tag. When every
// touched block already is such a list, its items become paragraphs.
func (e *Executor) toggleList(sel document.Range, tag string) error {
	blocks := e.touchedBlocks(sel)
	if len(blocks) == 0 {
		return nil
	}
	root := e.doc.Root()

	same := true
	for _, b := range blocks {
		if b.Tag != tag {
			same = false
			break
		}
	}
	if same {
		var first, last *document.Node
		for _, list := range blocks {
			paras := unwrapList(list)
			if len(paras) == 0 {
				list.Parent.RemoveChild(list)
				continue
			}
			list.ReplaceWith(paras...)
			if first == nil {
				first = paras[0]
			}
			last = paras[len(paras)-1]
		}
		if first == nil {
			e.doc.ClearSelection()
			e.doc.NotifyChanged()
			return nil
		}
		return e.finishBlocks(sel, first, last)
	}

	list := document.NewElement(tag, nil)
	root.InsertChildren(blocks[0].Index(), list)
	for _, b := range blocks {
		if isList(b) {
			list.AppendChild(children(b)...)
		} else {
			list.AppendChild(document.NewElement("li", nil, children(b)...))
		}
		root.RemoveChild(b)
	}
	return e.finishBlocks(sel, list, list)
}

// unwrapList turns each item into a paragraph. Blocks inside an item, nested
// lists included, are lifted out beside the paragraphs holding its inline
// runs.
func unwrapList(list *document.Node) []*document.Node {
	var out []*document.Node
	for _, c := range children(list) {
		switch {
		case c.IsElement("li"):
			out = append(out, itemBlocks(c)...)
		case c.IsText() && strings.TrimSpace(c.Text) == "":
		default:
			out = append(out, document.NewElement("p", nil, c))
		}
	}
	return out
}

func itemBlocks(li *document.Node) []*document.Node {
	var (
		out []*document.Node
		run []*document.Node
	)
	flush := func() {
		if len(run) > 0 {
			out = append(out, document.NewElement("p", nil, run...))
			run = nil
		}
	}
	for _, c := range children(li) {
		if isBlockNode(c) {
			flush()
			out = append(out, c)
			continue
		}
		run = append(run, c)
	}
	flush()
	if len(out) == 0 {
		out = append(out, document.NewElement("p", nil))
	}
	return out
}

// touchedBlocks returns the root-level blocks the selection touches. Runs of
// inline content directly under the root are first wrapped in paragraphs.
func (e *Executor) touchedBlocks(sel document.Range) []*document.Node {
	root := e.doc.Root()
	if len(root.Children) == 0 {
		return nil
	}
	start, end := sel.Ordered()
	si, ei := topIndex(root, start, false), topIndex(root, end, !sel.Collapsed())
	if ei < si {
		ei = si
	}

	var out []*document.Node
	for i := si; i <= ei; {
		c := root.Children[i]
		if isBlockNode(c) {
			out = append(out, c)
			i++
			continue
		}
		a, b := i, i
		for a > 0 && !isBlockNode(root.Children[a-1]) {
			a--
		}
		for b+1 < len(root.Children) && !isBlockNode(root.Children[b+1]) {
			b++
		}
		run := append([]*document.Node(nil), root.Children[a:b+1]...)
		p := document.NewElement("p", nil)
		root.InsertChildren(a, p)
		p.AppendChild(run...)
		out = append(out, p)
		ei -= b - a
		i = a + 1
	}
	return out
}

func topIndex(root *document.Node, p document.Position, exclusive bool) int {
	if p.Node == root {
		i := p.Offset
		if exclusive && i > 0 {
			i--
		}
		if i >= len(root.Children) {
			i = len(root.Children) - 1
		}
		return i
	}
	n := p.Node
	for n.Parent != root {
		n = n.Parent
	}
	return n.Index()
}

// finishBlocks keeps the selection when it still resolves inside text and
// otherwise selects the blocks from first to last.
func (e *Executor) finishBlocks(sel document.Range, first, last *document.Node) error {
	root := e.doc.Root()
	if e.doc.Validate(sel) != nil || sel.Anchor.Node == root || sel.Focus.Node == root {
		sel = e.doc.NewRange(
			document.Position{Node: root, Offset: first.Index()},
			document.Position{Node: root, Offset: last.Index() + 1},
		)
	}
	if err := e.doc.SetSelection(sel); err != nil {
		return err
	}
	e.doc.Normalize()
	e.doc.NotifyChanged()
	return nil
}

func isList(n *document.Node) bool { return n.IsElement("ul") || n.IsElement("ol") }

func isBlockNode(n *document.Node) bool {
	return n.Type == document.ElementNode && document.IsBlock(n.Tag)
}

func hasBlockChild(n *document.Node) bool {
	for _, c := range n.Children {
		if isBlockNode(c) {
			return true
		}
	}
	return false
}

func children(n *document.Node) []*document.Node {
	return append([]*document.Node(nil), n.Children...)
}
