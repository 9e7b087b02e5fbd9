// Package document implements the editable note tree: element and text nodes,
// a live selection, range mutation and the canonical HTML codec.
package document

import "strings"

// NodeType distinguishes element containers from text leaves.
type NodeType int

const (
	TextNode NodeType = iota
	ElementNode
)

// Attr is a single element attribute. Order is preserved.
type Attr struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// Node is either an element (Tag, Attrs, Children) or a text leaf (Text).
type Node struct {
	Type     NodeType
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node
	Parent   *Node

	// version advances on every edit that can move an offset into n.
	version uint64
}

// NewText returns a detached text leaf. NUL characters are dropped.
func NewText(s string) *Node {
	return &Node{Type: TextNode, Text: stripNUL(s)}
}

// SetText replaces the text of a leaf. Unless the change only truncates or
// extends the text, ranges captured inside the leaf no longer resolve.
func (n *Node) SetText(s string) {
	s = stripNUL(s)
	if !strings.HasPrefix(n.Text, s) && !strings.HasPrefix(s, n.Text) {
		n.version++
	}
	n.Text = s
}

// NewElement returns a detached element owning the given children.
func NewElement(tag string, attrs []Attr, children ...*Node) *Node {
	n := &Node{Type: ElementNode, Tag: tag, Attrs: attrs}
	n.AppendChild(children...)
	return n
}

// IsText reports whether n is a text leaf.
func (n *Node) IsText() bool { return n.Type == TextNode }

// IsElement reports whether n is an element with the given tag.
func (n *Node) IsElement(tag string) bool {
	return n.Type == ElementNode && n.Tag == tag
}

// Len is the number of valid offsets past zero: bytes for text, children for elements.
func (n *Node) Len() int {
	if n.IsText() {
		return len(n.Text)
	}
	return len(n.Children)
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

// Index returns the position of n among its parent's children, or -1 when
// n is detached.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// AppendChild attaches children at the end of n.
func (n *Node) AppendChild(children ...*Node) {
	n.InsertChildren(len(n.Children), children...)
}

// InsertChildren attaches children before index i.
func (n *Node) InsertChildren(i int, children ...*Node) {
	if len(children) == 0 {
		return
	}
	for _, c := range children {
		if c.Parent != nil {
			if c.Parent == n && c.Index() < i {
				i--
			}
			c.Parent.RemoveChild(c)
		}
		c.Parent = n
	}
	out := make([]*Node, 0, len(n.Children)+len(children))
	out = append(out, n.Children[:i]...)
	out = append(out, children...)
	out = append(out, n.Children[i:]...)
	if i < len(n.Children) {
		n.version++
	}
	n.Children = out
}

// RemoveChild detaches c from n. It is a no-op when c is not a child of n.
func (n *Node) RemoveChild(c *Node) {
	for i, x := range n.Children {
		if x == c {
			n.removeAt(i)
			return
		}
	}
}

func (n *Node) removeAt(i int) {
	c := n.Children[i]
	if i < len(n.Children)-1 {
		n.version++
	}
	n.Children = append(n.Children[:i:i], n.Children[i+1:]...)
	c.Parent = nil
}

// ReplaceWith puts nodes in n's place and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	i := n.Index()
	parent.removeAt(i)
	parent.InsertChildren(i, nodes...)
}

// Unwrap replaces the element with its own children.
func (n *Node) Unwrap() {
	children := append([]*Node(nil), n.Children...)
	for _, c := range children {
		c.Parent = nil
	}
	n.Children = nil
	n.version++
	n.ReplaceWith(children...)
}

// Clone returns a deep, detached copy of n.
func (n *Node) Clone() *Node {
	c := &Node{Type: n.Type, Tag: n.Tag, Text: n.Text}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, ch := range n.Children {
		cc := ch.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range append([]*Node(nil), n.Children...) {
		c.Walk(fn)
	}
}

// Ancestor returns the nearest ancestor (or n itself) matching one of tags.
func (n *Node) Ancestor(tags ...string) *Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type != ElementNode {
			continue
		}
		for _, t := range tags {
			if p.Tag == t {
				return p
			}
		}
	}
	return nil
}

// stripNUL drops U+0000, which the HTML parser discards on reload.
func stripNUL(s string) string {
	if !strings.Contains(s, "\x00") {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}
