package document

// repair rewrites markup that the HTML parser would rebuild differently on
// reload, so that a saved tree always parses back to itself:
//
//   - a block inside a <p>, or a heading inside a heading, splits its parent;
//   - any other block beneath phrasing content is replaced by its children;
//   - a link inside a link, or a list item inside a list item without a list
//     in between, is replaced by its children.
//
// Text leaves keep their identity; tracked element positions are remapped.
func repair(n *Node, track []*Position) {
	if n.IsText() {
		return
	}
	for i := 0; i < len(n.Children); {
		c := n.Children[i]
		if c.IsText() {
			i++
			continue
		}
		if nestedLink(c) || nestedItem(c) || (blockTags[c.Tag] && !acceptsBlocks(n) && !splits(n, c)) {
			unwrapTracked(c, track)
			continue
		}
		if k := splitPoint(c); k >= 0 {
			splitAt(c, k, track)
		}
		repair(c, track)
		i++
	}
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// splits reports whether child closes parent when parsed.
func splits(parent, child *Node) bool {
	if child.Type != ElementNode {
		return false
	}
	switch {
	case parent.Tag == "p":
		return blockTags[child.Tag]
	case isHeading(parent.Tag):
		return isHeading(child.Tag)
	}
	return false
}

func splitPoint(n *Node) int {
	for k, c := range n.Children {
		if splits(n, c) {
			return k
		}
	}
	return -1
}

func nestedLink(n *Node) bool {
	return n.Tag == "a" && n.Parent != nil && n.Parent.Ancestor("a") != nil
}

func nestedItem(n *Node) bool {
	if n.Tag != "li" || n.Parent == nil {
		return false
	}
	scope := n.Parent.Ancestor("li", "ul", "ol")
	return scope != nil && scope.Tag == "li"
}

// unwrapTracked replaces c by its children, carrying tracked positions along.
func unwrapTracked(c *Node, track []*Position) {
	parent, i, k := c.Parent, c.Index(), len(c.Children)
	for _, p := range track {
		switch {
		case p.Node == parent && p.Offset > i:
			p.Offset += k - 1
		case p.Node == c:
			p.Node, p.Offset = parent, i+p.Offset
		}
	}
	c.Unwrap()
}

// splitAt lifts child k of c out to become c's next sibling. Children after
// k move into a copy of c placed after the lifted child.
func splitAt(c *Node, k int, track []*Position) {
	parent, i := c.Parent, c.Index()
	lifted := c.Children[k]
	rest := append([]*Node(nil), c.Children[k+1:]...)
	var tail *Node
	added := 1
	if len(rest) > 0 {
		tail = NewElement(c.Tag, append([]Attr(nil), c.Attrs...))
		added = 2
	}
	for _, p := range track {
		switch {
		case p.Node == parent && p.Offset > i:
			p.Offset += added
		case p.Node == c && p.Offset > k && tail != nil:
			p.Node, p.Offset = tail, p.Offset-k-1
		case p.Node == c && p.Offset > k:
			p.Node, p.Offset = parent, i+2
		}
	}
	parent.InsertChildren(i+1, lifted)
	if tail != nil {
		tail.AppendChild(rest...)
		parent.InsertChildren(i+2, tail)
	}
}
