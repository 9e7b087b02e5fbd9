package document

import (
	"fmt"
	"unicode/utf8"

	"github.com/starford/quire/internal/apperr"
)

// Position addresses a point in the tree. For a text leaf Offset is a byte
// offset on a rune boundary; for an element it is a child index.
type Position struct {
	Node   *Node
	Offset int
}

// Range is an anchor/focus pair bound to the document that created it.
// A Range is a value: copies are snapshots, not live cursors.
//
// A range remembers the edit version of both boundary nodes. Once an edit
// shifts the offsets inside either node, the range stops resolving instead of
// landing somewhere else.
type Range struct {
	Anchor Position
	Focus  Position
	doc    *Document

	anchorVer, focusVer uint64
	pinned              bool
	revision            uint64
}

// NewRange binds anchor and focus to d. The range is validated on use.
func (d *Document) NewRange(anchor, focus Position) Range {
	return Range{
		Anchor:    anchor,
		Focus:     focus,
		doc:       d,
		anchorVer: nodeVersion(anchor.Node),
		focusVer:  nodeVersion(focus.Node),
	}
}

func nodeVersion(n *Node) uint64 {
	if n == nil {
		return 0
	}
	return n.version
}

// Pinned returns a copy of r that stops resolving after the next change
// notification, wherever that change happened.
func (r Range) Pinned() Range {
	if r.doc != nil {
		r.pinned = true
		r.revision = r.doc.revision
	}
	return r
}

// Caret returns a collapsed range at p.
func (d *Document) Caret(p Position) Range {
	return d.NewRange(p, p)
}

// EndCaret returns a collapsed range after the last child of the root.
func (d *Document) EndCaret() Range {
	return d.Caret(Position{Node: d.root, Offset: len(d.root.Children)})
}

// Document returns the document the range was captured against.
func (r Range) Document() *Document { return r.doc }

// Collapsed reports whether anchor and focus coincide.
func (r Range) Collapsed() bool { return r.Anchor == r.Focus }

// Ordered returns the range's boundary points in document order.
func (r Range) Ordered() (start, end Position) {
	if comparePositions(r.Anchor, r.Focus) <= 0 {
		return r.Anchor, r.Focus
	}
	return r.Focus, r.Anchor
}

// Validate checks that r belongs to d and that both points resolve against
// the live tree. A failure wraps apperr.ErrInsertionTargetLost.
func (d *Document) Validate(r Range) error {
	if r.doc != d {
		return fmt.Errorf("document: range from another document: %w", apperr.ErrInsertionTargetLost)
	}
	if err := d.validatePosition(r.Anchor); err != nil {
		return fmt.Errorf("document: anchor: %w", err)
	}
	if err := d.validatePosition(r.Focus); err != nil {
		return fmt.Errorf("document: focus: %w", err)
	}
	if r.Anchor.Node.version != r.anchorVer {
		return fmt.Errorf("document: anchor: %s edited since capture: %w", r.Anchor, apperr.ErrInsertionTargetLost)
	}
	if r.Focus.Node.version != r.focusVer {
		return fmt.Errorf("document: focus: %s edited since capture: %w", r.Focus, apperr.ErrInsertionTargetLost)
	}
	if r.pinned && r.revision != d.revision {
		return fmt.Errorf("document: changed since revision %d: %w", r.revision, apperr.ErrInsertionTargetLost)
	}
	return nil
}

func (d *Document) validatePosition(p Position) error {
	if p.Node == nil || !d.Contains(p.Node) {
		return fmt.Errorf("node detached: %w", apperr.ErrInsertionTargetLost)
	}
	if p.Offset < 0 || p.Offset > p.Node.Len() {
		return fmt.Errorf("offset %d out of bounds [0,%d]: %w", p.Offset, p.Node.Len(), apperr.ErrInsertionTargetLost)
	}
	if p.Node.IsText() && p.Offset < len(p.Node.Text) && !utf8.RuneStart(p.Node.Text[p.Offset]) {
		return fmt.Errorf("offset %d splits a character: %w", p.Offset, apperr.ErrInsertionTargetLost)
	}
	return nil
}

// PositionAt resolves a wire position (child-index path plus offset).
func (d *Document) PositionAt(path []int, offset int) (Position, error) {
	n, ok := d.NodeAt(path)
	if !ok {
		return Position{}, fmt.Errorf("document: no node at path %v: %w", path, apperr.ErrInvalidArgument)
	}
	p := Position{Node: n, Offset: offset}
	if err := d.validatePosition(p); err != nil {
		return Position{}, fmt.Errorf("document: %v: %w", err, apperr.ErrInvalidArgument)
	}
	return p, nil
}

// positionKey maps a boundary point to a lexicographically comparable key.
// An element boundary (E, i) sorts before everything inside E's child i.
func positionKey(p Position) []int {
	return append(nodePath(p.Node), p.Offset)
}

func compareKeys(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func comparePositions(a, b Position) int {
	return compareKeys(positionKey(a), positionKey(b))
}

// LeafSpan is the part [From, To) of a text leaf covered by a range.
type LeafSpan struct {
	Leaf     *Node
	From, To int
}

// Full reports whether the span covers the whole leaf.
func (s LeafSpan) Full() bool { return s.From == 0 && s.To == len(s.Leaf.Text) }

// Spans returns the non-empty covered portion of every text leaf in r, in
// document order. r must be valid.
func (d *Document) Spans(r Range) []LeafSpan {
	start, end := r.Ordered()
	startKey, endKey := positionKey(start), positionKey(end)
	var out []LeafSpan
	for _, leaf := range d.TextLeaves() {
		from, to := 0, len(leaf.Text)
		if leaf == start.Node {
			from = start.Offset
		} else if compareKeys(startKey, positionKey(Position{Node: leaf})) > 0 {
			continue
		}
		if leaf == end.Node {
			to = end.Offset
		} else if compareKeys(endKey, positionKey(Position{Node: leaf, Offset: to})) < 0 {
			continue
		}
		if from < to {
			out = append(out, LeafSpan{Leaf: leaf, From: from, To: to})
		}
	}
	return out
}
