package command

import (
	"github.com/starford/quire/internal/document"
)

// toggleInline wraps every covered portion of every text leaf in tag. When
// the selection exactly covers leaves that are each the sole child of a tag
// (or alt) element, those elements are unwrapped instead.
func (e *Executor) toggleInline(sel document.Range, tag, alt string) error {
	if sel.Collapsed() {
		return nil
	}
	spans := e.doc.Spans(sel)
	if len(spans) == 0 {
		return nil
	}

	if wrappedExactly(spans, tag, alt) {
		for _, s := range spans {
			s.Leaf.Parent.Unwrap()
		}
		return e.finishInline(spans[0].Leaf, spans[len(spans)-1].Leaf)
	}

	var first, last *document.Node
	for _, s := range spans {
		if s.Leaf.Ancestor(tag, alt) != nil {
			continue
		}
		mid := wrapSpan(s, tag)
		if first == nil {
			first = mid
		}
		last = mid
	}
	if first == nil {
		return nil
	}
	return e.finishInline(first, last)
}

func wrappedExactly(spans []document.LeafSpan, tag, alt string) bool {
	for _, s := range spans {
		p := s.Leaf.Parent
		if !s.Full() || p == nil || len(p.Children) != 1 {
			return false
		}
		if !p.IsElement(tag) && !p.IsElement(alt) {
			return false
		}
	}
	return true
}

// wrapSpan splits the leaf around the span and wraps the covered middle. The
// original leaf keeps the text before the span so positions captured in it
// still address the same characters.
func wrapSpan(s document.LeafSpan, tag string) *document.Node {
	leaf := s.Leaf
	text := leaf.Text
	pre, mid, post := text[:s.From], text[s.From:s.To], text[s.To:]

	w := document.NewElement(tag, nil)
	inner := leaf
	if pre != "" {
		inner = document.NewText(mid)
		leaf.SetText(pre)
		leaf.Parent.InsertChildren(leaf.Index()+1, w)
	} else {
		leaf.ReplaceWith(w)
		leaf.SetText(mid)
	}
	w.AppendChild(inner)
	if post != "" {
		w.Parent.InsertChildren(w.Index()+1, document.NewText(post))
	}
	return inner
}

// finishInline selects from the start of first to the end of last, tidies
// the tree and notifies.
func (e *Executor) finishInline(first, last *document.Node) error {
	r := e.doc.NewRange(
		document.Position{Node: first, Offset: 0},
		document.Position{Node: last, Offset: len(last.Text)},
	)
	if err := e.doc.SetSelection(r); err != nil {
		return err
	}
	e.doc.Normalize()
	e.doc.NotifyChanged()
	return nil
}
