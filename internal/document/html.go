package document

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedTags never enter a document: active content, and raw-text elements
// whose bodies would not survive escaping.
var droppedTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true, "embed": true,
	"frame": true, "frameset": true, "link": true, "meta": true, "base": true,
	"textarea": true, "title": true, "xmp": true, "plaintext": true,
	"noembed": true, "noframes": true, "noscript": true, "template": true,
}

var voidTags = map[string]bool{
	"area": true, "br": true, "col": true, "hr": true, "img": true,
	"input": true, "param": true, "source": true, "track": true, "wbr": true,
}

var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true, "xlink:href": true,
}

// Deserialize parses stored raw content into a new Document.
func Deserialize(raw string) (*Document, error) {
	d := New()
	if err := d.Restore(raw); err != nil {
		return nil, err
	}
	return d, nil
}

// Serialize renders the document content in canonical form.
func (d *Document) Serialize() string {
	return SerializeNodes(d.root.Children)
}

// SerializeNodes renders nodes in canonical form.
func SerializeNodes(nodes []*Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		writeNode(&sb, n)
	}
	return sb.String()
}

// ParseFragment turns untrusted markup into detached, sanitised nodes.
func ParseFragment(markup string) ([]*Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: RootTag, DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	out := make([]*Node, 0, len(parsed))
	for _, h := range parsed {
		if n := convert(h); n != nil {
			out = append(out, n)
		}
	}
	holder := NewElement(RootTag, nil, out...)
	Normalize(holder, nil)
	nodes := holder.Children
	for _, n := range nodes {
		n.Parent = nil
	}
	return nodes, nil
}

func convert(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		return NewText(h.Data)
	case html.ElementNode:
		if droppedTags[h.Data] {
			return nil
		}
		n := NewElement(h.Data, sanitizeAttrs(h))
		if voidTags[h.Data] {
			return n
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if cn := convert(c); cn != nil {
				n.AppendChild(cn)
			}
		}
		return n
	default:
		// Comments and doctypes carry no content.
		return nil
	}
}

func sanitizeAttrs(h *html.Node) []Attr {
	var out []Attr
	for _, a := range h.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		if strings.HasPrefix(strings.ToLower(key), "on") {
			continue
		}
		if urlAttrs[key] && unsafeURL(a.Val, h.Data == "img" && key == "src") {
			continue
		}
		out = append(out, Attr{Key: key, Val: a.Val})
	}
	return out
}

func unsafeURL(v string, allowData bool) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.HasPrefix(s, "javascript:"), strings.HasPrefix(s, "vbscript:"):
		return true
	case strings.HasPrefix(s, "data:"):
		return !allowData || !strings.HasPrefix(s, "data:image/")
	}
	return false
}

func writeNode(sb *strings.Builder, n *Node) {
	if n.IsText() {
		sb.WriteString(html.EscapeString(n.Text))
		return
	}
	sb.WriteByte('<')
	sb.WriteString(n.Tag)
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(a.Val))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	if voidTags[n.Tag] {
		return
	}
	// The parser drops a newline directly after <pre>; emit one to keep it.
	if n.Tag == "pre" && len(n.Children) > 0 && n.Children[0].IsText() && strings.HasPrefix(n.Children[0].Text, "\n") {
		sb.WriteByte('\n')
	}
	for _, c := range n.Children {
		writeNode(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(n.Tag)
	sb.WriteByte('>')
}
