package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starford/quire/internal/apperr"
)

// shape is a parent-free projection of a node used for structural comparison.
type shape struct {
	Tag   string
	Text  string
	Attrs []Attr
	Kids  []shape
}

func shapeOf(n *Node) shape {
	s := shape{Tag: n.Tag, Text: n.Text, Attrs: n.Attrs}
	for _, c := range n.Children {
		s.Kids = append(s.Kids, shapeOf(c))
	}
	return s
}

func mustDoc(t *testing.T, raw string) *Document {
	t.Helper()
	d, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize(%q): %v", raw, err)
	}
	return d
}

func mustFragment(t *testing.T, markup string) []*Node {
	t.Helper()
	nodes, err := ParseFragment(markup)
	if err != nil {
		t.Fatalf("ParseFragment(%q): %v", markup, err)
	}
	return nodes
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"<p>Hello <b>world</b></p>",
		"<h1>Title</h1><p>a &lt; b &amp; c</p>",
		`<p><a href="https://example.com" title="x">link</a> and <i>more</i></p>`,
		"<ul><li>one</li><li>two <b>2</b></li></ul><ol><li>x</li></ol>",
		"<p>a<br>b</p><hr><pre>\n\ncode</pre>",
		`<p>Energy: $E=mc^2$ joules</p><p>$$\int_0^1 x\,dx$$</p>`,
		`<img src="data:image/png;base64,iVBORw0KGgo=" alt="dot">`,
		"<table><tr><td>cell</td></tr></table>",
	}
	opts := cmpopts.EquateEmpty()
	for _, raw := range inputs {
		d1 := mustDoc(t, raw)
		s1 := d1.Serialize()
		d2 := mustDoc(t, s1)
		if diff := cmp.Diff(shapeOf(d1.Root()), shapeOf(d2.Root()), opts); diff != "" {
			t.Errorf("round trip of %q changed structure (-first +second):\n%s", raw, diff)
		}
		if s2 := d2.Serialize(); s2 != s1 {
			t.Errorf("serializer not canonical for %q: got = %q, want %q", raw, s2, s1)
		}
	}
}

func TestDeserializeSanitizes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"<p>a<!-- c -->b<script>alert(1)</script></p>", "<p>ab</p>"},
		{`<a href="javascript:alert(1)" onclick="x()">k</a>`, "<a>k</a>"},
		{`<a href="data:text/html,hi">k</a>`, "<a>k</a>"},
		{`<img src="data:image/png;base64,AAAA" alt="x">`, `<img src="data:image/png;base64,AAAA" alt="x">`},
		{`<p>x<iframe src="https://evil"></iframe><style>p{}</style>y</p>`, "<p>xy</p>"},
	}
	for _, tt := range tests {
		got := mustDoc(t, tt.raw).Serialize()
		if got != tt.want {
			t.Errorf("Deserialize(%q).Serialize() = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestTextProjection(t *testing.T) {
	d := mustDoc(t, "<h1>T</h1><p>a<br>b</p><ul><li>c</li></ul>")
	if got, want := d.Text(), "T\na\nb\nc"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestPathRoundTrip(t *testing.T) {
	d := mustDoc(t, "<p>Hello <b>world</b></p>")
	leaf := d.TextLeaves()[1]
	path, ok := d.PathOf(leaf)
	if !ok {
		t.Fatal("PathOf: leaf not attached")
	}
	if diff := cmp.Diff([]int{0, 1, 0}, path); diff != "" {
		t.Errorf("PathOf mismatch (-want +got):\n%s", diff)
	}
	p, err := d.PositionAt(path, 3)
	if err != nil {
		t.Fatalf("PositionAt: %v", err)
	}
	if p.Node != leaf || p.Offset != 3 {
		t.Errorf("PositionAt = %v, want text(%q)@3", p, leaf.Text)
	}
	if _, err := d.PositionAt([]int{0, 5}, 0); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("PositionAt(bad path) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.PositionAt(path, 99); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("PositionAt(bad offset) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSetSelectionValidates(t *testing.T) {
	d := mustDoc(t, "<p>é</p>")
	leaf := d.TextLeaves()[0]

	if err := d.SetSelection(d.Caret(Position{Node: leaf, Offset: 1})); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Errorf("mid-rune offset: error = %v, want ErrInsertionTargetLost", err)
	}
	other := New()
	if err := d.SetSelection(other.EndCaret()); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Errorf("foreign range: error = %v, want ErrInsertionTargetLost", err)
	}
	if _, ok := d.CurrentSelection(); ok {
		t.Error("failed SetSelection must not change the selection")
	}

	want := d.NewRange(Position{Node: leaf, Offset: 0}, Position{Node: leaf, Offset: len(leaf.Text)})
	if err := d.SetSelection(want); err != nil {
		t.Fatalf("SetSelection: %v", err)
	}
	got, ok := d.CurrentSelection()
	if !ok || got != want {
		t.Errorf("CurrentSelection() = %v, %v; want %v", got, ok, want)
	}
}

func TestOnChangeCountsMutations(t *testing.T) {
	d := mustDoc(t, "<p>x</p>")
	calls := 0
	d.OnChange(func() { calls++ })

	if _, err := d.ReplaceRange(d.EndCaret(), mustFragment(t, "<p>y</p>")); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	if err := d.Load("<p>z</p>"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := d.Restore("<p>silent</p>"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if calls != 2 {
		t.Errorf("listener calls = %d, want 2", calls)
	}
	if d.Revision() != 2 {
		t.Errorf("Revision() = %d, want 2", d.Revision())
	}
}

func TestCloneIsDetachedDeepCopy(t *testing.T) {
	d := mustDoc(t, `<p class="a">one <b>two</b></p>`)
	p := d.Root().Children[0]
	c := p.Clone()
	if c.Parent != nil {
		t.Error("clone should be detached")
	}
	if diff := cmp.Diff(shapeOf(p), shapeOf(c)); diff != "" {
		t.Errorf("clone differs (-orig +clone):\n%s", diff)
	}
	c.Children[1].Children[0].Text = "changed"
	c.SetAttr("class", "b")
	if got := d.Serialize(); got != `<p class="a">one <b>two</b></p>` {
		t.Errorf("mutating a clone changed the original: %q", got)
	}
}
