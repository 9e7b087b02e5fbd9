package document

import (
	"errors"
	"testing"

	"github.com/starford/quire/internal/apperr"
)

func TestReplaceRangeWithinLeaf(t *testing.T) {
	d := mustDoc(t, "<p>Hello world</p>")
	p := d.Root().Children[0]
	leaf := p.Children[0]

	r := d.NewRange(Position{Node: leaf, Offset: 11}, Position{Node: leaf, Offset: 6})
	after, err := d.ReplaceRange(r, mustFragment(t, "<b>there</b>"))
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	if got, want := d.Serialize(), "<p>Hello <b>there</b></p>"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
	if after.Node != p || after.Offset != 2 {
		t.Errorf("after = %v, want <p>@2", after)
	}
	sel, ok := d.CurrentSelection()
	if !ok || !sel.Collapsed() || sel.Anchor != after {
		t.Errorf("selection = %v, %v; want caret at %v", sel, ok, after)
	}
}

func TestReplaceRangeAcrossNodes(t *testing.T) {
	d := mustDoc(t, "<p>Hello <b>big</b> world</p>")
	leaves := d.TextLeaves()
	r := d.NewRange(Position{Node: leaves[0], Offset: 2}, Position{Node: leaves[2], Offset: 4})

	after, err := d.ReplaceRange(r, nil)
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	if got, want := d.Serialize(), "<p>Held</p>"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
	if after.Node != leaves[0] || after.Offset != 2 {
		t.Errorf("after = %v, want text(\"Held\")@2", after)
	}
}

func TestReplaceRangeTextMerges(t *testing.T) {
	d := mustDoc(t, "<p>The mass is 5 kg</p>")
	leaf := d.TextLeaves()[0]
	r := d.NewRange(Position{Node: leaf, Offset: 12}, Position{Node: leaf, Offset: 16})

	after, err := d.ReplaceRange(r, []*Node{NewText(`$5\text{kg}$`)})
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	leaves := d.TextLeaves()
	if len(leaves) != 1 {
		t.Fatalf("leaves = %d, want 1 merged leaf", len(leaves))
	}
	if got, want := leaves[0].Text, `The mass is $5\text{kg}$`; got != want {
		t.Errorf("leaf = %q, want %q", got, want)
	}
	if after.Node != leaves[0] || after.Offset != len(leaves[0].Text) {
		t.Errorf("after = %v, want end of merged leaf", after)
	}
}

func TestReplaceRangeBlocksAtRoot(t *testing.T) {
	d := mustDoc(t, "<p>one</p>")
	after, err := d.ReplaceRange(d.EndCaret(), mustFragment(t, "<p>two</p>"))
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	if got, want := d.Serialize(), "<p>one</p><p>two</p>"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
	if after.Node != d.Root() || after.Offset != 2 {
		t.Errorf("after = %v, want <body>@2", after)
	}
}

func TestReplaceRangeFlattensBlocksInline(t *testing.T) {
	d := mustDoc(t, "<p>ab</p>")
	leaf := d.TextLeaves()[0]
	_, err := d.ReplaceRange(d.Caret(Position{Node: leaf, Offset: 1}), mustFragment(t, "<p>x</p><p>y</p>"))
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	got := d.Serialize()
	if want := "<p>ax<br>yb</p>"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
	if again := mustDoc(t, got).Serialize(); again != got {
		t.Errorf("flattened output does not round trip: %q", again)
	}
}

func TestReplaceRangeTargetLost(t *testing.T) {
	d := mustDoc(t, "<p>Hello world</p>")
	leaf := d.TextLeaves()[0]
	captured := d.NewRange(Position{Node: leaf, Offset: 6}, Position{Node: leaf, Offset: 11})
	caret := d.Caret(Position{Node: leaf, Offset: 11})

	// A concurrent edit deletes "world".
	if _, err := d.ReplaceRange(captured, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	before := d.Serialize()

	for name, r := range map[string]Range{"range": captured, "caret": caret} {
		_, err := d.ReplaceRange(r, []*Node{NewText("late")})
		if !errors.Is(err, apperr.ErrInsertionTargetLost) {
			t.Errorf("%s: error = %v, want ErrInsertionTargetLost", name, err)
		}
	}
	if got := d.Serialize(); got != before {
		t.Errorf("failed insert mutated the tree: got = %q, want %q", got, before)
	}

	// Reloading detaches every node the old range referenced.
	if err := d.Load("<p>Hello world</p>"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := d.Validate(d.Caret(Position{Node: leaf, Offset: 0})); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Errorf("detached node: error = %v, want ErrInsertionTargetLost", err)
	}
}

func TestNormalizeTracksPositions(t *testing.T) {
	p := NewElement("p", nil, NewText("ab"), NewText(""), NewText("cd"), NewElement("br", nil), NewText("e"))
	second := p.Children[2]
	pos := Position{Node: second, Offset: 1}
	end := Position{Node: p, Offset: 5}

	Normalize(p, []*Position{&pos, &end})

	if len(p.Children) != 3 {
		t.Fatalf("children = %d, want 3", len(p.Children))
	}
	if got := p.Children[0].Text; got != "abcd" {
		t.Errorf("merged leaf = %q, want %q", got, "abcd")
	}
	if pos.Node != p.Children[0] || pos.Offset != 3 {
		t.Errorf("pos = %v, want text(\"abcd\")@3", pos)
	}
	if end.Node != p || end.Offset != 3 {
		t.Errorf("end = %v, want <p>@3", end)
	}
}

func TestSpans(t *testing.T) {
	d := mustDoc(t, "<p>one <b>two</b> three</p><p>four</p>")
	leaves := d.TextLeaves()
	r := d.NewRange(Position{Node: leaves[0], Offset: 2}, Position{Node: d.Root(), Offset: 1})

	got := d.Spans(r)
	want := []LeafSpan{
		{Leaf: leaves[0], From: 2, To: 4},
		{Leaf: leaves[1], From: 0, To: 3},
		{Leaf: leaves[2], From: 0, To: 6},
	}
	if len(got) != len(want) {
		t.Fatalf("Spans = %d spans, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = {%q %d %d}, want {%q %d %d}", i,
				got[i].Leaf.Text, got[i].From, got[i].To, want[i].Leaf.Text, want[i].From, want[i].To)
		}
	}
	if !got[1].Full() || got[0].Full() {
		t.Error("Full() misreports coverage")
	}
}

func TestNormalizeRepairsParserSensitiveMarkup(t *testing.T) {
	tests := []struct {
		name  string
		nodes func() []*Node
		want  string
	}{
		{
			name: "list inside paragraph",
			nodes: func() []*Node {
				return []*Node{NewElement("p", nil, NewText("a"),
					NewElement("ul", nil, NewElement("li", nil, NewText("b"))))}
			},
			want: "<p>a</p><ul><li>b</li></ul>",
		},
		{
			name: "paragraph inside paragraph",
			nodes: func() []*Node {
				return []*Node{NewElement("p", nil, NewElement("p", nil, NewText("x")))}
			},
			want: "<p></p><p>x</p>",
		},
		{
			name: "block between inline runs",
			nodes: func() []*Node {
				return []*Node{NewElement("p", nil, NewText("a"), NewElement("div", nil, NewText("b")), NewText("c"))}
			},
			want: "<p>a</p><div>b</div><p>c</p>",
		},
		{
			name: "link inside link",
			nodes: func() []*Node {
				inner := NewElement("a", []Attr{{Key: "href", Val: "/y"}}, NewText("in"))
				return []*Node{NewElement("p", nil,
					NewElement("a", []Attr{{Key: "href", Val: "/x"}}, NewText("he"), inner, NewText("llo")))}
			},
			want: `<p><a href="/x">heinllo</a></p>`,
		},
		{
			name: "item inside item",
			nodes: func() []*Node {
				return []*Node{NewElement("ul", nil,
					NewElement("li", nil, NewText("a"), NewElement("li", nil, NewText("b"))))}
			},
			want: "<ul><li>ab</li></ul>",
		},
		{
			name: "block inside bold",
			nodes: func() []*Node {
				return []*Node{NewElement("p", nil,
					NewElement("b", nil, NewText("x"), NewElement("div", nil, NewText("y"))))}
			},
			want: "<p><b>xy</b></p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			d.Reset(tt.nodes())
			got := d.Serialize()
			if got != tt.want {
				t.Errorf("Serialize() = %q, want %q", got, tt.want)
			}
			if again := mustDoc(t, got).Serialize(); again != got {
				t.Errorf("reload = %q, want %q", again, got)
			}
		})
	}
}

func TestRepairTracksPositions(t *testing.T) {
	tail := NewText("cd")
	p := NewElement("p", nil, NewText("ab"), NewElement("div", nil, NewText("x")), tail)
	root := NewElement(RootTag, nil, p)
	inLeaf := Position{Node: tail, Offset: 1}
	end := Position{Node: p, Offset: 3}
	after := Position{Node: root, Offset: 1}

	Normalize(root, []*Position{&inLeaf, &end, &after})

	if len(root.Children) != 3 {
		t.Fatalf("root children = %d, want 3", len(root.Children))
	}
	second := root.Children[2]
	if inLeaf.Node != tail || inLeaf.Offset != 1 {
		t.Errorf("inLeaf = %v, want text(\"cd\")@1", inLeaf)
	}
	if end.Node != second || end.Offset != 1 {
		t.Errorf("end = %v, want second <p>@1", end)
	}
	if after.Node != root || after.Offset != 3 {
		t.Errorf("after = %v, want <body>@3", after)
	}
}

func TestInsertLinkIntoLinkRoundTrips(t *testing.T) {
	d := mustDoc(t, `<p><a href="/x">hello</a></p>`)
	leaf := d.TextLeaves()[0]
	after, err := d.ReplaceRange(d.Caret(Position{Node: leaf, Offset: 2}), mustFragment(t, `<a href="/y">in</a>`))
	if err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	got := d.Serialize()
	if want := `<p><a href="/x">heinllo</a></p>`; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
	if again := mustDoc(t, got).Serialize(); again != got {
		t.Errorf("reload = %q, want %q", again, got)
	}
	if !after.Node.IsText() || after.Offset != 4 {
		t.Errorf("after = %v, want caret after \"hein\"", after)
	}
}

func TestCapturedRangeAfterLeafEdit(t *testing.T) {
	d := mustDoc(t, "<p>Hello world</p>")
	leaf := d.TextLeaves()[0]
	caret := d.Caret(Position{Node: leaf, Offset: 2})

	leaf.SetText("Hello")
	if err := d.Validate(caret); err != nil {
		t.Errorf("after truncation: %v", err)
	}
	leaf.SetText("Hello again")
	if err := d.Validate(caret); err != nil {
		t.Errorf("after extension: %v", err)
	}
	leaf.SetText("Jello again")
	if err := d.Validate(caret); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Errorf("after rewrite: error = %v, want ErrInsertionTargetLost", err)
	}
	if err := d.Validate(d.Caret(Position{Node: leaf, Offset: 2})); err != nil {
		t.Errorf("fresh caret: %v", err)
	}
}

func TestCapturedElementPositionAfterInsertBefore(t *testing.T) {
	d := mustDoc(t, "<p>a</p><p>b</p>")
	root := d.Root()
	between := d.Caret(Position{Node: root, Offset: 1})
	end := d.EndCaret()

	root.AppendChild(NewElement("p", nil, NewText("c")))
	if err := d.Validate(between); err != nil {
		t.Errorf("append after: %v", err)
	}
	root.InsertChildren(0, NewElement("hr", nil))
	for name, r := range map[string]Range{"between": between, "end": end} {
		if err := d.Validate(r); !errors.Is(err, apperr.ErrInsertionTargetLost) {
			t.Errorf("%s: error = %v, want ErrInsertionTargetLost", name, err)
		}
	}
}

func TestPinnedRange(t *testing.T) {
	d := mustDoc(t, "<p>a</p>")
	r := d.NewRange(Position{Node: d.Root(), Offset: 0}, Position{Node: d.Root(), Offset: 1}).Pinned()
	if err := d.Validate(r); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	d.TextLeaves()[0].SetText("ab")
	d.NotifyChanged()
	if err := d.Validate(r); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Errorf("error = %v, want ErrInsertionTargetLost", err)
	}
}

func TestStaleSelectionIsDropped(t *testing.T) {
	d := mustDoc(t, "<p>Hello world</p>")
	leaf := d.TextLeaves()[0]
	if err := d.SetSelection(d.Caret(Position{Node: leaf, Offset: 8})); err != nil {
		t.Fatalf("SetSelection: %v", err)
	}
	leaf.SetText("Bye world")
	if _, ok := d.CurrentSelection(); ok {
		t.Error("selection into a rewritten leaf should be dropped")
	}
}

func TestNULIsStripped(t *testing.T) {
	d := New()
	if _, err := d.ReplaceRange(d.EndCaret(), []*Node{NewText("a\x00\fb")}); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	got := d.Serialize()
	if got != "a\fb" {
		t.Errorf("Serialize() = %q, want %q", got, "a\fb")
	}
	if again := mustDoc(t, got).Serialize(); again != got {
		t.Errorf("reload = %q, want %q", again, got)
	}

	leaf := d.TextLeaves()[0]
	leaf.SetText("x\x00y")
	if leaf.Text != "xy" {
		t.Errorf("SetText kept NUL: %q", leaf.Text)
	}
}
