package parser

import (
	"testing"
	"time"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nid: n1\ntitle: Hello\nfolder: work\nupdated_at: 2026-01-02T03:04:05Z\n---\n<h1>Other</h1><p>Body text.</p>")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Frontmatter.ID != "n1" || r.Frontmatter.Folder != "work" {
		t.Errorf("frontmatter = %+v", r.Frontmatter)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !r.Frontmatter.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", r.Frontmatter.UpdatedAt, want)
	}
	if r.Body != "<h1>Other</h1><p>Body text.</p>" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("<p>intro</p><h1>Just a <b>heading</b></h1>")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter.ID != "" {
		t.Errorf("expected empty frontmatter, got %+v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\n<p>Body</p>")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Body != string(input) {
		t.Errorf("invalid YAML should fall back to whole input as body, got %q", r.Body)
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := []byte("---\ntitle: x\n<p>no end</p>")
	r, _ := Parse(input)
	if r.Body != string(input) || r.Title != "" {
		t.Errorf("body = %q, title = %q", r.Body, r.Title)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	fm := Frontmatter{
		ID:        "abc",
		Title:     "Sums: $x$",
		Folder:    "math",
		UpdatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	body := "<p>$$\\sum_i i$$</p>"
	data, err := Render(fm, body)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Body != body {
		t.Errorf("body = %q, want %q", r.Body, body)
	}
	if r.Frontmatter.ID != fm.ID || r.Frontmatter.Title != fm.Title || r.Frontmatter.Folder != fm.Folder {
		t.Errorf("frontmatter = %+v, want %+v", r.Frontmatter, fm)
	}
	if !r.Frontmatter.UpdatedAt.Equal(fm.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", r.Frontmatter.UpdatedAt, fm.UpdatedAt)
	}
}
