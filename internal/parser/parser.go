// Package parser reads and writes note files: YAML frontmatter followed by
// the serialised document.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/document"
)

const delim = "---"

// Frontmatter is the metadata block at the top of a note file.
type Frontmatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Folder    string    `yaml:"folder,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter Frontmatter
	Body        string
	Title       string
}

// Parse splits data into frontmatter and body. A file without frontmatter,
// or with frontmatter that is not valid YAML, is all body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}, nil
}

// Render writes a note file.
func Render(fm Frontmatter, body string) ([]byte, error) {
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func splitFrontmatter(data []byte) (Frontmatter, string) {
	var fm Frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}
	yamlBlock := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return Frontmatter{}, string(data)
	}
	return fm, body
}

// deriveTitle returns the frontmatter title if present, otherwise the text
// of the first h1, otherwise empty string.
func deriveTitle(fm Frontmatter, body string) string {
	if fm.Title != "" {
		return fm.Title
	}
	d, err := document.Deserialize(body)
	if err != nil {
		return ""
	}
	if h := firstElement(d.Root(), "h1"); h != nil {
		var sb strings.Builder
		h.Walk(func(n *document.Node) bool {
			if n.IsText() {
				sb.WriteString(n.Text)
			}
			return true
		})
		return strings.TrimSpace(sb.String())
	}
	return ""
}

func firstElement(root *document.Node, tag string) *document.Node {
	var found *document.Node
	root.Walk(func(n *document.Node) bool {
		if found != nil {
			return false
		}
		if n.IsElement(tag) {
			found = n
			return false
		}
		return true
	})
	return found
}
