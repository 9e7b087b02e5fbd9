package generate

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"

	"github.com/starford/quire/internal/mathrender"
)

// Raw HTML is passed through; the document parser sanitises it on insertion.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Table),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

const placeholder = "QUIREMATH"

// ToHTML converts a model reply to an HTML fragment. Replies that already
// are HTML are returned unchanged. Math spans bypass Markdown so that TeX
// escapes and underscores survive.
func ToHTML(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "<") {
		return reply, nil
	}

	var src strings.Builder
	var spans []string
	for _, s := range mathrender.Segments(reply) {
		if s.Kind == mathrender.Plain {
			src.WriteString(s.Source)
			continue
		}
		src.WriteString(placeholder + strconv.Itoa(len(spans)) + "Q")
		spans = append(spans, s.Source)
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src.String()), &buf); err != nil {
		return "", fmt.Errorf("generate: markdown: %w", err)
	}
	out := buf.String()
	for i := len(spans) - 1; i >= 0; i-- {
		out = strings.ReplaceAll(out, placeholder+strconv.Itoa(i)+"Q", xhtml.EscapeString(spans[i]))
	}
	return strings.TrimSpace(out), nil
}
