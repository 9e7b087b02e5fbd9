package editor

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

// Export returns the note as a standalone HTML page headed by its title.
// While previewing the rendered tree is exported.
func (s *Session) Export() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Page(s.title, s.doc.Serialize(), s.settings)
}

// WriteExport stores the exported page in p as <id>.html and returns its path.
func (s *Session) WriteExport(p storage.Provider) (string, error) {
	page := s.Export()
	name := s.id + ".html"
	if err := p.Write(name, []byte(page)); err != nil {
		return "", fmt.Errorf("editor: export: %w", err)
	}
	s.logger.Info("editor: exported", slog.String("path", name))
	return name, nil
}

// Page wraps serialised content in a standalone HTML document styled with
// the editor settings.
func Page(title, content string, st models.EditorSettings) string {
	t := html.EscapeString(title)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", t)
	b.WriteString("<style>\n")
	writeRule(&b, "h1", st.H1Size)
	writeRule(&b, "h2", st.H2Size)
	writeRule(&b, "p, li", st.ParagraphSize)
	b.WriteString(".math-block { display: block; text-align: center; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", t)
	b.WriteString(content)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func writeRule(b *strings.Builder, selector, size string) {
	if size == "" {
		return
	}
	fmt.Fprintf(b, "%s { font-size: %s; }\n", selector, size)
}
