// Package mathrender turns $…$ and $$…$$ spans of plain text into MathML.
//
// Rendering is pure and never fails: a span the TeX engine rejects is kept
// as its literal source text.
package mathrender

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wyatt915/treeblood"
	"golang.org/x/net/html"
)

// Engine converts a TeX body to MathML.
type Engine interface {
	Inline(tex string) (string, error)
	Block(tex string) (string, error)
}

// TreeBlood is the default Engine.
type TreeBlood struct {
	pitz *treeblood.Pitziil
}

// NewTreeBlood returns an engine with the given macros precompiled.
func NewTreeBlood(macros map[string]string) *TreeBlood {
	return &TreeBlood{pitz: treeblood.NewDocument(macros, false)}
}

func (t *TreeBlood) Inline(tex string) (string, error) { return t.pitz.TextStyle(tex) }
func (t *TreeBlood) Block(tex string) (string, error)  { return t.pitz.DisplayStyle(tex) }

// Renderer renders text with one engine. It is safe for concurrent use.
type Renderer struct {
	mu     sync.Mutex
	engine Engine
}

// New returns a Renderer backed by TreeBlood.
func New(macros map[string]string) *Renderer {
	return NewWithEngine(NewTreeBlood(macros))
}

// NewWithEngine returns a Renderer backed by e.
func NewWithEngine(e Engine) *Renderer {
	return &Renderer{engine: e}
}

var defaultRenderer = sync.OnceValue(func() *Renderer { return New(nil) })

// Render renders text with the shared default renderer.
func Render(text string) string {
	return defaultRenderer().Render(text)
}

// Render returns an HTML fragment for text. Plain runs are escaped; each math
// span becomes a <span class="math math-inline"> or <span class="math
// math-block"> element wrapping the engine output.
func (r *Renderer) Render(text string) string {
	var sb strings.Builder
	for _, s := range Segments(text) {
		if s.Kind == Plain {
			sb.WriteString(html.EscapeString(s.Source))
			continue
		}
		mml, err := r.renderSpan(s)
		if err != nil {
			slog.Debug("mathrender: span left as text",
				slog.String("kind", s.Kind.String()),
				slog.String("error", err.Error()),
			)
			sb.WriteString(html.EscapeString(s.Source))
			continue
		}
		sb.WriteString(`<span class="math math-`)
		sb.WriteString(s.Kind.String())
		sb.WriteString(`">`)
		sb.WriteString(mml)
		sb.WriteString("</span>")
	}
	return sb.String()
}

func (r *Renderer) renderSpan(s Segment) (mml string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			mml, err = "", fmt.Errorf("mathrender: engine panic: %v", p)
		}
	}()
	if s.Kind == Block {
		mml, err = r.engine.Block(s.TeX)
	} else {
		mml, err = r.engine.Inline(s.TeX)
	}
	if err != nil {
		return "", fmt.Errorf("mathrender: %w", err)
	}
	if strings.TrimSpace(mml) == "" {
		return "", fmt.Errorf("mathrender: empty output for %q", s.TeX)
	}
	return mml, nil
}
