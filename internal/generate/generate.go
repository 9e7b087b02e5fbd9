// Package generate produces note content with a large language model.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
)

// Generator is the content generation collaborator of an editor session.
// Every method may be slow and may fail; failures wrap apperr.ErrGeneration.
type Generator interface {
	// GenerateInsertion answers query given the surrounding note text and
	// returns an HTML fragment.
	GenerateInsertion(ctx context.Context, query, contextText string, length Length) (string, error)
	// GenerateLatex converts a plain description into one $…$ math span.
	GenerateLatex(ctx context.Context, source string) (string, error)
	// ReformatDocument returns a tidied HTML rendition of raw.
	ReformatDocument(ctx context.Context, raw string) (string, error)
}

// Completer sends one system/user exchange to a model and returns its reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Length is the requested size of an insertion.
type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

// ParseLength maps client input to a Length, defaulting to Medium.
func ParseLength(s string) Length {
	switch Length(strings.ToLower(strings.TrimSpace(s))) {
	case Short:
		return Short
	case Long:
		return Long
	default:
		return Medium
	}
}

func (l Length) words() string {
	switch l {
	case Short:
		return "at most 60 words"
	case Long:
		return "between 250 and 400 words"
	default:
		return "between 80 and 180 words"
	}
}

const (
	insertionSystem = "You write content for a personal note. Reply with the text to insert only, " +
		"formatted as Markdown. Write mathematics as TeX between $ or $$ delimiters."
	latexSystem = "You convert a short description of a formula or quantity into LaTeX. " +
		"Reply with a single expression wrapped in $ delimiters and nothing else."
	reformatSystem = "You tidy up a note written in HTML. Keep every fact and every $…$ or $$…$$ " +
		"math span exactly as written. Use headings, paragraphs and lists. Reply with the HTML only."
)

// Service implements Generator over a Completer.
type Service struct {
	completer Completer
	timeout   time.Duration
}

// NewService returns a Generator that bounds every request by timeout.
// A zero timeout means no bound beyond ctx.
func NewService(c Completer, timeout time.Duration) *Service {
	return &Service{completer: c, timeout: timeout}
}

func (s *Service) complete(ctx context.Context, op, system, user string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("generate: %s via %s: %w: %w", op, s.completer.Name(), apperr.ErrGeneration, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generate: %s via %s: empty reply: %w", op, s.completer.Name(), apperr.ErrGeneration)
	}
	return out, nil
}

func (s *Service) GenerateInsertion(ctx context.Context, query, contextText string, length Length) (string, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Request: %s\nLength: %s.\n", query, length.words())
	if strings.TrimSpace(contextText) != "" {
		fmt.Fprintf(&user, "\nThe note so far:\n%s\n", contextText)
	}
	out, err := s.complete(ctx, "insertion", insertionSystem, user.String())
	if err != nil {
		return "", err
	}
	return ToHTML(stripFence(out))
}

func (s *Service) GenerateLatex(ctx context.Context, source string) (string, error) {
	out, err := s.complete(ctx, "latex", latexSystem, source)
	if err != nil {
		return "", err
	}
	return delimit(stripFence(out)), nil
}

func (s *Service) ReformatDocument(ctx context.Context, raw string) (string, error) {
	out, err := s.complete(ctx, "reformat", reformatSystem, raw)
	if err != nil {
		return "", err
	}
	return ToHTML(stripFence(out))
}

// stripFence removes a single surrounding ``` code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s[3:], "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], " $\\") {
		body = body[nl+1:]
	}
	return strings.TrimSpace(body)
}

// delimit makes sure s is a single math span.
func delimit(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$") && len(s) > 4:
		s = strings.TrimSpace(s[2 : len(s)-2])
	case strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$") && len(s) > 2:
		s = strings.TrimSpace(s[1 : len(s)-1])
	case strings.HasPrefix(s, `\(`) && strings.HasSuffix(s, `\)`):
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	s = strings.ReplaceAll(s, "$", "")
	return "$" + s + "$"
}

// Disabled is the Generator used when no provider is configured.
type Disabled struct{}

func (Disabled) GenerateInsertion(context.Context, string, string, Length) (string, error) {
	return "", errDisabled
}

func (Disabled) GenerateLatex(context.Context, string) (string, error) { return "", errDisabled }

func (Disabled) ReformatDocument(context.Context, string) (string, error) { return "", errDisabled }

var errDisabled = fmt.Errorf("generate: no provider configured: %w", apperr.ErrGeneration)
