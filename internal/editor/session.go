// Package editor runs editing sessions: one open note whose document,
// commands, preview, generation modals and debounced saves are serialised
// behind a single lock.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/command"
	"github.com/starford/quire/internal/debounce"
	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/findreplace"
	"github.com/starford/quire/internal/generate"
	"github.com/starford/quire/internal/insertion"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/preview"
	"github.com/starford/quire/internal/sse"
)

// Store persists notes.
type Store interface {
	Load(ctx context.Context, id string) (*models.Note, error)
	Save(ctx context.Context, id, title, content, ifMatch string) (*models.Note, error)
}

// Notifier receives session events for connected clients.
type Notifier interface {
	PublishNoteEvent(kind, id string)
	PublishGeneration(outcome string, ev sse.GenerationEvent)
}

type nopNotifier struct{}

func (nopNotifier) PublishNoteEvent(string, string) {}

func (nopNotifier) PublishGeneration(string, sse.GenerationEvent) {}

// Options tune sessions opened by a Workspace.
type Options struct {
	SaveDebounce time.Duration
	Settings     models.EditorSettings
	Renderer     preview.Renderer
}

// Session is one open note.
type Session struct {
	mu       sync.Mutex
	id       string
	title    string
	checksum string
	closed   bool

	doc      *document.Document
	exec     *command.Executor
	preview  *preview.Machine
	pipeline *insertion.Pipeline
	saver    *debounce.Debouncer
	settings models.EditorSettings

	store  Store
	gen    generate.Generator
	notify Notifier
	logger *slog.Logger

	saveMu  sync.Mutex
	saveErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSession(n *models.Note, store Store, gen generate.Generator, notify Notifier, opts Options, logger *slog.Logger) (*Session, error) {
	doc, err := document.Deserialize(n.Content)
	if err != nil {
		return nil, fmt.Errorf("editor: open %s: %w", n.ID, err)
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if gen == nil {
		gen = generate.Disabled{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       n.ID,
		title:    n.Title,
		checksum: n.Checksum,
		doc:      doc,
		pipeline: insertion.NewPipeline(),
		settings: opts.Settings,
		store:    store,
		gen:      gen,
		notify:   notify,
		logger:   logger.With(slog.String("note", n.ID)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.preview = preview.New(doc, opts.Renderer)
	s.exec = command.New(doc, s.preview)
	s.saver = debounce.New(opts.SaveDebounce, func() { _ = s.save() })
	doc.OnChange(func() {
		if s.preview.Editable() {
			s.saver.Trigger()
		}
	})
	return s, nil
}

// ID returns the id of the open note.
func (s *Session) ID() string { return s.id }

// SetContent replaces the whole document with raw markup.
func (s *Session) SetContent(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable("set content"); err != nil {
		return err
	}
	if err := s.doc.Load(raw); err != nil {
		return fmt.Errorf("editor: set content: %v: %w", err, apperr.ErrInvalidArgument)
	}
	return nil
}

// SetTitle renames the note. The new title is written with the next save.
func (s *Session) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("editor: empty title: %w", apperr.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable("set title"); err != nil {
		return err
	}
	s.title = title
	s.saver.Trigger()
	return nil
}

// SetSelection makes sel the live selection.
func (s *Session) SetSelection(sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable("select"); err != nil {
		return err
	}
	anchor, err := s.doc.PositionAt(sel.Anchor.Path, sel.Anchor.Offset)
	if err != nil {
		return err
	}
	focus, err := s.doc.PositionAt(sel.Focus.Path, sel.Focus.Offset)
	if err != nil {
		return err
	}
	return s.doc.SetSelection(s.doc.NewRange(anchor, focus))
}

// Apply runs a formatting command on the live selection. While previewing
// the command is ignored.
func (s *Session) Apply(name, arg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.ErrNoSession
	}
	return s.exec.Apply(name, arg)
}

// TogglePreview switches between editing and previewing. Pending edits are
// saved before the rendered tree replaces them on screen.
func (s *Session) TogglePreview() (preview.State, error) {
	s.mu.Lock()
	editing := s.preview.Editable()
	s.mu.Unlock()
	if editing {
		s.saver.Flush()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.preview.State(), apperr.ErrNoSession
	}
	st, err := s.preview.Toggle()
	if err != nil {
		return st, fmt.Errorf("editor: %w", err)
	}
	s.logger.Debug("editor: preview toggled", slog.String("state", st.String()))
	return st, nil
}

// ReplaceAll replaces every occurrence of find. It fails with
// apperr.ErrNoMatchFound when nothing matched.
func (s *Session) ReplaceAll(find, replace string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable("replace"); err != nil {
		return 0, err
	}
	n, err := findreplace.ReplaceAll(s.doc, find, replace)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("editor: replace %q: %w", find, apperr.ErrNoMatchFound)
	}
	return n, nil
}

// StartGeneration captures the target of kind and generates content for it
// in the background. It returns the cycle id used to commit the result.
func (s *Session) StartGeneration(kind insertion.Kind, query string, length generate.Length) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable("generate"); err != nil {
		return "", err
	}

	var (
		r  document.Range
		fn insertion.GenerateFunc
	)
	switch kind {
	case insertion.KindInsertion:
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("editor: generate: empty query: %w", apperr.ErrInvalidArgument)
		}
		sel, ok := insertion.Capture(s.doc)
		if !ok {
			sel = s.doc.EndCaret()
		}
		r = sel
		contextText := s.doc.Text()
		fn = func(ctx context.Context) (insertion.Result, error) {
			out, err := s.gen.GenerateInsertion(ctx, query, contextText, length)
			return insertion.Result{Content: out, HTML: true}, err
		}
	case insertion.KindLatex:
		sel, ok := insertion.Capture(s.doc)
		if !ok {
			return "", fmt.Errorf("editor: generate latex: %w", apperr.ErrNoSelection)
		}
		r = sel
		source := strings.TrimSpace(query)
		if source == "" {
			source = strings.TrimSpace(s.selectedText(sel))
		}
		if source == "" {
			return "", fmt.Errorf("editor: generate latex: nothing to convert: %w", apperr.ErrInvalidArgument)
		}
		fn = func(ctx context.Context) (insertion.Result, error) {
			out, err := s.gen.GenerateLatex(ctx, source)
			return insertion.Result{Content: out}, err
		}
	case insertion.KindReformat:
		// Any edit made while reformatting makes the commit fail rather
		// than overwrite it.
		r = insertion.WholeDocument(s.doc)
		raw := s.doc.Serialize()
		fn = func(ctx context.Context) (insertion.Result, error) {
			out, err := s.gen.ReformatDocument(ctx, raw)
			return insertion.Result{Content: out, HTML: true}, err
		}
	default:
		return "", fmt.Errorf("editor: generate %q: %w", kind, apperr.ErrInvalidArgument)
	}

	c := s.pipeline.Start(s.ctx, kind, r)
	s.wg.Add(1)
	go s.generate(c, fn)
	return cycleID(c), nil
}

func (s *Session) generate(c *insertion.Cycle, fn insertion.GenerateFunc) {
	defer s.wg.Done()
	ev := sse.GenerationEvent{NoteID: s.id, Kind: string(c.Kind), Cycle: cycleID(c)}

	res, err := s.pipeline.Run(c, fn)
	switch {
	case errors.Is(err, apperr.ErrSuperseded):
		s.logger.Debug("editor: generation superseded", slog.String("cycle", ev.Cycle))
		return
	case err != nil:
		s.logger.Warn("editor: generation failed", slog.String("kind", ev.Kind), slog.String("error", err.Error()))
		ev.Error = err.Error()
		s.notify.PublishGeneration("failed", ev)
		return
	}

	ev.Content = res.Content
	s.deliver(c, ev)
}

// deliver commits results that need no review and publishes the outcome. A
// cycle replaced while its result was on the way publishes nothing.
func (s *Session) deliver(c *insertion.Cycle, ev sse.GenerationEvent) {
	if c.Kind.AutoCommit() {
		s.mu.Lock()
		err := s.commit(c)
		s.mu.Unlock()
		switch {
		case errors.Is(err, apperr.ErrSuperseded):
			s.logger.Debug("editor: auto-commit superseded", slog.String("cycle", ev.Cycle))
			return
		case err != nil && !errors.Is(err, apperr.ErrPreviewing):
			// A result arriving during preview waits in review.
			ev.Error = err.Error()
			s.notify.PublishGeneration("failed", ev)
			return
		}
	}
	s.notify.PublishGeneration("ready", ev)
}

// Commit inserts the reviewed result of cycle at its captured range.
func (s *Session) Commit(kind insertion.Kind, cycle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.ErrNoSession
	}
	c, ok := s.pipeline.Current(kind)
	if !ok || cycleID(c) != cycle {
		return fmt.Errorf("editor: commit %s cycle %s: %w", kind, cycle, apperr.ErrSuperseded)
	}
	return s.commit(c)
}

func (s *Session) commit(c *insertion.Cycle) error {
	if s.closed {
		return apperr.ErrNoSession
	}
	if err := s.editable("commit"); err != nil {
		return err
	}
	if err := s.pipeline.Commit(c, s.exec); err != nil {
		if errors.Is(err, apperr.ErrInsertionTargetLost) {
			s.logger.Info("editor: insertion target lost", slog.String("kind", string(c.Kind)))
		}
		return err
	}
	return nil
}

// Discard abandons whatever kind is generating or reviewing.
func (s *Session) Discard(kind insertion.Kind) {
	c, ok := s.pipeline.Current(kind)
	s.pipeline.Discard(kind)
	if ok {
		s.notify.PublishGeneration("discarded", sse.GenerationEvent{NoteID: s.id, Kind: string(kind), Cycle: cycleID(c)})
	}
}

// Flush saves pending edits now and returns the outcome of the last save.
func (s *Session) Flush() error {
	s.saver.Flush()
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveErr
}

// Close cancels generation, saves pending edits and releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.pipeline.Close()
	s.wg.Wait()
	err := s.Flush()
	s.saver.Stop()
	return err
}

func (s *Session) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	content, ok := s.preview.Snapshot()
	if !ok {
		content = s.doc.Serialize()
	}
	title := s.title
	s.mu.Unlock()

	// The session is the note's only writer, so no precondition is sent.
	n, err := s.store.Save(context.Background(), s.id, title, content, "")
	if err != nil {
		s.logger.Error("editor: save failed", slog.String("error", err.Error()))
		s.saveErr = err
		return err
	}
	s.saveErr = nil

	s.mu.Lock()
	s.checksum = n.Checksum
	s.mu.Unlock()
	s.logger.Debug("editor: saved", slog.String("checksum", n.Checksum))
	s.notify.PublishNoteEvent("saved", s.id)
	return nil
}

// editable fails while previewing or after close. Callers hold s.mu.
func (s *Session) editable(op string) error {
	if s.closed {
		return apperr.ErrNoSession
	}
	if !s.preview.Editable() {
		return fmt.Errorf("editor: %s: %w", op, apperr.ErrPreviewing)
	}
	return nil
}

func (s *Session) selectedText(r document.Range) string {
	var sb strings.Builder
	for _, sp := range s.doc.Spans(r) {
		sb.WriteString(sp.Leaf.Text[sp.From:sp.To])
	}
	return sb.String()
}

func cycleID(c *insertion.Cycle) string {
	return strconv.FormatUint(c.ID, 10)
}
