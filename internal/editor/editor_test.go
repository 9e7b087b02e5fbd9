package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/command"
	"github.com/starford/quire/internal/generate"
	"github.com/starford/quire/internal/insertion"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/preview"
	"github.com/starford/quire/internal/sse"
)

type fakeStore struct {
	mu    sync.Mutex
	notes map[string]*models.Note
	saves int
}

func newFakeStore(notes ...*models.Note) *fakeStore {
	s := &fakeStore{notes: make(map[string]*models.Note)}
	for _, n := range notes {
		s.notes[n.ID] = n
	}
	return s
}

func (s *fakeStore) Load(_ context.Context, id string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *fakeStore) Save(_ context.Context, id, title, content, _ string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &models.Note{ID: id, Title: title, Content: content, Checksum: checksum.Sum([]byte(content))}
	s.notes[id] = n
	s.saves++
	return n, nil
}

func (s *fakeStore) content(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[id].Content
}

type fakeGen struct {
	insertion string
	latex     string
	reformat  string
	err       error
	release   chan struct{}
}

func (g *fakeGen) wait(ctx context.Context) error {
	if g.release == nil {
		return nil
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGen) GenerateInsertion(ctx context.Context, _, _ string, _ generate.Length) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.insertion, g.err
}

func (g *fakeGen) GenerateLatex(ctx context.Context, _ string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.latex, g.err
}

func (g *fakeGen) ReformatDocument(ctx context.Context, _ string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.reformat, g.err
}

type genEvent struct {
	outcome string
	ev      sse.GenerationEvent
}

type recNotifier struct {
	mu    sync.Mutex
	notes []string
	gens  chan genEvent
}

func newRecNotifier() *recNotifier { return &recNotifier{gens: make(chan genEvent, 16)} }

func (n *recNotifier) PublishNoteEvent(kind, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, kind+":"+id)
}

func (n *recNotifier) PublishGeneration(outcome string, ev sse.GenerationEvent) {
	n.gens <- genEvent{outcome: outcome, ev: ev}
}

func (n *recNotifier) next(t *testing.T) genEvent {
	t.Helper()
	select {
	case e := <-n.gens:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for generation event")
		return genEvent{}
	}
}

type bracketRenderer struct{}

func (bracketRenderer) Render(text string) string { return "[" + text + "]" }

type env struct {
	ws     *Workspace
	store  *fakeStore
	gen    *fakeGen
	notify *recNotifier
}

func newEnv(t *testing.T, debounce time.Duration, notes ...*models.Note) *env {
	t.Helper()
	e := &env{store: newFakeStore(notes...), gen: &fakeGen{}, notify: newRecNotifier()}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	e.ws = NewWorkspace(e.store, e.gen, e.notify, Options{
		SaveDebounce: debounce,
		Settings:     models.EditorSettings{H1Size: "2em", H2Size: "1.5em", ParagraphSize: "1rem"},
		Renderer:     bracketRenderer{},
	}, logger)
	t.Cleanup(func() { e.ws.Close() })
	return e
}

func (e *env) open(t *testing.T, id string) *Session {
	t.Helper()
	s, err := e.ws.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open(%s): %v", id, err)
	}
	return s
}

func note(id, content string) *models.Note {
	return &models.Note{ID: id, Title: "Note " + id, Content: content}
}

func selectLeaf(t *testing.T, s *Session, path []int, from, to int) {
	t.Helper()
	err := s.SetSelection(Selection{Anchor: Point{Path: path, Offset: from}, Focus: Point{Path: path, Offset: to}})
	if err != nil {
		t.Fatalf("SetSelection: %v", err)
	}
}

func TestOpenAndState(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>Hello <b>world</b></p>"))
	s := e.open(t, "a")
	selectLeaf(t, s, []int{0, 1, 0}, 0, 5)

	st := s.State()
	if st.Content != "<p>Hello <b>world</b></p>" || st.Text != "Hello world" {
		t.Errorf("content = %q, text = %q", st.Content, st.Text)
	}
	if st.Mode != "editing" {
		t.Errorf("mode = %q", st.Mode)
	}
	if st.Selection == nil || st.Selection.Focus.Offset != 5 {
		t.Errorf("selection = %+v", st.Selection)
	}
	for _, k := range insertion.Kinds {
		if got := st.Modals[string(k)].Step; got != "input" {
			t.Errorf("modal %s step = %q", k, got)
		}
	}

	if _, err := e.ws.Session("other"); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("Session(other) err = %v", err)
	}
	if _, err := e.ws.Open(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open(missing) err = %v", err)
	}
}

func TestDebouncedSave(t *testing.T) {
	e := newEnv(t, 20*time.Millisecond, note("a", "<p>one</p>"))
	s := e.open(t, "a")

	if err := s.SetContent("<p>two</p>"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContent("<p>three</p>"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.store.content("a") != "<p>three</p>" {
		if time.Now().After(deadline) {
			t.Fatalf("content not saved, store has %q", e.store.content("a"))
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.store.mu.Lock()
	saves := e.store.saves
	e.store.mu.Unlock()
	if saves != 1 {
		t.Errorf("saves = %d, want 1 (debounced)", saves)
	}
}

func TestFlushSavesImmediately(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>one</p>"))
	s := e.open(t, "a")

	_ = s.SetContent("<p>edited</p>")
	_ = s.SetTitle("Renamed")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, _ := e.store.Load(context.Background(), "a")
	if got.Content != "<p>edited</p>" || got.Title != "Renamed" {
		t.Errorf("stored = %+v", got)
	}
	if s.State().Checksum != got.Checksum {
		t.Error("session checksum not refreshed after save")
	}
	e.notify.mu.Lock()
	defer e.notify.mu.Unlock()
	if len(e.notify.notes) != 1 || e.notify.notes[0] != "saved:a" {
		t.Errorf("note events = %v", e.notify.notes)
	}
}

func TestPreviewBlocksEditsAndKeepsRawContent(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>x</p>"))
	s := e.open(t, "a")
	raw := "<p>Energy: $E=mc^2$ joules</p>"
	_ = s.SetContent(raw)
	selectLeaf(t, s, []int{0, 0}, 0, 6)

	st, err := s.TogglePreview()
	if err != nil || st != preview.Previewing {
		t.Fatalf("TogglePreview = %v, %v", st, err)
	}
	if got := e.store.content("a"); got != raw {
		t.Errorf("pending edit not flushed before preview: %q", got)
	}
	want := `<p><span data-preview="math">[Energy: $E=mc^2$ joules]</span></p>`
	if got := s.State().Content; got != want {
		t.Errorf("preview content = %q, want %q", got, want)
	}

	if err := s.SetContent("<p>nope</p>"); !errors.Is(err, apperr.ErrPreviewing) {
		t.Errorf("SetContent err = %v, want ErrPreviewing", err)
	}
	if _, err := s.ReplaceAll("Energy", "Power"); !errors.Is(err, apperr.ErrPreviewing) {
		t.Errorf("ReplaceAll err = %v, want ErrPreviewing", err)
	}
	if err := s.Apply(command.Bold, ""); err != nil {
		t.Errorf("Apply while previewing = %v, want silent no-op", err)
	}
	if _, err := s.StartGeneration(insertion.KindReformat, "", generate.Medium); !errors.Is(err, apperr.ErrPreviewing) {
		t.Errorf("StartGeneration err = %v, want ErrPreviewing", err)
	}
	if got := s.Export(); !strings.Contains(got, want) {
		t.Errorf("export while previewing lacks rendered tree:\n%s", got)
	}

	st, err = s.TogglePreview()
	if err != nil || st != preview.Editing {
		t.Fatalf("TogglePreview back = %v, %v", st, err)
	}
	if got := s.State().Content; got != raw {
		t.Errorf("restored content = %q, want %q", got, raw)
	}
}

func TestReplaceAll(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>hello world hello</p>"))
	s := e.open(t, "a")

	n, err := s.ReplaceAll("hello", "hi")
	if err != nil || n != 2 {
		t.Fatalf("ReplaceAll = %d, %v", n, err)
	}
	if got := s.State().Content; got != "<p>hi world hi</p>" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.ReplaceAll("absent", "x"); !errors.Is(err, apperr.ErrNoMatchFound) {
		t.Errorf("no match err = %v", err)
	}
	if _, err := s.ReplaceAll("", "x"); !errors.Is(err, apperr.ErrEmptyFindTerm) {
		t.Errorf("empty term err = %v", err)
	}
}

func TestLatexGenerationCommitsAutomatically(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>The mass is 5 kg</p>"))
	e.gen.latex = `$5\text{kg}$`
	s := e.open(t, "a")
	selectLeaf(t, s, []int{0, 0}, 12, 16)

	cycle, err := s.StartGeneration(insertion.KindLatex, "", generate.Medium)
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	ev := e.notify.next(t)
	if ev.outcome != "ready" || ev.ev.Cycle != cycle || ev.ev.Kind != "latex" {
		t.Fatalf("event = %+v", ev)
	}
	if got := s.State().Content; got != `<p>The mass is $5\text{kg}$</p>` {
		t.Errorf("content = %q", got)
	}
	if got := s.State().Modals["latex"].Step; got != "input" {
		t.Errorf("latex step = %q, want input", got)
	}
}

func TestLatexRequiresSelection(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>x</p>"))
	s := e.open(t, "a")
	if _, err := s.StartGeneration(insertion.KindLatex, "", generate.Medium); !errors.Is(err, apperr.ErrNoSelection) {
		t.Errorf("err = %v, want ErrNoSelection", err)
	}
}

func TestInsertionReviewThenCommit(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>Hello world</p>"))
	e.gen.insertion = "<b>!</b>"
	e.gen.release = make(chan struct{})
	s := e.open(t, "a")
	selectLeaf(t, s, []int{0, 0}, 11, 11)

	cycle, err := s.StartGeneration(insertion.KindInsertion, "punctuate", generate.Short)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.State().Modals["insertion"].Step; got != "generating" {
		t.Errorf("step = %q, want generating", got)
	}

	// Typing elsewhere while generating does not move the target.
	selectLeaf(t, s, []int{0, 0}, 0, 0)
	close(e.gen.release)

	ev := e.notify.next(t)
	if ev.outcome != "ready" || ev.ev.Content != "<b>!</b>" {
		t.Fatalf("event = %+v", ev)
	}
	if m := s.State().Modals["insertion"]; m.Step != "review" || m.Pending != "<b>!</b>" {
		t.Errorf("modal = %+v", m)
	}
	if err := s.Commit(insertion.KindInsertion, "999"); !errors.Is(err, apperr.ErrSuperseded) {
		t.Errorf("commit with wrong cycle err = %v", err)
	}
	if err := s.Commit(insertion.KindInsertion, cycle); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := s.State().Content; got != "<p>Hello world<b>!</b></p>" {
		t.Errorf("content = %q", got)
	}
}

func TestInsertionTargetLost(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>Hello world</p>"))
	e.gen.insertion = "<i>x</i>"
	s := e.open(t, "a")
	selectLeaf(t, s, []int{0, 0}, 8, 8)

	cycle, _ := s.StartGeneration(insertion.KindInsertion, "q", generate.Medium)
	if ev := e.notify.next(t); ev.outcome != "ready" {
		t.Fatalf("event = %+v", ev)
	}
	_ = s.SetContent("<p>Hello</p>")

	if err := s.Commit(insertion.KindInsertion, cycle); !errors.Is(err, apperr.ErrInsertionTargetLost) {
		t.Fatalf("Commit err = %v, want ErrInsertionTargetLost", err)
	}
	if got := s.State().Content; got != "<p>Hello</p>" {
		t.Errorf("document changed by lost insertion: %q", got)
	}
	if got := s.State().Modals["insertion"].Step; got != "input" {
		t.Errorf("step = %q, want input", got)
	}
}

func TestDiscardWhileGenerating(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>text</p>"))
	e.gen.release = make(chan struct{})
	s := e.open(t, "a")

	cycle, _ := s.StartGeneration(insertion.KindReformat, "", generate.Medium)
	s.Discard(insertion.KindReformat)

	ev := e.notify.next(t)
	if ev.outcome != "discarded" || ev.ev.Cycle != cycle {
		t.Fatalf("event = %+v", ev)
	}
	if got := s.State().Modals["reformat"].Step; got != "input" {
		t.Errorf("step = %q", got)
	}
	select {
	case extra := <-e.notify.gens:
		t.Errorf("unexpected event after discard: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGenerationFailure(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>text</p>"))
	e.gen.err = errors.New("rate limited")
	s := e.open(t, "a")

	_, _ = s.StartGeneration(insertion.KindReformat, "", generate.Medium)
	ev := e.notify.next(t)
	if ev.outcome != "failed" || !strings.Contains(ev.ev.Error, "rate limited") {
		t.Fatalf("event = %+v", ev)
	}
	if got := s.State().Content; got != "<p>text</p>" {
		t.Errorf("content changed: %q", got)
	}
}

func TestReformatReplacesDocument(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>messy</p>text"))
	e.gen.reformat = "<h1>Tidy</h1><p>text</p>"
	s := e.open(t, "a")

	_, _ = s.StartGeneration(insertion.KindReformat, "", generate.Medium)
	if ev := e.notify.next(t); ev.outcome != "ready" {
		t.Fatalf("event = %+v", ev)
	}
	if got := s.State().Content; got != "<h1>Tidy</h1><p>text</p>" {
		t.Errorf("content = %q", got)
	}
}

func TestExportPage(t *testing.T) {
	got := Page("A <b> title", "<p>x</p>", models.EditorSettings{H1Size: "2em", ParagraphSize: "14px"})
	for _, want := range []string{
		"<title>A &lt;b&gt; title</title>",
		"<h1>A &lt;b&gt; title</h1>\n<p>x</p>",
		"h1 { font-size: 2em; }",
		"p, li { font-size: 14px; }",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("page missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "h2 {") {
		t.Error("empty h2 size should emit no rule")
	}
}

func TestWorkspaceSwitchSavesPrevious(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>a</p>"), note("b", "<p>b</p>"))
	a := e.open(t, "a")
	_ = a.SetContent("<p>a edited</p>")

	b := e.open(t, "b")
	if got := e.store.content("a"); got != "<p>a edited</p>" {
		t.Errorf("previous session not saved: %q", got)
	}
	if err := a.SetContent("<p>late</p>"); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("closed session err = %v", err)
	}
	active, _ := e.ws.Active()
	if active != b {
		t.Error("active session is not b")
	}
	if err := e.ws.CloseActive(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ws.Active(); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("Active after close err = %v", err)
	}
}

func TestReformatFailsAfterConcurrentEdit(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>draft</p>"))
	e.gen.reformat = "<h1>Draft</h1>"
	e.gen.release = make(chan struct{})
	s := e.open(t, "a")

	if _, err := s.StartGeneration(insertion.KindReformat, "", generate.Medium); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	// The user keeps typing inside the existing paragraph.
	if _, err := s.ReplaceAll("draft", "final text"); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	close(e.gen.release)

	ev := e.notify.next(t)
	if ev.outcome != "failed" || !strings.Contains(ev.ev.Error, apperr.ErrInsertionTargetLost.Error()) {
		t.Fatalf("event = %+v, want failed with target lost", ev)
	}
	if got := s.State().Content; got != "<p>final text</p>" {
		t.Errorf("content = %q, want the edit kept", got)
	}
}

func TestSupersededAutoCommitPublishesNothing(t *testing.T) {
	e := newEnv(t, time.Hour, note("a", "<p>x</p>"))
	s := e.open(t, "a")

	s.mu.Lock()
	r := s.doc.EndCaret()
	s.mu.Unlock()
	first := s.pipeline.Start(context.Background(), insertion.KindLatex, r)
	if _, err := s.pipeline.Run(first, func(context.Context) (insertion.Result, error) {
		return insertion.Result{Content: "$x$"}, nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s.pipeline.Start(context.Background(), insertion.KindLatex, r)

	s.deliver(first, sse.GenerationEvent{NoteID: "a", Kind: "latex", Cycle: "1"})
	select {
	case ev := <-e.notify.gens:
		t.Errorf("unexpected event for superseded cycle: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if got := s.State().Content; got != "<p>x</p>" {
		t.Errorf("content = %q", got)
	}
}
