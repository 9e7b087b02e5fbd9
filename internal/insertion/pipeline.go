// Package insertion captures a selection, waits for generated content and
// splices it back at the captured location.
package insertion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/document"
)

// Result is generated content. HTML content is parsed and sanitised before
// insertion; anything else is inserted as literal text.
type Result struct {
	Content string
	HTML    bool
}

// GenerateFunc produces content for a cycle. It must honour ctx.
type GenerateFunc func(ctx context.Context) (Result, error)

// Inserter splices content at an explicit range.
type Inserter interface {
	InsertFragment(r document.Range, markup string) error
	InsertText(r document.Range, text string) error
}

// Cycle is one capture/generate/commit round of a modal.
type Cycle struct {
	ID     uint64
	Kind   Kind
	Range  document.Range
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when the cycle is superseded, discarded or closed.
func (c *Cycle) Context() context.Context { return c.ctx }

// Capture copies the live selection. It must be called synchronously from
// the triggering input, before any generation starts.
func Capture(doc *document.Document) (document.Range, bool) {
	return doc.CurrentSelection()
}

// WholeDocument returns a range covering all content of doc. It stops
// resolving as soon as doc changes.
func WholeDocument(doc *document.Document) document.Range {
	root := doc.Root()
	return doc.NewRange(
		document.Position{Node: root, Offset: 0},
		document.Position{Node: root, Offset: len(root.Children)},
	).Pinned()
}

// Pipeline owns the modals of one editor session. It is safe for concurrent
// use.
type Pipeline struct {
	mu     sync.Mutex
	modals map[Kind]*modal
	nextID uint64
}

// NewPipeline returns a pipeline with every modal in Input.
func NewPipeline() *Pipeline {
	p := &Pipeline{modals: make(map[Kind]*modal, len(Kinds))}
	for _, k := range Kinds {
		p.modals[k] = &modal{}
	}
	return p
}

func (p *Pipeline) modal(k Kind) *modal {
	m, ok := p.modals[k]
	if !ok {
		m = &modal{}
		p.modals[k] = m
	}
	return m
}

// Start begins a cycle for kind at r. An earlier cycle of the same kind is
// cancelled and its commit will be refused.
func (p *Pipeline) Start(ctx context.Context, kind Kind, r document.Range) *Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	cctx, cancel := context.WithCancel(ctx)
	c := &Cycle{ID: p.nextID, Kind: kind, Range: r, ctx: cctx, cancel: cancel}
	p.modal(kind).begin(c)
	return c
}

// Run calls fn with the cycle context. On success the modal moves to Review;
// on failure it reverts to Input and the error wraps apperr.ErrGeneration.
func (p *Pipeline) Run(c *Cycle, fn GenerateFunc) (Result, error) {
	res, err := fn(c.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.modal(c.Kind)
	if m.current != c {
		return Result{}, fmt.Errorf("insertion: cycle %d: %w", c.ID, apperr.ErrSuperseded)
	}
	if err != nil {
		m.reset()
		if errors.Is(err, apperr.ErrGeneration) {
			return Result{}, fmt.Errorf("insertion: %w", err)
		}
		return Result{}, fmt.Errorf("insertion: %w: %w", apperr.ErrGeneration, err)
	}
	m.succeed(res)
	return res, nil
}

// Commit inserts the pending result of c through ins and returns the modal
// to Input. If the captured range no longer resolves the content is dropped
// and the error wraps apperr.ErrInsertionTargetLost.
func (p *Pipeline) Commit(c *Cycle, ins Inserter) error {
	p.mu.Lock()
	m := p.modal(c.Kind)
	if m.current != c || m.step != Review {
		p.mu.Unlock()
		return fmt.Errorf("insertion: cycle %d: %w", c.ID, apperr.ErrSuperseded)
	}
	res := m.pending
	m.reset()
	p.mu.Unlock()

	var err error
	if res.HTML {
		err = ins.InsertFragment(c.Range, res.Content)
	} else {
		err = ins.InsertText(c.Range, res.Content)
	}
	if err != nil {
		return fmt.Errorf("insertion: commit cycle %d: %w", c.ID, err)
	}
	return nil
}

// Discard drops whatever kind is doing and returns it to Input.
func (p *Pipeline) Discard(kind Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modal(kind).reset()
}

// Current returns the live cycle of kind, if any.
func (p *Pipeline) Current(kind Kind) (*Cycle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.modal(kind).current
	return c, c != nil
}

// Step returns the modal step of kind.
func (p *Pipeline) Step(kind Kind) Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modal(kind).step
}

// Pending returns the result waiting in Review for kind.
func (p *Pipeline) Pending(kind Kind) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.modal(kind)
	return m.pending, m.step == Review
}

// Close cancels every cycle and resets all modals.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.modals {
		m.reset()
	}
}
