package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/generate"
)

const defaultSaveDebounce = 2 * time.Second

// Workspace holds the single active session. Opening a note closes the
// previous one, saving its pending edits.
type Workspace struct {
	mu     sync.Mutex
	active *Session

	store  Store
	gen    generate.Generator
	notify Notifier
	opts   Options
	logger *slog.Logger
}

// NewWorkspace returns a workspace without an active session.
func NewWorkspace(store Store, gen generate.Generator, notify Notifier, opts Options, logger *slog.Logger) *Workspace {
	if opts.SaveDebounce <= 0 {
		opts.SaveDebounce = defaultSaveDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{store: store, gen: gen, notify: notify, opts: opts, logger: logger}
}

// Open loads note id into a new active session.
func (w *Workspace) Open(ctx context.Context, id string) (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active != nil && w.active.ID() == id {
		return w.active, nil
	}
	n, err := w.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := newSession(n, w.store, w.gen, w.notify, w.opts, w.logger)
	if err != nil {
		return nil, err
	}
	if w.active != nil {
		if err := w.active.Close(); err != nil {
			w.logger.Warn("editor: close previous session", slog.String("note", w.active.ID()), slog.String("error", err.Error()))
		}
	}
	w.active = s
	w.logger.Info("editor: session opened", slog.String("note", id))
	return s, nil
}

// Active returns the open session or apperr.ErrNoSession.
func (w *Workspace) Active() (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil, apperr.ErrNoSession
	}
	return w.active, nil
}

// Session returns the open session if it edits note id.
func (w *Workspace) Session(id string) (*Session, error) {
	s, err := w.Active()
	if err != nil {
		return nil, err
	}
	if s.ID() != id {
		return nil, fmt.Errorf("editor: note %s is not open: %w", id, apperr.ErrNoSession)
	}
	return s, nil
}

// CloseActive closes the open session, if any.
func (w *Workspace) CloseActive() error {
	w.mu.Lock()
	s := w.active
	w.active = nil
	w.mu.Unlock()
	if s == nil {
		return apperr.ErrNoSession
	}
	w.logger.Info("editor: session closed", slog.String("note", s.ID()))
	return s.Close()
}

// Close releases the workspace.
func (w *Workspace) Close() error {
	if err := w.CloseActive(); err != nil && !errors.Is(err, apperr.ErrNoSession) {
		return err
	}
	return nil
}
