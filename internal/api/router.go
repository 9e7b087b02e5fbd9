package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

// NoteService is the persistence surface the API serves.
type NoteService interface {
	Load(ctx context.Context, id string) (*models.Note, error)
	Create(ctx context.Context, title, folder, content string) (*models.Note, error)
	Save(ctx context.Context, id, title, content, ifMatch string) (*models.Note, error)
	Move(ctx context.Context, id, folder string) (*models.Note, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, folder string, limit, offset int) ([]models.Note, int, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Folders(ctx context.Context) ([]models.Folder, error)
}

// EventBroker streams events to clients and accepts note changes.
type EventBroker interface {
	http.Handler
	PublishNoteEvent(kind, id string)
}

// RouterConfig wires the API to its collaborators. Exports and Events are
// optional.
type RouterConfig struct {
	Notes       NoteService
	Workspace   *editor.Workspace
	Exports     storage.Provider
	Events      EventBroker
	AuthEnabled bool
	Token       string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Notes, cfg.Workspace, cfg.Events)
	sh := NewSessionHandler(cfg.Workspace, cfg.Exports)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Post("/notes/{id}/move", h.MoveNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	r.Get("/search", h.Search)
	r.Get("/folders", h.Folders)
	r.Post("/render", h.Render)

	// Editing session.
	r.Route("/session", func(r chi.Router) {
		r.Post("/", sh.Open)
		r.Get("/", sh.State)
		r.Delete("/", sh.Close)
		r.Put("/content", sh.SetContent)
		r.Put("/title", sh.SetTitle)
		r.Put("/selection", sh.SetSelection)
		r.Post("/commands", sh.Apply)
		r.Post("/images", sh.UploadImage)
		r.Post("/preview", sh.TogglePreview)
		r.Post("/replace", sh.ReplaceAll)
		r.Post("/generate", sh.StartGeneration)
		r.Post("/generate/{kind}/commit", sh.Commit)
		r.Delete("/generate/{kind}", sh.Discard)
		r.Get("/export", sh.Export)
		r.Post("/export", sh.WriteExport)
		r.Post("/flush", sh.Flush)
	})

	// SSE endpoint (protected by same auth middleware).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
