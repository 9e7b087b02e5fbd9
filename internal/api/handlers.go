package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/mathrender"
)

// Handler holds note route handlers.
type Handler struct {
	svc    NoteService
	ws     *editor.Workspace
	events EventBroker
}

// NewHandler creates a new Handler. ws and events may be nil.
func NewHandler(svc NoteService, ws *editor.Workspace, events EventBroker) *Handler {
	return &Handler{svc: svc, ws: ws, events: events}
}

func (h *Handler) publish(kind, id string) {
	if h.events != nil {
		h.events.PublishNoteEvent(kind, id)
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and folder filter
//	@Tags			notes
//	@Produce		json
//	@Param			folder	query		string	false	"Folder name; \"/\" for the root folder"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), q.Get("folder"), limit, offset)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.Create(r.Context(), req.Title, req.Folder, req.Content)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	h.publish("created", note.ID)
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Note id"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// The open session owns its note; writes from elsewhere would be
	// overwritten by its next save.
	if h.ws != nil {
		if _, err := h.ws.Session(id); err == nil {
			writeJSON(w, http.StatusConflict, errorBody("note is open in the editor"))
			return
		}
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.Save(r.Context(), id, req.Title, req.Content, ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	h.publish("updated", note.ID)
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// MoveNote handles POST /api/notes/{id}/move.
//
//	@Summary		Move a note to another folder
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		MoveNoteRequest	true	"Target folder"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.Move(r.Context(), chi.URLParam(r, "id"), req.Folder)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	h.publish("updated", note.ID)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.ws != nil {
		if _, err := h.ws.Session(id); err == nil {
			if err := h.ws.CloseActive(); err != nil && !errors.Is(err, apperr.ErrNoSession) {
				slog.Warn("close session before delete failed", slog.String("id", id), slog.String("error", err.Error()))
			}
		}
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	h.publish("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Folders handles GET /api/folders.
//
//	@Summary		List folders holding notes
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	FoldersResponse
//	@Security		BearerAuth
//	@Router			/folders [get]
func (h *Handler) Folders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders(r.Context())
	if err != nil {
		writeError(w, "folders", err)
		return
	}
	writeJSON(w, http.StatusOK, FoldersResponse{Folders: folders})
}

// Render handles POST /api/render: math delimiters in plain text become
// MathML, everything else is escaped.
//
//	@Summary		Render math in plain text
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Text to render"
//	@Success		200		{object}	RenderResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{HTML: mathrender.Render(req.Text)})
}
