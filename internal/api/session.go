package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/generate"
	"github.com/starford/quire/internal/insertion"
	"github.com/starford/quire/internal/storage"
)

// SessionHandler serves the editing session.
type SessionHandler struct {
	ws      *editor.Workspace
	exports storage.Provider
}

// NewSessionHandler creates a handler over ws. exports may be nil, which
// disables writing exports to disk.
func NewSessionHandler(ws *editor.Workspace, exports storage.Provider) *SessionHandler {
	return &SessionHandler{ws: ws, exports: exports}
}

// active resolves the open session or writes the error response.
func (h *SessionHandler) active(w http.ResponseWriter) (*editor.Session, bool) {
	s, err := h.ws.Active()
	if err != nil {
		writeError(w, "session", err)
		return nil, false
	}
	return s, true
}

// Open handles POST /api/session.
//
//	@Summary		Open a note for editing
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Note to open"
//	@Success		200		{object}	editor.State
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NoteID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note_id is required"))
		return
	}
	s, err := h.ws.Open(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// State handles GET /api/session.
//
//	@Summary		Get the open session's state
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	editor.State
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *SessionHandler) State(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// Close handles DELETE /api/session. Pending edits are saved first.
//
//	@Summary		Close the open session
//	@Tags			session
//	@Success		204
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [delete]
func (h *SessionHandler) Close(w http.ResponseWriter, _ *http.Request) {
	if err := h.ws.CloseActive(); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetContent handles PUT /api/session/content.
//
//	@Summary		Replace the open note's content
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContentRequest	true	"Raw content"
//	@Success		200		{object}	editor.State
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/content [put]
func (h *SessionHandler) SetContent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SetContent(req.Content); err != nil {
		writeError(w, "set content", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// SetTitle handles PUT /api/session/title.
//
//	@Summary		Rename the open note
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TitleRequest	true	"New title"
//	@Success		200		{object}	editor.State
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/title [put]
func (h *SessionHandler) SetTitle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req TitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SetTitle(req.Title); err != nil {
		writeError(w, "set title", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// SetSelection handles PUT /api/session/selection.
//
//	@Summary		Move the live selection
//	@Tags			session
//	@Accept			json
//	@Param			body	body	editor.Selection	true	"Anchor and focus points"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/selection [put]
func (h *SessionHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req editor.Selection
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SetSelection(req); err != nil {
		writeError(w, "set selection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Apply handles POST /api/session/commands.
//
//	@Summary		Run a formatting command on the selection
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CommandRequest	true	"Command"
//	@Success		200		{object}	editor.State
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/commands [post]
func (h *SessionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req CommandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Apply(req.Name, req.Arg); err != nil {
		writeError(w, "apply command", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// TogglePreview handles POST /api/session/preview.
//
//	@Summary		Enter or leave math preview
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	editor.State
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/preview [post]
func (h *SessionHandler) TogglePreview(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	if _, err := s.TogglePreview(); err != nil {
		writeError(w, "toggle preview", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// ReplaceAll handles POST /api/session/replace.
//
//	@Summary		Replace every occurrence of a term
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ReplaceRequest	true	"Find and replace terms"
//	@Success		200		{object}	ReplaceResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/replace [post]
func (h *SessionHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req ReplaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.ReplaceAll(req.Find, req.Replace)
	if err != nil {
		writeError(w, "replace", err)
		return
	}
	writeJSON(w, http.StatusOK, ReplaceResponse{Count: n})
}

// StartGeneration handles POST /api/session/generate. The result arrives as
// a generation.* event.
//
//	@Summary		Start generating content for the selection
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	true	"Generation request"
//	@Success		202		{object}	GenerateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/generate [post]
func (h *SessionHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := insertion.ParseKind(req.Kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	cycle, err := s.StartGeneration(kind, req.Query, generate.ParseLength(req.Length))
	if err != nil {
		writeError(w, "start generation", err)
		return
	}
	writeJSON(w, http.StatusAccepted, GenerateResponse{Cycle: cycle})
}

// Commit handles POST /api/session/generate/{kind}/commit.
//
//	@Summary		Insert a reviewed generation result
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string			true	"insertion, latex or reformat"
//	@Param			body	body		CommitRequest	true	"Cycle to commit"
//	@Success		200		{object}	editor.State
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		410		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/generate/{kind}/commit [post]
func (h *SessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	kind, err := insertion.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req CommitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Commit(kind, req.Cycle); err != nil {
		writeError(w, "commit", err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// Discard handles DELETE /api/session/generate/{kind}.
//
//	@Summary		Discard a generation in progress or in review
//	@Tags			session
//	@Param			kind	path	string	true	"insertion, latex or reformat"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/generate/{kind} [delete]
func (h *SessionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	kind, err := insertion.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s.Discard(kind)
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/session/export: the note as a standalone page.
//
//	@Summary		Download the open note as HTML
//	@Tags			session
//	@Produce		html
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/export [get]
func (h *SessionHandler) Export(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.ID()+`.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.Export())
}

// WriteExport handles POST /api/session/export: the page is written to the
// export directory.
//
//	@Summary		Write the open note to the export directory
//	@Tags			session
//	@Produce		json
//	@Success		201	{object}	ExportResponse
//	@Failure		404	{object}	errResponse
//	@Failure		501	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/export [post]
func (h *SessionHandler) WriteExport(w http.ResponseWriter, _ *http.Request) {
	if h.exports == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("export directory is not configured"))
		return
	}
	s, ok := h.active(w)
	if !ok {
		return
	}
	p, err := s.WriteExport(h.exports)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{Path: p})
}

// Flush handles POST /api/session/flush.
//
//	@Summary		Save pending edits now
//	@Tags			session
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/flush [post]
func (h *SessionHandler) Flush(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	if err := s.Flush(); err != nil {
		writeError(w, "flush", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
