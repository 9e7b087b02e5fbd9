package api

import (
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Physics"`
	Folder  string `json:"folder" example:"science"`
	Content string `json:"content" example:"<p>The mass is 5 kg</p>"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title   string `json:"title" example:"Physics"`
	Content string `json:"content" example:"<p>The mass is $5\\text{kg}$</p>" validate:"required"`
}

// MoveNoteRequest is the request body for moving a note.
type MoveNoteRequest struct {
	Folder string `json:"folder" example:"archive"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// FoldersResponse lists folders.
type FoldersResponse struct {
	Folders []models.Folder `json:"folders" validate:"required"`
}

// OpenSessionRequest opens a note for editing.
type OpenSessionRequest struct {
	NoteID string `json:"note_id" validate:"required"`
}

// ContentRequest replaces the session document.
type ContentRequest struct {
	Content string `json:"content"`
}

// TitleRequest renames the open note.
type TitleRequest struct {
	Title string `json:"title" validate:"required"`
}

// CommandRequest runs a formatting command.
type CommandRequest struct {
	Name string `json:"name" example:"bold" validate:"required"`
	Arg  string `json:"arg,omitempty"`
}

// ReplaceRequest replaces every occurrence of Find.
type ReplaceRequest struct {
	Find    string `json:"find" validate:"required"`
	Replace string `json:"replace"`
}

// ReplaceResponse reports how many occurrences were replaced.
type ReplaceResponse struct {
	Count int `json:"count"`
}

// GenerateRequest starts a generation cycle.
type GenerateRequest struct {
	Kind   string `json:"kind" example:"latex" validate:"required"`
	Query  string `json:"query,omitempty"`
	Length string `json:"length,omitempty" example:"medium"`
}

// GenerateResponse identifies the started cycle.
type GenerateResponse struct {
	Cycle string `json:"cycle"`
}

// CommitRequest commits a reviewed cycle.
type CommitRequest struct {
	Cycle string `json:"cycle" validate:"required"`
}

// ImageUploadResponse is returned after an image was inserted.
type ImageUploadResponse struct {
	DataURI string       `json:"data_uri"`
	Size    int          `json:"size"`
	State   editor.State `json:"state"`
}

// ExportResponse reports where an export was written.
type ExportResponse struct {
	Path string `json:"path"`
}

// RenderRequest is plain text whose math delimiters should be rendered.
type RenderRequest struct {
	Text string `json:"text"`
}

// RenderResponse is the rendered HTML.
type RenderResponse struct {
	HTML string `json:"html"`
}
