package api

import (
	"io"
	"net/http"

	"github.com/starford/quire/internal/command"
)

// maxUploadBytes leaves room for multipart framing around the largest image.
const maxUploadBytes = command.MaxImageBytes + 1<<20

// UploadImage handles POST /api/session/images (multipart/form-data, field
// "file"). The image is embedded in the note as a data URI at the selection.
//
//	@Summary		Embed an uploaded image at the selection
//	@Tags			session
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	ImageUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/images [post]
func (h *SessionHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, command.MaxImageBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	// Generic part types are sniffed instead.
	mime := header.Header.Get("Content-Type")
	if mime == "application/octet-stream" {
		mime = ""
	}
	uri, err := command.EncodeImageDataURI(mime, data)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	if err := s.Apply(command.InsertImage, uri); err != nil {
		writeError(w, "insert image", err)
		return
	}
	writeJSON(w, http.StatusCreated, ImageUploadResponse{DataURI: uri, Size: len(data), State: s.State()})
}
