package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/quire/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// errorStatus maps domain errors to HTTP statuses and client messages.
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not found"},
	{apperr.ErrNoSession, http.StatusNotFound, "no active session"},
	{apperr.ErrAlreadyExists, http.StatusConflict, "note already exists"},
	{apperr.ErrConflict, http.StatusConflict, "checksum mismatch"},
	{apperr.ErrPreviewing, http.StatusConflict, "document is in preview mode"},
	{apperr.ErrSuperseded, http.StatusConflict, "superseded by a newer request"},
	{apperr.ErrInsertionTargetLost, http.StatusGone, "insertion target lost"},
	{apperr.ErrNoSelection, http.StatusUnprocessableEntity, "no selection"},
	{apperr.ErrNoMatchFound, http.StatusUnprocessableEntity, "no matches"},
	{apperr.ErrEmptyFindTerm, http.StatusBadRequest, "find term is empty"},
	{apperr.ErrUnknownCommand, http.StatusBadRequest, "unknown command"},
	{apperr.ErrInvalidArgument, http.StatusBadRequest, ""},
	{apperr.ErrGeneration, http.StatusBadGateway, "generation failed"},
}

// writeError writes the response for err. Unmapped errors are logged and
// reported as internal.
func writeError(w http.ResponseWriter, op string, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			msg := m.msg
			if msg == "" {
				msg = err.Error()
			}
			writeJSON(w, m.status, errorBody(msg))
			return
		}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
