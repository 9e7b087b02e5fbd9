// Package apperr holds the sentinel errors shared across quire packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// Editor session errors.
	ErrNoSession       = errors.New("no active session")
	ErrPreviewing      = errors.New("document is in preview mode")
	ErrNoSelection     = errors.New("no selection")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")

	// Find/replace outcomes.
	ErrEmptyFindTerm = errors.New("find term is empty")
	ErrNoMatchFound  = errors.New("no matches")

	// Async insertion outcomes.
	ErrInsertionTargetLost = errors.New("insertion target lost")
	ErrGeneration          = errors.New("generation failed")
	ErrSuperseded          = errors.New("superseded by a newer request")
)
