// Package storage keeps note files in the vault directory.
package storage

import "github.com/starford/quire/internal/models"

// Provider is the interface for vault file operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns metadata for every note file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a file is present at path.
	Exists(path string) bool
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
