package index

import "github.com/starford/quire/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string) error
	DeleteNote(id string) error
	DeleteByPath(path string) (string, error)
	GetNote(id string) (*NoteRow, error)
	GetChecksum(id string) (string, error)
	ListNotes(folder string, limit, offset int) ([]NoteRow, int, error)
	Folders() ([]models.Folder, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
