// Package noteservice coordinates the vault and the index: every write lands
// on disk first and is then reflected in the index.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.NoteIndex
	now   func() time.Time
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex) *Service {
	return &Service{store: store, db: db, now: time.Now}
}

// Load returns the note with its serialised content.
func (s *Service) Load(_ context.Context, id string) (*models.Note, error) {
	row, err := s.db.GetNote(id)
	if err != nil {
		return nil, err
	}
	data, err := s.read(row.Path)
	if err != nil {
		return nil, err
	}
	return buildNote(row, data)
}

// Create stores a new note under a fresh id.
func (s *Service) Create(_ context.Context, title, folder, content string) (*models.Note, error) {
	folder, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}
	body, err := canonical(content)
	if err != nil {
		return nil, err
	}
	fm := parser.Frontmatter{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Folder:    folder,
		UpdatedAt: s.stamp(),
	}
	p := storage.NotePath(folder, fm.ID)
	if s.store.Exists(p) {
		return nil, apperr.ErrAlreadyExists
	}
	return s.write(p, fm, body)
}

// Save replaces a note's title and content. A non-empty ifMatch must equal
// the checksum of the stored file or the save fails with apperr.ErrConflict.
// An empty title keeps the current one.
func (s *Service) Save(_ context.Context, id, title, content, ifMatch string) (*models.Note, error) {
	row, err := s.db.GetNote(id)
	if err != nil {
		return nil, err
	}
	existing, err := s.read(row.Path)
	if err != nil {
		return nil, err
	}
	if !checksum.Match(ifMatch, existing) {
		return nil, apperr.ErrConflict
	}
	body, err := canonical(content)
	if err != nil {
		return nil, err
	}
	prev, _ := parser.Parse(existing)
	fm := prev.Frontmatter
	fm.ID, fm.Folder, fm.UpdatedAt = id, row.Folder, s.stamp()
	if t := strings.TrimSpace(title); t != "" {
		fm.Title = t
	}
	return s.write(row.Path, fm, body)
}

// Move relocates a note into folder. The id is unchanged.
func (s *Service) Move(_ context.Context, id, folder string) (*models.Note, error) {
	folder, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}
	row, err := s.db.GetNote(id)
	if err != nil {
		return nil, err
	}
	data, err := s.read(row.Path)
	if err != nil {
		return nil, err
	}
	if row.Folder == folder {
		return buildNote(row, data)
	}
	res, _ := parser.Parse(data)
	fm := res.Frontmatter
	fm.ID, fm.Folder, fm.UpdatedAt = id, folder, s.stamp()

	dst := storage.NotePath(folder, id)
	if err := s.store.Move(row.Path, dst); err != nil {
		return nil, fmt.Errorf("noteservice: move: %w", err)
	}
	return s.write(dst, fm, res.Body)
}

// Delete removes a note from storage and index.
func (s *Service) Delete(_ context.Context, id string) error {
	row, err := s.db.GetNote(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(row.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.db.DeleteNote(id)
}

// List returns notes without content, newest first, with the unpaginated total.
func (s *Service) List(_ context.Context, folder string, limit, offset int) ([]models.Note, int, error) {
	rows, total, err := s.db.ListNotes(folder, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.Note, len(rows))
	for i, r := range rows {
		items[i] = models.Note{
			ID:        r.ID,
			Title:     r.Title,
			Folder:    r.Folder,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Folders lists folders holding at least one note.
func (s *Service) Folders(_ context.Context) ([]models.Folder, error) {
	folders, err := s.db.Folders()
	if folders == nil {
		folders = []models.Folder{}
	}
	return folders, err
}

// IndexFile parses data and upserts it into the index.
// Exported so that sync and watcher callers can reuse it.
func (s *Service) IndexFile(path string, data []byte) error {
	_, _, err := index.IndexFile(s.db, path, data)
	return err
}

func (s *Service) write(p string, fm parser.Frontmatter, body string) (*models.Note, error) {
	data, err := parser.Render(fm, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, data); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, data); err != nil {
		return nil, err
	}
	return &models.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Folder:    fm.Folder,
		Content:   body,
		Checksum:  checksum.Sum(data),
		UpdatedAt: fm.UpdatedAt,
	}, nil
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	return data, err
}

func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func buildNote(row *index.NoteRow, data []byte) (*models.Note, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &models.Note{
		ID:        row.ID,
		Title:     res.Title,
		Folder:    row.Folder,
		Content:   res.Body,
		Checksum:  checksum.Sum(data),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// canonical parses content and re-serialises it so stored notes are always
// sanitised and in canonical form.
func canonical(content string) (string, error) {
	doc, err := document.Deserialize(content)
	if err != nil {
		return "", fmt.Errorf("noteservice: %v: %w", err, apperr.ErrInvalidArgument)
	}
	return doc.Serialize(), nil
}

func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return "", nil
	}
	clean := path.Clean(folder)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, ".") {
		return "", fmt.Errorf("noteservice: folder %q: %w", folder, apperr.ErrInvalidArgument)
	}
	return clean, nil
}
