package index

import (
	"log/slog"
	"time"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, _, err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if _, err := db.DeleteByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses a stored note and upserts it. The id and folder come from
// the frontmatter, falling back to the file's location in the vault. changed
// is false when the row was already indexed at path with the same checksum.
func IndexFile(db NoteIndex, path string, data []byte) (row NoteRow, changed bool, err error) {
	res, err := parser.Parse(data)
	if err != nil {
		return NoteRow{}, false, err
	}
	fm := res.Frontmatter

	row = NoteRow{
		ID:        fm.ID,
		Path:      path,
		Title:     res.Title,
		Folder:    fm.Folder,
		Checksum:  checksum.Sum(data),
		UpdatedAt: fm.UpdatedAt,
	}
	if row.ID == "" {
		row.ID = storage.IDOf(path)
	}
	if row.Folder == "" {
		row.Folder = storage.FolderOf(path)
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	if cur, err := db.GetNote(row.ID); err == nil && cur.Path == path && cur.Checksum == row.Checksum {
		return row, false, nil
	}

	body := ""
	if doc, err := document.Deserialize(res.Body); err == nil {
		body = doc.Text()
	}
	if err := db.UpsertNote(row, body); err != nil {
		return NoteRow{}, false, err
	}
	return row, true, nil
}
