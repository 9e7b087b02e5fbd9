package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quire/internal/storage"
)

// EventCallback is called after a watcher-driven index change with the
// affected note id. kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// reconcileDelay debounces the vault scan that follows a rename.
const reconcileDelay = 200 * time.Millisecond

type watcher struct {
	fsw    *fsnotify.Watcher
	db     NoteIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	reconcile   *time.Timer
	reconcileCh <-chan time.Time
}

// Watch follows edits made to the vault outside the app and keeps the index
// in step until ctx is cancelled. Writes that leave a note's checksum
// unchanged (the app's own saves) produce no callback.
//
// Directories created at runtime are watched too. fsnotify reports a rename
// only on the old path, so a rename deletes the old row and schedules a
// reconciliation pass that indexes the file at its new location.
func Watch(ctx context.Context, db NoteIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addDirsRecursive(fsw, vaultRoot); err != nil {
		return err
	}
	if cb == nil {
		cb = func(string, string) {}
	}
	w := &watcher{fsw: fsw, db: db, store: store, root: vaultRoot, logger: logger, cb: cb}

	logger.Info("watcher: started", slog.String("root", vaultRoot))
	for {
		select {
		case <-ctx.Done():
			if w.reconcile != nil {
				w.reconcile.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-w.reconcileCh:
			w.reconcileVault()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.watchDir(ev.Name)
			return
		}
	}
	if !isNoteFile(ev.Name) {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		w.index(rel, kind)
	case ev.Op&fsnotify.Remove != 0:
		w.remove(rel)
	case ev.Op&fsnotify.Rename != 0:
		w.remove(rel)
		w.scheduleReconcile()
	}
}

// index reads and indexes one note, reporting kind when the row changed.
func (w *watcher) index(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	row, changed, err := IndexFile(w.db, rel, data)
	if err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if !changed {
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("id", row.ID), slog.String("op", kind))
	w.cb(kind, row.ID)
}

func (w *watcher) remove(rel string) {
	id, err := w.db.DeleteByPath(rel)
	if err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if id == "" {
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel), slog.String("id", id))
	w.cb("deleted", id)
}

func (w *watcher) scheduleReconcile() {
	if w.reconcile == nil {
		w.reconcile = time.NewTimer(reconcileDelay)
		w.reconcileCh = w.reconcile.C
		return
	}
	w.reconcile.Reset(reconcileDelay)
}

// watchDir adds a new directory tree and indexes the notes already in it.
func (w *watcher) watchDir(dir string) {
	if err := addDirsRecursive(w.fsw, dir); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", dir), slog.String("error", err.Error()))
	} else {
		w.logger.Debug("watcher: watching new dir", slog.String("path", dir))
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isNoteFile(path) {
			return nil
		}
		if rel, err := filepath.Rel(w.root, path); err == nil {
			w.index(rel, "created")
		}
		return nil
	})
}

// reconcileVault drops rows whose file is gone and indexes files whose
// checksum the index does not know.
func (w *watcher) reconcileVault() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.index(p, "created")
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// isNoteFile skips temp files left by in-flight atomic writes.
func isNoteFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, storage.NoteExt) && !strings.HasPrefix(base, ".")
}
