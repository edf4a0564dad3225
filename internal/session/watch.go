package session

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher is implemented by stores that can report changes made by other
// processes.
type Watcher interface {
	// Watch blocks until ctx is cancelled, calling onChange after every
	// external write or removal of the stored session.
	Watch(ctx context.Context, onChange func()) error
}

// Watch watches the data directory and calls onChange whenever session.json
// is created, rewritten, renamed into place or removed. The directory is
// watched instead of the file because Save replaces the file via rename.
func (d *DiskStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.path) {
				continue // temp files from Save
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				onChange()
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
