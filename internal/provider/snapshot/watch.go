package snapshot

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitFor blocks until path exists, or ctx ends. A file that is created empty
// counts once its first write arrives. WaitFor returns immediately when the
// file already exists.
func WaitFor(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	// the file may have appeared between Stat and Add
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	log.Infof("waiting for snapshot %s", path)
	target := filepath.Clean(path)
	created := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Create != 0:
				created = true
			case ev.Op&fsnotify.Write != 0 && created:
				return nil
			case ev.Op&fsnotify.Rename != 0:
				// atomic replace: the final name shows up as a create
				created = false
			}
			if ev.Op&fsnotify.Create != 0 && !isEmpty(path) {
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isEmpty(path string) bool {
	st, err := os.Stat(path)
	return err != nil || st.Size() == 0
}
