package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchKeybinds watches the keybinds.conf at path and invokes reload with a
// freshly parsed table whenever the file is written or created. It returns
// a stop function. Watch errors are silently dropped; the previous table
// stays in effect.
func WatchKeybinds(path string, reload func(*Keybinds)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: the file may not exist yet, and editors often
	// replace it via rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if kb, err := LoadKeybinds(path); err == nil {
					reload(kb)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
	}, nil
}
