// Package watcher translates OS file events into the engine's
// invalidation calls: a modify marks the path for debounced re-index, a
// delete drops it from every index immediately.
package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// Sink receives translated file events.
type Sink interface {
	FileModified(relPath string)
	FileDeleted(relPath string)
}

// Watcher wraps one fsnotify watcher over a repository root.
type Watcher struct {
	root   string
	ignore *config.IgnoreSet
	sink   Sink
	log    logging.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// New builds and starts a Watcher over root, registering every
// non-ignored directory recursively.
func New(root string, ignore *config.IgnoreSet, sink Sink, log logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{root: root, ignore: ignore, sink: sink, log: log, fsw: fsw, done: make(chan struct{})}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		rel := pathutil.ToRelative(path, w.root)
		if rel != "." && w.ignore != nil && w.ignore.Excluded(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel := pathutil.ToRelative(event.Name, w.root)
	if w.ignore != nil && w.ignore.Excluded(rel) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.sink.FileDeleted(rel)

	case event.Op&fsnotify.Create != 0:
		// A new directory needs registering; a new file indexes like a
		// modification.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warnf("watcher: add %s: %v", rel, err)
			}
			return
		}
		w.sink.FileModified(rel)

	case event.Op&fsnotify.Write != 0:
		if strings.HasSuffix(rel, "~") {
			return // editor temp files
		}
		w.sink.FileModified(rel)
	}
}

// Close stops the event loop and releases the OS watches.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
