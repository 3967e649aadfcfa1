package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

// Watcher keeps the catalog synchronized with filesystem changes under the
// media directories.
type Watcher struct {
	catalog *Catalog
	fsw     *fsnotify.Watcher
}

// NewWatcher registers every container directory currently in the catalog
// with a filesystem watcher.
func NewWatcher(catalog *Catalog) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: create watcher: %w", err)
	}
	w := &Watcher{catalog: catalog, fsw: fsw}

	catalog.mu.RLock()
	for _, obj := range catalog.objects {
		container, ok := obj.(*Container)
		if !ok || container == catalog.root {
			continue
		}
		if err := fsw.Add(container.Path()); err != nil {
			catalog.logger.Warn("watch directory",
				logging.String("path", container.Path()),
				logging.Error(err))
		}
	}
	catalog.mu.RUnlock()

	return w, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log := w.catalog.logger

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	log := w.catalog.logger
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		if err := w.catalog.AddPath(event.Name); err != nil {
			log.Warn("register created path",
				logging.String("path", event.Name),
				logging.Error(err))
			return
		}
		if obj, ok := w.catalog.ByPath(event.Name); ok {
			if _, isContainer := obj.(*Container); isContainer {
				w.watchSubtree(event.Name)
			}
		}
		log.Info("added", logging.String("path", event.Name))

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if w.catalog.Remove(event.Name) {
			// Watches on removed directories are dropped by the kernel.
			log.Info("removed", logging.String("path", event.Name))
		}
	}
}

// watchSubtree adds watches for a newly created directory and everything the
// scan found beneath it.
func (w *Watcher) watchSubtree(root string) {
	w.catalog.mu.RLock()
	defer w.catalog.mu.RUnlock()
	for _, obj := range w.catalog.objects {
		container, ok := obj.(*Container)
		if !ok {
			continue
		}
		path := container.Path()
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if err := w.fsw.Add(path); err != nil {
				w.catalog.logger.Warn("watch directory",
					logging.String("path", path),
					logging.Error(err))
			}
		}
	}
}
