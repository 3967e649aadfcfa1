package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

// Scan walks each media directory and registers its contents. Directories
// become containers, audio files become directly playable items, and video
// files become transcode items. Anything else is skipped.
func (c *Catalog) Scan(mediaDirs []string) error {
	for _, dir := range mediaDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("catalog: media directory %s: %w", dir, err)
		}
		top := c.AddContainer(c.root, dir, info.ModTime())
		if err := c.scanTree(top, dir); err != nil {
			return err
		}
	}
	c.logger.Info("scan complete",
		logging.Int("objects", c.ObjectCount()),
		logging.Int("directories", len(mediaDirs)))
	return nil
}

func (c *Catalog) scanTree(top *Container, root string) error {
	containers := map[string]*Container{root: top}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("scan error, skipping",
				logging.String("path", path),
				logging.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		parent := containers[filepath.Dir(path)]
		if parent == nil {
			// Parent was skipped; skip the subtree too.
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}

		if entry.IsDir() {
			containers[path] = c.AddContainer(parent, path, info.ModTime())
			return nil
		}
		c.addFile(parent, path, info)
		return nil
	})
}

// AddPath registers a single path discovered after the initial scan, walking
// into it when it is a directory. Used by the filesystem watcher.
func (c *Catalog) AddPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	parentObj, ok := c.ByPath(filepath.Dir(path))
	if !ok {
		return fmt.Errorf("catalog: no container for %s", filepath.Dir(path))
	}
	parent, ok := parentObj.(*Container)
	if !ok {
		return fmt.Errorf("catalog: parent of %s is not a container", path)
	}

	if info.IsDir() {
		container := c.AddContainer(parent, path, info.ModTime())
		return c.scanTree(container, path)
	}
	c.addFile(parent, path, info)
	return nil
}

func (c *Catalog) addFile(parent *Container, path string, info os.FileInfo) {
	switch {
	case isVideoPath(path):
		c.AddTranscode(parent, path, info)
	case isAudioPath(path):
		c.AddAudio(parent, path, info)
	}
}

// ObjectCount reports how many objects the catalog holds, root included.
func (c *Catalog) ObjectCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// readTitle pulls the title tag out of an audio file. Falls back to the
// empty string when the file has no readable metadata.
func readTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title())
}
