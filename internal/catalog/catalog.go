package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

// rootID is the well-known ContentDirectory root object identifier.
const rootID = 0

// firstAllocatedID keeps allocated identifiers clearly apart from the
// well-known root.
const firstAllocatedID = 1000

// Catalog owns the browsable object tree, the identifier counter, and the
// system-wide change counter.
type Catalog struct {
	extractor Extractor
	logger    *slog.Logger

	mu             sync.RWMutex
	nextID         int
	objects        map[int]Object
	byPath         map[string]Object
	root           *Container
	systemUpdateID uint32
}

// New builds an empty catalog whose root container aggregates the configured
// media directories.
func New(extractor Extractor, logger *slog.Logger) *Catalog {
	c := &Catalog{
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "catalog"),
		nextID:    firstAllocatedID,
		objects:   make(map[int]Object),
		byPath:    make(map[string]Object),
	}
	c.root = &Container{base: base{id: rootID, path: "/"}}
	c.objects[rootID] = c.root
	return c
}

// Root returns the top-level container.
func (c *Catalog) Root() *Container { return c.root }

// Get looks up an object by identifier.
func (c *Catalog) Get(id int) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[id]
	return obj, ok
}

// ByPath looks up an object by absolute filesystem path.
func (c *Catalog) ByPath(path string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.byPath[path]
	return obj, ok
}

// SystemUpdateID reports the monotonic tree change counter.
func (c *Catalog) SystemUpdateID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemUpdateID
}

func (c *Catalog) allocateID() int {
	id := c.nextID
	c.nextID++
	return id
}

func (c *Catalog) bumpSystemUpdateID() {
	c.systemUpdateID++
}

// AddContainer registers a directory under the given parent.
func (c *Catalog) AddContainer(parent *Container, path string, modTime time.Time) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byPath[path]; ok {
		if container, isContainer := existing.(*Container); isContainer {
			return container
		}
	}
	container := &Container{base: base{
		id:      c.allocateID(),
		parent:  parent,
		path:    path,
		modTime: modTime,
		cover:   findCover(path),
	}}
	c.register(container, parent)
	return container
}

// AddAudio registers a directly playable audio file.
func (c *Catalog) AddAudio(parent *Container, path string, info os.FileInfo) *AudioItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byPath[path]; ok {
		if item, isAudio := existing.(*AudioItem); isAudio {
			return item
		}
	}
	item := &AudioItem{
		base: base{
			id:      c.allocateID(),
			parent:  parent,
			path:    path,
			modTime: info.ModTime(),
			cover:   findCover(filepath.Dir(path)),
		},
		size:  info.Size(),
		mime:  mimeByPath(path),
		title: readTitle(path),
	}
	c.register(item, parent)
	return item
}

// AddTranscode registers a video file whose audio track is served after
// extraction. The format probe starts immediately in the background.
func (c *Catalog) AddTranscode(parent *Container, path string, info os.FileInfo) *TranscodeItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byPath[path]; ok {
		if item, isTranscode := existing.(*TranscodeItem); isTranscode {
			return item
		}
	}
	item := &TranscodeItem{
		base: base{
			id:      c.allocateID(),
			parent:  parent,
			path:    path,
			modTime: info.ModTime(),
			cover:   findCover(filepath.Dir(path)),
		},
		extractor: c.extractor,
	}
	item.startProbe()
	c.register(item, parent)
	return item
}

func (c *Catalog) register(obj Object, parent *Container) {
	c.objects[obj.ID()] = obj
	c.byPath[obj.Path()] = obj
	parent.addChild(obj)
	c.bumpSystemUpdateID()
}

// Remove drops an object, and for containers the whole subtree beneath it.
func (c *Catalog) Remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.byPath[path]
	if !ok {
		return false
	}
	c.removeLocked(obj)
	c.bumpSystemUpdateID()
	return true
}

func (c *Catalog) removeLocked(obj Object) {
	if container, isContainer := obj.(*Container); isContainer {
		for _, child := range container.Children() {
			c.removeLocked(child)
		}
	}
	delete(c.objects, obj.ID())
	delete(c.byPath, obj.Path())
	if parent := obj.Parent(); parent != nil {
		parent.removeChild(obj)
	}
}

// SortedChildren returns a container's children ordered containers first,
// then by display name.
func SortedChildren(container *Container) []Object {
	children := container.Children()
	sort.SliceStable(children, func(i, j int) bool {
		_, iContainer := children[i].(*Container)
		_, jContainer := children[j].(*Container)
		if iContainer != jContainer {
			return iContainer
		}
		return children[i].Name() < children[j].Name()
	})
	return children
}

// coverNames are the sidecar artwork files recognized next to media files,
// in preference order.
var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png"}

func findCover(dir string) string {
	for _, name := range coverNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
