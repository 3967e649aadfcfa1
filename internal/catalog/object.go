package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Extractor is the transcode cache engine capability the catalog needs.
type Extractor interface {
	Probe(ctx context.Context, sourcePath string) (string, error)
	CachedPath(ctx context.Context, sourcePath string) (string, error)
	// Peek reports the cached file for a source when it already exists on
	// disk, without triggering an extraction.
	Peek(ctx context.Context, sourcePath string) (string, bool)
}

// Object is anything addressable by object ID.
type Object interface {
	ID() int
	Parent() *Container
	Name() string
	Path() string
	Date() time.Time
	CoverPath() string
}

// Item is a playable object the content handler can stream.
type Item interface {
	Object
	// PlayablePath resolves the concrete file to serve, producing it first
	// when necessary.
	PlayablePath(ctx context.Context) (string, error)
	Size() int64
	MimeType() string
}

type base struct {
	id      int
	parent  *Container
	path    string
	modTime time.Time
	cover   string
}

func (b *base) ID() int            { return b.id }
func (b *base) Parent() *Container { return b.parent }
func (b *base) Name() string       { return filepath.Base(b.path) }
func (b *base) Path() string       { return b.path }
func (b *base) Date() time.Time    { return b.modTime }
func (b *base) CoverPath() string  { return b.cover }

// Container mirrors a directory.
type Container struct {
	base

	mu       sync.RWMutex
	children []Object
	updateID uint32
}

// Children returns a copy of the child list.
func (c *Container) Children() []Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Object(nil), c.children...)
}

// UpdateID reports how many times this container's child list has changed.
func (c *Container) UpdateID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateID
}

func (c *Container) addChild(obj Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, obj)
	c.updateID++
}

func (c *Container) removeChild(obj Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, child := range c.children {
		if child == obj {
			c.children = append(c.children[:i], c.children[i+1:]...)
			c.updateID++
			return
		}
	}
}

// AudioItem is a directly playable audio file.
type AudioItem struct {
	base

	size  int64
	mime  string
	title string
}

func (a *AudioItem) Name() string {
	if a.title != "" {
		return a.title
	}
	return a.base.Name()
}

func (a *AudioItem) PlayablePath(context.Context) (string, error) { return a.path, nil }

// Size stats the file so in-place rewrites are reflected; the scan-time
// snapshot only covers the file disappearing between stat and serve.
func (a *AudioItem) Size() int64 {
	if info, err := os.Stat(a.path); err == nil {
		return info.Size()
	}
	return a.size
}

func (a *AudioItem) MimeType() string { return a.mime }

// TranscodeItem is a video file whose audio track is extracted on demand.
type TranscodeItem struct {
	base

	extractor Extractor

	probeMu sync.Mutex
	probed  chan struct{}
	format  string
}

// startProbe kicks off the eager format probe so the item can advertise its
// eventual extension and MIME type before any client requests bytes.
func (t *TranscodeItem) startProbe() {
	t.probed = make(chan struct{})
	go func() {
		defer close(t.probed)
		format, err := t.extractor.Probe(context.Background(), t.path)
		if err != nil {
			return
		}
		t.probeMu.Lock()
		t.format = format
		t.probeMu.Unlock()
	}()
}

// Format returns the probed audio format, waiting for the initial probe to
// settle. Empty when the probe failed; a later PlayablePath retries.
func (t *TranscodeItem) Format(ctx context.Context) string {
	select {
	case <-t.probed:
	case <-ctx.Done():
		return ""
	}
	t.probeMu.Lock()
	defer t.probeMu.Unlock()
	return t.format
}

// Name swaps the container extension for the extracted audio format once it
// is known, matching the file a client will actually receive.
func (t *TranscodeItem) Name() string {
	t.probeMu.Lock()
	format := t.format
	t.probeMu.Unlock()

	name := t.base.Name()
	if format == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + format
}

// PlayablePath resolves the extracted audio file, producing it first when
// needed. The probe is re-driven first so a previously failed probe heals on
// the next request.
func (t *TranscodeItem) PlayablePath(ctx context.Context) (string, error) {
	format, err := t.extractor.Probe(ctx, t.path)
	if err != nil {
		return "", err
	}
	t.probeMu.Lock()
	t.format = format
	t.probeMu.Unlock()

	return t.extractor.CachedPath(ctx, t.path)
}

// Size reports the extracted file's size, or 0 before the first extraction.
func (t *TranscodeItem) Size() int64 {
	if cached, ok := t.extractor.Peek(context.Background(), t.path); ok {
		if info, err := os.Stat(cached); err == nil {
			return info.Size()
		}
	}
	return 0
}

func (t *TranscodeItem) MimeType() string {
	t.probeMu.Lock()
	defer t.probeMu.Unlock()
	if t.format == "" {
		return ""
	}
	return mimeForFormat(t.format)
}
