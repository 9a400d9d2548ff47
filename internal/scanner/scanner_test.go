package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/probe"
	"github.com/homeflixapp/homeflix-server/internal/sse"
)

type fakeCatalog struct {
	mu        sync.Mutex
	libraries map[string]*domain.Library
	items     map[string]*domain.MediaItem // keyed by path
	streams   map[string][]*domain.MediaStream
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		libraries: make(map[string]*domain.Library),
		items:     make(map[string]*domain.MediaItem),
		streams:   make(map[string][]*domain.MediaStream),
	}
}

func (c *fakeCatalog) GetLibrary(_ context.Context, id string) (*domain.Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lib, ok := c.libraries[id]; ok {
		return lib, nil
	}
	return nil, errors.NotFoundf("library %s not found", id)
}

func (c *fakeCatalog) GetMediaItemByPath(_ context.Context, path string) (*domain.MediaItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[path]; ok {
		return item, nil
	}
	return nil, errors.NotFoundf("media item at %s not found", path)
}

func (c *fakeCatalog) CreateMediaItemWithStreams(_ context.Context, item *domain.MediaItem, streams []*domain.MediaStream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[item.Path]; ok {
		return errors.AlreadyExists("duplicate path")
	}
	c.items[item.Path] = item
	c.streams[item.ID] = streams
	return nil
}

func (c *fakeCatalog) DeleteMediaItemByPath(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, path)
	return nil
}

func (c *fakeCatalog) itemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type fakeProber struct {
	mu     sync.Mutex
	calls  int
	failOn map[string]bool
}

func (p *fakeProber) Probe(_ context.Context, path string) (*probe.MediaInfo, error) {
	p.mu.Lock()
	p.calls++
	fail := p.failOn[path]
	p.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("ffprobe %s: corrupt file", path)
	}
	return &probe.MediaInfo{
		DurationSeconds: 5400,
		FormatName:      "matroska,webm",
		Video:           &probe.VideoStream{Codec: "h264", Width: 1920, Height: 1080, Resolution: "1920x1080"},
		Audio: []probe.AudioStream{
			{Index: 1, Codec: "aac", Channels: 6, Language: "eng", IsDefault: true},
		},
		Subtitles: []probe.SubtitleStream{
			{Index: 2, Codec: "subrip", Language: "eng"},
		},
	}, nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakePosters struct {
	generated chan string
}

func (f *fakePosters) GeneratePoster(_ context.Context, mediaItemID, _ string, _ float64) error {
	f.generated <- mediaItemID
	return nil
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (f *fakeSearch) IndexMediaItem(item *domain.MediaItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, item.ID)
	return nil
}

func (f *fakeSearch) RemoveMediaItem(itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, itemID)
	return nil
}

func newTestScanner(catalog *fakeCatalog, prober *fakeProber, posters *fakePosters, search *fakeSearch) *Scanner {
	log := slog.New(slog.DiscardHandler)
	return New(catalog, prober, posters, search, sse.NewManager(log), log)
}

func TestScanFileIndexesNewFile(t *testing.T) {
	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: "/videos"}
	catalog.libraries["lib-1"] = lib

	posters := &fakePosters{generated: make(chan string, 1)}
	search := &fakeSearch{}
	s := newTestScanner(catalog, &fakeProber{}, posters, search)

	added, err := s.ScanFile(context.Background(), "/videos/heat.mkv", lib)
	require.NoError(t, err)
	assert.True(t, added)

	item, err := catalog.GetMediaItemByPath(context.Background(), "/videos/heat.mkv")
	require.NoError(t, err)
	assert.Equal(t, "heat", item.Title)
	assert.Equal(t, time.Now().Year(), item.Year)
	assert.Equal(t, "h264", item.VideoCodec)
	assert.Equal(t, 5400, item.DurationSeconds)
	assert.Equal(t, 6, item.AudioChannels)
	assert.Len(t, catalog.streams[item.ID], 2)

	select {
	case posterID := <-posters.generated:
		assert.Equal(t, item.ID, posterID)
	case <-time.After(2 * time.Second):
		t.Fatal("poster generation was not triggered")
	}
}

func TestScanFileIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: "/videos"}
	catalog.libraries["lib-1"] = lib

	prober := &fakeProber{}
	posters := &fakePosters{generated: make(chan string, 2)}
	s := newTestScanner(catalog, prober, posters, &fakeSearch{})

	ctx := context.Background()
	added, err := s.ScanFile(ctx, "/videos/heat.mkv", lib)
	require.NoError(t, err)
	assert.True(t, added)

	// Second scan of the same path must not probe or write anything.
	added, err = s.ScanFile(ctx, "/videos/heat.mkv", lib)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, prober.callCount())
	assert.Equal(t, 1, catalog.itemCount())
}

func TestScanFileProbeFailureLeavesNoRow(t *testing.T) {
	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: "/videos"}
	catalog.libraries["lib-1"] = lib

	prober := &fakeProber{failOn: map[string]bool{"/videos/broken.avi": true}}
	s := newTestScanner(catalog, prober, &fakePosters{generated: make(chan string, 1)}, &fakeSearch{})

	added, err := s.ScanFile(context.Background(), "/videos/broken.avi", lib)
	assert.Error(t, err)
	assert.False(t, added)
	assert.Zero(t, catalog.itemCount())
}

func TestScanLibraryUnknownLibraryIsSwallowed(t *testing.T) {
	s := newTestScanner(newFakeCatalog(), &fakeProber{}, &fakePosters{generated: make(chan string, 1)}, &fakeSearch{})
	// Must not panic or error out.
	s.ScanLibrary(context.Background(), "lib-missing")
}

func TestScanLibraryWalksRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	for _, name := range []string{"one.mp4", "two.mkv", "notes.txt", "sub/three.webm"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: root}
	catalog.libraries["lib-1"] = lib

	posters := &fakePosters{generated: make(chan string, 8)}
	search := &fakeSearch{}
	s := newTestScanner(catalog, &fakeProber{}, posters, search)

	s.ScanLibrary(context.Background(), "lib-1")

	assert.Equal(t, 3, catalog.itemCount())
	search.mu.Lock()
	assert.Len(t, search.indexed, 3)
	search.mu.Unlock()
}

func TestScanLibraryIsolatesPerFileFailures(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"good.mp4", "bad.mkv", "fine.mov"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: root}
	catalog.libraries["lib-1"] = lib

	prober := &fakeProber{failOn: map[string]bool{filepath.Join(root, "bad.mkv"): true}}
	s := newTestScanner(catalog, prober, &fakePosters{generated: make(chan string, 8)}, &fakeSearch{})

	s.ScanLibrary(context.Background(), "lib-1")
	assert.Equal(t, 2, catalog.itemCount())
}

func TestRemoveFile(t *testing.T) {
	catalog := newFakeCatalog()
	lib := &domain.Library{ID: "lib-1", Type: domain.LibraryTypeMovie, Path: "/videos"}
	catalog.libraries["lib-1"] = lib

	search := &fakeSearch{}
	s := newTestScanner(catalog, &fakeProber{}, &fakePosters{generated: make(chan string, 1)}, search)

	ctx := context.Background()
	_, err := s.ScanFile(ctx, "/videos/gone.mp4", lib)
	require.NoError(t, err)

	require.NoError(t, s.RemoveFile(ctx, "/videos/gone.mp4"))
	assert.Zero(t, catalog.itemCount())
	search.mu.Lock()
	assert.Len(t, search.removed, 1)
	search.mu.Unlock()

	// Unknown paths are a no-op.
	require.NoError(t, s.RemoveFile(ctx, "/videos/never-existed.mp4"))
}

func TestWalkerSkipsHiddenAndNonVideo(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))
	files := map[string]string{
		"movie.mp4":       "x",
		"clip.MOV":        "x",
		"cover.jpg":       "x",
		".hidden/vid.mp4": "x",
		".DS_Store":       "x",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	w := NewWalker(slog.New(slog.DiscardHandler))
	var found []string
	for result := range w.Walk(context.Background(), root) {
		found = append(found, result.RelPath)
	}
	sort.Strings(found)
	assert.Equal(t, []string{"clip.MOV", "movie.mp4"}, found)
}
