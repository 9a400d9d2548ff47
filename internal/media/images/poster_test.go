package images

import (
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
)

type fakeCatalog struct {
	images map[string]*domain.Image
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{images: make(map[string]*domain.Image)}
}

func (c *fakeCatalog) GetImageByKind(_ context.Context, itemID string, kind domain.ImageKind) (*domain.Image, error) {
	if img, ok := c.images[itemID+"/"+string(kind)]; ok {
		return img, nil
	}
	return nil, errors.NotFoundf("no %s for %s", kind, itemID)
}

func (c *fakeCatalog) CreateImage(_ context.Context, img *domain.Image) error {
	c.images[img.MediaItemID+"/"+string(img.Kind)] = img
	return nil
}

// writeFakeFFmpeg installs a script that copies a canned frame to the output
// path (ffmpeg's last argument) and counts invocations.
func writeFakeFFmpeg(t *testing.T, dir, framePath, countPath string) string {
	t.Helper()
	script := "#!/bin/sh\n" +
		"echo run >> " + countPath + "\n" +
		"for last; do :; done\n" +
		"cp " + framePath + " \"$last\"\n"
	path := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeTestFrame(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 68))
	for y := 0; y < 68; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, image.White)
		}
	}
	path := filepath.Join(dir, "frame.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func TestCaptureTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		want     float64
	}{
		{"two hour movie seeks ten percent in", 7200, 720},
		{"minimum seek is ten seconds", 60, 10},
		{"short clip falls back to midpoint", 5, 2.5},
		{"unknown duration falls back to zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, captureTimestamp(tt.duration), 0.001)
		})
	}
}

func TestGeneratePoster(t *testing.T) {
	dir := t.TempDir()
	frame := writeTestFrame(t, dir)
	countFile := filepath.Join(dir, "count")
	ffmpeg := writeFakeFFmpeg(t, dir, frame, countFile)

	storage, err := NewStorage(filepath.Join(dir, "posters"))
	require.NoError(t, err)

	catalog := newFakeCatalog()
	gen := NewGenerator(catalog, storage, ffmpeg, 600, slog.New(slog.DiscardHandler))

	require.NoError(t, gen.GeneratePoster(context.Background(), "md-1", "/videos/movie.mkv", 7200))

	img, err := catalog.GetImageByKind(context.Background(), "md-1", domain.ImageKindPoster)
	require.NoError(t, err)
	assert.Equal(t, storage.Path("md-1"), img.Path)
	assert.NotEmpty(t, img.BlurHash)
	assert.True(t, storage.Exists("md-1"))
}

func TestGeneratePosterIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	frame := writeTestFrame(t, dir)
	countFile := filepath.Join(dir, "count")
	ffmpeg := writeFakeFFmpeg(t, dir, frame, countFile)

	storage, err := NewStorage(filepath.Join(dir, "posters"))
	require.NoError(t, err)

	catalog := newFakeCatalog()
	gen := NewGenerator(catalog, storage, ffmpeg, 600, slog.New(slog.DiscardHandler))

	ctx := context.Background()
	require.NoError(t, gen.GeneratePoster(ctx, "md-1", "/videos/movie.mkv", 7200))
	require.NoError(t, gen.GeneratePoster(ctx, "md-1", "/videos/movie.mkv", 7200))

	// One row, one capture.
	runs, err := os.ReadFile(countFile)
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(runs))
}

func TestGeneratePosterCaptureFailureWritesNoRow(t *testing.T) {
	dir := t.TempDir()

	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	storage, err := NewStorage(filepath.Join(dir, "posters"))
	require.NoError(t, err)

	catalog := newFakeCatalog()
	gen := NewGenerator(catalog, storage, ffmpeg, 600, slog.New(slog.DiscardHandler))

	err = gen.GeneratePoster(context.Background(), "md-1", "/videos/movie.mkv", 7200)
	assert.Error(t, err)

	_, err = catalog.GetImageByKind(context.Background(), "md-1", domain.ImageKindPoster)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
