package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeflixapp/homeflix-server/internal/domain"
)

func TestCanDirectPlay(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		codec  string
		height int
		want   bool
	}{
		{"h264 mp4 no resize", "/v/a.mp4", "h264", 0, true},
		{"uppercase extension", "/v/a.MP4", "h264", 0, true},
		{"height override forces transcode", "/v/a.mp4", "h264", 480, false},
		{"mkv container", "/v/a.mkv", "h264", 0, false},
		{"hevc codec", "/v/a.mp4", "hevc", 0, false},
		{"no codec recorded", "/v/a.mp4", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.MediaItem{Path: tt.path, VideoCodec: tt.codec}
			assert.Equal(t, tt.want, CanDirectPlay(item, tt.height))
		})
	}
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "video/mp4", MimeTypeFor("/v/a.mp4"))
	assert.Equal(t, "video/x-matroska", MimeTypeFor("/v/a.mkv"))
	assert.Equal(t, "video/webm", MimeTypeFor("/v/a.webm"))
	assert.Equal(t, "application/octet-stream", MimeTypeFor("/v/a.bin"))
}

func newDirectPlayItem(t *testing.T, size int) *domain.MediaItem {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return &domain.MediaItem{ID: "md-1", Path: path, VideoCodec: "h264"}
}

func TestStreamDirectFullFile(t *testing.T) {
	item := newDirectPlayItem(t, 100)
	s := NewStreamer("ffmpeg", slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Body.Bytes(), 100)
}

func TestStreamDirectRange(t *testing.T) {
	item := newDirectPlayItem(t, 100)
	s := NewStreamer("ffmpeg", slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=10-19")
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 10-19/100", rec.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))

	body := rec.Body.Bytes()
	require.Len(t, body, 10)
	for i, b := range body {
		assert.Equal(t, byte((10+i)%251), b)
	}
}

func TestStreamDirectOpenEndedRange(t *testing.T) {
	item := newDirectPlayItem(t, 100)
	s := NewStreamer("ffmpeg", slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=90-")
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 90-99/100", rec.Header().Get("Content-Range"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
}

func TestStreamDirectRangeEndClamped(t *testing.T) {
	item := newDirectPlayItem(t, 100)
	s := NewStreamer("ffmpeg", slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=90-500")
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 90-99/100", rec.Header().Get("Content-Range"))
}

func TestStreamDirectUnsatisfiableRange(t *testing.T) {
	item := newDirectPlayItem(t, 100)
	s := NewStreamer("ffmpeg", slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=100-")
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */100", rec.Header().Get("Content-Range"))
	assert.Contains(t, rec.Body.String(), "bytes=100-")
}

func writeStreamScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestStreamTranscodePipesOutput(t *testing.T) {
	ffmpeg := writeStreamScript(t, "#!/bin/sh\nprintf 'FAKEVIDEO'\n")
	s := NewStreamer(ffmpeg, slog.New(slog.DiscardHandler))

	item := &domain.MediaItem{ID: "md-1", Path: "/v/movie.mkv", VideoCodec: "hevc"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	s.Stream(rec, req, item, 0)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "active", rec.Header().Get("X-Transcode"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Equal(t, "FAKEVIDEO", rec.Body.String())
}

func TestStreamHeightOverrideTranscodesPlayableFile(t *testing.T) {
	// The script proves the scale filter reached ffmpeg by echoing its args.
	ffmpeg := writeStreamScript(t, "#!/bin/sh\nprintf '%s ' \"$@\"\n")
	s := NewStreamer(ffmpeg, slog.New(slog.DiscardHandler))

	item := newDirectPlayItem(t, 100)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	s.Stream(rec, req, item, 480)

	assert.Equal(t, "active", rec.Header().Get("X-Transcode"))
	assert.Contains(t, rec.Body.String(), "scale=-2:480")
}

func TestStreamClientDisconnectKillsEncoder(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")

	// Endless producer; must die when the client goes away.
	script := fmt.Sprintf("#!/bin/sh\necho $$ > %s\nwhile true; do echo chunk; sleep 0.05; done\n", pidFile)
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte(script), 0o755))

	s := NewStreamer(ffmpeg, slog.New(slog.DiscardHandler))
	item := &domain.MediaItem{ID: "md-1", Path: "/v/movie.mkv", VideoCodec: "hevc"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Stream(w, r, item, 0)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	// Read a little, then hang up.
	buf := make([]byte, 16)
	_, err = io.ReadAtLeast(resp.Body, buf, 5)
	require.NoError(t, err)
	cancel()
	resp.Body.Close()

	pid := waitForPid(t, pidFile)
	require.Eventually(t, func() bool {
		return syscall.Kill(pid, 0) != nil
	}, 10*time.Second, 50*time.Millisecond, "encoder process survived client disconnect")
}

func waitForPid(t *testing.T, pidFile string) int {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(pidFile)
		if err == nil && len(data) > 0 {
			pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
			require.NoError(t, err)
			return pid
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("encoder never wrote its pid")
	return 0
}
