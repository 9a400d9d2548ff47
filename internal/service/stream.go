package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/homeflixapp/homeflix-server/internal/domain"
)

// directPlayCodec is the only codec browsers can be assumed to play without
// re-encoding when served in its native container.
const directPlayCodec = "h264"

// directPlayExt is the container that pairs with directPlayCodec.
const directPlayExt = ".mp4"

// Streamer serves media files either by byte-range passthrough or through a
// live ffmpeg transcode piped straight into the response.
type Streamer struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewStreamer creates a streamer.
func NewStreamer(ffmpegPath string, logger *slog.Logger) *Streamer {
	return &Streamer{ffmpegPath: ffmpegPath, logger: logger}
}

// CanDirectPlay reports whether the file can be sent as-is: an h264 stream
// in an mp4 container with no resize requested.
func CanDirectPlay(item *domain.MediaItem, height int) bool {
	if height > 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(item.Path), directPlayExt) &&
		strings.EqualFold(item.VideoCodec, directPlayCodec)
}

// MimeTypeFor maps a container extension to its MIME type.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// Stream writes the media file to the response. The source must exist on
// disk; callers handle catalog lookup. height > 0 forces a transcode scaled
// to that height.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, item *domain.MediaItem, height int) {
	if CanDirectPlay(item, height) {
		s.serveDirect(w, r, item)
		return
	}
	s.serveTranscoded(w, r, item, height)
}

// serveDirect answers plain and Range requests straight off the file.
func (s *Streamer) serveDirect(w http.ResponseWriter, r *http.Request, item *domain.MediaItem) {
	file, err := os.Open(item.Path)
	if err != nil {
		s.logger.Error("Failed to open media file", "path", item.Path, "error", err)
		http.Error(w, "media file unavailable", http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.logger.Error("Failed to stat media file", "path", item.Path, "error", err)
		http.Error(w, "media file unavailable", http.StatusNotFound)
		return
	}
	fileSize := info.Size()
	mimeType := MimeTypeFor(item.Path)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(fileSize, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("Direct stream interrupted", "path", item.Path, "error", err)
		}
		return
	}

	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok || start >= fileSize {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		fmt.Fprintf(w, "requested range not satisfiable: %s of %d bytes\n", rangeHeader, fileSize)
		return
	}

	chunkSize := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(chunkSize, 10))
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		s.logger.Error("Failed to seek media file", "path", item.Path, "error", err)
		return
	}
	if _, err := io.CopyN(w, file, chunkSize); err != nil {
		s.logger.Debug("Range stream interrupted", "path", item.Path, "error", err)
	}
}

// parseRange understands single ranges of the form "bytes=start-end" with an
// optional end, which defaults to the last byte.
func parseRange(header string, fileSize int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	end = fileSize - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > fileSize-1 {
			end = fileSize - 1
		}
	}
	return start, end, true
}

// serveTranscoded pipes a live ffmpeg remux into the response. There is no
// Content-Length; the fragmented mp4 flags let playback begin before the
// encode finishes. When the client goes away the encoder is killed outright
// rather than waited on.
func (s *Streamer) serveTranscoded(w http.ResponseWriter, r *http.Request, item *domain.MediaItem, height int) {
	args := []string{"-i", item.Path,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
	}
	if height > 0 {
		// -2 keeps the width even, which libx264 requires.
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", height))
	}
	args = append(args,
		"-movflags", "frag_keyframe+empty_moov+faststart",
		"-f", "mp4",
		"pipe:1",
	)

	cmd := exec.Command(s.ffmpegPath, args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.logger.Error("Failed to create ffmpeg pipe", "error", err)
		http.Error(w, "transcode unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		s.logger.Error("Failed to start ffmpeg", "error", err)
		http.Error(w, "transcode unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("X-Transcode", "active")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.Context().Done():
			// Client is gone; stop burning CPU immediately.
			cmd.Process.Kill()
		case <-done:
		}
	}()

	buf := make([]byte, 64*1024)
	clientGone := false
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				clientGone = true
				cmd.Process.Kill()
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	switch {
	case clientGone || r.Context().Err() != nil:
		s.logger.Debug("Client disconnected during transcode stream",
			"media_item_id", item.ID)
	case waitErr != nil:
		s.logger.Error("Transcode stream failed",
			"media_item_id", item.ID, "error", waitErr)
	}
}
