// Package probe extracts technical metadata from video files by running
// ffprobe and parsing its JSON output.
package probe

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// MediaInfo is the probed shape of one video file.
type MediaInfo struct {
	DurationSeconds float64
	FormatName      string
	Bitrate         int64
	SizeBytes       int64
	Video           *VideoStream
	Audio           []AudioStream
	Subtitles       []SubtitleStream
	Chapters        []Chapter
}

// VideoStream describes the primary video stream.
type VideoStream struct {
	Codec      string
	Width      int
	Height     int
	Resolution string // "1920x1080"
}

// AudioStream describes one audio track.
type AudioStream struct {
	Index     int
	Codec     string
	Channels  int
	Language  string
	Label     string
	IsDefault bool
}

// SubtitleStream describes one subtitle track.
type SubtitleStream struct {
	Index     int
	Codec     string
	Language  string
	Label     string
	IsDefault bool
}

// Chapter describes one chapter marker.
type Chapter struct {
	Title        string
	StartSeconds float64
	EndSeconds   float64
}

// Prober runs ffprobe against files.
type Prober struct {
	ffprobePath string
	logger      *slog.Logger
}

// New creates a Prober using the given ffprobe binary.
func New(ffprobePath string, logger *slog.Logger) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// Probe runs ffprobe on path. Any subprocess failure or unparseable output
// is returned as an error; callers treat the file as unindexable.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	info, err := parseOutput(output)
	if err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return info, nil
}

// ffprobe JSON shapes. Numeric fields arrive as strings in the format
// section and chapters.
type probeOutput struct {
	Format   probeFormat    `json:"format"`
	Streams  []probeStream  `json:"streams"`
	Chapters []probeChapter `json:"chapters"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Size       string `json:"size"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition probeDisposition  `json:"disposition"`
}

type probeDisposition struct {
	Default int `json:"default"`
}

type probeChapter struct {
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

func parseOutput(data []byte) (*MediaInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	info := &MediaInfo{
		DurationSeconds: parseFloat(raw.Format.Duration),
		FormatName:      raw.Format.FormatName,
		Bitrate:         parseInt(raw.Format.BitRate),
		SizeBytes:       parseInt(raw.Format.Size),
	}

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			// Keep the first video stream only; attached cover art and the
			// like come after the primary stream.
			if info.Video == nil {
				info.Video = &VideoStream{
					Codec:      s.CodecName,
					Width:      s.Width,
					Height:     s.Height,
					Resolution: fmt.Sprintf("%dx%d", s.Width, s.Height),
				}
			}
		case "audio":
			channels := s.Channels
			if channels == 0 {
				channels = 2
			}
			info.Audio = append(info.Audio, AudioStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Channels:  channels,
				Language:  s.Tags["language"],
				Label:     streamLabel(s.Tags),
				IsDefault: s.Disposition.Default == 1,
			})
		case "subtitle":
			info.Subtitles = append(info.Subtitles, SubtitleStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Language:  s.Tags["language"],
				Label:     streamLabel(s.Tags),
				IsDefault: s.Disposition.Default == 1,
			})
		}
	}

	for _, c := range raw.Chapters {
		title := c.Tags["title"]
		if title == "" {
			title = "Chapter"
		}
		info.Chapters = append(info.Chapters, Chapter{
			Title:        title,
			StartSeconds: parseFloat(c.StartTime),
			EndSeconds:   parseFloat(c.EndTime),
		})
	}

	return info, nil
}

func streamLabel(tags map[string]string) string {
	if title := tags["title"]; title != "" {
		return title
	}
	return tags["label"]
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
