package domain

import "time"

// MediaItemType categorizes catalog entries.
type MediaItemType string

// Media item types.
const (
	MediaItemTypeMovie   MediaItemType = "movie"
	MediaItemTypeEpisode MediaItemType = "episode"
)

// MediaItem is one indexed video file.
type MediaItem struct {
	ID        string        `json:"id"`
	LibraryID string        `json:"libraryId"`
	ParentID  string        `json:"parentId,omitempty"`
	Type      MediaItemType `json:"type"`
	Path      string        `json:"path"`
	Title     string        `json:"title"`
	Year      int           `json:"year"`

	// Technical properties from probing.
	DurationSeconds int    `json:"durationSeconds"`
	VideoCodec      string `json:"videoCodec,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Bitrate         int64  `json:"bitrate,omitempty"`
	AudioChannels   int    `json:"audioChannels,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`

	Chapters []Chapter `json:"chapters,omitempty"`

	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Chapter is a named span within a media item.
type Chapter struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
}

// StreamKind distinguishes secondary stream types.
type StreamKind string

// Stream kinds.
const (
	StreamKindAudio    StreamKind = "audio"
	StreamKindSubtitle StreamKind = "subtitle"
)

// MediaStream is one audio or subtitle stream inside a media item.
type MediaStream struct {
	ID          string     `json:"id"`
	MediaItemID string     `json:"mediaItemId"`
	StreamIndex int        `json:"streamIndex"`
	Kind        StreamKind `json:"kind"`
	Codec       string     `json:"codec"`
	Language    string     `json:"language,omitempty"`
	Label       string     `json:"label,omitempty"`
	IsDefault   bool       `json:"isDefault"`
}
