package domain

import "time"

// ImageKind categorizes stored artwork.
type ImageKind string

// Image kinds.
const (
	ImageKindPoster    ImageKind = "poster"
	ImageKindBackdrop  ImageKind = "backdrop"
	ImageKindThumbnail ImageKind = "thumbnail"
)

// Image is a piece of artwork derived from a media item. BlurHash is a
// compact placeholder string clients can render before the file loads.
type Image struct {
	ID          string    `json:"id"`
	MediaItemID string    `json:"mediaItemId"`
	Kind        ImageKind `json:"kind"`
	Path        string    `json:"path"`
	SizeClass   string    `json:"sizeClass"`
	BlurHash    string    `json:"blurHash,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
