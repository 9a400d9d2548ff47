// Package domain defines the core catalog entities.
package domain

import "time"

// LibraryType categorizes what a library root contains.
type LibraryType string

// Library types.
const (
	LibraryTypeMovie LibraryType = "movie"
	LibraryTypeShow  LibraryType = "show"
	LibraryTypeMusic LibraryType = "music"
	LibraryTypePhoto LibraryType = "photo"
)

// Valid reports whether t is a known library type.
func (t LibraryType) Valid() bool {
	switch t {
	case LibraryTypeMovie, LibraryTypeShow, LibraryTypeMusic, LibraryTypePhoto:
		return true
	}
	return false
}

// Library is a named root directory that gets scanned for media.
type Library struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      LibraryType `json:"type"`
	Path      string      `json:"path"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
