package service

import (
	"context"
	"log/slog"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/search"
	"github.com/homeflixapp/homeflix-server/internal/store/sqlite"
)

// MediaStore is the slice of the store the media service needs.
type MediaStore interface {
	GetMediaItem(ctx context.Context, id string) (*domain.MediaItem, error)
	ListMediaItems(ctx context.Context, filter sqlite.MediaItemFilter) ([]*domain.MediaItem, int, error)
	ListMediaStreams(ctx context.Context, itemID string) ([]*domain.MediaStream, error)
	GetImageByKind(ctx context.Context, itemID string, kind domain.ImageKind) (*domain.Image, error)
}

// TitleSearcher queries the search index.
type TitleSearcher interface {
	Search(query string, limit int) ([]search.Hit, uint64, error)
}

// MediaService reads the catalog for the API layer.
type MediaService struct {
	store    MediaStore
	searcher TitleSearcher
	logger   *slog.Logger
}

// NewMediaService creates the media service.
func NewMediaService(store MediaStore, searcher TitleSearcher, logger *slog.Logger) *MediaService {
	return &MediaService{store: store, searcher: searcher, logger: logger}
}

// MediaItemDetail bundles an item with its streams for detail responses.
type MediaItemDetail struct {
	*domain.MediaItem
	Streams []*domain.MediaStream `json:"streams"`
}

// Get fetches one item with its streams.
func (s *MediaService) Get(ctx context.Context, itemID string) (*MediaItemDetail, error) {
	item, err := s.store.GetMediaItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	streams, err := s.store.ListMediaStreams(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &MediaItemDetail{MediaItem: item, Streams: streams}, nil
}

// GetItem fetches the bare item row.
func (s *MediaService) GetItem(ctx context.Context, itemID string) (*domain.MediaItem, error) {
	return s.store.GetMediaItem(ctx, itemID)
}

// List returns a filtered, sorted page of items plus the unpaged total.
func (s *MediaService) List(ctx context.Context, filter sqlite.MediaItemFilter) ([]*domain.MediaItem, int, error) {
	return s.store.ListMediaItems(ctx, filter)
}

// Poster returns an item's poster row.
func (s *MediaService) Poster(ctx context.Context, itemID string) (*domain.Image, error) {
	return s.store.GetImageByKind(ctx, itemID, domain.ImageKindPoster)
}

// SearchTitles queries the title index.
func (s *MediaService) SearchTitles(query string, limit int) ([]search.Hit, uint64, error) {
	return s.searcher.Search(query, limit)
}
