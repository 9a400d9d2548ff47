// Package scanner walks library roots and indexes video files into the
// catalog.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
	"github.com/homeflixapp/homeflix-server/internal/probe"
	"github.com/homeflixapp/homeflix-server/internal/sse"
)

// Catalog is the slice of the store the scanner needs.
type Catalog interface {
	GetLibrary(ctx context.Context, id string) (*domain.Library, error)
	GetMediaItemByPath(ctx context.Context, path string) (*domain.MediaItem, error)
	CreateMediaItemWithStreams(ctx context.Context, item *domain.MediaItem, streams []*domain.MediaStream) error
	DeleteMediaItemByPath(ctx context.Context, path string) error
}

// Prober extracts technical metadata from a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.MediaInfo, error)
}

// PosterGenerator captures artwork for newly indexed items.
type PosterGenerator interface {
	GeneratePoster(ctx context.Context, mediaItemID, filePath string, durationSeconds float64) error
}

// SearchIndexer keeps the search index in step with the catalog.
type SearchIndexer interface {
	IndexMediaItem(item *domain.MediaItem) error
	RemoveMediaItem(itemID string) error
}

// Scanner indexes video files for libraries.
type Scanner struct {
	catalog Catalog
	prober  Prober
	posters PosterGenerator
	search  SearchIndexer
	walker  *Walker
	emitter *sse.Manager
	logger  *slog.Logger
}

// New creates a scanner.
func New(catalog Catalog, prober Prober, posters PosterGenerator, search SearchIndexer, emitter *sse.Manager, logger *slog.Logger) *Scanner {
	return &Scanner{
		catalog: catalog,
		prober:  prober,
		posters: posters,
		search:  search,
		walker:  NewWalker(logger),
		emitter: emitter,
		logger:  logger,
	}
}

// ScanLibrary walks a library root and indexes every video file found.
// A missing library is logged and swallowed. Per-file failures are isolated:
// one bad file never aborts the rest of the scan.
func (s *Scanner) ScanLibrary(ctx context.Context, libraryID string) {
	library, err := s.catalog.GetLibrary(ctx, libraryID)
	if err != nil {
		s.logger.Warn("Scan requested for unknown library",
			"library_id", libraryID, "error", err)
		return
	}

	s.logger.Info("Scanning library", "library_id", libraryID, "path", library.Path)
	s.emitter.Emit(sse.NewScanStartedEvent(libraryID))

	var scanned, added int
	for result := range s.walker.Walk(ctx, library.Path) {
		scanned++
		wasAdded, err := s.ScanFile(ctx, result.Path, library)
		if err != nil {
			s.logger.Error("Failed to index file",
				"path", result.Path, "error", err)
			continue
		}
		if wasAdded {
			added++
		}
	}

	s.logger.Info("Library scan complete",
		"library_id", libraryID, "scanned", scanned, "added", added)
	s.emitter.Emit(sse.NewScanCompletedEvent(libraryID, scanned, added))
}

// ScanFile indexes a single file. Already-indexed paths are a no-op, so
// repeat scans converge. The media item and all of its streams are written
// in one transaction; on success a poster capture is kicked off in the
// background.
func (s *Scanner) ScanFile(ctx context.Context, path string, library *domain.Library) (bool, error) {
	_, err := s.catalog.GetMediaItemByPath(ctx, path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return false, fmt.Errorf("lookup %s: %w", path, err)
	}

	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", path, err)
	}

	item := s.buildMediaItem(path, library, info)
	streams := buildStreams(item.ID, info)

	if err := s.catalog.CreateMediaItemWithStreams(ctx, item, streams); err != nil {
		if errors.Is(err, errors.ErrAlreadyExists) {
			// Raced with another scan of the same path.
			return false, nil
		}
		return false, fmt.Errorf("insert %s: %w", path, err)
	}

	if err := s.search.IndexMediaItem(item); err != nil {
		s.logger.Warn("Failed to index item for search",
			"media_item_id", item.ID, "error", err)
	}

	s.emitter.Emit(sse.NewFileIndexedEvent(library.ID, item.ID, item.Title))

	// Poster capture happens after commit and off the scan path.
	go func() {
		posterCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.posters.GeneratePoster(posterCtx, item.ID, path, float64(item.DurationSeconds)); err != nil {
			s.logger.Error("Poster generation failed",
				"media_item_id", item.ID, "error", err)
		}
	}()

	return true, nil
}

// RemoveFile drops the catalog entry for a deleted file, if one exists.
func (s *Scanner) RemoveFile(ctx context.Context, path string) error {
	item, err := s.catalog.GetMediaItemByPath(ctx, path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.catalog.DeleteMediaItemByPath(ctx, path); err != nil {
		return err
	}
	if err := s.search.RemoveMediaItem(item.ID); err != nil {
		s.logger.Warn("Failed to remove item from search index",
			"media_item_id", item.ID, "error", err)
	}

	s.logger.Info("Removed media item for deleted file",
		"media_item_id", item.ID, "path", path)
	return nil
}

func (s *Scanner) buildMediaItem(path string, library *domain.Library, info *probe.MediaInfo) *domain.MediaItem {
	itemType := domain.MediaItemTypeMovie
	if library.Type == domain.LibraryTypeShow {
		itemType = domain.MediaItemTypeEpisode
	}

	item := &domain.MediaItem{
		ID:        id.MustGenerate(id.PrefixMediaItem),
		LibraryID: library.ID,
		Type:      itemType,
		Path:      path,
		// Title and year are filename-derived placeholders until proper
		// metadata parsing exists.
		Title:           strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Year:            time.Now().Year(),
		DurationSeconds: int(info.DurationSeconds),
		Bitrate:         info.Bitrate,
	}

	if info.Video != nil {
		item.VideoCodec = info.Video.Codec
		item.Resolution = info.Video.Resolution
		item.Width = info.Video.Width
		item.Height = info.Video.Height
	}
	if len(info.Audio) > 0 {
		item.AudioChannels = info.Audio[0].Channels
	}
	for _, c := range info.Chapters {
		item.Chapters = append(item.Chapters, domain.Chapter{
			Title:        c.Title,
			StartSeconds: c.StartSeconds,
			EndSeconds:   c.EndSeconds,
		})
	}

	return item
}

func buildStreams(itemID string, info *probe.MediaInfo) []*domain.MediaStream {
	var streams []*domain.MediaStream
	for _, a := range info.Audio {
		streams = append(streams, &domain.MediaStream{
			ID:          id.MustGenerate(id.PrefixStream),
			MediaItemID: itemID,
			StreamIndex: a.Index,
			Kind:        domain.StreamKindAudio,
			Codec:       a.Codec,
			Language:    a.Language,
			Label:       a.Label,
			IsDefault:   a.IsDefault,
		})
	}
	for _, sub := range info.Subtitles {
		streams = append(streams, &domain.MediaStream{
			ID:          id.MustGenerate(id.PrefixStream),
			MediaItemID: itemID,
			StreamIndex: sub.Index,
			Kind:        domain.StreamKindSubtitle,
			Codec:       sub.Codec,
			Language:    sub.Language,
			Label:       sub.Label,
			IsDefault:   sub.IsDefault,
		})
	}
	return streams
}
