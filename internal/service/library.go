package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
)

// LibraryStore is the slice of the store the library service needs.
type LibraryStore interface {
	CreateLibrary(ctx context.Context, lib *domain.Library) error
	GetLibrary(ctx context.Context, id string) (*domain.Library, error)
	ListLibraries(ctx context.Context) ([]*domain.Library, error)
	DeleteLibrary(ctx context.Context, id string) error
}

// LibraryScanner triggers scans; satisfied by the scanner package.
type LibraryScanner interface {
	ScanLibrary(ctx context.Context, libraryID string)
}

// LibraryService manages libraries and their scans.
type LibraryService struct {
	store   LibraryStore
	scanner LibraryScanner
	logger  *slog.Logger
}

// NewLibraryService creates the library service.
func NewLibraryService(store LibraryStore, scanner LibraryScanner, logger *slog.Logger) *LibraryService {
	return &LibraryService{store: store, scanner: scanner, logger: logger}
}

// CreateLibraryInput is the payload for creating a library.
type CreateLibraryInput struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
	Type string `json:"type" validate:"required,oneof=movie show music photo"`
	Path string `json:"path" validate:"required"`
}

// Create registers a library and kicks off its initial scan in the
// background.
func (s *LibraryService) Create(ctx context.Context, input CreateLibraryInput) (*domain.Library, error) {
	info, err := os.Stat(input.Path)
	if err != nil || !info.IsDir() {
		return nil, errors.Validationf("library path %q is not a readable directory", input.Path)
	}

	lib := &domain.Library{
		ID:   id.MustGenerate(id.PrefixLibrary),
		Name: input.Name,
		Type: domain.LibraryType(input.Type),
		Path: input.Path,
	}
	if err := s.store.CreateLibrary(ctx, lib); err != nil {
		return nil, err
	}

	s.logger.Info("Library created",
		"library_id", lib.ID, "name", lib.Name, "path", lib.Path)

	go s.scanner.ScanLibrary(context.Background(), lib.ID)
	return lib, nil
}

// Get fetches a library.
func (s *LibraryService) Get(ctx context.Context, libraryID string) (*domain.Library, error) {
	return s.store.GetLibrary(ctx, libraryID)
}

// List returns all libraries.
func (s *LibraryService) List(ctx context.Context) ([]*domain.Library, error) {
	return s.store.ListLibraries(ctx)
}

// Scan triggers a background rescan. Unknown libraries error immediately so
// the API can answer 404.
func (s *LibraryService) Scan(ctx context.Context, libraryID string) error {
	if _, err := s.store.GetLibrary(ctx, libraryID); err != nil {
		return err
	}
	go s.scanner.ScanLibrary(context.Background(), libraryID)
	return nil
}
