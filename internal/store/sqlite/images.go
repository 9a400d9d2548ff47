package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
)

const imageColumns = `id, media_item_id, kind, path, size_class, blurhash, created_at`

func scanImage(scanner interface{ Scan(dest ...any) error }) (*domain.Image, error) {
	var (
		img       domain.Image
		blurhash  sql.NullString
		createdAt string
	)

	err := scanner.Scan(&img.ID, &img.MediaItemID, &img.Kind, &img.Path,
		&img.SizeClass, &blurhash, &createdAt)
	if err != nil {
		return nil, err
	}

	img.BlurHash = blurhash.String
	if img.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse image created_at: %w", err)
	}
	return &img, nil
}

// CreateImage inserts an artwork row.
func (s *Store) CreateImage(ctx context.Context, img *domain.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, media_item_id, kind, path, size_class, blurhash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.MediaItemID, img.Kind, img.Path, img.SizeClass,
		nullString(img.BlurHash), formatTime(img.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetImageByKind fetches an item's artwork of one kind, or ErrNotFound.
func (s *Store) GetImageByKind(ctx context.Context, itemID string, kind domain.ImageKind) (*domain.Image, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE media_item_id = ? AND kind = ? LIMIT 1`,
		itemID, kind)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("no %s for media item %s", kind, itemID)
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}
