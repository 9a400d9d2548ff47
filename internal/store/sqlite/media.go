package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
)

const mediaItemColumns = `id, library_id, parent_id, type, path, title, year,
	duration_seconds, video_codec, resolution, bitrate, audio_channels,
	width, height, chapters, added_at, updated_at`

func scanMediaItem(scanner interface{ Scan(dest ...any) error }) (*domain.MediaItem, error) {
	var (
		item                                  domain.MediaItem
		parentID, videoCodec, resolution      sql.NullString
		chaptersJSON                          sql.NullString
		bitrate, audioChannels, width, height sql.NullInt64
		addedAt, updatedAt                    string
	)

	err := scanner.Scan(
		&item.ID, &item.LibraryID, &parentID, &item.Type, &item.Path,
		&item.Title, &item.Year, &item.DurationSeconds, &videoCodec,
		&resolution, &bitrate, &audioChannels, &width, &height,
		&chaptersJSON, &addedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ParentID = parentID.String
	item.VideoCodec = videoCodec.String
	item.Resolution = resolution.String
	item.Bitrate = bitrate.Int64
	item.AudioChannels = int(audioChannels.Int64)
	item.Width = int(width.Int64)
	item.Height = int(height.Int64)

	if chaptersJSON.Valid && chaptersJSON.String != "" {
		if err := json.Unmarshal([]byte(chaptersJSON.String), &item.Chapters); err != nil {
			return nil, fmt.Errorf("parse chapters: %w", err)
		}
	}

	if item.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, fmt.Errorf("parse media item added_at: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse media item updated_at: %w", err)
	}

	return &item, nil
}

// CreateMediaItemWithStreams inserts a media item and its streams in one
// transaction. A partial write is never observable: either the item and all
// of its streams commit together or nothing does.
func (s *Store) CreateMediaItemWithStreams(ctx context.Context, item *domain.MediaItem, streams []*domain.MediaStream) error {
	now := time.Now().UTC()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	item.UpdatedAt = now

	var chaptersJSON sql.NullString
	if len(item.Chapters) > 0 {
		data, err := json.Marshal(item.Chapters)
		if err != nil {
			return fmt.Errorf("marshal chapters: %w", err)
		}
		chaptersJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO media_items (id, library_id, parent_id, type, path, title,
			year, duration_seconds, video_codec, resolution, bitrate,
			audio_channels, width, height, chapters, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.LibraryID, nullString(item.ParentID), item.Type,
		item.Path, item.Title, item.Year, item.DurationSeconds,
		nullString(item.VideoCodec), nullString(item.Resolution),
		nullInt64(item.Bitrate), nullInt64(int64(item.AudioChannels)),
		nullInt64(int64(item.Width)), nullInt64(int64(item.Height)),
		chaptersJSON, formatTime(item.AddedAt), formatTime(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert media item: %w", err)
	}

	if err := insertMediaStreams(ctx, tx, item.ID, streams); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit media item: %w", err)
	}
	return nil
}

func insertMediaStreams(ctx context.Context, tx *sql.Tx, itemID string, streams []*domain.MediaStream) error {
	for _, stream := range streams {
		stream.MediaItemID = itemID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO media_streams (id, media_item_id, stream_index, kind,
				codec, language, label, is_default)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			stream.ID, stream.MediaItemID, stream.StreamIndex, stream.Kind,
			stream.Codec, nullString(stream.Language), nullString(stream.Label),
			boolToInt(stream.IsDefault),
		)
		if err != nil {
			return fmt.Errorf("insert media stream %d: %w", stream.StreamIndex, err)
		}
	}
	return nil
}

// GetMediaItem fetches a media item by ID.
func (s *Store) GetMediaItem(ctx context.Context, id string) (*domain.MediaItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaItemColumns+` FROM media_items WHERE id = ?`, id)

	item, err := scanMediaItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("media item %s not found", id)
		}
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// GetMediaItemByPath fetches a media item by its file path.
func (s *Store) GetMediaItemByPath(ctx context.Context, path string) (*domain.MediaItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaItemColumns+` FROM media_items WHERE path = ?`, path)

	item, err := scanMediaItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("media item at %s not found", path)
		}
		return nil, fmt.Errorf("get media item by path: %w", err)
	}
	return item, nil
}

// MediaItemFilter controls listing.
type MediaItemFilter struct {
	LibraryID string
	Type      string
	SortBy    string // title, year, date_added
	SortDesc  bool
	Page      int // 1-based
	Limit     int
}

// ListMediaItems returns a page of media items plus the unpaged total.
func (s *Store) ListMediaItems(ctx context.Context, filter MediaItemFilter) ([]*domain.MediaItem, int, error) {
	where := "1=1"
	args := []any{}
	if filter.LibraryID != "" {
		where += " AND library_id = ?"
		args = append(args, filter.LibraryID)
	}
	if filter.Type != "" {
		where += " AND type = ?"
		args = append(args, filter.Type)
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_items WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count media items: %w", err)
	}

	orderCol := "title"
	switch filter.SortBy {
	case "year":
		orderCol = "year"
	case "date_added":
		orderCol = "added_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s FROM media_items WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		mediaItemColumns, where, orderCol, direction)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	var items []*domain.MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// ListMediaStreams returns the streams of one media item ordered by index.
func (s *Store) ListMediaStreams(ctx context.Context, itemID string) ([]*domain.MediaStream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_item_id, stream_index, kind, codec, language, label, is_default
		FROM media_streams WHERE media_item_id = ? ORDER BY stream_index`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list media streams: %w", err)
	}
	defer rows.Close()

	var streams []*domain.MediaStream
	for rows.Next() {
		var (
			stream          domain.MediaStream
			language, label sql.NullString
			isDefault       int
		)
		err := rows.Scan(&stream.ID, &stream.MediaItemID, &stream.StreamIndex,
			&stream.Kind, &stream.Codec, &language, &label, &isDefault)
		if err != nil {
			return nil, fmt.Errorf("scan media stream: %w", err)
		}
		stream.Language = language.String
		stream.Label = label.String
		stream.IsDefault = isDefault == 1
		streams = append(streams, &stream)
	}
	return streams, rows.Err()
}

// DeleteMediaItemByPath removes the catalog entry for a file path. Used when
// the watcher sees a file disappear. A missing row is not an error.
func (s *Store) DeleteMediaItemByPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete media item by path: %w", err)
	}
	return nil
}
