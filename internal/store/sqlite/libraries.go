package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
)

const libraryColumns = `id, name, type, path, created_at, updated_at`

func scanLibrary(scanner interface{ Scan(dest ...any) error }) (*domain.Library, error) {
	var (
		lib                  domain.Library
		createdAt, updatedAt string
	)

	err := scanner.Scan(&lib.ID, &lib.Name, &lib.Type, &lib.Path, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if lib.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse library created_at: %w", err)
	}
	if lib.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse library updated_at: %w", err)
	}

	return &lib, nil
}

// CreateLibrary inserts a library.
func (s *Store) CreateLibrary(ctx context.Context, lib *domain.Library) error {
	now := time.Now().UTC()
	if lib.CreatedAt.IsZero() {
		lib.CreatedAt = now
	}
	lib.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO libraries (id, name, type, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		lib.ID, lib.Name, lib.Type, lib.Path,
		formatTime(lib.CreatedAt), formatTime(lib.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert library: %w", err)
	}
	return nil
}

// GetLibrary fetches a library by ID.
func (s *Store) GetLibrary(ctx context.Context, id string) (*domain.Library, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE id = ?`, id)

	lib, err := scanLibrary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("library %s not found", id)
		}
		return nil, fmt.Errorf("get library: %w", err)
	}
	return lib, nil
}

// ListLibraries returns all libraries ordered by name.
func (s *Store) ListLibraries(ctx context.Context) ([]*domain.Library, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []*domain.Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

// DeleteLibrary removes a library; media rows cascade.
func (s *Store) DeleteLibrary(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete library rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NotFoundf("library %s not found", id)
	}
	return nil
}
