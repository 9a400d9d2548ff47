package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
)

const transcodeJobColumns = `id, media_item_id, status, progress_percent,
	output_dir, playlist_filename, error_message, created_at, updated_at,
	started_at, completed_at`

func scanTranscodeJob(scanner interface{ Scan(dest ...any) error }) (*domain.TranscodeJob, error) {
	var (
		job                    domain.TranscodeJob
		playlist, errMsg       sql.NullString
		createdAt, updatedAt   string
		startedAt, completedAt sql.NullString
	)

	err := scanner.Scan(&job.ID, &job.MediaItemID, &job.Status,
		&job.ProgressPercent, &job.OutputDir, &playlist, &errMsg,
		&createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.PlaylistFilename = playlist.String
	job.ErrorMessage = errMsg.String

	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse job created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse job updated_at: %w", err)
	}
	if job.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse job started_at: %w", err)
	}
	if job.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse job completed_at: %w", err)
	}

	return &job, nil
}

// CreateTranscodeJob inserts a job.
func (s *Store) CreateTranscodeJob(ctx context.Context, job *domain.TranscodeJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcode_jobs (id, media_item_id, status, progress_percent,
			output_dir, playlist_filename, error_message, created_at,
			updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.MediaItemID, job.Status, job.ProgressPercent,
		job.OutputDir, nullString(job.PlaylistFilename),
		nullString(job.ErrorMessage), formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt), nullTimeString(job.StartedAt),
		nullTimeString(job.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert transcode job: %w", err)
	}
	return nil
}

// UpdateTranscodeJob persists a job's mutable fields.
func (s *Store) UpdateTranscodeJob(ctx context.Context, job *domain.TranscodeJob) error {
	job.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE transcode_jobs
		SET status = ?, progress_percent = ?, playlist_filename = ?,
			error_message = ?, updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		job.Status, job.ProgressPercent, nullString(job.PlaylistFilename),
		nullString(job.ErrorMessage), formatTime(job.UpdatedAt),
		nullTimeString(job.StartedAt), nullTimeString(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update transcode job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transcode job rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NotFoundf("transcode job %s not found", job.ID)
	}
	return nil
}

// GetTranscodeJob fetches a job by ID.
func (s *Store) GetTranscodeJob(ctx context.Context, id string) (*domain.TranscodeJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transcodeJobColumns+` FROM transcode_jobs WHERE id = ?`, id)

	job, err := scanTranscodeJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("transcode job %s not found", id)
		}
		return nil, fmt.Errorf("get transcode job: %w", err)
	}
	return job, nil
}

// GetLatestJobForItem returns the most recent job for a media item in any of
// the given statuses, or ErrNotFound.
func (s *Store) GetLatestJobForItem(ctx context.Context, itemID string, statuses ...domain.TranscodeStatus) (*domain.TranscodeJob, error) {
	query := `SELECT ` + transcodeJobColumns + ` FROM transcode_jobs WHERE media_item_id = ?`
	args := []any{itemID}
	if len(statuses) > 0 {
		query += ` AND status IN (`
		for i, status := range statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, status)
		}
		query += `)`
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanTranscodeJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("no transcode job for media item %s", itemID)
		}
		return nil, fmt.Errorf("get latest job for item: %w", err)
	}
	return job, nil
}

// ListPendingTranscodeJobs returns pending jobs oldest first.
func (s *Store) ListPendingTranscodeJobs(ctx context.Context) ([]*domain.TranscodeJob, error) {
	return s.listJobsByStatus(ctx, domain.TranscodeStatusPending)
}

// ListProcessingTranscodeJobs returns jobs currently marked processing.
func (s *Store) ListProcessingTranscodeJobs(ctx context.Context) ([]*domain.TranscodeJob, error) {
	return s.listJobsByStatus(ctx, domain.TranscodeStatusProcessing)
}

func (s *Store) listJobsByStatus(ctx context.Context, status domain.TranscodeStatus) ([]*domain.TranscodeJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transcodeJobColumns+` FROM transcode_jobs WHERE status = ? ORDER BY created_at`,
		status)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	defer rows.Close()

	var jobs []*domain.TranscodeJob
	for rows.Next() {
		job, err := scanTranscodeJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcode job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
