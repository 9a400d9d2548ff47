// Package service implements the application services on top of the store.
package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
	"github.com/homeflixapp/homeflix-server/internal/sse"
)

// PlaylistFilename is the name of the HLS playlist inside a job's output dir.
const PlaylistFilename = "playlist.m3u8"

// pollInterval is the worker fallback for picking up pending jobs when no
// notification arrived.
const pollInterval = 5 * time.Second

// TranscodeStore is the slice of the store the job manager needs.
type TranscodeStore interface {
	GetMediaItem(ctx context.Context, id string) (*domain.MediaItem, error)
	CreateTranscodeJob(ctx context.Context, job *domain.TranscodeJob) error
	UpdateTranscodeJob(ctx context.Context, job *domain.TranscodeJob) error
	GetTranscodeJob(ctx context.Context, id string) (*domain.TranscodeJob, error)
	GetLatestJobForItem(ctx context.Context, itemID string, statuses ...domain.TranscodeStatus) (*domain.TranscodeJob, error)
	ListPendingTranscodeJobs(ctx context.Context) ([]*domain.TranscodeJob, error)
	ListProcessingTranscodeJobs(ctx context.Context) ([]*domain.TranscodeJob, error)
}

// TranscodeService manages HLS transcode jobs with a small worker pool.
type TranscodeService struct {
	store          TranscodeStore
	emitter        *sse.Manager
	logger         *slog.Logger
	ffmpegPath     string
	cacheDir       string
	segmentSeconds int
	workers        int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	jobNotify chan struct{}

	// itemMu serializes StartJob per media item so two concurrent requests
	// for the same item cannot race each other into two jobs.
	itemMu    sync.Mutex
	itemLocks map[string]*sync.Mutex
}

// NewTranscodeService creates the job manager.
func NewTranscodeService(store TranscodeStore, emitter *sse.Manager, logger *slog.Logger, ffmpegPath, cacheDir string, segmentSeconds, workers int) (*TranscodeService, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcode cache dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TranscodeService{
		store:          store,
		emitter:        emitter,
		logger:         logger,
		ffmpegPath:     ffmpegPath,
		cacheDir:       cacheDir,
		segmentSeconds: segmentSeconds,
		workers:        workers,
		ctx:            ctx,
		cancel:         cancel,
		jobNotify:      make(chan struct{}, 1),
		itemLocks:      make(map[string]*sync.Mutex),
	}, nil
}

// Start recovers orphaned jobs and launches the worker pool.
func (s *TranscodeService) Start() {
	s.recoverStalledJobs()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.logger.Info("Transcode workers started", "workers", s.workers)
}

// Stop cancels running transcodes and waits for workers to exit.
func (s *TranscodeService) Stop() {
	s.cancel()
	s.wg.Wait()
}

// StartJob returns a transcode job for the media item, creating one only
// when needed: a completed job is reused as-is and a pending or processing
// job is returned rather than duplicated. Failed jobs are not resurrected;
// a fresh job is created so a transient encoder failure can be retried.
func (s *TranscodeService) StartJob(ctx context.Context, mediaItemID string) (*domain.TranscodeJob, error) {
	if _, err := s.store.GetMediaItem(ctx, mediaItemID); err != nil {
		return nil, err
	}

	lock := s.lockForItem(mediaItemID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetLatestJobForItem(ctx, mediaItemID,
		domain.TranscodeStatusCompleted,
		domain.TranscodeStatusProcessing,
		domain.TranscodeStatusPending,
	)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	jobID := id.MustGenerate(id.PrefixJob)
	job := &domain.TranscodeJob{
		ID:          jobID,
		MediaItemID: mediaItemID,
		Status:      domain.TranscodeStatusPending,
		OutputDir:   filepath.Join(s.cacheDir, jobID),
	}
	if err := s.store.CreateTranscodeJob(ctx, job); err != nil {
		return nil, err
	}

	s.emitter.Emit(sse.NewTranscodeQueuedEvent(job.ID, mediaItemID))
	s.notifyNewJob()

	s.logger.Info("Transcode job queued",
		"job_id", job.ID, "media_item_id", mediaItemID)
	return job, nil
}

// GetJob fetches a job by ID.
func (s *TranscodeService) GetJob(ctx context.Context, jobID string) (*domain.TranscodeJob, error) {
	return s.store.GetTranscodeJob(ctx, jobID)
}

// PlaylistPath returns the playlist location of a completed job.
func (s *TranscodeService) PlaylistPath(ctx context.Context, jobID string) (string, error) {
	job, err := s.store.GetTranscodeJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.TranscodeStatusCompleted {
		return "", errors.Conflict("transcode job is not completed yet")
	}
	return filepath.Join(job.OutputDir, job.PlaylistFilename), nil
}

// SegmentPath resolves a segment file inside a job's output dir, rejecting
// anything that escapes it.
func (s *TranscodeService) SegmentPath(ctx context.Context, jobID, name string) (string, error) {
	job, err := s.store.GetTranscodeJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || filepath.Ext(cleaned) != ".ts" {
		return "", errors.Validationf("invalid segment name %q", name)
	}
	return filepath.Join(job.OutputDir, cleaned), nil
}

func (s *TranscodeService) lockForItem(mediaItemID string) *sync.Mutex {
	s.itemMu.Lock()
	defer s.itemMu.Unlock()
	lock, ok := s.itemLocks[mediaItemID]
	if !ok {
		lock = &sync.Mutex{}
		s.itemLocks[mediaItemID] = lock
	}
	return lock
}

func (s *TranscodeService) notifyNewJob() {
	select {
	case s.jobNotify <- struct{}{}:
	default:
	}
}

// recoverStalledJobs requeues jobs left processing by a crash.
func (s *TranscodeService) recoverStalledJobs() {
	ctx := context.Background()
	stalled, err := s.store.ListProcessingTranscodeJobs(ctx)
	if err != nil {
		s.logger.Error("Failed to list stalled transcode jobs", "error", err)
		return
	}

	for _, job := range stalled {
		job.ResetForRetry()
		if err := s.store.UpdateTranscodeJob(ctx, job); err != nil {
			s.logger.Error("Failed to requeue stalled job",
				"job_id", job.ID, "error", err)
			continue
		}
		s.logger.Info("Requeued stalled transcode job", "job_id", job.ID)
	}
	if len(stalled) > 0 {
		s.notifyNewJob()
	}
}

func (s *TranscodeService) worker(n int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.jobNotify:
			s.processNextJob(n)
		case <-time.After(pollInterval):
			s.processNextJob(n)
		}
	}
}

func (s *TranscodeService) processNextJob(worker int) {
	jobs, err := s.store.ListPendingTranscodeJobs(s.ctx)
	if err != nil {
		s.logger.Error("Failed to list pending transcode jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	job.MarkProcessing()
	if err := s.store.UpdateTranscodeJob(s.ctx, job); err != nil {
		s.logger.Error("Failed to claim transcode job",
			"job_id", job.ID, "error", err)
		return
	}

	// More work may be queued behind this one.
	if len(jobs) > 1 {
		s.notifyNewJob()
	}

	s.logger.Info("Transcoding", "job_id", job.ID, "worker", worker)

	if err := s.executeTranscode(job); err != nil {
		job.MarkFailed(err)
		if updateErr := s.store.UpdateTranscodeJob(s.ctx, job); updateErr != nil {
			s.logger.Error("Failed to mark job failed",
				"job_id", job.ID, "error", updateErr)
		}
		s.emitter.Emit(sse.NewTranscodeFailedEvent(job.ID, job.MediaItemID, err.Error()))
		s.logger.Error("Transcode failed", "job_id", job.ID, "error", err)
		return
	}

	job.MarkCompleted(PlaylistFilename)
	if err := s.store.UpdateTranscodeJob(s.ctx, job); err != nil {
		s.logger.Error("Failed to mark job completed",
			"job_id", job.ID, "error", err)
		return
	}
	s.emitter.Emit(sse.NewTranscodeCompletedEvent(job.ID, job.MediaItemID))
	s.logger.Info("Transcode complete", "job_id", job.ID)
}

func (s *TranscodeService) executeTranscode(job *domain.TranscodeJob) error {
	item, err := s.store.GetMediaItem(s.ctx, job.MediaItemID)
	if err != nil {
		return fmt.Errorf("load media item: %w", err)
	}
	if _, err := os.Stat(item.Path); err != nil {
		return fmt.Errorf("source file missing: %w", err)
	}

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(s.ctx, s.ffmpegPath, s.buildHLSArgs(item.Path, job.OutputDir)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		s.trackProgress(stderr, job, float64(item.DurationSeconds))
	}()

	waitErr := cmd.Wait()
	progressWG.Wait()
	if waitErr != nil {
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}

	if _, err := os.Stat(filepath.Join(job.OutputDir, PlaylistFilename)); err != nil {
		return fmt.Errorf("playlist missing after transcode: %w", err)
	}
	return nil
}

// buildHLSArgs produces segments of fixed length and a playlist that keeps
// every segment (-hls_list_size 0) so playback can start from the top.
func (s *TranscodeService) buildHLSArgs(inputPath, outputDir string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", strconv.Itoa(s.segmentSeconds),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(outputDir, "seg_%04d.ts"),
		filepath.Join(outputDir, PlaylistFilename),
	}
}

var progressPattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// trackProgress scans ffmpeg stderr for time= stamps and persists progress
// in 5% steps.
func (s *TranscodeService) trackProgress(stderr io.Reader, job *domain.TranscodeJob, durationSeconds float64) {
	if durationSeconds <= 0 {
		io.Copy(io.Discard, stderr)
		return
	}

	lastReported := -5
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)

	for scanner.Scan() {
		matches := progressPattern.FindStringSubmatch(scanner.Text())
		if matches == nil {
			continue
		}
		hours, _ := strconv.Atoi(matches[1])
		minutes, _ := strconv.Atoi(matches[2])
		seconds, _ := strconv.Atoi(matches[3])
		elapsed := float64(hours*3600 + minutes*60 + seconds)

		percent := int(elapsed / durationSeconds * 100)
		if percent > 99 {
			percent = 99
		}
		if percent < lastReported+5 {
			continue
		}
		lastReported = percent

		job.SetProgress(percent)
		if err := s.store.UpdateTranscodeJob(s.ctx, job); err != nil {
			s.logger.Debug("Failed to persist transcode progress",
				"job_id", job.ID, "error", err)
		}
		s.emitter.Emit(sse.NewTranscodeProgressEvent(job.ID, job.MediaItemID, percent))
	}
}

// scanLines splits on both \n and \r; ffmpeg rewrites its status line with
// carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
