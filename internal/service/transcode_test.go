package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
	"github.com/homeflixapp/homeflix-server/internal/sse"
	"github.com/homeflixapp/homeflix-server/internal/store/sqlite"
)

// fakeHLSEncoder writes a playlist and one segment where ffmpeg would, and
// reports some progress on stderr.
const fakeHLSEncoder = `#!/bin/sh
for last; do :; done
mkdir -p "$(dirname "$last")"
echo "#EXTM3U" > "$last"
echo ts > "$(dirname "$last")/seg_0000.ts"
printf 'frame=100 time=00:45:00.00 bitrate=1k' >&2
exit 0
`

func newTranscodeFixture(t *testing.T, encoderScript string) (*TranscodeService, *sqlite.Store, *domain.MediaItem) {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(filepath.Join(dir, "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	lib := &domain.Library{ID: id.MustGenerate(id.PrefixLibrary), Name: "Movies", Type: domain.LibraryTypeMovie, Path: dir}
	require.NoError(t, store.CreateLibrary(ctx, lib))

	sourcePath := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("video"), 0o644))

	item := &domain.MediaItem{
		ID:              id.MustGenerate(id.PrefixMediaItem),
		LibraryID:       lib.ID,
		Type:            domain.MediaItemTypeMovie,
		Path:            sourcePath,
		Title:           "movie",
		DurationSeconds: 5400,
		VideoCodec:      "hevc",
	}
	require.NoError(t, store.CreateMediaItemWithStreams(ctx, item, nil))

	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte(encoderScript), 0o755))

	log := slog.New(slog.DiscardHandler)
	svc, err := NewTranscodeService(store, sse.NewManager(log), log,
		ffmpeg, filepath.Join(dir, "hls"), 10, 1)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	return svc, store, item
}

func waitForStatus(t *testing.T, store *sqlite.Store, jobID string, want domain.TranscodeStatus) *domain.TranscodeJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetTranscodeJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestStartJobUnknownItem(t *testing.T) {
	svc, _, _ := newTranscodeFixture(t, fakeHLSEncoder)

	_, err := svc.StartJob(context.Background(), "md-missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStartJobReturnsInflightJob(t *testing.T) {
	svc, _, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	// Workers are not started, so the first job stays pending.
	first, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TranscodeStatusPending, first.Status)

	second, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestStartJobReusesCompletedJob(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	job, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)

	job.MarkProcessing()
	job.MarkCompleted(PlaylistFilename)
	require.NoError(t, store.UpdateTranscodeJob(ctx, job))

	again, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, domain.TranscodeStatusCompleted, again.Status)
}

func TestStartJobAfterFailureCreatesFreshJob(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	job, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)

	job.MarkFailed(assert.AnError)
	require.NoError(t, store.UpdateTranscodeJob(ctx, job))

	fresh, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, fresh.ID)
	assert.Equal(t, domain.TranscodeStatusPending, fresh.Status)
}

func TestStartJobConcurrentRequestsProduceOneJob(t *testing.T) {
	svc, _, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	const callers = 10
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job, err := svc.StartJob(ctx, item.ID)
			require.NoError(t, err)
			ids[n] = job.ID
		}(i)
	}
	wg.Wait()

	for _, jobID := range ids[1:] {
		assert.Equal(t, ids[0], jobID)
	}
}

func TestWorkerCompletesJob(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, fakeHLSEncoder)
	svc.Start()

	job, err := svc.StartJob(context.Background(), item.ID)
	require.NoError(t, err)

	done := waitForStatus(t, store, job.ID, domain.TranscodeStatusCompleted)
	assert.Equal(t, 100, done.ProgressPercent)
	assert.Equal(t, PlaylistFilename, done.PlaylistFilename)
	assert.FileExists(t, filepath.Join(done.OutputDir, PlaylistFilename))
}

func TestWorkerMarksFailedJob(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, "#!/bin/sh\nexit 1\n")
	svc.Start()

	job, err := svc.StartJob(context.Background(), item.ID)
	require.NoError(t, err)

	failed := waitForStatus(t, store, job.ID, domain.TranscodeStatusFailed)
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestRecoverStalledJobs(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	job, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)
	job.MarkProcessing()
	job.SetProgress(40)
	require.NoError(t, store.UpdateTranscodeJob(ctx, job))

	// Simulates the restart path: processing jobs go back to pending and
	// then complete once workers run.
	svc.Start()

	done := waitForStatus(t, store, job.ID, domain.TranscodeStatusCompleted)
	assert.Equal(t, PlaylistFilename, done.PlaylistFilename)
}

func TestSegmentPathRejectsTraversal(t *testing.T) {
	svc, _, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	job, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)

	path, err := svc.SegmentPath(ctx, job.ID, "seg_0001.ts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(job.OutputDir, "seg_0001.ts"), path)

	for _, bad := range []string{"../secrets.ts", "a/b.ts", "playlist.m3u8", "..", "seg_0001.mp4"} {
		_, err := svc.SegmentPath(ctx, job.ID, bad)
		assert.Error(t, err, "segment name %q should be rejected", bad)
	}
}

func TestPlaylistPathRequiresCompletedJob(t *testing.T) {
	svc, store, item := newTranscodeFixture(t, fakeHLSEncoder)
	ctx := context.Background()

	job, err := svc.StartJob(ctx, item.ID)
	require.NoError(t, err)

	_, err = svc.PlaylistPath(ctx, job.ID)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	job.MarkProcessing()
	job.MarkCompleted(PlaylistFilename)
	require.NoError(t, store.UpdateTranscodeJob(ctx, job))

	path, err := svc.PlaylistPath(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(job.OutputDir, PlaylistFilename), path)
}
