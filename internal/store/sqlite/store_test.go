package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLibrary(t *testing.T, s *Store) *domain.Library {
	t.Helper()
	lib := &domain.Library{
		ID:   id.MustGenerate(id.PrefixLibrary),
		Name: "Movies",
		Type: domain.LibraryTypeMovie,
		Path: "/videos/movies",
	}
	require.NoError(t, s.CreateLibrary(context.Background(), lib))
	return lib
}

func newTestItem(libID, path, title string) *domain.MediaItem {
	return &domain.MediaItem{
		ID:              id.MustGenerate(id.PrefixMediaItem),
		LibraryID:       libID,
		Type:            domain.MediaItemTypeMovie,
		Path:            path,
		Title:           title,
		Year:            2026,
		DurationSeconds: 7200,
		VideoCodec:      "h264",
		Resolution:      "1920x1080",
		Width:           1920,
		Height:          1080,
	}
}

func TestLibraryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib := newTestLibrary(t, s)

	got, err := s.GetLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "Movies", got.Name)
	assert.Equal(t, domain.LibraryTypeMovie, got.Type)

	libs, err := s.ListLibraries(ctx)
	require.NoError(t, err)
	assert.Len(t, libs, 1)

	require.NoError(t, s.DeleteLibrary(ctx, lib.ID))
	_, err = s.GetLibrary(ctx, lib.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = s.DeleteLibrary(ctx, lib.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCreateMediaItemWithStreams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	item := newTestItem(lib.ID, "/videos/movies/heat.mkv", "heat")
	item.Chapters = []domain.Chapter{
		{Title: "Opening", StartSeconds: 0, EndSeconds: 300},
		{Title: "Chapter", StartSeconds: 300, EndSeconds: 900},
	}
	streams := []*domain.MediaStream{
		{ID: id.MustGenerate(id.PrefixStream), StreamIndex: 1, Kind: domain.StreamKindAudio, Codec: "aac", Language: "eng", IsDefault: true},
		{ID: id.MustGenerate(id.PrefixStream), StreamIndex: 2, Kind: domain.StreamKindSubtitle, Codec: "subrip", Language: "eng"},
	}

	require.NoError(t, s.CreateMediaItemWithStreams(ctx, item, streams))

	got, err := s.GetMediaItemByPath(ctx, "/videos/movies/heat.mkv")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "heat", got.Title)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "Opening", got.Chapters[0].Title)

	gotStreams, err := s.ListMediaStreams(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, gotStreams, 2)
	assert.Equal(t, domain.StreamKindAudio, gotStreams[0].Kind)
	assert.True(t, gotStreams[0].IsDefault)
}

func TestCreateMediaItemDuplicatePathIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	first := newTestItem(lib.ID, "/videos/movies/dupe.mp4", "dupe")
	require.NoError(t, s.CreateMediaItemWithStreams(ctx, first, []*domain.MediaStream{
		{ID: id.MustGenerate(id.PrefixStream), StreamIndex: 1, Kind: domain.StreamKindAudio, Codec: "aac"},
	}))

	// Same path, fresh IDs. The insert must fail and leave no stream rows
	// from the rolled back transaction behind.
	second := newTestItem(lib.ID, "/videos/movies/dupe.mp4", "dupe again")
	err := s.CreateMediaItemWithStreams(ctx, second, []*domain.MediaStream{
		{ID: id.MustGenerate(id.PrefixStream), StreamIndex: 1, Kind: domain.StreamKindAudio, Codec: "ac3"},
	})
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

	streams, err := s.ListMediaStreams(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, streams)

	kept, err := s.ListMediaStreams(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestListMediaItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	for _, title := range []string{"alpha", "bravo", "charlie"} {
		item := newTestItem(lib.ID, "/videos/movies/"+title+".mp4", title)
		require.NoError(t, s.CreateMediaItemWithStreams(ctx, item, nil))
	}

	items, total, err := s.ListMediaItems(ctx, MediaItemFilter{SortBy: "title"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "alpha", items[0].Title)

	items, total, err = s.ListMediaItems(ctx, MediaItemFilter{SortBy: "title", SortDesc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "charlie", items[0].Title)

	items, _, err = s.ListMediaItems(ctx, MediaItemFilter{SortBy: "title", Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "charlie", items[0].Title)

	items, total, err = s.ListMediaItems(ctx, MediaItemFilter{Type: "episode"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	item := newTestItem(lib.ID, "/videos/movies/poster-me.mp4", "poster-me")
	require.NoError(t, s.CreateMediaItemWithStreams(ctx, item, nil))

	_, err := s.GetImageByKind(ctx, item.ID, domain.ImageKindPoster)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	img := &domain.Image{
		ID:          id.MustGenerate(id.PrefixImage),
		MediaItemID: item.ID,
		Kind:        domain.ImageKindPoster,
		Path:        "/data/cache/posters/" + item.ID + ".jpg",
		SizeClass:   "medium",
		BlurHash:    "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
	}
	require.NoError(t, s.CreateImage(ctx, img))

	got, err := s.GetImageByKind(ctx, item.ID, domain.ImageKindPoster)
	require.NoError(t, err)
	assert.Equal(t, img.Path, got.Path)
	assert.Equal(t, img.BlurHash, got.BlurHash)
}

func TestTranscodeJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	item := newTestItem(lib.ID, "/videos/movies/encode-me.mkv", "encode-me")
	require.NoError(t, s.CreateMediaItemWithStreams(ctx, item, nil))

	job := &domain.TranscodeJob{
		ID:          id.MustGenerate(id.PrefixJob),
		MediaItemID: item.ID,
		Status:      domain.TranscodeStatusPending,
		OutputDir:   "/data/cache/hls/job1",
	}
	require.NoError(t, s.CreateTranscodeJob(ctx, job))

	pending, err := s.ListPendingTranscodeJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)

	job.MarkProcessing()
	require.NoError(t, s.UpdateTranscodeJob(ctx, job))

	processing, err := s.ListProcessingTranscodeJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, processing, 1)

	job.MarkCompleted("playlist.m3u8")
	require.NoError(t, s.UpdateTranscodeJob(ctx, job))

	got, err := s.GetTranscodeJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TranscodeStatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Equal(t, "playlist.m3u8", got.PlaylistFilename)
	require.NotNil(t, got.CompletedAt)

	latest, err := s.GetLatestJobForItem(ctx, item.ID, domain.TranscodeStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, job.ID, latest.ID)

	_, err = s.GetLatestJobForItem(ctx, item.ID, domain.TranscodeStatusPending, domain.TranscodeStatusProcessing)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	unknown := &domain.TranscodeJob{ID: "tj-missing", Status: domain.TranscodeStatusFailed}
	err = s.UpdateTranscodeJob(ctx, unknown)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
