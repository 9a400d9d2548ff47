package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscodeJobTransitions(t *testing.T) {
	job := &TranscodeJob{ID: "tj-1", Status: TranscodeStatusPending}

	job.MarkProcessing()
	assert.Equal(t, TranscodeStatusProcessing, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.False(t, job.Status.Terminal())

	job.MarkCompleted("playlist.m3u8")
	assert.Equal(t, TranscodeStatusCompleted, job.Status)
	assert.Equal(t, 100, job.ProgressPercent)
	assert.Equal(t, "playlist.m3u8", job.PlaylistFilename)
	assert.True(t, job.Status.Terminal())
	require.NotNil(t, job.CompletedAt)
}

func TestTranscodeJobMarkFailed(t *testing.T) {
	job := &TranscodeJob{ID: "tj-2", Status: TranscodeStatusProcessing}

	job.MarkFailed(errors.New("ffmpeg exited with code 1"))
	assert.Equal(t, TranscodeStatusFailed, job.Status)
	assert.Equal(t, "ffmpeg exited with code 1", job.ErrorMessage)
	assert.True(t, job.Status.Terminal())
}

func TestTranscodeJobSetProgressClamps(t *testing.T) {
	job := &TranscodeJob{Status: TranscodeStatusProcessing}

	job.SetProgress(-5)
	assert.Equal(t, 0, job.ProgressPercent)

	job.SetProgress(42)
	assert.Equal(t, 42, job.ProgressPercent)

	job.SetProgress(150)
	assert.Equal(t, 100, job.ProgressPercent)
}

func TestTranscodeJobResetForRetry(t *testing.T) {
	job := &TranscodeJob{Status: TranscodeStatusProcessing, ProgressPercent: 60}
	job.MarkProcessing()

	job.ResetForRetry()
	assert.Equal(t, TranscodeStatusPending, job.Status)
	assert.Equal(t, 0, job.ProgressPercent)
	assert.Nil(t, job.StartedAt)
}

func TestLibraryTypeValid(t *testing.T) {
	assert.True(t, LibraryTypeMovie.Valid())
	assert.True(t, LibraryTypeShow.Valid())
	assert.False(t, LibraryType("podcast").Valid())
}
