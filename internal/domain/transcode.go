package domain

import "time"

// TranscodeStatus is the lifecycle state of a transcode job.
type TranscodeStatus string

// Job states. Completed and failed are terminal.
const (
	TranscodeStatusPending    TranscodeStatus = "pending"
	TranscodeStatusProcessing TranscodeStatus = "processing"
	TranscodeStatusCompleted  TranscodeStatus = "completed"
	TranscodeStatusFailed     TranscodeStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TranscodeStatus) Terminal() bool {
	return s == TranscodeStatusCompleted || s == TranscodeStatusFailed
}

// TranscodeJob tracks an HLS transcode of a media item.
type TranscodeJob struct {
	ID               string          `json:"id"`
	MediaItemID      string          `json:"mediaItemId"`
	Status           TranscodeStatus `json:"status"`
	ProgressPercent  int             `json:"progressPercent"`
	OutputDir        string          `json:"outputDir"`
	PlaylistFilename string          `json:"playlistFilename,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// MarkProcessing moves the job out of pending.
func (j *TranscodeJob) MarkProcessing() {
	now := time.Now().UTC()
	j.Status = TranscodeStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted records a successful transcode.
func (j *TranscodeJob) MarkCompleted(playlistFilename string) {
	now := time.Now().UTC()
	j.Status = TranscodeStatusCompleted
	j.ProgressPercent = 100
	j.PlaylistFilename = playlistFilename
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed records a failed transcode.
func (j *TranscodeJob) MarkFailed(err error) {
	now := time.Now().UTC()
	j.Status = TranscodeStatusFailed
	if err != nil {
		j.ErrorMessage = err.Error()
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// SetProgress clamps and stores progress.
func (j *TranscodeJob) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.ProgressPercent = percent
	j.UpdatedAt = time.Now().UTC()
}

// ResetForRetry returns a processing job to the queue, used at startup for
// jobs orphaned by a crash.
func (j *TranscodeJob) ResetForRetry() {
	j.Status = TranscodeStatusPending
	j.ProgressPercent = 0
	j.StartedAt = nil
	j.UpdatedAt = time.Now().UTC()
}
