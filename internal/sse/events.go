package sse

import "time"

// Event types emitted by the server.
const (
	EventHeartbeat = "heartbeat"

	EventScanStarted   = "library.scan_started"
	EventScanCompleted = "library.scan_completed"
	EventFileIndexed   = "library.file_indexed"

	EventTranscodeQueued    = "transcode.queued"
	EventTranscodeProgress  = "transcode.progress"
	EventTranscodeCompleted = "transcode.completed"
	EventTranscodeFailed    = "transcode.failed"
)

// Event is one message pushed to clients.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

func newEvent(eventType string, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewHeartbeatEvent keeps idle connections alive.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, nil)
}

// ScanEventData describes scan lifecycle events.
type ScanEventData struct {
	LibraryID    string `json:"libraryId"`
	FilesScanned int    `json:"filesScanned,omitempty"`
	FilesAdded   int    `json:"filesAdded,omitempty"`
}

// NewScanStartedEvent announces a scan beginning.
func NewScanStartedEvent(libraryID string) Event {
	return newEvent(EventScanStarted, ScanEventData{LibraryID: libraryID})
}

// NewScanCompletedEvent announces a finished scan with its totals.
func NewScanCompletedEvent(libraryID string, scanned, added int) Event {
	return newEvent(EventScanCompleted, ScanEventData{
		LibraryID:    libraryID,
		FilesScanned: scanned,
		FilesAdded:   added,
	})
}

// FileIndexedEventData describes a newly cataloged file.
type FileIndexedEventData struct {
	LibraryID   string `json:"libraryId"`
	MediaItemID string `json:"mediaItemId"`
	Title       string `json:"title"`
}

// NewFileIndexedEvent announces one file entering the catalog.
func NewFileIndexedEvent(libraryID, mediaItemID, title string) Event {
	return newEvent(EventFileIndexed, FileIndexedEventData{
		LibraryID:   libraryID,
		MediaItemID: mediaItemID,
		Title:       title,
	})
}

// TranscodeEventData describes transcode job events.
type TranscodeEventData struct {
	JobID           string `json:"jobId"`
	MediaItemID     string `json:"mediaItemId"`
	ProgressPercent int    `json:"progressPercent"`
	Error           string `json:"error,omitempty"`
}

// NewTranscodeQueuedEvent announces a job entering the queue.
func NewTranscodeQueuedEvent(jobID, mediaItemID string) Event {
	return newEvent(EventTranscodeQueued, TranscodeEventData{
		JobID:       jobID,
		MediaItemID: mediaItemID,
	})
}

// NewTranscodeProgressEvent reports encode progress.
func NewTranscodeProgressEvent(jobID, mediaItemID string, percent int) Event {
	return newEvent(EventTranscodeProgress, TranscodeEventData{
		JobID:           jobID,
		MediaItemID:     mediaItemID,
		ProgressPercent: percent,
	})
}

// NewTranscodeCompletedEvent announces a finished job.
func NewTranscodeCompletedEvent(jobID, mediaItemID string) Event {
	return newEvent(EventTranscodeCompleted, TranscodeEventData{
		JobID:           jobID,
		MediaItemID:     mediaItemID,
		ProgressPercent: 100,
	})
}

// NewTranscodeFailedEvent announces a failed job.
func NewTranscodeFailedEvent(jobID, mediaItemID, errMsg string) Event {
	return newEvent(EventTranscodeFailed, TranscodeEventData{
		JobID:       jobID,
		MediaItemID: mediaItemID,
		Error:       errMsg,
	})
}
