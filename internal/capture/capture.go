// Package capture drives proof-video recording at the grading station. The
// controller is a state machine over pluggable capability interfaces so the
// camera source, the metadata gateway, and the upload transport can each be
// swapped independently.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/wolfiling/gradeproof/internal/submission"
)

// State is a capture controller state.
type State string

// Controller states. Error paths lead back to StateIdle with a message.
const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateUploading  State = "uploading"
	StateUploaded   State = "uploaded"
)

var (
	// ErrInvalidState is returned when an operation is not legal in the
	// current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrNoRecording is returned when upload is requested without recorded
	// data.
	ErrNoRecording = errors.New("no recorded video")
	// ErrTooLarge is returned when the recording exceeds the upload ceiling.
	ErrTooLarge = errors.New("recording exceeds upload size limit")
)

// StreamConfig selects the camera stream parameters.
type StreamConfig struct {
	Width     int
	Height    int
	FrameRate int
}

// Stream is a live camera stream. StartRecording delivers encoded chunks on
// the returned channel until StopRecording or context cancellation; empty
// chunks may appear and carry no data. Close releases the underlying tracks.
type Stream interface {
	StartRecording(ctx context.Context, interval time.Duration) (<-chan []byte, error)
	StopRecording(ctx context.Context) error
	Close() error
}

// Backend acquires camera streams.
type Backend interface {
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Gateway fetches submission metadata for the station. ExistingVideo returns
// (nil, nil) when no video has been uploaded yet.
type Gateway interface {
	Submission(ctx context.Context, submissionID string) (*submission.Submission, error)
	QRImage(ctx context.Context, submissionID string) ([]byte, error)
	ExistingVideo(ctx context.Context, submissionID string) (*submission.Video, error)
}

// UploadMeta describes the recording being uploaded.
type UploadMeta struct {
	Duration  float64
	StartedAt time.Time
}

// ProgressFunc receives byte-level upload progress.
type ProgressFunc func(sentBytes, totalBytes int64)

// Uploader sends a finished recording to the service.
type Uploader interface {
	Upload(ctx context.Context, submissionID string, payload []byte, meta UploadMeta, progress ProgressFunc) error
}

// EventType classifies controller events.
type EventType string

// Event types surfaced through OnEvent.
const (
	EventState    EventType = "state"
	EventTick     EventType = "tick"
	EventProgress EventType = "progress"
	EventNotice   EventType = "notice"
	EventError    EventType = "error"
)

// Event is a controller notification for the station UI.
type Event struct {
	Type       EventType
	State      State
	Message    string
	Elapsed    time.Duration
	SentBytes  int64
	TotalBytes int64
}
