package submission

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a submission or video does not exist.
	ErrNotFound = errors.New("submission not found")
	// ErrConflict is returned when a public id is already taken.
	ErrConflict = errors.New("submission id already exists")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid submission status")
)

// Repository persists submissions and their proof-video metadata.
type Repository interface {
	Create(ctx context.Context, sub *Submission) error
	GetByPublicID(ctx context.Context, publicID string) (*Submission, error)
	List(ctx context.Context) ([]Submission, error)
	UpdateStatus(ctx context.Context, publicID string, status Status, comments string) (*Submission, error)

	PutVideo(ctx context.Context, video Video) error
	GetVideo(ctx context.Context, publicID string) (*Video, error)
}
