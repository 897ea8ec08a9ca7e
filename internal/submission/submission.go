package submission

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Status tracks a submission through the grading pipeline.
type Status string

// Submission statuses, in rough pipeline order.
const (
	StatusPending  Status = "pending"
	StatusReceived Status = "received"
	StatusGrading  Status = "grading"
	StatusFilmed   Status = "filmed"
	StatusShipped  Status = "shipped"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is one of the known pipeline states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusGrading, StatusFilmed, StatusShipped, StatusRejected:
		return true
	}
	return false
}

// Submission is a customer's grading order. PublicID is the short identifier
// printed on the box label and embedded in the QR code.
type Submission struct {
	ID            string    `json:"id"`
	PublicID      string    `json:"submission_id"`
	CustomerEmail string    `json:"customer_email"`
	CardName      string    `json:"card_name"`
	CardSeries    string    `json:"card_series,omitempty"`
	CardYear      string    `json:"card_year,omitempty"`
	GradingType   string    `json:"grading_type"`
	CardSource    string    `json:"card_source"`
	Status        Status    `json:"status"`
	Comments      string    `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Video is the stored proof-video metadata for a submission. The binary
// itself lives on disk under the server data directory.
type Video struct {
	SubmissionID string    `json:"submission_id"`
	FileSize     int64     `json:"file_size"`
	Duration     float64   `json:"duration"`
	StartedAt    time.Time `json:"started_at"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

const (
	publicIDPrefix = "PSA"
	publicIDLength = 6
	// No 0/1/I/O, the label is read back by humans over the phone.
	publicIDAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// NewPublicID generates a short submission identifier like "PSA7KQ2MX".
// Uniqueness is enforced by the repository; callers retry on conflict.
func NewPublicID() (string, error) {
	buf := make([]byte, publicIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public id: %w", err)
	}
	out := make([]byte, publicIDLength)
	for i, b := range buf {
		out[i] = publicIDAlphabet[int(b)%len(publicIDAlphabet)]
	}
	return publicIDPrefix + string(out), nil
}
