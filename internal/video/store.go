// Package video stores proof-video binaries on disk. Metadata lives in the
// submissions repository; this store only handles the bytes.
package video

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no video exists for a submission.
	ErrNotFound = errors.New("video not found")
	// ErrTooLarge is returned when an upload exceeds the size ceiling.
	ErrTooLarge = errors.New("video exceeds size limit")
	// ErrBadID is returned for submission ids unsafe as filenames.
	ErrBadID = errors.New("invalid submission id")
)

const fileExtension = ".webm"

// Store is a disk-backed proof-video store.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the video directory if needed and returns a Store.
// maxBytes caps accepted uploads; zero or negative disables the cap.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("video directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create video directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save writes a video for the submission, replacing any previous file. The
// write goes through a temp file and rename so readers never observe a
// partial video. Returns the stored size.
func (s *Store) Save(submissionID string, r io.Reader) (int64, error) {
	path, err := s.path(submissionID)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.dir, "upload-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	limit := r
	if s.maxBytes > 0 {
		limit = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(tmp, limit)
	if err != nil {
		return 0, fmt.Errorf("write video: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		return 0, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close video: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("store video: %w", err)
	}
	return written, nil
}

// Open returns the stored video and its file info for streaming. The caller
// closes the file.
func (s *Store) Open(submissionID string) (*os.File, os.FileInfo, error) {
	path, err := s.path(submissionID)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open video: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat video: %w", err)
	}
	return file, info, nil
}

// Exists reports whether a video is stored for the submission.
func (s *Store) Exists(submissionID string) bool {
	path, err := s.path(submissionID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *Store) path(submissionID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(submissionID))
	if id == "" {
		return "", ErrBadID
	}
	for _, r := range id {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' {
			return "", ErrBadID
		}
	}
	return filepath.Join(s.dir, id+fileExtension), nil
}
