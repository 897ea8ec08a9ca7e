package submission

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs tests
// and demo mode when no database DSN is configured.
type MemoryRepository struct {
	mu          sync.RWMutex
	submissions map[string]Submission
	videos      map[string]Video
	now         func() time.Time
}

// NewMemoryRepository returns an initialized in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		submissions: make(map[string]Submission),
		videos:      make(map[string]Video),
		now:         time.Now,
	}
}

// SetClock overrides the repository clock, for tests.
func (m *MemoryRepository) SetClock(now func() time.Time) {
	m.now = now
}

// Create stores a new submission.
func (m *MemoryRepository) Create(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(sub.PublicID)
	if _, ok := m.submissions[key]; ok {
		return ErrConflict
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	if !sub.Status.Valid() {
		return ErrInvalidStatus
	}
	now := m.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	m.submissions[key] = *sub
	return nil
}

// GetByPublicID returns the submission with the given public id.
func (m *MemoryRepository) GetByPublicID(_ context.Context, publicID string) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.submissions[strings.ToUpper(publicID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

// List returns all submissions, newest first.
func (m *MemoryRepository) List(_ context.Context) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]Submission, 0, len(m.submissions))
	for _, sub := range m.submissions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// UpdateStatus sets a new status and optional comments.
func (m *MemoryRepository) UpdateStatus(_ context.Context, publicID string, status Status, comments string) (*Submission, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(publicID)
	sub, ok := m.submissions[key]
	if !ok {
		return nil, ErrNotFound
	}
	sub.Status = status
	if comments != "" {
		sub.Comments = comments
	}
	sub.UpdatedAt = m.now().UTC()
	m.submissions[key] = sub
	return &sub, nil
}

// PutVideo stores proof-video metadata, replacing any previous recording.
func (m *MemoryRepository) PutVideo(_ context.Context, video Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(video.SubmissionID)
	if _, ok := m.submissions[key]; !ok {
		return ErrNotFound
	}
	if video.UploadedAt.IsZero() {
		video.UploadedAt = m.now().UTC()
	}
	m.videos[key] = video
	return nil
}

// GetVideo returns proof-video metadata for a submission.
func (m *MemoryRepository) GetVideo(_ context.Context, publicID string) (*Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	video, ok := m.videos[strings.ToUpper(publicID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &video, nil
}
