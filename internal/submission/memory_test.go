package submission

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSubmission(publicID string) *Submission {
	return &Submission{
		PublicID:      publicID,
		CustomerEmail: "collector@example.com",
		CardName:      "Charizard",
		CardSeries:    "Base Set",
		CardYear:      "1999",
		GradingType:   "standard",
		CardSource:    "psa",
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := testSubmission("PSA123")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.ID == "" {
		t.Fatalf("expected generated internal id")
	}
	if sub.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", sub.Status, StatusPending)
	}

	got, err := repo.GetByPublicID(ctx, "psa123")
	if err != nil {
		t.Fatalf("GetByPublicID: %v", err)
	}
	if got.CardName != "Charizard" {
		t.Fatalf("CardName = %q", got.CardName)
	}
}

func TestMemoryCreateConflict(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testSubmission("PSA123")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, testSubmission("PSA123")); !errors.Is(err, ErrConflict) {
		t.Fatalf("Create duplicate = %v, want ErrConflict", err)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.GetByPublicID(context.Background(), "PSA999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByPublicID = %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdateStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testSubmission("PSA123")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := repo.UpdateStatus(ctx, "PSA123", StatusFilmed, "proof recorded")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != StatusFilmed || updated.Comments != "proof recorded" {
		t.Fatalf("updated = %+v", updated)
	}

	if _, err := repo.UpdateStatus(ctx, "PSA123", Status("polished"), ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("UpdateStatus bad status = %v, want ErrInvalidStatus", err)
	}
	if _, err := repo.UpdateStatus(ctx, "PSA999", StatusFilmed, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStatus missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryListNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"PSAAAA", "PSABBB", "PSACCC"} {
		sub := testSubmission(id)
		sub.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	subs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 3 || subs[0].PublicID != "PSACCC" || subs[2].PublicID != "PSAAAA" {
		t.Fatalf("List order = %+v", subs)
	}
}

func TestMemoryVideoRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.PutVideo(ctx, Video{SubmissionID: "PSA123"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PutVideo without submission = %v, want ErrNotFound", err)
	}

	if err := repo.Create(ctx, testSubmission("PSA123")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.GetVideo(ctx, "PSA123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetVideo before upload = %v, want ErrNotFound", err)
	}

	video := Video{
		SubmissionID: "PSA123",
		FileSize:     1 << 20,
		Duration:     95.2,
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.PutVideo(ctx, video); err != nil {
		t.Fatalf("PutVideo: %v", err)
	}

	got, err := repo.GetVideo(ctx, "psa123")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.FileSize != video.FileSize || got.Duration != video.Duration {
		t.Fatalf("GetVideo = %+v", got)
	}
	if got.UploadedAt.IsZero() {
		t.Fatalf("expected UploadedAt set on store")
	}
}

func TestNewPublicIDShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewPublicID()
		if err != nil {
			t.Fatalf("NewPublicID: %v", err)
		}
		if len(id) != len(publicIDPrefix)+publicIDLength {
			t.Fatalf("id %q has unexpected length", id)
		}
		if id[:len(publicIDPrefix)] != publicIDPrefix {
			t.Fatalf("id %q missing prefix", id)
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Fatalf("ids collide too often: %d unique of 100", len(seen))
	}
}
