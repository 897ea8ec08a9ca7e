package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/wolfiling/gradeproof/internal/submission"
)

func testSub() *submission.Submission {
	return &submission.Submission{
		PublicID:      "PSA123",
		CustomerEmail: "collector@example.com",
		CardName:      "Charizard",
		CardSeries:    "Base Set",
		CardYear:      "1999",
		Status:        submission.StatusFilmed,
		Comments:      "edges look sharp",
	}
}

func TestRenderCreatedBody(t *testing.T) {
	body, err := renderBody(createdTemplate, templateData{
		Sub:       testSub(),
		VerifyURL: "http://localhost:8410/verify/PSA123",
	})
	if err != nil {
		t.Fatalf("renderBody: %v", err)
	}
	for _, want := range []string{"PSA123", "Charizard", "http://localhost:8410/verify/PSA123"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderStatusBody(t *testing.T) {
	body, err := renderBody(statusTemplate, templateData{Sub: testSub()})
	if err != nil {
		t.Fatalf("renderBody: %v", err)
	}
	for _, want := range []string{"PSA123", "filmed", "edges look sharp"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}

	sub := testSub()
	sub.Comments = ""
	body, err = renderBody(statusTemplate, templateData{Sub: sub})
	if err != nil {
		t.Fatalf("renderBody: %v", err)
	}
	if strings.Contains(body, "Notes from the grading team") {
		t.Fatalf("notes section rendered without comments:\n%s", body)
	}
}

func TestNewWithoutHostIsLogOnly(t *testing.T) {
	sender, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := sender.(*LogSender); !ok {
		t.Fatalf("sender = %T, want *LogSender", sender)
	}
	if err := sender.SubmissionCreated(context.Background(), testSub(), "http://x/verify/PSA123"); err != nil {
		t.Fatalf("SubmissionCreated: %v", err)
	}
	if err := sender.StatusChanged(context.Background(), testSub()); err != nil {
		t.Fatalf("StatusChanged: %v", err)
	}
}

func TestNewRequiresFromWithHost(t *testing.T) {
	if _, err := New(Config{Host: "smtp.example.com", Port: 587}); err == nil {
		t.Fatalf("expected error for missing from address")
	}
}
