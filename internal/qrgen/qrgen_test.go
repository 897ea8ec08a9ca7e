package qrgen

import (
	"bytes"
	"testing"
)

func TestVerificationURL(t *testing.T) {
	tests := []struct {
		publicURL string
		id        string
		want      string
	}{
		{"http://localhost:8410", "PSA123", "http://localhost:8410/verify/PSA123"},
		{"https://grade.example.com/", "psa123", "https://grade.example.com/verify/PSA123"},
		{"https://grade.example.com", " PSAXYZ ", "https://grade.example.com/verify/PSAXYZ"},
	}
	for _, tt := range tests {
		if got := VerificationURL(tt.publicURL, tt.id); got != tt.want {
			t.Fatalf("VerificationURL(%q, %q) = %q, want %q", tt.publicURL, tt.id, got, tt.want)
		}
	}
}

func TestPNG(t *testing.T) {
	png, err := PNG("http://localhost:8410", "PSA123", 0)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG")
	}

	if _, err := PNG("http://localhost:8410", "  ", 0); err == nil {
		t.Fatalf("expected error for blank id")
	}
}
