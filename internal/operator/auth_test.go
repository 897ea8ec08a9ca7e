package operator

import (
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func TestAuthenticatorValidate(t *testing.T) {
	store := NewStore()
	created, err := Create(store, "alice", "hunter2", time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	code, err := totp.GenerateCodeCustom(created.TOTPSecret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}

	auth := NewAuthenticator(store)
	if _, err := auth.Validate("alice", "hunter2", code, time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if _, err := auth.Validate("alice", "bad", code, time.Now()); err == nil {
		t.Fatalf("expected error for bad password")
	}
	if _, err := auth.Validate("alice", "hunter2", "000000", time.Now()); err == nil {
		t.Fatalf("expected error for bad code")
	}
	if _, err := auth.Validate("bob", "hunter2", code, time.Now()); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Validate unknown = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticatorSkipsTOTPWhenUnset(t *testing.T) {
	store := NewStore()
	created, err := Create(store, "alice", "hunter2", time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	op := created.Operator
	op.TOTPSecret = ""
	store.Upsert(op)

	auth := NewAuthenticator(store)
	if _, err := auth.Validate("alice", "hunter2", "", time.Now()); err != nil {
		t.Fatalf("Validate without totp: %v", err)
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, expiresAt, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt in the past: %v", expiresAt)
	}

	username, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if username != "alice" {
		t.Fatalf("username = %q, want alice", username)
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	issuer.SetClock(func() time.Time { return now })

	token, _, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = base.Add(2 * time.Hour)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("Verify expired = %v, want ErrInvalidSessionToken", err)
	}
}

func TestTokenIssuerRejectsForeignSignature(t *testing.T) {
	a, err := NewTokenIssuer([]byte("secret-a"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	b, err := NewTokenIssuer([]byte("secret-b"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, _, err := a.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("Verify foreign = %v, want ErrInvalidSessionToken", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(nil, time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
