package clientauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"
)

const (
	// DefaultTokenTTL is how long an issued token grants video access.
	DefaultTokenTTL = time.Hour
	// tokenLength is the hex length tokens are truncated to.
	tokenLength = 32
	// sessionIDBytes sizes the random per-issue session id.
	sessionIDBytes = 16
)

// Reason classifies why a validation failed.
type Reason string

// Validation failure reasons, surfaced to the route layer so the UI can
// tailor messaging.
const (
	ReasonMissingInput       Reason = "MISSING_INPUT"
	ReasonNotFound           Reason = "NOT_FOUND"
	ReasonExpired            Reason = "EXPIRED"
	ReasonSubmissionMismatch Reason = "SUBMISSION_MISMATCH"
)

// Grant is the result of issuing a client access token.
type Grant struct {
	Token     string    `json:"access_token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is the outcome of validating a client access token.
type Result struct {
	Valid   bool
	Reason  Reason
	Session *Session
}

// TokenStoreConfig configures a TokenStore.
type TokenStoreConfig struct {
	// Key is the HMAC key tokens are derived with. Required.
	Key []byte
	// TTL defaults to DefaultTokenTTL.
	TTL time.Duration
	// Sessions defaults to an in-memory store.
	Sessions SessionStore
	Logger   pslog.Logger
	// Now is injectable for tests and defaults to time.Now.
	Now func() time.Time
}

// TokenStore issues and validates short-lived client access tokens.
type TokenStore struct {
	key      []byte
	ttl      time.Duration
	sessions SessionStore
	logger   pslog.Logger
	now      func() time.Time
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	if len(cfg.Key) == 0 {
		return nil, fmt.Errorf("token key is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		key:      cfg.Key,
		ttl:      ttl,
		sessions: sessions,
		logger:   logger,
		now:      now,
	}, nil
}

// Issue creates a session bound to the submission, email and originating IP
// and returns its token. Token collisions overwrite the older session; with
// 128 bits of truncated HMAC output the practical probability is negligible.
func (t *TokenStore) Issue(submissionID, email, ip string) (Grant, error) {
	if strings.TrimSpace(submissionID) == "" || strings.TrimSpace(email) == "" {
		return Grant{}, fmt.Errorf("submission id and email are required")
	}
	sessionID, err := randomSessionID()
	if err != nil {
		return Grant{}, err
	}
	now := t.now().UTC()

	mac := hmac.New(sha256.New, t.key)
	fmt.Fprintf(mac, "%s|%s|%s|%d|%s",
		submissionID, strings.ToLower(email), ip, now.UnixMilli(), sessionID)
	token := hex.EncodeToString(mac.Sum(nil))[:tokenLength]

	session := Session{
		Token:        token,
		SubmissionID: submissionID,
		Email:        strings.ToLower(email),
		IP:           ip,
		SessionID:    sessionID,
		CreatedAt:    now,
		Expires:      now.Add(t.ttl),
	}
	t.sessions.Set(token, session)
	return Grant{Token: token, SessionID: sessionID, ExpiresAt: session.Expires}, nil
}

// Validate checks a token against the submission it should be bound to.
// An expired session is evicted as a side effect. An IP that differs from
// the issuing IP is logged but tolerated: mobile clients change addresses
// mid-session and this gate protects a proof video, not a payment.
func (t *TokenStore) Validate(token, submissionID, ip string) Result {
	if token == "" || submissionID == "" {
		return Result{Reason: ReasonMissingInput}
	}
	session, ok := t.sessions.Get(token)
	if !ok {
		return Result{Reason: ReasonNotFound}
	}
	if session.ExpiredAt(t.now()) {
		t.sessions.Delete(token)
		return Result{Reason: ReasonExpired}
	}
	if session.SubmissionID != submissionID {
		return Result{Reason: ReasonSubmissionMismatch}
	}
	if ip != "" && session.IP != ip {
		t.logger.Warn("client ip changed since token issue",
			"session", session.SessionID,
			"submission", session.SubmissionID,
			"issued_ip", session.IP,
			"request_ip", ip)
	}
	session.Used = true
	t.sessions.Set(token, session)
	return Result{Valid: true, Session: &session}
}

// Sweep evicts expired sessions and returns the number removed.
func (t *TokenStore) Sweep(now time.Time) int {
	return t.sessions.Sweep(now)
}

func randomSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
