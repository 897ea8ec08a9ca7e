package clientauth

import (
	"sync"
	"time"

	"pkt.systems/pslog"
)

const (
	// DefaultMaxAttempts is the failed-verification ceiling per IP.
	DefaultMaxAttempts = 5
	// DefaultBlockDuration is how long an IP stays blocked.
	DefaultBlockDuration = time.Hour
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed     bool
	Attempts    int
	Blocked     bool
	MinutesLeft int
}

type attemptRecord struct {
	Attempts     int
	LastAttempt  time.Time
	BlockedUntil time.Time
}

// LimiterConfig configures a Limiter.
type LimiterConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	Logger        pslog.Logger
	Now           func() time.Time
}

// Limiter counts failed verification attempts per client IP and blocks an IP
// for a fixed window once the ceiling is reached. Granularity is per IP, not
// per email: coarser, but it resists email enumeration and is enough for a
// video-viewing gate.
type Limiter struct {
	mu            sync.Mutex
	records       map[string]*attemptRecord
	maxAttempts   int
	blockDuration time.Duration
	logger        pslog.Logger
	now           func() time.Time
}

// NewLimiter constructs a Limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	blockDuration := cfg.BlockDuration
	if blockDuration <= 0 {
		blockDuration = DefaultBlockDuration
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		records:       make(map[string]*attemptRecord),
		maxAttempts:   maxAttempts,
		blockDuration: blockDuration,
		logger:        logger,
		now:           now,
	}
}

// Check reports whether the IP may attempt a verification. A block is lifted
// only once its window has fully elapsed; an elapsed block clears the record.
func (l *Limiter) Check(ip string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[ip]
	if !ok {
		return Decision{Allowed: true}
	}
	now := l.now()
	if !record.BlockedUntil.IsZero() {
		if now.Before(record.BlockedUntil) {
			return Decision{
				Blocked:     true,
				Attempts:    record.Attempts,
				MinutesLeft: minutesLeft(record.BlockedUntil.Sub(now)),
			}
		}
		delete(l.records, ip)
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed:  record.Attempts < l.maxAttempts,
		Attempts: record.Attempts,
	}
}

// RecordAttempt records the outcome of a verification attempt. Success
// clears the record entirely; failure increments the counter and starts the
// block window once the ceiling is reached.
func (l *Limiter) RecordAttempt(ip string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.records, ip)
		return
	}
	now := l.now()
	record, ok := l.records[ip]
	if !ok {
		record = &attemptRecord{}
		l.records[ip] = record
	}
	record.Attempts++
	record.LastAttempt = now
	if record.Attempts >= l.maxAttempts && record.BlockedUntil.IsZero() {
		record.BlockedUntil = now.Add(l.blockDuration)
		l.logger.Warn("client ip blocked after repeated verification failures",
			"ip", ip,
			"attempts", record.Attempts,
			"last_attempt", record.LastAttempt,
			"blocked_until", record.BlockedUntil)
	}
}

// Sweep removes records whose block window has elapsed and stale unblocked
// records older than the block duration. Returns the number removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, record := range l.records {
		expired := false
		if !record.BlockedUntil.IsZero() {
			expired = !now.Before(record.BlockedUntil)
		} else {
			expired = now.Sub(record.LastAttempt) >= l.blockDuration
		}
		if expired {
			delete(l.records, ip)
			removed++
		}
	}
	return removed
}

// minutesLeft rounds the remaining block time up to whole minutes.
func minutesLeft(remaining time.Duration) int {
	ms := remaining.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 59_999) / 60_000)
}
