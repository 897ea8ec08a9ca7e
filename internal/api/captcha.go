package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCaptchaTTL is how long an issued challenge stays answerable.
const DefaultCaptchaTTL = 10 * time.Minute

// Captcha issues trivial arithmetic challenges for the verification form.
// Challenges are single use and expire after the TTL.
type Captcha struct {
	mu      sync.Mutex
	entries map[string]captchaEntry
	ttl     time.Duration
	now     func() time.Time
}

type captchaEntry struct {
	answer  int
	expires time.Time
}

// NewCaptcha returns a Captcha store. ttl falls back to DefaultCaptchaTTL
// when zero or negative.
func NewCaptcha(ttl time.Duration) *Captcha {
	if ttl <= 0 {
		ttl = DefaultCaptchaTTL
	}
	return &Captcha{
		entries: make(map[string]captchaEntry),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the captcha clock, for tests.
func (c *Captcha) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Challenge issues a new challenge and returns its id and question text.
func (c *Captcha) Challenge() (id, question string, err error) {
	a, err := smallRandom(9)
	if err != nil {
		return "", "", err
	}
	b, err := smallRandom(9)
	if err != nil {
		return "", "", err
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	id = hex.EncodeToString(buf)

	c.mu.Lock()
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.entries[id] = captchaEntry{answer: a + b, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return id, fmt.Sprintf("%d + %d", a, b), nil
}

// Verify consumes a challenge and reports whether the answer matches. A
// wrong answer also consumes the challenge.
func (c *Captcha) Verify(id, answer string) bool {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		delete(c.entries, id)
	}
	now := c.now()
	c.mu.Unlock()
	if !ok || !now.Before(entry.expires) {
		return false
	}
	value, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return false
	}
	return value == entry.answer
}

// smallRandom returns a uniform value in [1, max].
func smallRandom(max int64) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1, nil
}
