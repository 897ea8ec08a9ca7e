package api

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func challengeAnswer(t *testing.T, question string) string {
	t.Helper()
	parts := strings.Split(question, " + ")
	if len(parts) != 2 {
		t.Fatalf("question = %q", question)
	}
	a, _ := strconv.Atoi(parts[0])
	b, _ := strconv.Atoi(parts[1])
	return strconv.Itoa(a + b)
}

func TestCaptchaRoundTrip(t *testing.T) {
	captcha := NewCaptcha(0)
	id, question, err := captcha.Challenge()
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if !captcha.Verify(id, challengeAnswer(t, question)) {
		t.Fatalf("correct answer rejected")
	}
	if captcha.Verify(id, challengeAnswer(t, question)) {
		t.Fatalf("challenge reusable after success")
	}
}

func TestCaptchaWrongAnswerConsumes(t *testing.T) {
	captcha := NewCaptcha(0)
	id, question, err := captcha.Challenge()
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if captcha.Verify(id, "999") {
		t.Fatalf("wrong answer accepted")
	}
	if captcha.Verify(id, challengeAnswer(t, question)) {
		t.Fatalf("challenge reusable after failure")
	}
}

func TestCaptchaExpires(t *testing.T) {
	captcha := NewCaptcha(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	captcha.SetClock(func() time.Time { return now })

	id, question, err := captcha.Challenge()
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if captcha.Verify(id, challengeAnswer(t, question)) {
		t.Fatalf("expired challenge accepted")
	}
}

func TestCaptchaUnknownID(t *testing.T) {
	captcha := NewCaptcha(0)
	if captcha.Verify("bogus", "5") {
		t.Fatalf("unknown challenge accepted")
	}
}
