package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfiling/gradeproof/internal/clientauth"
	"github.com/wolfiling/gradeproof/internal/qrgen"
	"github.com/wolfiling/gradeproof/internal/server"
	"github.com/wolfiling/gradeproof/internal/submission"
	"github.com/wolfiling/gradeproof/internal/video"
)

// publicSubmissionView is the submission shape exposed before email
// verification. The customer email never appears here.
type publicSubmissionView struct {
	PublicID    string            `json:"submission_id"`
	CardName    string            `json:"card_name"`
	CardSeries  string            `json:"card_series"`
	CardYear    string            `json:"card_year"`
	GradingType string            `json:"grading_type"`
	CardSource  string            `json:"card_source"`
	Status      submission.Status `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

func publicView(sub *submission.Submission) publicSubmissionView {
	return publicSubmissionView{
		PublicID:    sub.PublicID,
		CardName:    sub.CardName,
		CardSeries:  sub.CardSeries,
		CardYear:    sub.CardYear,
		GradingType: sub.GradingType,
		CardSource:  sub.CardSource,
		Status:      sub.Status,
		CreatedAt:   sub.CreatedAt,
	}
}

func pathSuffix(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

func (s *HTTPServer) handlePublicSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := pathSuffix(r.URL.Path, "/api/public/submission/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission id is required")
		return
	}
	sub, err := s.Repo.GetByPublicID(r.Context(), id)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		s.Logger.Error("submission lookup failed", "submission_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"submission": publicView(sub),
	})
}

func (s *HTTPServer) handlePublicQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := pathSuffix(r.URL.Path, "/api/public/qr/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission id is required")
		return
	}
	if _, err := s.Repo.GetByPublicID(r.Context(), id); err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	png, err := qrgen.PNG(s.PublicURL, id, 0)
	if err != nil {
		s.Logger.Error("qr generation failed", "submission_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *HTTPServer) handleVideoMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := pathSuffix(r.URL.Path, "/api/video/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission id is required")
		return
	}
	meta, err := s.Repo.GetVideo(r.Context(), id)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"video": map[string]any{
			"file_size": meta.FileSize,
			"duration":  meta.Duration,
		},
	})
}

func (s *HTTPServer) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, question, err := s.Captcha.Challenge()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "captcha generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"captcha_id": id,
		"challenge":  question,
	})
}

type verifyRequest struct {
	SubmissionID  string `json:"submission_id"`
	EmailPartial  string `json:"email_partial"`
	CaptchaID     string `json:"captcha_id"`
	SimpleCaptcha string `json:"simple_captcha"`
}

func (s *HTTPServer) handleVerifySubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.SubmissionID = strings.TrimSpace(req.SubmissionID)
	req.EmailPartial = strings.TrimSpace(req.EmailPartial)
	if req.SubmissionID == "" || len(req.EmailPartial) != 4 {
		writeError(w, http.StatusBadRequest, "submission_id and a 4-character email_partial are required")
		return
	}

	ip := server.RealIP(r)
	decision := s.Limiter.Check(ip)
	if !decision.Allowed {
		writeRefusal(w, http.StatusTooManyRequests, "RATE_LIMITED",
			fmt.Sprintf("too many attempts, try again in %d minutes", decision.MinutesLeft))
		return
	}

	if !s.Captcha.Verify(req.CaptchaID, req.SimpleCaptcha) {
		s.Limiter.RecordAttempt(ip, false)
		writeRefusal(w, http.StatusUnauthorized, "INVALID_CAPTCHA", "captcha answer is wrong or expired")
		return
	}

	sub, err := s.Repo.GetByPublicID(r.Context(), req.SubmissionID)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			s.Limiter.RecordAttempt(ip, false)
			writeRefusal(w, http.StatusUnauthorized, "SUBMISSION_NOT_FOUND", "no such submission")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if !emailPartialMatches(sub.CustomerEmail, req.EmailPartial) {
		s.Limiter.RecordAttempt(ip, false)
		writeRefusal(w, http.StatusUnauthorized, "EMAIL_VERIFICATION_FAILED",
			"email does not match this submission")
		return
	}

	s.Limiter.RecordAttempt(ip, true)
	grant, err := s.Tokens.Issue(sub.PublicID, sub.CustomerEmail, ip)
	if err != nil {
		s.Logger.Error("token issue failed", "submission_id", sub.PublicID, "err", err)
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"access_token": grant.Token,
			"expires_at":   grant.ExpiresAt,
			"submission":   sub,
		},
	})
}

// emailPartialMatches compares the first four characters of the customer
// email case-insensitively.
func emailPartialMatches(email, partial string) bool {
	if len(email) < 4 || len(partial) != 4 {
		return false
	}
	return strings.EqualFold(email[:4], partial)
}

func (s *HTTPServer) handleClientVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	token := pathSuffix(r.URL.Path, "/api/client/video/")
	submissionID := strings.TrimSpace(r.URL.Query().Get("submission_id"))
	ip := server.RealIP(r)

	result := s.Tokens.Validate(token, submissionID, ip)
	if !result.Valid {
		status := http.StatusUnauthorized
		switch result.Reason {
		case clientauth.ReasonMissingInput:
			status = http.StatusBadRequest
		case clientauth.ReasonExpired:
			status = http.StatusGone
		}
		writeRefusal(w, status, string(result.Reason), "access denied")
		return
	}

	file, info, err := s.Videos.Open(result.Session.SubmissionID)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		s.Logger.Error("video open failed", "submission_id", result.Session.SubmissionID, "err", err)
		writeError(w, http.StatusInternalServerError, "video unavailable")
		return
	}
	defer file.Close()
	w.Header().Set("Content-Type", "video/webm")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
