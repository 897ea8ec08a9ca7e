package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfiling/gradeproof/internal/operator"
	"github.com/wolfiling/gradeproof/internal/qrgen"
	"github.com/wolfiling/gradeproof/internal/submission"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

type submissionCreateRequest struct {
	CustomerEmail string `json:"customer_email"`
	CardName      string `json:"card_name"`
	CardSeries    string `json:"card_series"`
	CardYear      string `json:"card_year"`
	GradingType   string `json:"grading_type"`
	CardSource    string `json:"card_source"`
}

// createIDAttempts bounds public id regeneration on conflict.
const createIDAttempts = 3

type statusUpdateRequest struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.Authenticator == nil || s.Sessions == nil {
		writeError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	op, err := s.Authenticator.Validate(req.Username, req.Password, req.TOTP, s.now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, expiresAt, err := s.Sessions.Issue(op.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  op.Username,
	})
}

// requireOperator checks the bearer token and returns the operator username.
func (s *HTTPServer) requireOperator(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	token := ""
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", errors.New("invalid authorization")
		}
		token = strings.TrimSpace(parts[1])
	} else {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return "", errors.New("missing authorization")
	}
	if s.Sessions == nil {
		return "", errors.New("authentication unavailable")
	}
	username, err := s.Sessions.Verify(token)
	if err != nil {
		return "", operator.ErrInvalidSessionToken
	}
	return username, nil
}

func (s *HTTPServer) handleAdminSubmissions(w http.ResponseWriter, r *http.Request) {
	username, err := s.requireOperator(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	switch r.Method {
	case http.MethodGet:
		subs, err := s.Repo.List(r.Context())
		if err != nil {
			s.Logger.Error("submission list failed", "err", err)
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"submissions": subs,
		})
	case http.MethodPost:
		s.createSubmission(w, r, username)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createSubmission(w http.ResponseWriter, r *http.Request, username string) {
	var req submissionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CardName = strings.TrimSpace(req.CardName)
	if req.CustomerEmail == "" || req.CardName == "" {
		writeError(w, http.StatusBadRequest, "customer_email and card_name are required")
		return
	}
	var sub *submission.Submission
	// Public ids can collide; regenerate and retry a few times.
	for attempt := 0; attempt < createIDAttempts; attempt++ {
		publicID, err := submission.NewPublicID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "id generation failed")
			return
		}
		candidate := &submission.Submission{
			PublicID:      publicID,
			CustomerEmail: req.CustomerEmail,
			CardName:      req.CardName,
			CardSeries:    req.CardSeries,
			CardYear:      req.CardYear,
			GradingType:   req.GradingType,
			CardSource:    req.CardSource,
		}
		err = s.Repo.Create(r.Context(), candidate)
		if err == nil {
			sub = candidate
			break
		}
		if errors.Is(err, submission.ErrConflict) {
			s.Logger.Warn("submission id collision, regenerating", "submission_id", publicID)
			continue
		}
		s.Logger.Error("submission create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	if sub == nil {
		s.Logger.Error("submission create failed", "err", submission.ErrConflict)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	s.Logger.Info("submission created",
		"submission_id", sub.PublicID, "operator", username)

	verifyURL := qrgen.VerificationURL(s.PublicURL, sub.PublicID)
	if err := s.Mailer.SubmissionCreated(r.Context(), sub, verifyURL); err != nil {
		s.Logger.Warn("confirmation mail failed", "submission_id", sub.PublicID, "err", err)
	}
	s.Hub.Broadcast(HubEvent{
		Type:         "submission_created",
		SubmissionID: sub.PublicID,
		Status:       string(sub.Status),
		At:           s.now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"submission": sub,
	})
}

func (s *HTTPServer) handleAdminSubmissionAction(w http.ResponseWriter, r *http.Request) {
	username, err := s.requireOperator(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rest := pathSuffix(r.URL.Path, "/api/admin/submissions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "status" || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	updated, err := s.Repo.UpdateStatus(r.Context(), id, submission.Status(req.Status), req.Comments)
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrNotFound):
			writeError(w, http.StatusNotFound, "submission not found")
		case errors.Is(err, submission.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid status")
		default:
			s.Logger.Error("status update failed", "submission_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "update failed")
		}
		return
	}
	s.Logger.Info("submission status updated",
		"submission_id", updated.PublicID, "status", updated.Status, "operator", username)

	if err := s.Mailer.StatusChanged(r.Context(), updated); err != nil {
		s.Logger.Warn("status mail failed", "submission_id", updated.PublicID, "err", err)
	}
	s.Hub.Broadcast(HubEvent{
		Type:         "status_changed",
		SubmissionID: updated.PublicID,
		Status:       string(updated.Status),
		At:           s.now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"submission": updated,
	})
}
