// Package api exposes the GradeProof HTTP endpoints: public submission
// lookups, customer verification and video playback, the operator upload
// route, and the admin dashboard API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wolfiling/gradeproof/internal/clientauth"
	"github.com/wolfiling/gradeproof/internal/mailer"
	"github.com/wolfiling/gradeproof/internal/operator"
	"github.com/wolfiling/gradeproof/internal/submission"
	"github.com/wolfiling/gradeproof/internal/video"
	"pkt.systems/pslog"
)

// HTTPServer exposes the service HTTP endpoints.
type HTTPServer struct {
	Repo           submission.Repository
	Videos         *video.Store
	Tokens         *clientauth.TokenStore
	Limiter        *clientauth.Limiter
	Authenticator  *operator.Authenticator
	Sessions       *operator.TokenIssuer
	Mailer         mailer.Sender
	Hub            *Hub
	Captcha        *Captcha
	Logger         pslog.Logger
	PublicURL      string
	MaxUploadBytes int64
}

// NewHTTPServer constructs an HTTPServer with defaults filled in.
func NewHTTPServer(s HTTPServer) *HTTPServer {
	if s.Logger == nil {
		s.Logger = pslog.LoggerFromEnv()
	}
	if s.Hub == nil {
		s.Hub = NewHub(s.Logger)
	}
	if s.Captcha == nil {
		s.Captcha = NewCaptcha(0)
	}
	if s.Mailer == nil {
		s.Mailer = &mailer.LogSender{Logger: s.Logger}
	}
	return &s
}

// Handler returns the HTTP handler for all service endpoints.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/public/submission/", s.handlePublicSubmission)
	mux.HandleFunc("/api/public/qr/", s.handlePublicQR)
	mux.HandleFunc("/api/video/upload/", s.handleVideoUpload)
	mux.HandleFunc("/api/video/", s.handleVideoMeta)
	mux.HandleFunc("/api/client/captcha", s.handleCaptcha)
	mux.HandleFunc("/api/client/verify-submission", s.handleVerifySubmission)
	mux.HandleFunc("/api/client/video/", s.handleClientVideo)
	mux.HandleFunc("/api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("/api/admin/submissions", s.handleAdminSubmissions)
	mux.HandleFunc("/api/admin/submissions/", s.handleAdminSubmissionAction)
	mux.HandleFunc("/api/admin/events", s.handleAdminEvents)
	return mux
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) now() time.Time {
	return time.Now().UTC()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRefusal writes a coded verification refusal in the shape the customer
// form consumes.
func writeRefusal(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
