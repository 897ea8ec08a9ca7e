package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/wolfiling/gradeproof/internal/operator"
	"github.com/wolfiling/gradeproof/internal/submission"
)

// conflictRepo forces Create to collide a set number of times before
// delegating.
type conflictRepo struct {
	submission.Repository
	remaining int
	creates   int
}

func (c *conflictRepo) Create(ctx context.Context, sub *submission.Submission) error {
	c.creates++
	if c.remaining > 0 {
		c.remaining--
		return submission.ErrConflict
	}
	return c.Repository.Create(ctx, sub)
}

// loginOperator seeds an operator and returns a valid session token.
func loginOperator(t *testing.T, srv *HTTPServer, ops *operator.Store) string {
	t.Helper()
	created, err := operator.Create(ops, "station1", "hunter2", time.Time{})
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

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/login", map[string]string{
		"username": "station1",
		"password": "hunter2",
		"totp":     code,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["token"].(string)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	srv, _, ops := newTestServer(t)
	if _, err := operator.Create(ops, "station1", "hunter2", time.Time{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/login", map[string]string{
		"username": "station1",
		"password": "wrong",
		"totp":     "000000",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminSubmissionsRequireAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/submissions", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/admin/submissions", nil, bearer("forged"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d", rec.Code)
	}
}

func TestAdminCreateAndListSubmissions(t *testing.T) {
	srv, _, ops := newTestServer(t)
	token := loginOperator(t, srv, ops)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/submissions", map[string]string{
		"customer_email": "collector@example.com",
		"card_name":      "Charizard",
		"card_series":    "Base Set",
		"card_year":      "1999",
		"grading_type":   "standard",
		"card_source":    "psa",
	}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)["submission"].(map[string]any)
	publicID, _ := created["submission_id"].(string)
	if publicID == "" || created["status"] != "pending" {
		t.Fatalf("created = %+v", created)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/submissions", nil, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	subs := decodeBody(t, rec)["submissions"].([]any)
	if len(subs) != 1 {
		t.Fatalf("submissions = %+v", subs)
	}
}

func TestAdminCreateRetriesOnIDCollision(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	spy := &conflictRepo{Repository: repo, remaining: 1}
	srv.Repo = spy
	token := loginOperator(t, srv, ops)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/submissions", map[string]string{
		"customer_email": "collector@example.com",
		"card_name":      "Charizard",
	}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	if spy.creates != 2 {
		t.Fatalf("Create calls = %d, want 2", spy.creates)
	}
	created := decodeBody(t, rec)["submission"].(map[string]any)
	if created["submission_id"] == "" {
		t.Fatalf("created = %+v", created)
	}
}

func TestAdminCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	spy := &conflictRepo{Repository: repo, remaining: createIDAttempts}
	srv.Repo = spy
	token := loginOperator(t, srv, ops)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/submissions", map[string]string{
		"customer_email": "collector@example.com",
		"card_name":      "Charizard",
	}, bearer(token))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if spy.creates != createIDAttempts {
		t.Fatalf("Create calls = %d, want %d", spy.creates, createIDAttempts)
	}
}

func TestAdminCreateRequiresFields(t *testing.T) {
	srv, _, ops := newTestServer(t)
	token := loginOperator(t, srv, ops)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/submissions",
		map[string]string{"card_name": "Charizard"}, bearer(token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminStatusUpdate(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	seedSubmission(t, repo, "PSA123")
	token := loginOperator(t, srv, ops)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/submissions/PSA123/status",
		map[string]string{"status": "filmed", "comments": "proof recorded"}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody(t, rec)["submission"].(map[string]any)
	if updated["status"] != "filmed" || updated["comments"] != "proof recorded" {
		t.Fatalf("updated = %+v", updated)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/submissions/PSA123/status",
		map[string]string{"status": "polished"}, bearer(token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/submissions/PSA999/status",
		map[string]string{"status": "filmed"}, bearer(token))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing submission status = %d", rec.Code)
	}
}
