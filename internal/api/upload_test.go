package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfiling/gradeproof/internal/submission"
	"github.com/wolfiling/gradeproof/internal/video"
)

// metaRecorder wraps a Repository and captures what PutVideo receives, before
// any repository-side defaulting.
type metaRecorder struct {
	submission.Repository
	videos []submission.Video
}

func (m *metaRecorder) PutVideo(ctx context.Context, v submission.Video) error {
	m.videos = append(m.videos, v)
	return m.Repository.PutVideo(ctx, v)
}

func multipartUpload(t *testing.T, payload []byte, duration, startTime string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video", "proof.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if duration != "" {
		writer.WriteField("duration", duration)
	}
	if startTime != "" {
		writer.WriteField("startTime", startTime)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestVideoUpload(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	seedSubmission(t, repo, "PSA123")
	token := loginOperator(t, srv, ops)
	handler := srv.Handler()

	body, contentType := multipartUpload(t, []byte("webm bytes"), "95.5", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA123", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if !srv.Videos.Exists("PSA123") {
		t.Fatalf("video file not stored")
	}
	meta, err := repo.GetVideo(context.Background(), "PSA123")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if meta.FileSize != int64(len("webm bytes")) || meta.Duration != 95.5 {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestVideoUploadStampsUploadedAt(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	seedSubmission(t, repo, "PSA123")
	spy := &metaRecorder{Repository: repo}
	srv.Repo = spy
	token := loginOperator(t, srv, ops)

	body, contentType := multipartUpload(t, []byte("webm bytes"), "95.5", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA123", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if len(spy.videos) != 1 {
		t.Fatalf("PutVideo calls = %d", len(spy.videos))
	}
	if spy.videos[0].UploadedAt.IsZero() {
		t.Fatalf("handler passed a zero UploadedAt to the repository")
	}
}

func TestVideoUploadRequiresAuth(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	seedSubmission(t, repo, "PSA123")

	body, contentType := multipartUpload(t, []byte("x"), "1", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA123", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVideoUploadUnknownSubmission(t *testing.T) {
	srv, _, ops := newTestServer(t)
	token := loginOperator(t, srv, ops)

	body, contentType := multipartUpload(t, []byte("x"), "1", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA999", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVideoUploadRejectsOversize(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	srv.MaxUploadBytes = 8
	small, err := video.NewStore(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	srv.Videos = small
	seedSubmission(t, repo, "PSA123")
	token := loginOperator(t, srv, ops)

	body, contentType := multipartUpload(t, []byte("0123456789ABCDEF"), "1", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA123", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if srv.Videos.Exists("PSA123") {
		t.Fatalf("oversize upload left a file behind")
	}
}

func TestVideoUploadValidatesFields(t *testing.T) {
	srv, repo, ops := newTestServer(t)
	seedSubmission(t, repo, "PSA123")
	token := loginOperator(t, srv, ops)

	body, contentType := multipartUpload(t, []byte("x"), "not-a-number", "2026-03-01T12:00:00Z")
	req := httptest.NewRequest(http.MethodPost, "/api/video/upload/PSA123", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
