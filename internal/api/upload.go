package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfiling/gradeproof/internal/submission"
	"github.com/wolfiling/gradeproof/internal/video"
)

// multipartMemory caps the in-memory portion of upload parsing; the rest
// spills to temp files.
const multipartMemory = 8 << 20

func (s *HTTPServer) handleVideoUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	username, err := s.requireOperator(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id := pathSuffix(r.URL.Path, "/api/video/upload/")
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
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if s.MaxUploadBytes > 0 {
		// Generous slack for the multipart framing around the video part.
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	duration, err := strconv.ParseFloat(r.FormValue("duration"), 64)
	if err != nil || duration < 0 {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}
	startedAt, err := time.Parse(time.RFC3339, r.FormValue("startTime"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startTime")
		return
	}

	size, err := s.Videos.Save(sub.PublicID, file)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "video exceeds the upload size limit")
		case errors.Is(err, video.ErrBadID):
			writeError(w, http.StatusBadRequest, "invalid submission id")
		default:
			s.Logger.Error("video store failed", "submission_id", sub.PublicID, "err", err)
			writeError(w, http.StatusInternalServerError, "store failed")
		}
		return
	}

	meta := submission.Video{
		SubmissionID: sub.PublicID,
		FileSize:     size,
		Duration:     duration,
		StartedAt:    startedAt,
		UploadedAt:   s.now(),
	}
	if err := s.Repo.PutVideo(r.Context(), meta); err != nil {
		s.Logger.Error("video metadata store failed", "submission_id", sub.PublicID, "err", err)
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	s.Logger.Info("video uploaded",
		"submission_id", sub.PublicID, "operator", username,
		"size", size, "duration", duration)

	s.Hub.Broadcast(HubEvent{
		Type:         "video_uploaded",
		SubmissionID: sub.PublicID,
		At:           s.now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"video": map[string]any{
			"file_size": size,
			"duration":  duration,
		},
	})
}
