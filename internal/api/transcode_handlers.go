package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/homeflixapp/homeflix-server/internal/http/response"
)

func (s *Server) handleStartTranscode(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientKey(r)) {
		response.TooManyRequests(w, "transcode requests are rate limited", s.logger)
		return
	}

	job, err := s.services.Transcode.StartJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusAccepted, job, s.logger)
}

func (s *Server) handleGetTranscodeJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.services.Transcode.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, job, s.logger)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	path, err := s.services.Transcode.PlaylistPath(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if _, err := os.Stat(path); err != nil {
		response.NotFound(w, "playlist not found on disk", s.logger)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	path, err := s.services.Transcode.SegmentPath(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "segment"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if _, err := os.Stat(path); err != nil {
		response.NotFound(w, "segment not found", s.logger)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
