package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homeflixapp/homeflix-server/internal/http/response"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	item, err := s.services.Media.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	height := 0
	if raw := r.URL.Query().Get("height"); raw != "" {
		height, err = strconv.Atoi(raw)
		if err != nil || height < 0 {
			response.BadRequest(w, "height must be a non-negative integer", s.logger)
			return
		}
	}

	// The catalog row can outlive the file on disk.
	if _, err := os.Stat(item.Path); err != nil {
		response.NotFound(w, "media file no longer exists", s.logger)
		return
	}

	s.services.Streamer.Stream(w, r, item, height)
}
