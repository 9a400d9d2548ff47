package api

import (
	"net/http"

	"github.com/homeflixapp/homeflix-server/internal/http/response"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}
