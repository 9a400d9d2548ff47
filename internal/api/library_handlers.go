package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homeflixapp/homeflix-server/internal/http/response"
	"github.com/homeflixapp/homeflix-server/internal/service"
)

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var input service.CreateLibraryInput
	if err := json.UnmarshalRead(r.Body, &input); err != nil {
		response.BadRequest(w, "invalid JSON body", s.logger)
		return
	}
	if err := s.validator.Validate(input); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	lib, err := s.services.Library.Create(r.Context(), input)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, lib, s.logger)
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.services.Library.List(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, libs, s.logger)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := s.services.Library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, lib, s.logger)
}

func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientKey(r)) {
		response.TooManyRequests(w, "scan requests are rate limited", s.logger)
		return
	}

	if err := s.services.Library.Scan(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"status": "scanning"}, s.logger)
}
