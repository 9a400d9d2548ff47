package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homeflixapp/homeflix-server/internal/http/response"
	"github.com/homeflixapp/homeflix-server/internal/store/sqlite"
)

// itemListResponse is the paginated listing payload.
type itemListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sortBy := q.Get("sort")
	switch sortBy {
	case "", "title", "year", "date_added":
	default:
		response.BadRequest(w, "sort must be one of title, year, date_added", s.logger)
		return
	}

	filter := sqlite.MediaItemFilter{
		LibraryID: q.Get("library"),
		Type:      q.Get("type"),
		SortBy:    sortBy,
		SortDesc:  q.Get("order") == "desc",
		Page:      page,
		Limit:     limit,
	}

	items, total, err := s.services.Media.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, itemListResponse{Items: items, Total: total, Page: page, Limit: limit}, s.logger)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	detail, err := s.services.Media.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, detail, s.logger)
}

func (s *Server) handleGetPoster(w http.ResponseWriter, r *http.Request) {
	img, err := s.services.Media.Poster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if img.BlurHash != "" {
		w.Header().Set("X-BlurHash", img.BlurHash)
	}
	http.ServeFile(w, r, img.Path)
}

// searchResponse is the search payload.
type searchResponse struct {
	Hits  any    `json:"hits"`
	Total uint64 `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, "query parameter q is required", s.logger)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, total, err := s.services.Media.SearchTitles(query, limit)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, searchResponse{Hits: hits, Total: total}, s.logger)
}
