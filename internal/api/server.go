// Package api wires the HTTP surface: routing, middleware, and handlers
// over the application services.
package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/homeflixapp/homeflix-server/internal/ratelimit"
	"github.com/homeflixapp/homeflix-server/internal/service"
	"github.com/homeflixapp/homeflix-server/internal/sse"
	"github.com/homeflixapp/homeflix-server/internal/validation"
)

// Services carries everything the handlers call into.
type Services struct {
	Library   *service.LibraryService
	Media     *service.MediaService
	Transcode *service.TranscodeService
	Streamer  *service.Streamer
}

// Server is the HTTP server for the API.
type Server struct {
	router     *chi.Mux
	services   *Services
	validator  *validation.Validator
	limiter    *ratelimit.KeyedRateLimiter
	sseHandler *sse.Handler
	logger     *slog.Logger
}

// NewServer creates the server with middleware and routes configured.
func NewServer(services *Services, sseHandler *sse.Handler, logger *slog.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		services:   services,
		validator:  validation.New(),
		// Scans and transcode starts are expensive; one per second with a
		// small burst per client is plenty for interactive use.
		limiter:    ratelimit.New(1, 5),
		sseHandler: sseHandler,
		logger:     logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length", "X-Transcode"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/libraries", func(r chi.Router) {
			r.Post("/", s.handleCreateLibrary)
			r.Get("/", s.handleListLibraries)
			r.Get("/{id}", s.handleGetLibrary)
			r.Post("/{id}/scan", s.handleScanLibrary)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.Get("/{id}", s.handleGetItem)
			r.Get("/{id}/poster", s.handleGetPoster)
			r.Get("/{id}/stream", s.handleStream)
			r.Post("/{id}/transcode", s.handleStartTranscode)
		})

		r.Route("/transcode", func(r chi.Router) {
			r.Get("/{jobID}", s.handleGetTranscodeJob)
			r.Get("/{jobID}/playlist.m3u8", s.handleGetPlaylist)
			r.Get("/{jobID}/{segment}", s.handleGetSegment)
		})

		r.Get("/search", s.handleSearch)
		r.Get("/events", s.sseHandler.ServeHTTP)
	})
}

// clientKey buckets rate limits per remote address.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
