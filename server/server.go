package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/custlens-org/custlens/config"
	"github.com/custlens-org/custlens/router"
	"github.com/custlens-org/custlens/session"
)

// ============================================================================
// SERVER — session-scoped HTTP surface over the routing layer
// ============================================================================

const sessionCookie = "custlens_session"

// Server owns the session table and exposes the ingestion and retrieval
// API. Each session gets its own registry; the table itself is the only
// shared state and sits behind a mutex.
type Server struct {
	cfg    *config.Config
	router *router.Router
	log    *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session.Context
}

func New(cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		router:   router.New(cfg.ModuleKeywords(), log),
		log:      log.Sugar(),
		sessions: make(map[string]*session.Context),
	}
}

// Handler builds the chi route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/datasets", s.handleUpload)
		r.Post("/samples/{key}", s.handleSample)

		r.Route("/modules", func(r chi.Router) {
			r.Get("/geo/provenance", s.handleGeoProvenance)
			r.Get("/geo/map", s.handleGeoMap)
			r.Get("/churn/report", s.handleChurnReport)
			r.Get("/segmentation/segments", s.handleSegments)
			r.Get("/segmentation/suggest-k", s.handleSuggestK)
			r.Get("/sentiment/report", s.handleSentimentReport)
			r.Get("/{module}", s.handleModuleStatus)
			r.Get("/{module}/preview", s.handleModulePreview)
			r.Get("/{module}/profile", s.handleModuleProfile)
		})
	})
	return r
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	s.log.Infow("listening", "addr", s.cfg.Server.Addr)
	return srv.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Infow("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "elapsed", time.Since(start))
	})
}

// ============================================================================
// SESSIONS
// ============================================================================

// sessionFrom resolves the caller's session from the cookie or the
// X-Session-ID header, creating one when absent so a bare client can
// upload in a single request.
func (s *Server) sessionFrom(w http.ResponseWriter, r *http.Request) *session.Context {
	id := r.Header.Get("X-Session-ID")
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if ctx, ok := s.sessions[id]; ok {
			return ctx
		}
	}
	ctx := session.NewContext(s.cfg)
	s.sessions[ctx.ID] = ctx
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ctx.ID,
		Path:     "/",
		HttpOnly: true,
	})
	return ctx
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ctx := session.NewContext(s.cfg)
	s.sessions[ctx.ID] = ctx
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ctx.ID,
		Path:     "/",
		HttpOnly: true,
	})
	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": ctx.ID})
}

// ============================================================================
// RESPONSES
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
