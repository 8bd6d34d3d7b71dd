// Package httpapi is the InfoDot HTTP surface: cached reads, entity writes,
// the websocket feed, metrics and health.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache/internal/queries"
	"github.com/unkn0wn-root/tagcache/internal/repository"
)

type Deps struct {
	Queries *queries.Service
	Repo    *repository.Repository
	Log     *zap.Logger

	// Optional.
	AllowedOrigins []string                    // CORS; empty disables
	WS             http.Handler                // websocket subscribe endpoint
	Metrics        http.Handler                // prometheus scrape endpoint
	Health         func(context.Context) error // dependency probe
}

type Server struct {
	q        *queries.Service
	repo     *repository.Repository
	log      *zap.Logger
	validate *validator.Validate
	deps     Deps
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{q: d.Queries, repo: d.Repo, log: d.Log.Named("http"), validate: newValidator(), deps: d}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.accessLog)
	if len(s.deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	if s.deps.WS != nil {
		r.Method(http.MethodGet, "/ws", s.deps.WS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/questions", func(r chi.Router) {
			r.Get("/popular", s.popularQuestions)
			r.Get("/recent", s.recentQuestions)
			r.Post("/", s.createQuestion)
			r.Put("/{id}", s.updateQuestion)
			r.Delete("/{id}", s.deleteQuestion)
			r.Post("/{id}/answers", s.createAnswer)
		})
		r.Route("/solutions", func(r chi.Router) {
			r.Get("/popular", s.popularSolutions)
			r.Post("/", s.createSolution)
		})
		r.Post("/users", s.createUser)
		r.Get("/users/{id}/profile", s.userProfile)
		r.Get("/tags/trending", s.trendingTags)
		r.Get("/search", s.search)
		r.Post("/comments", s.createComment)
		r.Post("/reactions", s.react)
		r.Post("/cache/flush", s.flushCache)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
