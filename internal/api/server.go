// Package api exposes research, enrichment and dispatch over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/research"
	"github.com/sells-group/lead-engine/internal/session"
	"github.com/sells-group/lead-engine/internal/store"
)

// Researcher runs one company research query.
type Researcher interface {
	Run(ctx context.Context, q research.Query) (*model.ResearchResult, error)
}

// Deps are the collaborators behind the HTTP surface. Dispatcher and
// Runs may be nil.
type Deps struct {
	Sessions   *session.Registry
	Research   Researcher
	Enricher   session.Enricher
	Dispatcher session.Dispatcher
	Runs       store.Store
	Batch      session.BatchOptions
}

// Server serves the HTTP API. Background enrichments outlive the request
// that started them and stop on Close.
type Server struct {
	deps    Deps
	origins []string

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a Server. An empty origins list allows any origin.
func NewServer(deps Deps, origins []string) *Server {
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Server{deps: deps, origins: origins, bg: bg, cancel: cancel}
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Post("/webhook", s.webhook)
	r.Get("/runs", s.listRuns)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/research", s.researchSession)
			r.Post("/enrich", s.enrichSession)
			r.Post("/leads/{index}/enrich", s.enrichLead)
			r.Post("/dispatch", s.dispatchSession)
		})
	})

	return r
}

// Close cancels background enrichments and waits for them to record.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/health" {
			return
		}
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Len(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
