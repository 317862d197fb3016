// Package api exposes the engine's capability table (spec §6) over HTTP,
// a thin, swappable transport the way the teacher's internal/server/api
// plays for its graph repository. The engine itself stays
// transport-agnostic: none of the engine's component packages (graph,
// extractor, community, inferrer, enrich, orchestrator) imports net/http.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/systemshift/contextengine/internal/observe"
	"github.com/systemshift/contextengine/internal/orchestrator"
)

// Server holds the HTTP dependencies: the orchestrator and a logger.
type Server struct {
	orch *orchestrator.Orchestrator
	log  observe.Logger
}

// New builds a Server.
func New(orch *orchestrator.Orchestrator, log observe.Logger) *Server {
	if log == nil {
		log = observe.NoopLogger{}
	}
	return &Server{orch: orch, log: log}
}

// Router builds the chi router exposing every capability in spec §6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/context", s.handleGetContext)
		r.Get("/graph", s.handleGetGraph)
		r.Post("/graph/reset", s.handleResetGraph)
		r.Get("/stats", s.handleGetStats)
		r.Get("/pipeline/events", s.handleGetPipelineEvents)
		r.Post("/chat", s.handleChatContext)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
