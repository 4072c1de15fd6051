package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/liveset/internal/commit"
	"github.com/claude/liveset/internal/draft"
	"github.com/claude/liveset/internal/remote"
	"github.com/claude/liveset/internal/session"
	"github.com/go-chi/chi/v5"
)

// AlternativesFinder is the read collaborator behind the replace flow.
type AlternativesFinder interface {
	FetchAlternatives(ctx context.Context, exerciseID, reason string, allowedPatterns []string, limit int) ([]remote.Alternative, error)
}

// HistoryLister reads the local session history.
type HistoryLister interface {
	ListHistory(ctx context.Context, limit int) ([]draft.HistoryRecord, error)
}

// Server holds dependencies for HTTP handlers. The HTTP API is the protocol
// a UI layer drives the session engine with.
type Server struct {
	manager      *session.Manager
	committer    *commit.Committer
	alternatives AlternativesFinder
	drafts       draft.Store
	history      HistoryLister
	log          *slog.Logger
	apiKey       string
	router       chi.Router
}

// New creates a new Server with all routes configured.
func New(manager *session.Manager, committer *commit.Committer, alternatives AlternativesFinder, drafts draft.Store, history HistoryLister, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		manager:      manager,
		committer:    committer,
		alternatives: alternatives,
		drafts:       drafts,
		history:      history,
		log:          log,
		apiKey:       apiKey,
		router:       chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Route("/session", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleExit)

			r.Post("/sets/{setIndex}/toggle", s.handleToggleSet)
			r.Patch("/sets/{setIndex}", s.handleUpdateSet)

			r.Post("/exercises/{index}/activate", s.handleGoToExercise)
			r.Post("/exercises/{index}/replace", s.handleReplace)
			r.Post("/exercises/{index}/skip", s.handleSkip)
			r.Delete("/exercises/{index}", s.handleRemove)
			r.Post("/exercises/{index}/ban", s.handleBan)

			r.Post("/menu", s.handleOpenMenu)
			r.Delete("/menu", s.handleCloseMenu)

			r.Post("/effort", s.handleSelectEffort)
			r.Put("/rpe", s.handleSetRPE)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)

			r.Get("/rest", s.handleRestStatus)
			r.Post("/rest/extend", s.handleRestExtend)
			r.Post("/rest/skip", s.handleRestSkip)
			r.Post("/rest/resync", s.handleRestResync)

			r.Post("/complete", s.handleComplete)
		})

		r.Get("/alternatives", s.handleAlternatives)
		r.Get("/history", s.handleHistory)
		r.Get("/history/last", s.handleLastResult)
	})
}
