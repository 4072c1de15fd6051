package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liveset/internal/draft"
	"github.com/claude/liveset/internal/remote"
	"github.com/claude/liveset/internal/session"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRetryable marks collaborator failures the UI should surface as an
// inline retry affordance.
func writeRetryable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadGateway, map[string]any{"error": msg, "retryable": true})
}

// sessionError maps engine errors to HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, "no active session")
	case errors.Is(err, session.ErrNoPlan):
		writeError(w, http.StatusNotFound, "no plan available; return to plan selection")
	case errors.Is(err, session.ErrNoEffortPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func pathIndex(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) writeView(w http.ResponseWriter) {
	view, err := s.manager.View()
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.manager.Start(r.Context(), req); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeView(w)
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Exit(r.Context()); err != nil {
		s.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var toggleOutcomeNames = map[session.ToggleOutcome]string{
	session.ToggleNoop:              "noop",
	session.ToggleBlocked:           "blocked",
	session.ToggleSetCompleted:      "set_completed",
	session.ToggleExerciseCompleted: "exercise_completed",
}

func (s *Server) handleToggleSet(w http.ResponseWriter, r *http.Request) {
	setIndex, ok := pathIndex(r, "setIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid set index")
		return
	}
	outcome, err := s.manager.ToggleSet(r.Context(), setIndex)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	view, err := s.manager.View()
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": toggleOutcomeNames[outcome],
		"session": view,
	})
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	setIndex, ok := pathIndex(r, "setIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid set index")
		return
	}
	var body struct {
		Field string   `json:"field"`
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.manager.UpdateSet(r.Context(), setIndex, body.Field, body.Value); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleGoToExercise(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise index")
		return
	}
	if err := s.manager.GoToExercise(r.Context(), index); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise index")
		return
	}
	var body struct {
		Alternative session.Alternative `json:"alternative"`
		Reason      string              `json:"reason"`
		Source      string              `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Alternative.Name == "" {
		writeError(w, http.StatusBadRequest, "alternative.name is required")
		return
	}
	if err := s.manager.ReplaceExercise(r.Context(), index, body.Alternative, body.Reason, body.Source); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise index")
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
	if err := s.manager.SkipExercise(r.Context(), index, body.Reason); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise index")
		return
	}
	if err := s.manager.RemoveExercise(r.Context(), index, r.URL.Query().Get("reason")); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise index")
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
	if err := s.manager.BanExercise(r.Context(), index, body.Reason); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			s.sessionError(w, err)
			return
		}
		s.log.Error("ban exercise", "error", err)
		writeRetryable(w, err.Error())
		return
	}
	s.writeView(w)
}

func (s *Server) handleOpenMenu(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int              `json:"index"`
		Mode  session.MenuMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.manager.OpenMenu(body.Index, body.Mode); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleCloseMenu(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.CloseMenu(); err != nil {
		s.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectEffort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag session.EffortTag `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.manager.SelectEffort(r.Context(), body.Tag); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleSetRPE(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RPE int `json:"rpe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.manager.SetSessionRPE(r.Context(), body.RPE); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Pause(r.Context()); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Resume(r.Context()); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) handleRestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Rest().Status())
}

func (s *Server) handleRestExtend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !s.manager.Rest().Extend(body.Seconds) {
		writeError(w, http.StatusConflict, "rest window is not running")
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Rest().Status())
}

func (s *Server) handleRestSkip(w http.ResponseWriter, r *http.Request) {
	s.manager.Rest().Skip()
	writeJSON(w, http.StatusOK, s.manager.Rest().Status())
}

// handleRestResync is invoked by the UI on resume/visibility-restore events
// so the countdown snaps back to wall-clock truth.
func (s *Server) handleRestResync(w http.ResponseWriter, r *http.Request) {
	s.manager.Rest().Resync()
	writeJSON(w, http.StatusOK, s.manager.Rest().Status())
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DurationMinutes int       `json:"duration_minutes"`
		StartedAt       time.Time `json:"started_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cp, err := s.manager.Checkpoint()
	if err != nil {
		s.sessionError(w, err)
		return
	}
	startedAt := body.StartedAt
	if startedAt.IsZero() {
		startedAt = cp.StartedAt
	}

	result, err := s.committer.Complete(r.Context(), cp, body.DurationMinutes, startedAt)
	if err != nil {
		s.log.Error("session commit", "error", err)
		writeRetryable(w, err.Error())
		return
	}
	s.manager.Finish()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	exerciseID := r.URL.Query().Get("exercise_id")
	if exerciseID == "" {
		writeError(w, http.StatusBadRequest, "exercise_id parameter required")
		return
	}
	var patterns []string
	if p := r.URL.Query().Get("patterns"); p != "" {
		patterns = strings.Split(p, ",")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alts, err := s.alternatives.FetchAlternatives(r.Context(), exerciseID,
		r.URL.Query().Get("reason"), patterns, limit)
	if err != nil {
		s.log.Error("alternatives lookup", "error", err)
		writeRetryable(w, err.Error())
		return
	}
	if alts == nil {
		alts = []remote.Alternative{}
	}
	writeJSON(w, http.StatusOK, alts)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.ListHistory(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []draft.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	data, err := s.drafts.Load(r.Context(), draft.KeyLastResult)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "no completed session yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}
