package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/research"
	"github.com/sells-group/lead-engine/internal/session"
)

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.deps.Sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.deps.Sessions.Create()
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	s.deps.Sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// researchSession runs a query and commits the result. The previous
// result is discarded as soon as a valid query starts, so a failed query
// leaves the session empty.
func (s *Server) researchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(q.Company) == "" {
		writeError(w, http.StatusBadRequest, research.EmptyCompanyMessage)
		return
	}

	gen := sess.Reset(q)
	res, err := s.deps.Research.Run(r.Context(), q)
	if err != nil {
		writeResearchError(w, err)
		return
	}
	if err := sess.CommitAt(gen, q, res); err != nil {
		writeError(w, http.StatusConflict, "a newer research replaced this one")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type enrichRequest struct {
	// Scope is "primary" or "all". Empty means primary.
	Scope string `json:"scope"`
}

// enrichSession starts enrichment for every lead in scope and returns
// immediately.
func (s *Server) enrichSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req enrichRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}
	var primaryOnly bool
	switch req.Scope {
	case "", "primary":
		primaryOnly = true
	case "all":
	default:
		writeError(w, http.StatusBadRequest, "scope must be primary or all")
		return
	}

	sel := sess.Select(primaryOnly)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := sess.EnrichMany(s.bg, sel, s.deps.Enricher, s.deps.Batch); err != nil {
			zap.L().Warn("api: batch enrichment stopped", zap.String("session", sess.ID()), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(sel.Indexes)})
}

// enrichLead marks the lead pending before responding, so a follow-up GET
// always observes the pending state.
func (s *Server) enrichLead(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "lead index must be an integer")
		return
	}

	s.wg.Add(1)
	err = sess.Start(s.bg, idx, s.deps.Enricher, s.wg.Done)
	switch {
	case errors.Is(err, session.ErrAlreadyPending):
		s.wg.Done()
		writeError(w, http.StatusConflict, "enrichment already in progress for this lead")
		return
	case errors.Is(err, session.ErrLeadNotFound):
		s.wg.Done()
		writeError(w, http.StatusNotFound, "lead not found")
		return
	case err != nil:
		s.wg.Done()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) dispatchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.deps.Dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "CRM webhook is not configured")
		return
	}

	err := sess.Dispatch(r.Context(), s.deps.Dispatcher)
	switch {
	case errors.Is(err, session.ErrDispatchInFlight):
		writeError(w, http.StatusConflict, "dispatch already in progress")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, sess.Snapshot())
	default:
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (research.Query, bool) {
	var q research.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return q, false
	}
	return q, true
}

func writeResearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, research.ErrEmptyCompany) {
		writeError(w, http.StatusBadRequest, research.EmptyCompanyMessage)
		return
	}
	writeError(w, http.StatusBadGateway, research.UserMessage)
}
