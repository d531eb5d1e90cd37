package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Kind:    model.RunKind(q.Get("kind")),
		Status:  model.RunStatus(q.Get("status")),
		Company: q.Get("company"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// webhook is the inbound automation hook: it runs one research query
// outside any session and returns the result.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Research.Run(r.Context(), q)
	if err != nil {
		writeResearchError(w, err)
		return
	}
	if res.Sources == nil {
		res.Sources = []model.GroundingChunk{}
	}
	if res.Leads == nil {
		res.Leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, res)
}
