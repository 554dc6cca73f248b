package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/saturnRangs/ObservingSatellites/internal/httputil"
	"github.com/saturnRangs/ObservingSatellites/internal/report"
	"github.com/saturnRangs/ObservingSatellites/internal/store"
)

func (s *Server) reportList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		httputil.WriteError(w, http.StatusNotFound, "report store not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit parameter, must be 1-500")
			return
		}
		limit = n
	}

	runs, err := s.deps.Reports.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"count": len(runs), "reports": runs})
}

func (s *Server) reportGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		httputil.WriteError(w, http.StatusNotFound, "report store not configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.deps.Reports.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeReport(w, r, format, rep)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		httputil.WriteError(w, http.StatusNotFound, "report cache disabled")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.deps.Cache.Stats())
}
