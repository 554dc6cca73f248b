package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/httputil"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/passes"
)

const (
	maxPassObjects = 50
	maxPassHours   = 72
)

type passesResponse struct {
	Start   time.Time             `json:"start"`
	Hours   float64               `json:"hours"`
	Count   int                   `json:"count"`
	Objects []passes.ObjectPasses `json:"objects"`
}

// passList predicts individual passes for a small selection of objects.
func (s *Server) passList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Engine == nil {
		httputil.WriteError(w, http.StatusNotFound, "pass prediction disabled")
		return
	}

	q := r.URL.Query()
	p, err := parseRunParams(q, s.deps.Defaults, s.deps.DefaultSelect)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req := passes.Request{
		Location:        p.req.Location,
		Start:           p.req.Start,
		Horizon:         p.req.Horizon,
		Band:            p.req.Band,
		MinElevationDeg: p.req.MinElevationDeg,
	}
	if v := q.Get("max_passes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > passes.DefaultMaxPasses {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid max_passes parameter, must be 1-%d", passes.DefaultMaxPasses))
			return
		}
		req.MaxPasses = n
	}
	if v := q.Get("visible_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "visible_only must be a boolean")
			return
		}
		req.VisibleOnly = b
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Horizon > maxPassHours*time.Hour {
		metrics.IncRejected("budget")
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("hours must not exceed %d for pass prediction", maxPassHours))
		return
	}

	objects, err := s.deps.Catalog.Resolve(p.sel, p.names)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(objects) > maxPassObjects {
		metrics.IncRejected("budget")
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf(
			"selection matches %d objects; pass prediction is limited to %d, narrow the selection",
			len(objects), maxPassObjects))
		return
	}

	if req.Start.IsZero() {
		req.Start = s.deps.Runner.Clock().Now()
	}
	req.Start = req.Start.UTC().Truncate(time.Minute)

	results := passes.Predict(r.Context(), s.deps.Engine, req, objects)
	httputil.WriteJSON(w, http.StatusOK, passesResponse{
		Start:   req.Start,
		Hours:   req.Horizon.Hours(),
		Count:   len(results),
		Objects: results,
	})
}
