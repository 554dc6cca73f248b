package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/cache"
	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/ephemeris"
	"github.com/saturnRangs/ObservingSatellites/internal/httputil"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/report"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, visibility.ErrInvalidParameter),
		errors.Is(err, ephemeris.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrNoCatalog):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "component", "api", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, code, err.Error())
}

// visibility runs (or serves from cache) a report for the query.
func (s *Server) visibility(w http.ResponseWriter, r *http.Request) {
	p, err := parseRunParams(r.URL.Query(), s.deps.Defaults, s.deps.DefaultSelect)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := p.req.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	objects, err := s.deps.Catalog.Resolve(p.sel, p.names)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// CPU budget: the grid alone and the object x instant product are both capped.
	instants := gridSize(p.req)
	if msg := overBudget(len(objects), instants, s.deps.MaxInstants, s.deps.MaxPairs); msg != "" {
		metrics.IncRejected("budget")
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	fromClock := p.req.Start.IsZero()
	if fromClock {
		p.req.Start = s.deps.Runner.Clock().Now()
	}

	var key string
	var rep *visibility.Report
	if s.deps.Cache != nil {
		s.deps.Cache.Sync()
		if fromClock {
			key = cache.RollingKey(p.req, p.selection(), s.deps.Catalog.Version())
		} else {
			key = cache.Key(p.req, p.selection(), s.deps.Catalog.Version())
		}
		rep = s.deps.Cache.Get(key)
	}
	cached := rep != nil

	if !cached {
		rep, err = s.deps.Runner.Run(r.Context(), p.req, objects)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if s.deps.Cache != nil {
			s.deps.Cache.Put(key, rep)
		}
	}

	if p.save {
		if s.deps.Reports == nil {
			httputil.WriteError(w, http.StatusNotFound, "report store not configured")
			return
		}
		id, err := s.deps.Reports.Save(r.Context(), rep)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("X-Report-ID", fmt.Sprintf("%d", id))
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	s.writeReport(w, r, p.format, rep)
}

// writeReport encodes into a buffer first so that encoder failures still
// produce a clean 500.
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, f report.Format, rep *visibility.Report) {
	var buf bytes.Buffer
	if err := report.Encode(&buf, f, rep); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType(f))
	if f == report.FormatXLSX || f == report.FormatPDF || f == report.FormatCSV {
		name := fmt.Sprintf("visibility-%s.%s", rep.Start.UTC().Format("20060102T1504Z"), f.Extension())
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type tleMetadataResponse struct {
	Source     string         `json:"source"`
	FetchedAt  time.Time      `json:"fetched_at"`
	AgeSeconds int64          `json:"age_seconds"`
	EpochRange tle.EpochRange `json:"epoch_range"`
	Count      int            `json:"count"`
	Version    int64          `json:"version"`
}

func metadataFor(ds *tle.Dataset, now time.Time) tleMetadataResponse {
	return tleMetadataResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		AgeSeconds: int64(now.Sub(ds.FetchedAt).Seconds()),
		EpochRange: ds.EpochRange,
		Count:      len(ds.Entries),
		Version:    ds.Version(),
	}
}

func (s *Server) tleMetadata(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.TLEStore.Get()
	if ds == nil {
		s.fail(w, r, catalog.ErrNoCatalog)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, metadataFor(ds, s.deps.Runner.Clock().Now()))
}

func (s *Server) tleFetch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loader == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "catalog refresh disabled")
		return
	}

	ds, err := s.deps.Loader.Refresh(r.Context())
	if err != nil {
		s.logger.Error("catalog refresh failed", "component", "api", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "catalog refresh failed: "+err.Error())
		return
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Sync()
	}
	httputil.WriteJSON(w, http.StatusOK, metadataFor(ds, s.deps.Runner.Clock().Now()))
}

func (s *Server) catalogList(w http.ResponseWriter, r *http.Request) {
	sel := s.deps.DefaultSelect
	if _, ok := r.URL.Query()["select"]; ok {
		sel = r.URL.Query().Get("select")
	}
	objs, err := s.deps.Catalog.List(sel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"select":  sel,
		"count":   len(objs),
		"objects": objs,
	})
}
