package server

import (
	"log"
	"net/http"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
	"github.com/wesm/barview/internal/startup"
)

// contextResponse carries the startup context. A failure to
// resolve it is reported as a degraded warning, never as an
// error status, so the dashboard can still offer manual ranges.
type contextResponse struct {
	Context  *startup.Context `json:"context"`
	Degraded bool             `json:"degraded"`
	Warning  string           `json:"warning,omitempty"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	d, release, err := s.open(r)
	if err != nil {
		if isConfigError(err) {
			s.writeFailure(w, r, "context", err)
			return
		}
		s.writeDegraded(w, r, err)
		return
	}
	defer release()
	c, err := startup.Resolve(r.Context(), d, s.builder(d))
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		s.writeDegraded(w, r, err)
		return
	}
	s.served.WithLabelValues("context", "ok").Inc()
	writeJSON(w, http.StatusOK, contextResponse{Context: &c})
}

func (s *Server) writeDegraded(
	w http.ResponseWriter, r *http.Request, err error,
) {
	log.Printf("context error [%s]: %v", requestID(r.Context()), err)
	s.served.WithLabelValues("context", "degraded").Inc()
	resp := contextResponse{
		Degraded: true,
		Warning: "No se pudo determinar la operativa activa. " +
			"Elige un rango de operativas o fechas.",
	}
	if s.cfg.Debug {
		resp.Warning += " (" + err.Error() + ")"
	}
	writeJSON(w, http.StatusOK, resp)
}

// healthResponse adds the verdict to the per-object report.
type healthResponse struct {
	db.HealthReport
	OK      bool     `json:"ok"`
	Missing []string `json:"missing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	d, release, err := s.open(r)
	if err != nil {
		s.writeFailure(w, r, "health", err)
		return
	}
	defer release()
	report, err := db.Healthcheck(
		r.Context(), d, s.builder(d), query.RequiredObjects,
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		s.writeFailure(w, r, "health", err)
		return
	}
	s.served.WithLabelValues("health", "ok").Inc()
	writeJSON(w, http.StatusOK, healthResponse{
		HealthReport: report,
		OK:           report.OK(),
		Missing:      report.Missing(),
	})
}

// operationJSON is one selector entry with its display label.
type operationJSON struct {
	startup.Operation
	Label string `json:"label"`
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	d, release, err := s.open(r)
	if err != nil {
		s.writeFailure(w, r, "operations", err)
		return
	}
	defer release()
	ops, err := startup.ListOperations(r.Context(), d, s.builder(d))
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		s.writeFailure(w, r, "operations", err)
		return
	}
	out := make([]operationJSON, 0, len(ops))
	for _, op := range ops {
		out = append(out, operationJSON{Operation: op, Label: op.Label()})
	}
	s.served.WithLabelValues("operations", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"operations": out})
}
