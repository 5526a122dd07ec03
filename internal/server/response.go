package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
	"github.com/wesm/barview/internal/startup"
)

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encoding response: %v", err)
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// handleContextError reports whether err is a cancellation or
// deadline. It writes nothing: the withTimeout middleware owns
// the 503 response and writing here would race with it.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// isConfigError reports whether err was caused by the caller's
// parameters rather than by the database.
func isConfigError(err error) bool {
	return errors.Is(err, query.ErrConfiguration) ||
		errors.Is(err, query.ErrInvalidMode) ||
		errors.Is(err, query.ErrUnknownView) ||
		errors.Is(err, startup.ErrNoRange) ||
		errors.Is(err, config.ErrUnknownProfile)
}

// sectionResponse is the envelope of every dashboard section.
// Stale responses carry the last good data and the error that
// prevented a refresh.
type sectionResponse struct {
	Data  any        `json:"data"`
	Scope *scopeInfo `json:"scope,omitempty"`
	Stale bool       `json:"stale,omitempty"`
	Error string     `json:"error,omitempty"`
}

// queryFailure is the 500 body. SQL and Params are filled only
// in debug mode.
type queryFailure struct {
	Error  string         `json:"error"`
	Query  string         `json:"query,omitempty"`
	SQL    string         `json:"sql,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// writeFailure maps err to a status code: 400 for caller errors,
// 500 otherwise.
func (s *Server) writeFailure(
	w http.ResponseWriter, r *http.Request, name string, err error,
) {
	if isConfigError(err) {
		s.served.WithLabelValues(name, "invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("%s error [%s]: %v", name, requestID(r.Context()), err)
	s.served.WithLabelValues(name, "error").Inc()

	body := queryFailure{Error: "internal server error"}
	if qe, ok := db.AsQueryError(err); ok {
		body.Error = "query failed"
		body.Query = qe.Context
		if s.cfg.Debug {
			body.Error = qe.Error()
			body.SQL = qe.SQL
			body.Params = qe.Params
		}
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
