package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// jsonError is the body of every error response.
type jsonError struct {
	Error string `json:"error"`
}

var timeoutBody = func() string {
	b, _ := json.Marshal(jsonError{Error: "request timed out"})
	return string(b)
}()

// withTimeout bounds h by the configured write timeout. Timed out
// requests get a 503 with a JSON error body.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	if delay := s.handlerDelay; delay > 0 {
		next := h
		h = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			next(w, r)
		}
	}
	limited := http.TimeoutHandler(h, s.cfg.WriteTimeout, timeoutBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limited.ServeHTTP(&timeoutWriter{ResponseWriter: w}, r)
	})
}

// timeoutWriter labels the TimeoutHandler's 503 as JSON unless a
// content type was already chosen.
type timeoutWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *timeoutWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.Header()
	if code == http.StatusServiceUnavailable && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestIDMiddleware tags each request with an id, reusing a
// valid X-Request-ID from the caller, and echoes it back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID returns the id set by requestIDMiddleware, or "-".
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "-"
}
