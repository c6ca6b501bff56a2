package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tomyedwab/opecstate/database"
)

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

func LogRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			logger.Info("Request",
				"remote", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"proto", r.Proto,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// EnableCrossOrigin allows requests from any origin when enabled. Preflight
// OPTIONS requests are answered directly.
func EnableCrossOrigin(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				// Do not call through to the handler itself, just return immediately
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseBuffer holds the response back until the session is finished,
// so a failed commit can still turn into an error response.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *responseBuffer) Header() http.Header {
	return b.header
}

func (b *responseBuffer) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *responseBuffer) flush(w http.ResponseWriter) {
	for key, values := range b.header {
		w.Header()[key] = values
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}

// ScopedSession runs every request in its own database session. The
// session is committed when the handler answers with a status below 400
// and rolled back when it answers with an error status or panics.
func ScopedSession(scoped *database.ScopedSession, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, sess := scoped.Begin(r.Context())
			buf := &responseBuffer{header: make(http.Header)}

			defer func() {
				if p := recover(); p != nil {
					if err := scoped.End(ctx, fmt.Errorf("panic: %v", p)); err != nil {
						logger.Error("Failed to roll back session", "session", sess.ID(), "error", err)
					}
					logger.Error("Handler panicked", "session", sess.ID(), "path", r.URL.Path, "panic", p)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(buf, r.WithContext(ctx))

			var outcome error
			if buf.status >= http.StatusBadRequest {
				outcome = errors.New(http.StatusText(buf.status))
			}
			if err := scoped.End(ctx, outcome); err != nil {
				logger.Error("Failed to finish session", "session", sess.ID(), "error", err)
				if outcome == nil {
					http.Error(w, "Failed to save changes", http.StatusInternalServerError)
					return
				}
			}
			buf.flush(w)
		})
	}
}

// Combine multiple middleware functions. The first one listed is the
// outermost.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
