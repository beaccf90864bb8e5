package middleware

import (
	"net/http"
	"time"

	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

// Handler returns net/http middleware, usable directly with chi routers.
func Handler(opts Options) func(http.Handler) http.Handler {
	a := newAccessLogger(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			id := a.requestID(r)
			w.Header().Set(a.header, id)
			ctx, fields := withRequestState(r.Context(), id)
			r = r.WithContext(ctx)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			if !rw.written {
				rw.WriteHeader(http.StatusOK)
			}

			a.emit(&tokens.Context{
				Request:       r,
				Status:        rw.status,
				Header:        rw.Header(),
				Size:          rw.size,
				Start:         start,
				HeaderWritten: rw.headerAt,
				End:           time.Now(),
				RequestID:     id,
				Fields:        fields.snapshot(nil),
			})
		})
	}
}

// responseWriter captures status, body size and when the header went out.
type responseWriter struct {
	http.ResponseWriter
	status   int
	size     int64
	written  bool
	headerAt time.Time
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.headerAt = time.Now()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
