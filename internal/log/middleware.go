package log

import (
	"net/http"
	"time"
)

// Middleware returns an HTTP middleware that emits one structured access log
// entry per request, enriched with correlation fields from the request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lw, r)

			logger := WithContext(r.Context(), WithComponent("http"))
			logger.Info().
				Str("event", "http.request").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", lw.statusCode).
				Int("bytes", lw.bytesWritten).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		})
	}
}

// logWriter wraps http.ResponseWriter to capture status and size.
type logWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

// WriteHeader captures the status code.
func (lw *logWriter) WriteHeader(statusCode int) {
	if !lw.written {
		lw.statusCode = statusCode
		lw.written = true
	}
	lw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written.
func (lw *logWriter) Write(b []byte) (int, error) {
	if !lw.written {
		lw.WriteHeader(http.StatusOK)
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.bytesWritten += n
	return n, err
}
