package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware logs one structured entry per request served by
// component (e.g. "admin"). extra, if non-nil, is called once per request
// after the handler returns and its fields are merged in — admin.Serve uses
// it to attach the hardware acceleration flags /hardware reports, so every
// admin log line carries the cipher adapter's current AES-NI/ARMv8 state
// without a second lookup. There is no request-body accounting: every route
// this middleware guards is a GET.
func LoggingMiddleware(logger *logrus.Logger, component string, extra func() logrus.Fields) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			fields := logrus.Fields{
				"component":   component,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       rw.bytesWritten,
			}
			if extra != nil {
				for k, v := range extra() {
					fields[k] = v
				}
			}
			logger.WithFields(fields).Info(component + " request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and
// response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
