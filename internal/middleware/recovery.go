package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware recovers panics raised while serving component's
// routes, logging them with the same kind/component tagging
// internal/coder's job errors use, and responds 500 instead of letting the
// process crash mid-request.
func RecoveryMiddleware(logger *logrus.Logger, component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithFields(logrus.Fields{
						"component": component,
						"kind":      "PanicRecovered",
						"panic":     err,
						"method":    r.Method,
						"path":      r.URL.Path,
						"stack":     string(debug.Stack()),
					}).Error(component + " panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
