package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{w, http.StatusOK}
}

func (rr *responseRecorder) WriteHeader(statusCode int) {
	rr.statusCode = statusCode
	rr.ResponseWriter.WriteHeader(statusCode)
}

// LoggingMiddleware logs each request with its status and duration.
func (a *API) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := newResponseRecorder(w)

		next.ServeHTTP(rr, r)

		a.logger.Info("processed request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rr.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
