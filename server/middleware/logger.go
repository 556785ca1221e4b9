package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/joeychilson/autolink/logger"
)

// Logger returns a middleware that logs each request once it completes.
func Logger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			reqLog := log.WithContext(r.Context()).With(
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				reqLog.Error("request completed")
			case ww.Status() >= http.StatusBadRequest:
				reqLog.Warn("request completed")
			default:
				reqLog.Info("request completed")
			}
		})
	}
}
