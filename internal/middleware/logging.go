// Package middleware 提供 HTTP 中间件。
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger 以结构化字段记录每个请求，5xx 记为 Error，4xx 记为 Warn。
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	logger = logger.WithField("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			requestID := chimw.GetReqID(r.Context())
			if requestID == "" {
				requestID = "unknown"
			}
			entry := logger.WithFields(logrus.Fields{
				"request_id":    requestID,
				"method":        r.Method,
				"path":          r.URL.Path,
				"status":        status,
				"latency_ms":    time.Since(start).Milliseconds(),
				"ip":            r.RemoteAddr,
				"user_agent":    r.UserAgent(),
				"response_size": ww.BytesWritten(),
			})

			switch {
			case status >= 500:
				entry.Error("server error")
			case status >= 400:
				entry.Warn("client error")
			default:
				entry.Info("success")
			}
		})
	}
}
