package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// RequestLogger emits one structured log line for every HTTP request.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = middleware.GetReqID(r.Context())
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, reqID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			clinicID := r.Header.Get(tenancy.HeaderClinicID)
			if id, ok := tenancy.ClinicIDFromContext(r.Context()); ok {
				clinicID = id
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := logger.Info
			if status >= http.StatusInternalServerError {
				level = logger.Warn
			}
			level("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"request_id", reqID,
				"clinic_id", clinicID,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
