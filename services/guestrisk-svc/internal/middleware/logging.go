package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"guestrisk/pkg/logger"
	"guestrisk/pkg/metrics"
)

// statusRecorder запоминает код ответа и размер тела
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RouteTemplate шаблон маршрута gorilla/mux, иначе путь запроса
func RouteTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// Observe логирует запрос и пишет HTTP метрики по шаблону маршрута
func Observe(tracker *metrics.RequestTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := RouteTemplate(r)

			if tracker != nil {
				tracker.Start(route)
				defer tracker.End(route)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			metrics.Get().RecordHTTPRequest(r.Method, route, rec.status, duration)

			logFields := []any{
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", duration.Milliseconds(),
			}

			log := logger.FromContext(r.Context())
			switch {
			case rec.status >= http.StatusInternalServerError:
				log.Error("HTTP request failed", logFields...)
			case rec.status >= http.StatusBadRequest:
				log.Warn("HTTP request rejected", logFields...)
			default:
				log.Info("HTTP request completed", logFields...)
			}
		})
	}
}
