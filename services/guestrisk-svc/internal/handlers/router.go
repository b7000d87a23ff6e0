package handlers

import (
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"

	"guestrisk/pkg/config"
	"guestrisk/pkg/metrics"
	"guestrisk/pkg/ratelimit"
	"guestrisk/pkg/swagger"
	"guestrisk/pkg/telemetry"
	"guestrisk/services/guestrisk-svc/internal/middleware"
)

// RouterConfig зависимости маршрутизатора
type RouterConfig struct {
	Service Simulator
	Limiter ratelimit.Limiter // nil отключает лимиты
	// TrustedProxies прокси, чьему X-Forwarded-For верит ключ лимита
	TrustedProxies []netip.Prefix
	CORS           config.CORSConfig
	MaxBodyBytes   int64

	// DocsPath и Docs включают Swagger UI, пустой путь или документ отключают
	DocsPath string
	Docs     []byte
}

// NewRouter собирает маршруты и middleware.
// Лимиты применяются только к /v1, health-check не ограничивается.
func NewRouter(cfg RouterConfig) *mux.Router {
	h := NewHandler(cfg.Service, cfg.MaxBodyBytes)
	tracker := metrics.NewRequestTracker(metrics.Get().HTTPRequestsInFlight)

	r := mux.NewRouter()
	r.NotFoundHandler = middleware.RequestID(http.HandlerFunc(HandleNotFound))
	r.MethodNotAllowedHandler = middleware.RequestID(http.HandlerFunc(HandleMethodNotAllowed))

	r.Use(
		middleware.RequestID,
		telemetry.HTTPMiddleware(middleware.RouteTemplate),
		middleware.Observe(tracker),
		middleware.CORS(cfg.CORS),
		// внутри Observe, чтобы паника попала в метрики как 500
		middleware.Recover,
	)

	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)

	if cfg.DocsPath != "" && len(cfg.Docs) > 0 {
		docs := swagger.DefaultConfig()
		docs.BasePath = cfg.DocsPath
		r.PathPrefix(cfg.DocsPath).Handler(swagger.NewHandler(docs, cfg.Docs)).Methods(http.MethodGet, http.MethodHead)
	}

	// OPTIONS нужен только для preflight, его обрабатывает CORS
	methods := []string{http.MethodPost}
	if cfg.CORS.Enabled {
		methods = append(methods, http.MethodOptions)
	}

	// /v1 регистрируется на корневом роутере: у subrouter'а несовпадение
	// метода уходит в NotFoundHandler родителя вместо 405
	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:        cfg.Limiter,
		TrustedProxies: cfg.TrustedProxies,
	})
	r.Handle("/v1/simulations", limit(http.HandlerFunc(h.HandleSimulate))).Methods(methods...)
	r.Handle("/v1/simulations/sweep", limit(http.HandlerFunc(h.HandleSweep))).Methods(methods...)

	return r
}
