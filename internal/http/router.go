package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/auth"
	"github.com/kjstillabower/weather-gateway/internal/observability"
	"github.com/kjstillabower/weather-gateway/internal/ratelimit"
	"github.com/kjstillabower/weather-gateway/internal/traffic"
)

// RouterConfig wires a Handler to its middleware. Nil Authenticator, Limiter,
// Traffic or InFlight disables that concern; zero RequestTimeout disables the deadline.
type RouterConfig struct {
	Handler        *Handler
	Logger         *zap.Logger
	Authenticator  *auth.Authenticator
	Limiter        *ratelimit.KeyedLimiter
	Traffic        *traffic.Tracker
	InFlight       *InFlightTracker
	APIPrefix      string
	RequestTimeout time.Duration
}

// NewRouter builds the service router. Operational endpoints (/, /health,
// /metrics) are open; weather endpoints under APIPrefix pass through traffic
// accounting, authentication, rate limiting and the request deadline in that order.
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := cfg.Handler

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(cfg.InFlight))
	router.HandleFunc("/", h.GetRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	var api *mux.Router
	if cfg.APIPrefix == "" {
		api = router.NewRoute().Subrouter()
	} else {
		api = router.PathPrefix(cfg.APIPrefix).Subrouter()
	}
	api.Use(TrafficMiddleware(cfg.Traffic))
	if cfg.Authenticator != nil {
		api.Use(AuthMiddleware(cfg.Authenticator))
	}
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/weather/{city}", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/forecast/{city}", h.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/air_pollution/{city}", h.GetAirPollution).Methods(http.MethodGet)
	api.HandleFunc("/historical_weather/{city}", h.GetHistoricalWeather).Methods(http.MethodGet)
	api.HandleFunc("/uv_index/{city}", h.GetUVIndex).Methods(http.MethodGet)
	api.HandleFunc("/map/{city}", h.GetMap).Methods(http.MethodGet)

	return router
}
