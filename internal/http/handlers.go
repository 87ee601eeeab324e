package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/weather-gateway/internal/observability"
	"github.com/kjstillabower/weather-gateway/internal/service"
	"github.com/kjstillabower/weather-gateway/internal/traffic"
	"github.com/kjstillabower/weather-gateway/internal/validation"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidCity         = "INVALID_CITY"
	CodeInvalidDate         = "INVALID_DATE"
	CodeCityNotFound        = "CITY_NOT_FOUND"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeCacheError          = "CACHE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
)

// HealthConfig holds the error-rate thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow      time.Duration
	DegradedErrorPct    int
	DegradedMinRequests int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	client         client.WeatherClient
	traffic        *traffic.Tracker
	lifecycle      *lifecycle.State
	healthConfig   *HealthConfig
	logger         *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. tracker, state and healthConfig may be nil;
// the health handler then skips the corresponding checks.
func NewHandler(
	weatherService *service.WeatherService,
	client client.WeatherClient,
	tracker *traffic.Tracker,
	state *lifecycle.State,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		client:         client,
		traffic:        tracker,
		lifecycle:      state,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

// GetRoot handles GET /.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Weather API"})
}

// GetWeather handles GET /weather/{city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceWeather)
	if !ok {
		return
	}
	result, err := h.weatherService.GetWeather(r.Context(), city)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetForecast handles GET /forecast/{city}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceForecast)
	if !ok {
		return
	}
	result, err := h.weatherService.GetForecast(r.Context(), city)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetAirPollution handles GET /air_pollution/{city}.
func (h *Handler) GetAirPollution(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceAirPollution)
	if !ok {
		return
	}
	result, err := h.weatherService.GetAirPollution(r.Context(), city)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHistoricalWeather handles GET /historical_weather/{city}?date=YYYY-MM-DD.
// The date is validated before the cache or provider is consulted.
func (h *Handler) GetHistoricalWeather(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceHistoricalWeather)
	if !ok {
		return
	}
	ts, err := validation.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidDate, "Invalid date format. Use YYYY-MM-DD.")
		return
	}
	result, err := h.weatherService.GetHistoricalWeather(r.Context(), city, ts)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetUVIndex handles GET /uv_index/{city}. Coordinates are resolved first; a
// resolution failure is returned without touching the cache.
func (h *Handler) GetUVIndex(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceUVIndex)
	if !ok {
		return
	}
	coords, err := h.weatherService.ResolveCoordinates(r.Context(), city)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.weatherService.GetUVIndex(r.Context(), coords)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetMap handles GET /map/{city}.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	city, ok := h.city(w, r, service.ResourceMap)
	if !ok {
		return
	}
	result, err := h.weatherService.GetMap(r.Context(), city)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// city validates the {city} path variable and records the query metric. On
// failure it writes 400 INVALID_CITY and returns false.
func (h *Handler) city(w http.ResponseWriter, r *http.Request, resource string) (string, bool) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidCity, errorDetail(err))
		return "", false
	}
	observability.RecordWeatherQuery(resource, city)
	return city, true
}

// errorDetail drops the sentinel prefix from a validation error.
func errorDetail(err error) string {
	return strings.TrimPrefix(err.Error(), validation.ErrInvalidCity.Error()+": ")
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-gateway",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, provider API key,
// cache reachability, and the gateway error rate.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := map[string]string{}
	if h.lifecycle != nil && h.lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}

	reason := ""
	checks["weatherApi"] = "healthy"
	if err := h.client.ValidateAPIKey(ctx); err != nil {
		checks["weatherApi"] = "unhealthy"
		reason = "api_key_invalid"
	}
	checks["cache"] = "healthy"
	if err := h.weatherService.Ping(ctx); err != nil {
		checks["cache"] = "unhealthy"
		if reason == "" {
			reason = "cache_unreachable"
		}
	}
	if reason == "" && h.traffic != nil && h.healthConfig != nil && h.healthConfig.DegradedErrorPct > 0 {
		threshold := float64(h.healthConfig.DegradedErrorPct) / 100
		if h.traffic.Degraded(h.healthConfig.DegradedWindow, threshold, h.healthConfig.DegradedMinRequests) {
			reason = "error_rate_breach"
		}
	}
	if reason != "" {
		return healthResult{"degraded", http.StatusServiceUnavailable, reason, checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps a service or provider error to its HTTP status.
// Upstream non-2xx responses keep the provider's status code and body. Used by
// the coordinate-based endpoints (uv_index, map).
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapServiceError(err)
	writeFailure(w, r, err, status, code, message)
}

// writeFetchError reports a failure on weather, forecast, air_pollution and
// historical_weather. These answer every provider or cache failure with 500;
// the code and message still name the cause.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	_, code, message := mapServiceError(err)
	writeFailure(w, r, err, http.StatusInternalServerError, code, message)
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error, status int, code, message string) {
	logger := observability.LoggerFromContext(r.Context())
	if status >= 500 {
		logger.Warn("request failed", zap.Int("status", status), zap.String("code", code), zap.Error(err))
	} else {
		logger.Debug("request failed", zap.Int("status", status), zap.String("code", code), zap.Error(err))
	}
	writeError(w, r, status, code, message)
}

func mapServiceError(err error) (status int, code, message string) {
	var perr *client.Error
	switch {
	case errors.Is(err, service.ErrCacheStore):
		return http.StatusInternalServerError, CodeCacheError, err.Error()
	case errors.As(err, &perr):
		switch perr.Kind {
		case client.KindNotFound:
			return http.StatusNotFound, CodeCityNotFound, perr.Error()
		case client.KindUpstreamStatus:
			status := perr.StatusCode
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			message := perr.Body
			if message == "" {
				message = http.StatusText(perr.StatusCode)
			}
			return status, CodeUpstreamError, message
		case client.KindTimeout:
			return http.StatusGatewayTimeout, CodeUpstreamTimeout, perr.Error()
		case client.KindUnavailable:
			return http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Weather API temporarily unavailable"
		default:
			return http.StatusInternalServerError, CodeInternalError, perr.Error()
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeUpstreamTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred: " + err.Error()
	}
}
