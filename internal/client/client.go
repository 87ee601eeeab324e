package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/circuitbreaker"
	"github.com/kjstillabower/weather-gateway/internal/models"
	"github.com/kjstillabower/weather-gateway/internal/observability"
)

// WeatherClient is the provider surface consumed by the service layer. Every
// call is a single attempt; there are no retries.
type WeatherClient interface {
	FetchWeather(ctx context.Context, city string) (models.CurrentWeatherPayload, error)
	FetchForecast(ctx context.Context, city string) (models.ForecastPayload, error)
	FetchAirPollution(ctx context.Context, city string) (models.AirPollutionPayload, error)
	FetchCoordinates(ctx context.Context, city string) (models.Coordinates, error)
	FetchUVIndex(ctx context.Context, coords models.Coordinates) (models.UVIndexPayload, error)
	FetchHistoricalWeather(ctx context.Context, city string, timestamp int64) (models.HistoricalPayload, error)
	ValidateAPIKey(ctx context.Context) error
}

// Provider endpoint names, used as Error.Op and metric labels.
const (
	OpWeather           = "weather"
	OpForecast          = "forecast"
	OpAirPollution      = "air_pollution"
	OpGeocoding         = "geocoding"
	OpUVIndex           = "uv_index"
	OpHistoricalWeather = "historical_weather"
)

// ForecastCount is the cnt parameter sent to the forecast endpoint.
const ForecastCount = 5

// maxErrorBody bounds how much of a non-2xx body is kept for propagation.
const maxErrorBody = 64 << 10

// Endpoints holds the full URL of each provider endpoint.
type Endpoints struct {
	Weather      string
	Forecast     string
	AirPollution string
	Geocoding    string
	UVIndex      string
	Historical   string
}

// DefaultEndpoints derives the OpenWeatherMap endpoint URLs from a base URL
// such as "https://api.openweathermap.org".
func DefaultEndpoints(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	return Endpoints{
		Weather:      base + "/data/2.5/weather",
		Forecast:     base + "/data/2.5/forecast",
		AirPollution: base + "/data/2.5/air_pollution",
		Geocoding:    base + "/geo/1.0/direct",
		UVIndex:      base + "/data/2.5/uvi",
		Historical:   base + "/data/2.5/onecall/timemachine",
	}
}

type OpenWeatherClient struct {
	apiKey    string
	endpoints Endpoints
	timeout   time.Duration
	client    *http.Client
	breaker   *circuitbreaker.CircuitBreaker
}

func NewOpenWeatherClient(apiKey string, endpoints Endpoints, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &OpenWeatherClient{
		apiKey:    apiKey,
		endpoints: endpoints,
		timeout:   timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every provider call through cb. Not-found and 4xx
// responses do not count as failures.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// IsBreakerFailure reports whether err should count toward opening the circuit.
func IsBreakerFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindNotFound:
		return false
	case KindUpstreamStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func (c *OpenWeatherClient) FetchWeather(ctx context.Context, city string) (models.CurrentWeatherPayload, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("units", "metric")

	var out models.CurrentWeatherPayload
	if err := c.call(ctx, OpWeather, c.endpoints.Weather, params, &out); err != nil {
		return models.CurrentWeatherPayload{}, err
	}
	return out, nil
}

func (c *OpenWeatherClient) FetchForecast(ctx context.Context, city string) (models.ForecastPayload, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("units", "metric")
	params.Set("cnt", strconv.Itoa(ForecastCount))

	var out models.ForecastPayload
	if err := c.call(ctx, OpForecast, c.endpoints.Forecast, params, &out); err != nil {
		return models.ForecastPayload{}, err
	}
	if len(out.List) > ForecastCount {
		out.List = out.List[:ForecastCount]
	}
	return out, nil
}

// FetchAirPollution geocodes city, then queries pollution at its coordinates.
func (c *OpenWeatherClient) FetchAirPollution(ctx context.Context, city string) (models.AirPollutionPayload, error) {
	coords, err := c.FetchCoordinates(ctx, city)
	if err != nil {
		return models.AirPollutionPayload{}, err
	}

	var out models.AirPollutionPayload
	if err := c.call(ctx, OpAirPollution, c.endpoints.AirPollution, coordParams(coords), &out); err != nil {
		return models.AirPollutionPayload{}, err
	}
	return out, nil
}

// FetchCoordinates resolves city to coordinates. An empty result set is a KindNotFound error.
func (c *OpenWeatherClient) FetchCoordinates(ctx context.Context, city string) (models.Coordinates, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("limit", "1")

	var results []models.GeocodingResult
	if err := c.call(ctx, OpGeocoding, c.endpoints.Geocoding, params, &results); err != nil {
		return models.Coordinates{}, err
	}
	if len(results) == 0 {
		return models.Coordinates{}, newNotFound(OpGeocoding, city)
	}
	return models.Coordinates{Lat: results[0].Lat, Lon: results[0].Lon}, nil
}

func (c *OpenWeatherClient) FetchUVIndex(ctx context.Context, coords models.Coordinates) (models.UVIndexPayload, error) {
	var out models.UVIndexPayload
	if err := c.call(ctx, OpUVIndex, c.endpoints.UVIndex, coordParams(coords), &out); err != nil {
		return models.UVIndexPayload{}, err
	}
	return out, nil
}

// FetchHistoricalWeather geocodes city, then queries the timemachine endpoint at timestamp.
func (c *OpenWeatherClient) FetchHistoricalWeather(ctx context.Context, city string, timestamp int64) (models.HistoricalPayload, error) {
	coords, err := c.FetchCoordinates(ctx, city)
	if err != nil {
		return models.HistoricalPayload{}, err
	}

	params := coordParams(coords)
	params.Set("dt", strconv.FormatInt(timestamp, 10))
	params.Set("units", "metric")

	var out models.HistoricalPayload
	if err := c.call(ctx, OpHistoricalWeather, c.endpoints.Historical, params, &out); err != nil {
		return models.HistoricalPayload{}, err
	}
	return out, nil
}

// ValidateAPIKey issues a cheap current-weather request and reports whether the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	req, err := c.buildRequest(ctx, c.endpoints.Weather, params)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// call performs one GET against endpoint and decodes a 2xx JSON body into out.
// Every failure is returned as *Error.
func (c *OpenWeatherClient) call(ctx context.Context, op, endpoint string, params url.Values, out interface{}) error {
	if c.breaker == nil {
		return c.do(ctx, op, endpoint, params, out)
	}
	var callErr error
	err := c.breaker.Call(ctx, func() error {
		callErr = c.do(ctx, op, endpoint, params, out)
		return callErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.WeatherAPIErrorsTotal.WithLabelValues(op, string(ErrorCategoryCircuitOpen)).Inc()
		return &Error{Kind: KindUnavailable, Op: op, Err: err}
	}
	if callErr != nil {
		return callErr
	}
	if err != nil {
		return &Error{Kind: KindUnexpected, Op: op, Err: err}
	}
	return nil
}

func (c *OpenWeatherClient) do(ctx context.Context, op, endpoint string, params url.Values, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, params)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(op, "error").Inc()
		return &Error{Kind: KindUnexpected, Op: op, Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(op, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		perr := classifyTransportError(op, err)
		observability.WeatherAPIErrorsTotal.WithLabelValues(op, string(CategorizeError(perr))).Inc()
		return perr
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(op, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := &Error{
			Kind:       KindUpstreamStatus,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        ErrUpstreamStatus,
		}
		observability.WeatherAPIErrorsTotal.WithLabelValues(op, string(CategorizeError(perr))).Inc()
		return perr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		perr := classifyTransportError(op, fmt.Errorf("read response body: %w", err))
		observability.WeatherAPIErrorsTotal.WithLabelValues(op, string(CategorizeError(perr))).Inc()
		return perr
	}
	if err := json.Unmarshal(body, out); err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(op, string(ErrorCategoryParsing)).Inc()
		return &Error{Kind: KindUnexpected, Op: op, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("appid", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func classifyTransportError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return &Error{Kind: KindUnexpected, Op: op, Err: fmt.Errorf("http request failed: %w", err)}
}

func coordParams(coords models.Coordinates) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	return params
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
