package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/auth"
	"github.com/kjstillabower/weather-gateway/internal/observability"
	"github.com/kjstillabower/weather-gateway/internal/ratelimit"
	"github.com/kjstillabower/weather-gateway/internal/traffic"
)

// CorrelationIDHeader is read from requests, echoed on responses and forwarded to the provider.
const CorrelationIDHeader = "X-Correlation-ID"

func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get(CorrelationIDHeader)
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set(CorrelationIDHeader, corrID)

			ctx := observability.WithCorrelationID(r.Context(), corrID)
			ctx = observability.WithLogger(ctx, logger.With(zap.String("correlation_id", corrID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request totals and latency by route template and
// keeps inflight current. inflight may be nil.
func MetricsMiddleware(inflight *InFlightTracker) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if inflight != nil {
				inflight.begin()
				defer inflight.end()
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := getRoute(r)
			observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(recorder.statusCode)).Inc()
			observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// TrafficMiddleware records the outcome of each gated request for the health
// error rate. Mount it outermost on the API subrouter so rate-limit denials are seen.
func TrafficMiddleware(tracker *traffic.Tracker) mux.MiddlewareFunc {
	if tracker == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)
			tracker.Record(traffic.OutcomeForStatus(recorder.statusCode))
		})
	}
}

// getRoute returns the matched mux path template so metrics labels stay bounded.
func getRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware sets a deadline on the request context. When exceeded, downstream handlers
// receive context.DeadlineExceeded. Apply only to routes that reach the provider.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthMiddleware requires a valid bearer token and stores the resolved user in
// the request context. Failures return 401 UNAUTHORIZED.
func AuthMiddleware(authenticator *auth.Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err == nil {
				var user auth.AuthenticatedUser
				if user, err = authenticator.Authenticate(token); err == nil {
					ctx := auth.WithUser(r.Context(), user)
					logger := observability.LoggerFromContext(ctx).With(zap.String("subject", user.Subject))
					ctx = observability.WithLogger(ctx, logger)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			reason := "invalid_token"
			message := "Could not validate credentials"
			if errors.Is(err, auth.ErrMissingToken) {
				reason = "missing_token"
				message = "Not authenticated"
			}
			observability.AuthFailuresTotal.WithLabelValues(reason).Inc()
			observability.LoggerFromContext(r.Context()).Debug("authentication failed", zap.String("reason", reason), zap.Error(err))
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, message)
		})
	}
}

// RateLimitMiddleware applies a per-client token bucket keyed by the
// authenticated subject, falling back to the client IP. Disabled when limiter is nil.
func RateLimitMiddleware(limiter *ratelimit.KeyedLimiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Allow(clientKey(r))
			if !allowed {
				observability.LoggerFromContext(r.Context()).Debug("rate limit denied", zap.Duration("retry_after", retryAfter))
				observability.RateLimitDeniedTotal.Inc()
				writeRateLimitError(w, r, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok && user.Subject != "" {
		return "user:" + user.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func writeRateLimitError(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "Too many requests")
}
