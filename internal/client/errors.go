package client

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of provider failure conditions surfaced to callers.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindTimeout
	KindUpstreamStatus
	KindNotFound
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unexpected"
	}
}

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrTimeout        = errors.New("weather API timed out")
	ErrUpstreamStatus = errors.New("weather API returned non-2xx status")
	ErrNotFound       = errors.New("city not found")
	ErrUnavailable    = errors.New("weather API unavailable")
)

// Error is returned by every provider operation. Op names the provider endpoint
// (weather, forecast, air_pollution, geocoding, uv_index, historical_weather).
// StatusCode and Body are set for KindUpstreamStatus and KindNotFound.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("connection to %s API timed out", e.Op)
	case KindUpstreamStatus:
		return fmt.Sprintf("%s API returned HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	case KindNotFound:
		return e.Body
	case KindUnavailable:
		return fmt.Sprintf("%s API unavailable: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("an unexpected error occurred: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels so callers can use errors.Is without errors.As.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUpstreamStatus:
		return e.Kind == KindUpstreamStatus
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrInvalidAPIKey:
		return e.Kind == KindUpstreamStatus && e.StatusCode == 401
	}
	return false
}

// KindOf returns the kind of a provider error, KindUnexpected for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func newNotFound(op, city string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Op:         op,
		StatusCode: 404,
		Body:       fmt.Sprintf("City '%s' not found", city),
		Err:        ErrNotFound,
	}
}
