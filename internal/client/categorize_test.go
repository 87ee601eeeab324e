package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including provider errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"timeout kind", &Error{Kind: KindTimeout, Op: OpWeather}, ErrorCategoryTimeout},
		{"not found", newNotFound(OpGeocoding, "Atlantis"), ErrorCategoryCityNotFound},
		{"circuit open", &Error{Kind: KindUnavailable, Op: OpWeather}, ErrorCategoryCircuitOpen},
		{"upstream 401", &Error{Kind: KindUpstreamStatus, StatusCode: 401}, ErrorCategoryInvalidAPIKey},
		{"upstream 404", &Error{Kind: KindUpstreamStatus, StatusCode: 404}, ErrorCategoryUpstream4xx},
		{"upstream 429", &Error{Kind: KindUpstreamStatus, StatusCode: 429}, ErrorCategoryRateLimited},
		{"upstream 503", &Error{Kind: KindUpstreamStatus, StatusCode: 503}, ErrorCategoryUpstream5xx},
		{"wrapped upstream 502", fmt.Errorf("fetch: %w", &Error{Kind: KindUpstreamStatus, StatusCode: 502}), ErrorCategoryUpstream5xx},
		{"network in message", errors.New("connection refused"), ErrorCategoryNetwork},
		{"parse in message", errors.New("parse response: invalid json"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	upstream401 := &Error{Kind: KindUpstreamStatus, StatusCode: 401, Err: ErrUpstreamStatus}
	if !errors.Is(upstream401, ErrInvalidAPIKey) {
		t.Error("401 upstream error should match ErrInvalidAPIKey")
	}
	if !errors.Is(upstream401, ErrUpstreamStatus) {
		t.Error("401 upstream error should match ErrUpstreamStatus")
	}
	if errors.Is(upstream401, ErrNotFound) {
		t.Error("upstream error should not match ErrNotFound")
	}

	nf := newNotFound(OpGeocoding, "Atlantis")
	if nf.Error() != "City 'Atlantis' not found" {
		t.Errorf("Error() = %q", nf.Error())
	}
	if KindOf(fmt.Errorf("wrap: %w", nf)) != KindNotFound {
		t.Error("KindOf should see through wrapping")
	}
	if KindOf(errors.New("plain")) != KindUnexpected {
		t.Error("KindOf(plain) should be KindUnexpected")
	}
}
