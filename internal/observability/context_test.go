package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("CorrelationID(empty) = %q, want empty", got)
	}
	ctx = WithCorrelationID(ctx, "abc-123")
	if got := CorrelationID(ctx); got != "abc-123" {
		t.Errorf("CorrelationID() = %q, want abc-123", got)
	}
}

func TestLoggerFromContext_DefaultsToNop(t *testing.T) {
	if LoggerFromContext(context.Background()) == nil {
		t.Fatal("LoggerFromContext() returned nil")
	}
	logger := zap.NewExample()
	if got := LoggerFromContext(WithLogger(context.Background(), logger)); got != logger {
		t.Error("LoggerFromContext() did not return stored logger")
	}
}
