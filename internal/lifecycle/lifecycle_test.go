package lifecycle

import "testing"

func TestState_DefaultNotShuttingDown(t *testing.T) {
	s := New()
	if s.IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
	select {
	case <-s.Draining():
		t.Error("Draining() closed before BeginShutdown")
	default:
	}
}

func TestState_BeginShutdown(t *testing.T) {
	s := New()
	s.BeginShutdown()
	s.BeginShutdown()

	if !s.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after BeginShutdown, want true")
	}
	select {
	case <-s.Draining():
	default:
		t.Error("Draining() not closed after BeginShutdown")
	}
}
