package lifecycle

import (
	"sync"
	"sync/atomic"
)

// State tracks whether the process is draining. /health reports
// "shutting-down" with 503 once BeginShutdown has been called, so load
// balancers stop routing new traffic while in-flight requests finish.
type State struct {
	shuttingDown atomic.Bool
	once         sync.Once
	draining     chan struct{}
}

func New() *State {
	return &State{draining: make(chan struct{})}
}

// BeginShutdown marks the process as draining. Safe to call more than once.
func (s *State) BeginShutdown() {
	s.shuttingDown.Store(true)
	s.once.Do(func() { close(s.draining) })
}

func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Draining is closed when BeginShutdown is first called.
func (s *State) Draining() <-chan struct{} {
	return s.draining
}
