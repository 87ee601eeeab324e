package service

import (
	"sync"
)

// stampedeTracker counts in-progress misses per cache key. More than one at a
// time means several callers are fetching the same value from the provider.
type stampedeTracker struct {
	mu           sync.Mutex
	activeMisses map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		activeMisses: make(map[string]int),
	}
}

// begin records a miss on key and returns the number of misses now in flight
// together with a func that must be called once the miss is resolved.
func (st *stampedeTracker) begin(key string) (int, func()) {
	st.mu.Lock()
	st.activeMisses[key]++
	n := st.activeMisses[key]
	st.mu.Unlock()

	var once sync.Once
	return n, func() {
		once.Do(func() { st.end(key) })
	}
}

func (st *stampedeTracker) end(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.activeMisses[key] <= 1 {
		delete(st.activeMisses, key)
		return
	}
	st.activeMisses[key]--
}
