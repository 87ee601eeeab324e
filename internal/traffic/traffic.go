package traffic

import (
	"sync"
	"time"
)

// DefaultRetention bounds how far back outcomes are kept.
const DefaultRetention = 5 * time.Minute

// Outcome classifies a finished gated request.
type Outcome int

const (
	Success Outcome = iota
	// Error is a server-side failure (5xx, including upstream timeouts).
	Error
	// Denied is a rate-limit rejection.
	Denied
)

// OutcomeForStatus maps an HTTP status to an Outcome. Client errors other
// than 429 count as success: the gateway itself behaved correctly.
func OutcomeForStatus(status int) Outcome {
	switch {
	case status == 429:
		return Denied
	case status >= 500:
		return Error
	default:
		return Success
	}
}

// Tracker keeps sliding windows of request outcomes. /health reads the error
// rate from it and the metrics registry exposes request and denial counts.
type Tracker struct {
	retention time.Duration
	now       func() time.Time

	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

func NewTracker() *Tracker {
	return newTrackerWithClock(DefaultRetention, time.Now)
}

func newTrackerWithClock(retention time.Duration, now func() time.Time) *Tracker {
	return &Tracker{retention: retention, now: now}
}

// Record appends one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	switch o {
	case Error:
		t.errorTimes = append(t.errorTimes, now)
	case Denied:
		t.deniedTimes = append(t.deniedTimes, now)
	default:
		t.successTimes = append(t.successTimes, now)
	}
	t.pruneLocked(now)
}

// RequestCount returns all outcomes (success, error, denied) within window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return countSince(t.successTimes, cutoff) +
		countSince(t.errorTimes, cutoff) +
		countSince(t.deniedTimes, cutoff)
}

// DenialCount returns rate-limit denials within window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.now().Add(-window))
}

// ErrorRate returns (errors, total) within window. Denials are excluded from both.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

// Degraded reports whether the error rate within window exceeds threshold
// (0..1). Fewer than minRequests outcomes never count as degraded.
func (t *Tracker) Degraded(window time.Duration, threshold float64, minRequests int) bool {
	errs, total := t.ErrorRate(window)
	if total == 0 || total < minRequests {
		return false
	}
	return float64(errs)/float64(total) > threshold
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention. Slices are in
// append order, so the expired prefix is contiguous.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
