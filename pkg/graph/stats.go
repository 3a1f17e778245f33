package graph

import "sync/atomic"

// Stats is a snapshot of the process-wide engine counters.
type Stats struct {
	Attempts    int64
	Successes   int64
	Fallbacks   int64
	Errors      int64
	Flattenings int64
}

var counters struct {
	attempts, successes, fallbacks, errors, flattenings atomic.Int64
}

// GetStats returns the counters accumulated since process start or the
// last ResetStats.
func GetStats() Stats {
	return Stats{
		Attempts:    counters.attempts.Load(),
		Successes:   counters.successes.Load(),
		Fallbacks:   counters.fallbacks.Load(),
		Errors:      counters.errors.Load(),
		Flattenings: counters.flattenings.Load(),
	}
}

// ResetStats zeroes the counters. Prometheus metrics are not affected.
func ResetStats() {
	counters.attempts.Store(0)
	counters.successes.Store(0)
	counters.fallbacks.Store(0)
	counters.errors.Store(0)
	counters.flattenings.Store(0)
}

// Sub returns the counts accumulated between prev and s.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Attempts:    s.Attempts - prev.Attempts,
		Successes:   s.Successes - prev.Successes,
		Fallbacks:   s.Fallbacks - prev.Fallbacks,
		Errors:      s.Errors - prev.Errors,
		Flattenings: s.Flattenings - prev.Flattenings,
	}
}
