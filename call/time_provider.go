package call

import "time"

// TimeProvider is an interface for getting the current time and creating
// timers and tickers. It allows injecting a mock time provider for
// deterministic testing of the ring timeout and the duration counter.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker creates a new ticker that fires at the given interval.
	NewTicker(d time.Duration) *time.Ticker
	// NewTimer creates a new timer that fires after the given duration.
	NewTimer(d time.Duration) *time.Timer
}

// RealTimeProvider implements TimeProvider using the actual system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// NewTicker creates a new ticker using the standard library.
func (RealTimeProvider) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// NewTimer creates a new timer using the standard library.
func (RealTimeProvider) NewTimer(d time.Duration) *time.Timer {
	return time.NewTimer(d)
}
