package playback

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock produces tickers. Injectable so the auto-advance countdown is
// deterministic in tests: a fake clock fires ticks on demand, the wall
// clock implementation wraps time.Ticker.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}
