// Package clock provides the wall clock implementation of the playback
// ticker.
package clock

import (
	"time"

	"github.com/moodfm/moodchain/internal/app/playback"
)

// Wall is the production clock backed by time.Ticker.
type Wall struct{}

// NewTicker implements playback.Clock.
func (Wall) NewTicker(d time.Duration) playback.Ticker {
	return &wallTicker{t: time.NewTicker(d)}
}

type wallTicker struct {
	t *time.Ticker
}

func (w *wallTicker) C() <-chan time.Time {
	return w.t.C
}

func (w *wallTicker) Stop() {
	w.t.Stop()
}
