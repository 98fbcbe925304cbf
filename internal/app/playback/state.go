// Package playback provides the stateful playback session: current song,
// recently-played window, pending suggestions and the auto-advance countdown.
package playback

// State represents the playback session state.
type State int

const (
	StateIdle              State = iota // No chain loaded
	StatePlaying                        // A song is current, no pending choice
	StateAwaitingSelection              // Suggestions fetched, countdown may be running
	StateStopped                        // Stopped; terminal until restarted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateAwaitingSelection:
		return "awaiting_selection"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
