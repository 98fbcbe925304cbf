package playback

import "github.com/moodfm/moodchain/internal/app/suggest"

// EventType represents a playback session event type.
type EventType int

const (
	EventSongStarted      EventType = iota // A song became current
	EventSuggestionsReady                  // Ranked suggestions are available
	EventCountdownTick                     // Auto-advance countdown decremented
	EventAutoAdvanced                      // Countdown expired, top suggestion selected
	EventSelectionMade                     // Manual selection applied
	EventStopped                           // Session stopped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongStarted:
		return "song_started"
	case EventSuggestionsReady:
		return "suggestions_ready"
	case EventCountdownTick:
		return "countdown_tick"
	case EventAutoAdvanced:
		return "auto_advanced"
	case EventSelectionMade:
		return "selection_made"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event represents a playback session event.
type Event struct {
	Type        EventType
	SongID      string               // Current song (empty for some events)
	FromSongID  string               // Previous song for selection events
	Suggestions []suggest.Suggestion // Populated for EventSuggestionsReady
	Countdown   int                  // Seconds remaining for EventCountdownTick
	State       State                // Session state after the event
}
