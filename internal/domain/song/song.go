// Package song provides the Song domain entity.
package song

import "time"

// Song represents a song in the user's library.
// The engine never mutates songs; they are supplied by the caller.
type Song struct {
	ID       string        // Stable song ID
	Title    string        // Song title
	Artist   string        // Artist name
	Album    string        // Album name
	Genre    string        // Genre label
	Duration time.Duration // Song duration
	Features Features      // Audio features (optional fields)
}

// Features holds pre-computed audio features for a song.
// Pointer fields are nil when the feature is unknown.
type Features struct {
	Genre   string   // Genre label (duplicated here for feature providers)
	Energy  *float64 // Energy 0.0-1.0
	Valence *float64 // Valence 0.0-1.0
	BPM     *float64 // Beats per minute, > 0
}

// HasMood returns true if both energy and valence are known.
func (f Features) HasMood() bool {
	return f.Energy != nil && f.Valence != nil
}

// EnergyOr returns the energy value, or fallback if unknown.
func (f Features) EnergyOr(fallback float64) float64 {
	if f.Energy == nil {
		return fallback
	}
	return *f.Energy
}

// ValenceOr returns the valence value, or fallback if unknown.
func (f Features) ValenceOr(fallback float64) float64 {
	if f.Valence == nil {
		return fallback
	}
	return *f.Valence
}
