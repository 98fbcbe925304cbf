// Package chain provides the mood chain domain entity: an ordered set of
// songs plus a weighted directed transition graph between them.
package chain

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrInvalidWeight  = errors.New("transition weight must be between 0 and 1")
	ErrUnknownSong    = errors.New("song is not a member of the chain")
	ErrDuplicateSong  = errors.New("song is already a member of the chain")
	ErrSelfTransition = errors.New("transition source and target must differ")
	ErrBadOrder       = errors.New("new order is not a permutation of chain members")
)

// EdgeKey identifies a directed transition.
type EdgeKey struct {
	From string
	To   string
}

// Edge is a directed, weighted transition between two member songs.
type Edge struct {
	From      string  // Source song ID
	To        string  // Target song ID
	Weight    float64 // Normalized weight 0.0-1.0
	PlayCount int     // Times this transition was actually played
}

// Chain represents a mood chain. The song order is positional: the index in
// Songs is the song's position, kept contiguous by every mutation.
// Transitions reference song IDs, never positions, so reordering does not
// touch them.
type Chain struct {
	ID          string
	Name        string
	Description string
	MoodTags    []string

	Songs       []string          // Ordered member song IDs, unique
	Transitions map[EdgeKey]*Edge // Keyed by (from, to)

	Style                   Style // Governs suggestion scoring only
	AutoAdvance             bool
	AutoAdvanceDelaySeconds int

	// Provenance for chains built from listening history.
	IsAutoGenerated    bool
	SourceHistoryStart *time.Time
	SourceHistoryEnd   *time.Time

	PlayCount    int
	LastPlayedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates an empty chain with defaults.
func New(id, name string) *Chain {
	now := time.Now()
	return &Chain{
		ID:                      id,
		Name:                    name,
		Songs:                   make([]string, 0),
		Transitions:             make(map[EdgeKey]*Edge),
		Style:                   StyleSmooth,
		AutoAdvance:             true,
		AutoAdvanceDelaySeconds: 10,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// Contains returns true if the song is a chain member.
func (c *Chain) Contains(songID string) bool {
	return c.Position(songID) >= 0
}

// Position returns the song's position, or -1 if not a member.
func (c *Chain) Position(songID string) int {
	for i, id := range c.Songs {
		if id == songID {
			return i
		}
	}
	return -1
}

// AddSong inserts a song at the given position. A negative position appends.
// Positions of following songs shift up by one.
func (c *Chain) AddSong(songID string, position int) error {
	if songID == "" {
		return errors.Wrap(ErrUnknownSong, "empty song ID")
	}
	if c.Contains(songID) {
		return errors.Wrapf(ErrDuplicateSong, "song %s", songID)
	}
	if position < 0 || position > len(c.Songs) {
		position = len(c.Songs)
	}
	c.Songs = append(c.Songs, "")
	copy(c.Songs[position+1:], c.Songs[position:])
	c.Songs[position] = songID
	c.touch()
	return nil
}

// RemoveSong removes a song and cascades: every transition touching the song
// is deleted, and positions stay contiguous.
func (c *Chain) RemoveSong(songID string) error {
	pos := c.Position(songID)
	if pos < 0 {
		return errors.Wrapf(ErrUnknownSong, "song %s", songID)
	}
	c.Songs = append(c.Songs[:pos], c.Songs[pos+1:]...)
	for key := range c.Transitions {
		if key.From == songID || key.To == songID {
			delete(c.Transitions, key)
		}
	}
	c.touch()
	return nil
}

// ReorderSongs replaces the song order. The new order must be a permutation
// of the current members; transitions are unaffected.
func (c *Chain) ReorderSongs(newOrder []string) error {
	if len(newOrder) != len(c.Songs) {
		return errors.Wrapf(ErrBadOrder, "got %d songs, chain has %d", len(newOrder), len(c.Songs))
	}
	seen := make(map[string]bool, len(newOrder))
	for _, id := range newOrder {
		if seen[id] {
			return errors.Wrapf(ErrBadOrder, "duplicate song %s", id)
		}
		if !c.Contains(id) {
			return errors.Wrapf(ErrBadOrder, "song %s is not a member", id)
		}
		seen[id] = true
	}
	c.Songs = append(c.Songs[:0:0], newOrder...)
	c.touch()
	return nil
}

// SetTransitionWeight creates or updates the (from, to) edge weight.
func (c *Chain) SetTransitionWeight(from, to string, weight float64) error {
	if err := c.checkEdge(from, to); err != nil {
		return err
	}
	if weight < 0 || weight > 1 {
		return errors.Wrapf(ErrInvalidWeight, "weight %.3f", weight)
	}
	key := EdgeKey{From: from, To: to}
	if e, ok := c.Transitions[key]; ok {
		e.Weight = weight
	} else {
		c.Transitions[key] = &Edge{From: from, To: to, Weight: weight}
	}
	c.touch()
	return nil
}

// TransitionUpdate is one entry of a batch weight update.
type TransitionUpdate struct {
	From   string
	To     string
	Weight float64
}

// ApplyTransitions upserts a batch of transition weights atomically: every
// entry is validated before any is applied.
func (c *Chain) ApplyTransitions(updates []TransitionUpdate) error {
	for _, u := range updates {
		if err := c.checkEdge(u.From, u.To); err != nil {
			return err
		}
		if u.Weight < 0 || u.Weight > 1 {
			return errors.Wrapf(ErrInvalidWeight, "weight %.3f for %s->%s", u.Weight, u.From, u.To)
		}
	}
	for _, u := range updates {
		key := EdgeKey{From: u.From, To: u.To}
		if e, ok := c.Transitions[key]; ok {
			e.Weight = u.Weight
		} else {
			c.Transitions[key] = &Edge{From: u.From, To: u.To, Weight: u.Weight}
		}
	}
	c.touch()
	return nil
}

// Edge returns the (from, to) edge if it exists.
func (c *Chain) Edge(from, to string) (*Edge, bool) {
	e, ok := c.Transitions[EdgeKey{From: from, To: to}]
	return e, ok
}

// OutgoingEdges returns all edges leaving the given song, ordered by target
// ID for determinism.
func (c *Chain) OutgoingEdges(songID string) []Edge {
	edges := make([]Edge, 0)
	for key, e := range c.Transitions {
		if key.From == songID {
			edges = append(edges, *e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	return edges
}

// SongCount returns the number of member songs.
func (c *Chain) SongCount() int {
	return len(c.Songs)
}

// RecordPlayed updates the chain's play statistics.
func (c *Chain) RecordPlayed(at time.Time) {
	c.PlayCount++
	c.LastPlayedAt = &at
	c.touch()
}

// Clone returns a deep copy.
func (c *Chain) Clone() *Chain {
	cp := *c
	cp.Songs = append([]string(nil), c.Songs...)
	cp.MoodTags = append([]string(nil), c.MoodTags...)
	cp.Transitions = make(map[EdgeKey]*Edge, len(c.Transitions))
	for key, e := range c.Transitions {
		edge := *e
		cp.Transitions[key] = &edge
	}
	return &cp
}

// Validate checks all chain invariants: unique membership, referential
// integrity of edges, no self loops, weights in range, play counts
// non-negative.
func (c *Chain) Validate() error {
	seen := make(map[string]bool, len(c.Songs))
	for _, id := range c.Songs {
		if id == "" {
			return errors.Wrap(ErrUnknownSong, "empty song ID in members")
		}
		if seen[id] {
			return errors.Wrapf(ErrDuplicateSong, "song %s", id)
		}
		seen[id] = true
	}
	for key, e := range c.Transitions {
		if key.From != e.From || key.To != e.To {
			return errors.Newf("edge key %v does not match edge %s->%s", key, e.From, e.To)
		}
		if err := c.checkEdge(e.From, e.To); err != nil {
			return err
		}
		if e.Weight < 0 || e.Weight > 1 {
			return errors.Wrapf(ErrInvalidWeight, "edge %s->%s weight %.3f", e.From, e.To, e.Weight)
		}
		if e.PlayCount < 0 {
			return errors.Newf("edge %s->%s has negative play count", e.From, e.To)
		}
	}
	if c.AutoAdvanceDelaySeconds <= 0 {
		return errors.Newf("auto advance delay must be positive, got %d", c.AutoAdvanceDelaySeconds)
	}
	return nil
}

func (c *Chain) checkEdge(from, to string) error {
	if from == to {
		return errors.Wrapf(ErrSelfTransition, "song %s", from)
	}
	if !c.Contains(from) {
		return errors.Wrapf(ErrUnknownSong, "song %s", from)
	}
	if !c.Contains(to) {
		return errors.Wrapf(ErrUnknownSong, "song %s", to)
	}
	return nil
}

func (c *Chain) touch() {
	c.UpdatedAt = time.Now()
}
