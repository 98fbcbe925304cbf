// Package history builds mood chains from listening history.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/moodfm/moodchain/internal/domain/chain"
)

// Errors
var (
	ErrEmptyHistory = errors.New("no songs meet the minimum play count")
)

// PlayEvent is a single entry of a user's listening history.
type PlayEvent struct {
	SongID   string
	PlayedAt time.Time
}

// Source supplies ordered play events for a user within a time window.
// Implemented by infrastructure (file store, database, scrobble API).
type Source interface {
	GetEvents(ctx context.Context, userID string, from, to time.Time) ([]PlayEvent, error)
}

// Options control chain construction from history.
type Options struct {
	Name         string
	Description  string
	MinPlayCount int           // Songs played fewer times are discarded (min 1)
	MaxGap       time.Duration // Consecutive plays further apart than this don't count; 0 disables the check
}

// Aggregator builds a weighted transition chain from play events.
type Aggregator struct {
	opts Options
}

// NewAggregator creates an aggregator with the given options.
func NewAggregator(opts Options) *Aggregator {
	if opts.MinPlayCount < 1 {
		opts.MinPlayCount = 1
	}
	return &Aggregator{opts: opts}
}

// Build walks the events in chronological order and produces a fully-formed
// chain: surviving songs ordered by first occurrence, directed transition
// counts between consecutive plays, weights normalized per source song so
// the strongest outgoing edge of every song has weight 1.0.
func (a *Aggregator) Build(events []PlayEvent) (*chain.Chain, error) {
	// Input is expected ordered; sort stably anyway so a misbehaving source
	// cannot produce a non-deterministic chain.
	sorted := append([]PlayEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlayedAt.Before(sorted[j].PlayedAt)
	})

	// Count consecutive directed pairs and per-song totals.
	pairCounts := make(map[chain.EdgeKey]int)
	totals := make(map[string]int)
	firstSeen := make([]string, 0)
	seen := make(map[string]bool)

	for i, ev := range sorted {
		totals[ev.SongID]++
		if !seen[ev.SongID] {
			seen[ev.SongID] = true
			firstSeen = append(firstSeen, ev.SongID)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.SongID == ev.SongID {
			continue // repeat play, not a transition
		}
		if a.opts.MaxGap > 0 && ev.PlayedAt.Sub(prev.PlayedAt) > a.opts.MaxGap {
			continue
		}
		pairCounts[chain.EdgeKey{From: prev.SongID, To: ev.SongID}]++
	}

	// Discard songs below the play count threshold.
	survivors := make(map[string]bool, len(totals))
	for id, n := range totals {
		if n >= a.opts.MinPlayCount {
			survivors[id] = true
		}
	}
	if len(survivors) == 0 {
		return nil, errors.Wrapf(ErrEmptyHistory, "%d events, min play count %d", len(events), a.opts.MinPlayCount)
	}

	c := chain.New(uuid.NewString(), a.opts.Name)
	c.Description = a.opts.Description
	c.IsAutoGenerated = true
	if len(sorted) > 0 {
		start := sorted[0].PlayedAt
		end := sorted[len(sorted)-1].PlayedAt
		c.SourceHistoryStart = &start
		c.SourceHistoryEnd = &end
	}
	for _, id := range firstSeen {
		if !survivors[id] {
			continue
		}
		if err := c.AddSong(id, -1); err != nil {
			return nil, errors.Wrap(err, "failed to add song from history")
		}
	}

	// The strongest outgoing edge from any source normalizes its siblings.
	maxFromSource := make(map[string]int)
	for key, n := range pairCounts {
		if !survivors[key.From] || !survivors[key.To] {
			continue
		}
		if n > maxFromSource[key.From] {
			maxFromSource[key.From] = n
		}
	}
	for key, n := range pairCounts {
		if !survivors[key.From] || !survivors[key.To] {
			continue
		}
		weight := float64(n) / float64(maxFromSource[key.From])
		if err := c.SetTransitionWeight(key.From, key.To, weight); err != nil {
			return nil, errors.Wrap(err, "failed to set transition weight")
		}
		e, _ := c.Edge(key.From, key.To)
		e.PlayCount = n
	}

	zlog.Debug().Msgf("history: built chain: events=%d songs=%d transitions=%d min_plays=%d",
		len(events), c.SongCount(), len(c.Transitions), a.opts.MinPlayCount)

	return c, nil
}

// BuildFromSource fetches events from the source and builds a chain.
func (a *Aggregator) BuildFromSource(ctx context.Context, src Source, userID string, from, to time.Time) (*chain.Chain, error) {
	events, err := src.GetEvents(ctx, userID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch play events")
	}
	return a.Build(events)
}
