// Package histfile reads listening history events from a YAML file.
package histfile

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/moodfm/moodchain/internal/app/history"
)

// Source serves play events from a YAML file. It implements
// history.Source; the file holds a single user's history, so the userID
// argument is ignored.
type Source struct {
	events []history.PlayEvent
}

type document struct {
	Events []entry `yaml:"events"`
}

type entry struct {
	SongID   string    `yaml:"song_id"`
	PlayedAt time.Time `yaml:"played_at"`
}

// Load reads a history file.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read history file")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse history file")
	}

	events := make([]history.PlayEvent, 0, len(doc.Events))
	for i, e := range doc.Events {
		if e.SongID == "" {
			return nil, errors.Newf("history entry %d has no song ID", i)
		}
		if e.PlayedAt.IsZero() {
			return nil, errors.Newf("history entry %d has no timestamp", i)
		}
		events = append(events, history.PlayEvent{SongID: e.SongID, PlayedAt: e.PlayedAt})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].PlayedAt.Before(events[j].PlayedAt)
	})

	return &Source{events: events}, nil
}

// GetEvents returns events within [from, to]. Zero bounds are unbounded.
func (s *Source) GetEvents(_ context.Context, _ string, from, to time.Time) ([]history.PlayEvent, error) {
	result := make([]history.PlayEvent, 0, len(s.events))
	for _, e := range s.events {
		if !from.IsZero() && e.PlayedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.PlayedAt.After(to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Len returns the number of events in the file.
func (s *Source) Len() int {
	return len(s.events)
}
