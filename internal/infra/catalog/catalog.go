// Package catalog loads the song library from a YAML file and serves audio
// features for suggestion scoring.
package catalog

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/moodfm/moodchain/internal/domain/song"
)

// Catalog is an in-memory song library keyed by song ID. It implements
// suggest.FeatureProvider.
type Catalog struct {
	songs map[string]song.Song
	order []string
}

type document struct {
	Songs []entry `yaml:"songs"`
}

type entry struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	Artist          string   `yaml:"artist"`
	Album           string   `yaml:"album"`
	Genre           string   `yaml:"genre"`
	DurationSeconds int      `yaml:"duration_seconds"`
	Energy          *float64 `yaml:"energy"`
	Valence         *float64 `yaml:"valence"`
	BPM             *float64 `yaml:"bpm"`
}

// Load reads a song catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog file")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog file")
	}

	c := &Catalog{songs: make(map[string]song.Song, len(doc.Songs))}
	for i, e := range doc.Songs {
		if e.ID == "" {
			return nil, errors.Newf("catalog entry %d has no song ID", i)
		}
		if _, ok := c.songs[e.ID]; ok {
			return nil, errors.Newf("duplicate song ID %s in catalog", e.ID)
		}
		if err := validateEntry(e); err != nil {
			return nil, errors.Wrapf(err, "invalid catalog entry %s", e.ID)
		}
		c.songs[e.ID] = song.Song{
			ID:       e.ID,
			Title:    e.Title,
			Artist:   e.Artist,
			Album:    e.Album,
			Genre:    e.Genre,
			Duration: time.Duration(e.DurationSeconds) * time.Second,
			Features: song.Features{
				Genre:   e.Genre,
				Energy:  e.Energy,
				Valence: e.Valence,
				BPM:     e.BPM,
			},
		}
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

func validateEntry(e entry) error {
	if e.Energy != nil && (*e.Energy < 0 || *e.Energy > 1) {
		return errors.Newf("energy %.3f out of range", *e.Energy)
	}
	if e.Valence != nil && (*e.Valence < 0 || *e.Valence > 1) {
		return errors.Newf("valence %.3f out of range", *e.Valence)
	}
	if e.BPM != nil && *e.BPM <= 0 {
		return errors.Newf("bpm %.1f must be positive", *e.BPM)
	}
	return nil
}

// Song returns the song with the given ID.
func (c *Catalog) Song(songID string) (song.Song, bool) {
	s, ok := c.songs[songID]
	return s, ok
}

// Features implements suggest.FeatureProvider.
func (c *Catalog) Features(songID string) (song.Features, bool) {
	s, ok := c.songs[songID]
	if !ok {
		return song.Features{}, false
	}
	return s.Features, true
}

// Songs returns all songs in file order.
func (c *Catalog) Songs() []song.Song {
	result := make([]song.Song, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.songs[id])
	}
	return result
}

// Len returns the number of songs in the catalog.
func (c *Catalog) Len() int {
	return len(c.songs)
}
