// Package store persists chains as YAML documents. The engine itself never
// persists; callers save the updated chain after mutating operations.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/moodfm/moodchain/internal/domain/chain"
)

// Store loads and saves chains.
type Store interface {
	Load(chainID string) (*chain.Chain, error)
	Save(c *chain.Chain) error
}

// FileStore keeps one YAML file per chain under a root directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create chain store directory")
	}
	return &FileStore{dir: dir}, nil
}

type document struct {
	ID                      string          `yaml:"id"`
	Name                    string          `yaml:"name"`
	Description             string          `yaml:"description,omitempty"`
	MoodTags                []string        `yaml:"mood_tags,omitempty"`
	Songs                   []string        `yaml:"songs"`
	Transitions             []transitionDoc `yaml:"transitions"`
	Style                   string          `yaml:"style"`
	AutoAdvance             bool            `yaml:"auto_advance"`
	AutoAdvanceDelaySeconds int             `yaml:"auto_advance_delay_seconds"`
	IsAutoGenerated         bool            `yaml:"is_auto_generated,omitempty"`
	SourceHistoryStart      *time.Time      `yaml:"source_history_start,omitempty"`
	SourceHistoryEnd        *time.Time      `yaml:"source_history_end,omitempty"`
	PlayCount               int             `yaml:"play_count"`
	LastPlayedAt            *time.Time      `yaml:"last_played_at,omitempty"`
	CreatedAt               time.Time       `yaml:"created_at"`
	UpdatedAt               time.Time       `yaml:"updated_at"`
}

type transitionDoc struct {
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Weight    float64 `yaml:"weight"`
	PlayCount int     `yaml:"play_count"`
}

// Load reads and validates a chain by ID.
func (s *FileStore) Load(chainID string) (*chain.Chain, error) {
	data, err := os.ReadFile(s.path(chainID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read chain %s", chainID)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse chain %s", chainID)
	}

	style, err := chain.ParseStyle(doc.Style)
	if err != nil {
		return nil, errors.Wrapf(err, "chain %s", chainID)
	}

	c := &chain.Chain{
		ID:                      doc.ID,
		Name:                    doc.Name,
		Description:             doc.Description,
		MoodTags:                doc.MoodTags,
		Songs:                   doc.Songs,
		Transitions:             make(map[chain.EdgeKey]*chain.Edge, len(doc.Transitions)),
		Style:                   style,
		AutoAdvance:             doc.AutoAdvance,
		AutoAdvanceDelaySeconds: doc.AutoAdvanceDelaySeconds,
		IsAutoGenerated:         doc.IsAutoGenerated,
		SourceHistoryStart:      doc.SourceHistoryStart,
		SourceHistoryEnd:        doc.SourceHistoryEnd,
		PlayCount:               doc.PlayCount,
		LastPlayedAt:            doc.LastPlayedAt,
		CreatedAt:               doc.CreatedAt,
		UpdatedAt:               doc.UpdatedAt,
	}
	for _, tr := range doc.Transitions {
		key := chain.EdgeKey{From: tr.From, To: tr.To}
		if _, ok := c.Transitions[key]; ok {
			return nil, errors.Newf("chain %s has duplicate transition %s->%s", chainID, tr.From, tr.To)
		}
		c.Transitions[key] = &chain.Edge{From: tr.From, To: tr.To, Weight: tr.Weight, PlayCount: tr.PlayCount}
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "chain %s failed validation on load", chainID)
	}
	return c, nil
}

// Save writes a chain to disk. The write goes through a temp file and
// rename so a crash cannot leave a half-written chain behind.
func (s *FileStore) Save(c *chain.Chain) error {
	if c.ID == "" {
		return errors.New("cannot save chain without an ID")
	}
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "refusing to save invalid chain")
	}

	doc := document{
		ID:                      c.ID,
		Name:                    c.Name,
		Description:             c.Description,
		MoodTags:                c.MoodTags,
		Songs:                   c.Songs,
		Transitions:             make([]transitionDoc, 0, len(c.Transitions)),
		Style:                   c.Style.String(),
		AutoAdvance:             c.AutoAdvance,
		AutoAdvanceDelaySeconds: c.AutoAdvanceDelaySeconds,
		IsAutoGenerated:         c.IsAutoGenerated,
		SourceHistoryStart:      c.SourceHistoryStart,
		SourceHistoryEnd:        c.SourceHistoryEnd,
		PlayCount:               c.PlayCount,
		LastPlayedAt:            c.LastPlayedAt,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	for _, e := range allEdges(c) {
		doc.Transitions = append(doc.Transitions, transitionDoc{
			From: e.From, To: e.To, Weight: e.Weight, PlayCount: e.PlayCount,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chain")
	}

	tmp := s.path(c.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write chain file")
	}
	if err := os.Rename(tmp, s.path(c.ID)); err != nil {
		return errors.Wrap(err, "failed to replace chain file")
	}
	return nil
}

// List returns the IDs of all stored chains.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chain store")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".yaml" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".yaml")])
	}
	return ids, nil
}

func (s *FileStore) path(chainID string) string {
	return filepath.Join(s.dir, chainID+".yaml")
}

// allEdges returns edges in deterministic order so saved files diff cleanly.
func allEdges(c *chain.Chain) []chain.Edge {
	edges := make([]chain.Edge, 0, len(c.Transitions))
	for _, from := range c.Songs {
		edges = append(edges, c.OutgoingEdges(from)...)
	}
	return edges
}
