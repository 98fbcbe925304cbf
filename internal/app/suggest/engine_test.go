package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/domain/song"
)

// Stub feature provider for testing
type stubFeatures struct {
	features map[string]song.Features
}

func (s *stubFeatures) Features(songID string) (song.Features, bool) {
	f, ok := s.features[songID]
	return f, ok
}

func fptr(v float64) *float64 {
	return &v
}

func newEngine(t *testing.T, features map[string]song.Features, settings map[string]map[string]any) *Engine {
	t.Helper()
	e, err := NewEngine(&stubFeatures{features: features}, settings)
	require.NoError(t, err)
	return e
}

func buildChain(t *testing.T, style chain.Style, songs []string, edges ...chain.Edge) *chain.Chain {
	t.Helper()
	c := chain.New("chain-1", "Test Chain")
	c.Style = style
	for _, id := range songs {
		require.NoError(t, c.AddSong(id, -1))
	}
	for _, e := range edges {
		require.NoError(t, c.SetTransitionWeight(e.From, e.To, e.Weight))
		stored, _ := c.Edge(e.From, e.To)
		stored.PlayCount = e.PlayCount
	}
	return c
}

func songIDs(suggestions []Suggestion) []string {
	ids := make([]string, len(suggestions))
	for i, s := range suggestions {
		ids[i] = s.SongID
	}
	return ids
}

func TestEngine_Suggest_SmoothRanking(t *testing.T) {
	features := map[string]song.Features{
		"s1": {Energy: fptr(0.5), Valence: fptr(0.5)},
		"s2": {Energy: fptr(0.5), Valence: fptr(0.5)}, // identical mood
		"s3": {Energy: fptr(0.9), Valence: fptr(0.1)}, // large jump
	}
	c := buildChain(t, chain.StyleSmooth, []string{"s1", "s2", "s3"},
		chain.Edge{From: "s1", To: "s2", Weight: 0.8},
		chain.Edge{From: "s1", To: "s3", Weight: 0.8},
	)
	e := newEngine(t, features, nil)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s2", got[0].SongID)
	assert.Equal(t, 1.0, got[0].Score, "best candidate normalizes to 1.0")
	assert.Equal(t, "Similar tempo and mood", got[0].Reason)
	assert.Equal(t, "s3", got[1].SongID)
	assert.Less(t, got[1].Score, 1.0)
}

func TestEngine_Suggest_Idempotent(t *testing.T) {
	features := map[string]song.Features{
		"s1": {Energy: fptr(0.4), Valence: fptr(0.6)},
		"s2": {Energy: fptr(0.5), Valence: fptr(0.5)},
		"s3": {Energy: fptr(0.7), Valence: fptr(0.2)},
	}
	c := buildChain(t, chain.StyleSmooth, []string{"s1", "s2", "s3"},
		chain.Edge{From: "s1", To: "s2", Weight: 0.6},
		chain.Edge{From: "s1", To: "s3", Weight: 0.9},
	)
	e := newEngine(t, features, nil)

	first, err := e.Suggest(c, "s1", []string{"s1"}, 3)
	require.NoError(t, err)
	second, err := e.Suggest(c, "s1", []string{"s1"}, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_Suggest_RecencyExclusion(t *testing.T) {
	// Chain A->B->C->A. With recentlyPlayed=[A,B] and current song C the
	// only outgoing target (A) is recent, so exclusion would empty the set
	// and is dropped.
	c := buildChain(t, chain.StyleSmooth, []string{"A", "B", "C"},
		chain.Edge{From: "A", To: "B", Weight: 1},
		chain.Edge{From: "B", To: "C", Weight: 1},
		chain.Edge{From: "C", To: "A", Weight: 1},
	)
	e := newEngine(t, nil, nil)

	got, err := e.Suggest(c, "C", []string{"A", "B"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].SongID, "widened back to full outgoing set")

	// With an alternative edge C->B' available, recent targets stay out.
	require.NoError(t, c.AddSong("D", -1))
	require.NoError(t, c.SetTransitionWeight("C", "D", 0.5))

	got, err = e.Suggest(c, "C", []string{"A", "B"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, songIDs(got))
}

func TestEngine_Suggest_FallbackToChainMembers(t *testing.T) {
	// s3 has no outgoing edges: all other members become candidates with a
	// uniform base weight.
	c := buildChain(t, chain.StyleSmooth, []string{"s1", "s2", "s3"},
		chain.Edge{From: "s1", To: "s2", Weight: 0.9},
	)
	e := newEngine(t, nil, nil)

	got, err := e.Suggest(c, "s3", nil, 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, songIDs(got))
}

func TestEngine_Suggest_SingleSongChain(t *testing.T) {
	c := buildChain(t, chain.StyleSmooth, []string{"only"})
	e := newEngine(t, nil, nil)

	got, err := e.Suggest(c, "only", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_Suggest_UnknownCurrentSong(t *testing.T) {
	c := buildChain(t, chain.StyleSmooth, []string{"s1"})
	e := newEngine(t, nil, nil)

	_, err := e.Suggest(c, "ghost", nil, 3)
	assert.ErrorIs(t, err, chain.ErrUnknownSong)
}

func TestEngine_Suggest_CountLimits(t *testing.T) {
	c := buildChain(t, chain.StyleSmooth, []string{"s1", "a", "b", "c", "d", "e"},
		chain.Edge{From: "s1", To: "a", Weight: 0.9},
		chain.Edge{From: "s1", To: "b", Weight: 0.8},
		chain.Edge{From: "s1", To: "c", Weight: 0.7},
		chain.Edge{From: "s1", To: "d", Weight: 0.6},
		chain.Edge{From: "s1", To: "e", Weight: 0.5},
	)
	e := newEngine(t, nil, nil)

	got, err := e.Suggest(c, "s1", nil, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultCount, "count <= 0 falls back to the default")

	got, err = e.Suggest(c, "s1", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, songIDs(got))
}

func TestEngine_Suggest_TieBreak(t *testing.T) {
	// Identical weights and features: play count decides, then song ID.
	c := buildChain(t, chain.StyleSmooth, []string{"s1", "x", "y", "z"},
		chain.Edge{From: "s1", To: "z", Weight: 0.5, PlayCount: 7},
		chain.Edge{From: "s1", To: "y", Weight: 0.5, PlayCount: 2},
		chain.Edge{From: "s1", To: "x", Weight: 0.5, PlayCount: 2},
	)
	e := newEngine(t, nil, nil)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "y"}, songIDs(got))
}

func TestEngine_Suggest_GenreMatch(t *testing.T) {
	features := map[string]song.Features{
		"s1": {Genre: "jazz"},
		"s2": {Genre: "jazz"},
		"s3": {Genre: "rock"},
	}
	c := buildChain(t, chain.StyleGenreMatch, []string{"s1", "s2", "s3"},
		chain.Edge{From: "s1", To: "s2", Weight: 0.5},
		chain.Edge{From: "s1", To: "s3", Weight: 0.5},
	)
	e := newEngine(t, features, nil)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s2", got[0].SongID)
	assert.Equal(t, "Same genre", got[0].Reason)
	assert.Equal(t, "s3", got[1].SongID)
	assert.Equal(t, "Different genre, high affinity", got[1].Reason)
	assert.InDelta(t, 0.4, got[1].Score, 1e-9)
}

func TestEngine_Suggest_EnergyFlowAscending(t *testing.T) {
	features := map[string]song.Features{
		"s1": {Energy: fptr(0.5)},
		"up": {Energy: fptr(0.7)},
		"dn": {Energy: fptr(0.2)},
	}
	c := buildChain(t, chain.StyleEnergyFlow, []string{"s1", "up", "dn"},
		chain.Edge{From: "s1", To: "up", Weight: 0.8},
		chain.Edge{From: "s1", To: "dn", Weight: 0.8},
	)
	e := newEngine(t, features, nil)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "up", got[0].SongID)
	assert.Equal(t, "Builds energy", got[0].Reason)
	assert.Equal(t, "dn", got[1].SongID)
	assert.Equal(t, "Eases down", got[1].Reason)
	assert.Less(t, got[1].Score, got[0].Score)
}

func TestEngine_Suggest_EnergyFlowDescending(t *testing.T) {
	features := map[string]song.Features{
		"s1": {Energy: fptr(0.5)},
		"up": {Energy: fptr(0.9)},
		"dn": {Energy: fptr(0.3)},
	}
	c := buildChain(t, chain.StyleEnergyFlow, []string{"s1", "up", "dn"},
		chain.Edge{From: "s1", To: "up", Weight: 0.8},
		chain.Edge{From: "s1", To: "dn", Weight: 0.8},
	)
	settings := map[string]map[string]any{
		"energy_flow": {"direction": "descending"},
	}
	e := newEngine(t, features, settings)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "dn", got[0].SongID)
	assert.Equal(t, "Eases down", got[0].Reason)
}

func TestEngine_Suggest_RandomStyle(t *testing.T) {
	c := buildChain(t, chain.StyleRandom, []string{"s1", "s2", "s3"},
		chain.Edge{From: "s1", To: "s2", Weight: 0.9},
		chain.Edge{From: "s1", To: "s3", Weight: 0.1},
	)
	settings := map[string]map[string]any{
		"random": {"seed": int64(42)},
	}
	e := newEngine(t, nil, settings)

	got, err := e.Suggest(c, "s1", nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, "Shuffled pick", s.Reason)
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}

	// Heavier edges must win in expectation over many draws.
	wins := 0
	for i := 0; i < 200; i++ {
		got, err = e.Suggest(c, "s1", nil, 1)
		require.NoError(t, err)
		if got[0].SongID == "s2" {
			wins++
		}
	}
	assert.Greater(t, wins, 100, "edge with 9x weight should lead most draws")
}

func TestNewEngine_InvalidSettings(t *testing.T) {
	_, err := NewEngine(&stubFeatures{}, map[string]map[string]any{
		"energy_flow": {"direction": "sideways"},
	})
	assert.Error(t, err)
}

func TestRegisteredStyles(t *testing.T) {
	styles := RegisteredStyles()
	assert.ElementsMatch(t, []chain.Style{
		chain.StyleSmooth, chain.StyleRandom, chain.StyleEnergyFlow, chain.StyleGenreMatch,
	}, styles)
}
