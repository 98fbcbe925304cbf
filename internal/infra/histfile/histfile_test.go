package histfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_SortsByTimestamp(t *testing.T) {
	path := writeHistory(t, `
events:
  - song_id: s2
    played_at: 2026-03-01T20:10:00Z
  - song_id: s1
    played_at: 2026-03-01T20:00:00Z
  - song_id: s3
    played_at: 2026-03-01T20:20:00Z
`)

	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	events, err := src.GetEvents(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "s1", events[0].SongID)
	assert.Equal(t, "s2", events[1].SongID)
	assert.Equal(t, "s3", events[2].SongID)
}

func TestGetEvents_Window(t *testing.T) {
	path := writeHistory(t, `
events:
  - song_id: s1
    played_at: 2026-03-01T20:00:00Z
  - song_id: s2
    played_at: 2026-03-01T21:00:00Z
  - song_id: s3
    played_at: 2026-03-01T22:00:00Z
`)

	src, err := Load(path)
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)

	events, err := src.GetEvents(context.Background(), "", from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s2", events[0].SongID)

	// open-ended lower bound
	events, err = src.GetEvents(context.Background(), "", time.Time{}, to)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// open-ended upper bound
	events, err = src.GetEvents(context.Background(), "", from, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing song id", content: "events:\n  - played_at: 2026-03-01T20:00:00Z\n"},
		{name: "missing timestamp", content: "events:\n  - song_id: s1\n"},
		{name: "not yaml", content: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeHistory(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
