package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moodchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 5, cfg.Playback.RecentWindow)
	assert.Equal(t, 3, cfg.Suggest.Count)
	assert.Equal(t, 0.7, cfg.Learner.Alpha)
	assert.Equal(t, 2, cfg.History.MinPlayCount)
	assert.Zero(t, cfg.MaxGap())
	assert.False(t, cfg.Spotify.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  output: stderr
  level: debug
playback:
  recent_window: 10
  async_suggestions: true
suggest:
  count: 5
  styles:
    energy_flow:
      direction: descending
learner:
  alpha: 0.5
history:
  min_play_count: 3
  max_gap_minutes: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Playback.RecentWindow)
	assert.True(t, cfg.Playback.AsyncSuggestions)
	assert.Equal(t, 5, cfg.Suggest.Count)
	assert.Equal(t, "descending", cfg.Suggest.Styles["energy_flow"]["direction"])
	assert.Equal(t, 0.5, cfg.Learner.Alpha)
	assert.Equal(t, 3, cfg.History.MinPlayCount)
	assert.Equal(t, "30m0s", cfg.MaxGap().String())
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad log level", content: "logging:\n  level: loud\n"},
		{name: "alpha out of range", content: "learner:\n  alpha: 1.0\n"},
		{name: "negative min play count", content: "history:\n  min_play_count: -1\n"},
		{name: "spotify enabled without credentials", content: "spotify:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")

	path := writeConfig(t, `
spotify:
  enabled: true
  client_id: file-id
  client_secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Playback.RecentWindow)
}
