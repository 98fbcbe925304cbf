package spotify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moodfm/moodchain/internal/domain/song"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Plain track ID",
			input:    "4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "URL with multiple query params",
			input:    "https://open.spotify.com/track/abc123?si=xyz&utm_source=copy",
			expected: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractTrackID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractTrackID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFeatures_CacheOnly(t *testing.T) {
	energy := 0.8
	c := &Client{cache: map[string]song.Features{
		"s1": {Energy: &energy},
	}}

	f, ok := c.Features("s1")
	assert.True(t, ok)
	assert.Equal(t, 0.8, *f.Energy)

	_, ok = c.Features("unknown")
	assert.False(t, ok)

	assert.Equal(t, 1, c.Cached())
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}
