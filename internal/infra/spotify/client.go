// Package spotify fetches audio features from the Spotify API so catalogs
// can be enriched without hand-entering energy and valence values.
package spotify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/moodfm/moodchain/internal/domain/song"
)

// Client wraps the Spotify Web API for audio feature lookups.
//
// Features reads from an in-memory cache only; call Warm first to resolve
// the song IDs a chain needs. This keeps the suggestion path free of
// network calls.
type Client struct {
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration

	mu    sync.RWMutex
	cache map[string]song.Features
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
}

// New creates a client using the client credentials flow. Audio features
// need no user authorization.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	httpClient := cc.Client(ctx)

	return &Client{
		client:     spotify.New(httpClient),
		maxRetries: 3,
		retryDelay: time.Second,
		cache:      make(map[string]song.Features),
	}, nil
}

// Warm fetches and caches audio features for the given track IDs.
// IDs may be plain Spotify IDs, URLs, or URIs. Unknown tracks are skipped.
func (c *Client) Warm(ctx context.Context, trackIDs []string) error {
	ids := make([]spotify.ID, 0, len(trackIDs))
	keyByID := make(map[spotify.ID]string, len(trackIDs))
	for _, raw := range trackIDs {
		id := spotify.ID(extractTrackID(raw))
		ids = append(ids, id)
		keyByID[id] = raw
	}

	// Spotify allows max 100 IDs per audio features request.
	for i := 0; i < len(ids); i += 100 {
		end := i + 100
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		var features []*spotify.AudioFeatures
		err := c.retry(func() error {
			f, err := c.client.GetAudioFeatures(ctx, batch...)
			if err != nil {
				return err
			}
			features = f
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "failed to get audio features")
		}

		c.mu.Lock()
		for _, f := range features {
			if f == nil {
				continue
			}
			key, ok := keyByID[f.ID]
			if !ok {
				key = string(f.ID)
			}
			energy := float64(f.Energy)
			valence := float64(f.Valence)
			bpm := float64(f.Tempo)
			c.cache[key] = song.Features{
				Energy:  &energy,
				Valence: &valence,
				BPM:     &bpm,
			}
		}
		c.mu.Unlock()
	}

	return nil
}

// WarmGenres fills in the genre for already-warmed tracks from their
// primary artist. Spotify attaches genres to artists, not tracks.
func (c *Client) WarmGenres(ctx context.Context, trackIDs []string) error {
	for _, raw := range trackIDs {
		id := spotify.ID(extractTrackID(raw))

		var full *spotify.FullTrack
		err := c.retry(func() error {
			t, err := c.client.GetTrack(ctx, id)
			if err != nil {
				return err
			}
			full = t
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "failed to get track %s", raw)
		}
		if len(full.Artists) == 0 {
			continue
		}

		var artist *spotify.FullArtist
		err = c.retry(func() error {
			a, err := c.client.GetArtist(ctx, full.Artists[0].ID)
			if err != nil {
				return err
			}
			artist = a
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "failed to get artist for track %s", raw)
		}
		if len(artist.Genres) == 0 {
			continue
		}

		c.mu.Lock()
		f := c.cache[raw]
		f.Genre = artist.Genres[0]
		c.cache[raw] = f
		c.mu.Unlock()
	}

	return nil
}

// Features implements suggest.FeatureProvider from the warmed cache.
func (c *Client) Features(songID string) (song.Features, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.cache[songID]
	return f, ok
}

// Cached returns how many songs have warmed features.
func (c *Client) Cached() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
