package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/moodfm/moodchain/internal/app/learner"
	"github.com/moodfm/moodchain/internal/app/suggest"
	"github.com/moodfm/moodchain/internal/domain/chain"
)

// Errors
var (
	ErrNoSongsInChain   = errors.New("chain has no songs")
	ErrSessionActive    = errors.New("session is already started")
	ErrNotPlaying       = errors.New("no active playback")
	ErrInvalidSelection = errors.New("selection is not among the offered candidates")
	ErrStaleSelection   = errors.New("session has already advanced past the expected song")
)

// DefaultRecentWindow is the size of the recently-played window.
const DefaultRecentWindow = 5

// Config holds session configuration.
type Config struct {
	RecentWindow     int  // Recently-played window size (default 5)
	SuggestionCount  int  // Suggestions to fetch per song (default engine's)
	AsyncSuggestions bool // Compute suggestions off the session goroutine
}

// Session manages playback of one chain. It owns its countdown timer and
// recently-played window, and holds a non-owning reference to the chain;
// structural chain edits must go through Edit so they serialize against
// playback transitions.
type Session struct {
	mu sync.Mutex

	cfg     Config
	engine  *suggest.Engine
	learner *learner.Learner
	clk     Clock

	chain          *chain.Chain
	state          State
	currentSongID  string
	recentlyPlayed []string
	suggestions    []suggest.Suggestion
	countdown      int

	// Every suggestion fetch carries a sequence number; a response is
	// applied only if it is still the latest issued. Guards against a
	// fetch completing after the current song already changed.
	suggestSeq uint64

	// Bumped whenever a countdown is cancelled or restarted. A ticker tick
	// that was already in flight when its countdown died carries the old
	// generation and is ignored.
	countdownGen uint64
	tickerCancel func()

	closed  bool
	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSession creates a playback session. clk may be nil, in which case the
// countdown only advances through explicit Tick calls.
func NewSession(engine *suggest.Engine, l *learner.Learner, clk Clock, cfg Config) *Session {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:            cfg,
		engine:         engine,
		learner:        l,
		clk:            clk,
		state:          StateIdle,
		recentlyPlayed: make([]string, 0, cfg.RecentWindow),
		eventCh:        make(chan Event, 16),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Events returns the event channel.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

// Start loads a chain and begins playback at startSongID, or at the first
// chain member when startSongID is empty.
func (s *Session) Start(c *chain.Chain, startSongID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePlaying || s.state == StateAwaitingSelection {
		return ErrSessionActive
	}
	if c.SongCount() == 0 {
		return errors.Wrapf(ErrNoSongsInChain, "chain %s", c.ID)
	}
	if startSongID == "" {
		startSongID = c.Songs[0]
	} else if !c.Contains(startSongID) {
		return errors.Wrapf(chain.ErrUnknownSong, "song %s", startSongID)
	}

	s.chain = c
	s.recentlyPlayed = s.recentlyPlayed[:0]
	s.suggestions = nil
	s.currentSongID = startSongID
	s.pushRecentLocked(startSongID)

	zlog.Info().Msgf("playback: session started: chain=%s song=%s style=%s", c.ID, startSongID, c.Style)

	s.enterPlayingLocked()
	return nil
}

// Tick decrements the auto-advance countdown by one second. At zero the top
// suggestion is selected automatically. Returns true while the countdown is
// still running.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

// tickFromTicker applies a ticker-driven tick only if the countdown that
// created the ticker is still the active one.
func (s *Session) tickFromTicker(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.countdownGen {
		return false
	}
	return s.tickLocked()
}

func (s *Session) tickLocked() bool {
	if s.state != StateAwaitingSelection || s.countdown == 0 {
		return false
	}

	s.countdown--
	s.sendEventLocked(Event{
		Type:      EventCountdownTick,
		SongID:    s.currentSongID,
		Countdown: s.countdown,
		State:     s.state,
	})
	if s.countdown > 0 {
		return true
	}

	if len(s.suggestions) == 0 {
		return false
	}
	target := s.suggestions[0].SongID
	zlog.Debug().Msgf("playback: auto-advancing: from=%s to=%s", s.currentSongID, target)
	if err := s.selectLocked(target, true); err != nil {
		zlog.Warn().Msgf("playback: auto-advance failed: %v", err)
	}
	return false
}

// SelectNext applies a manual selection. fromSongID is the current song the
// caller based its choice on; if the session has already advanced past it
// the call is rejected with ErrStaleSelection instead of being reapplied.
func (s *Session) SelectNext(fromSongID, toSongID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingSelection && s.state != StatePlaying {
		return ErrNotPlaying
	}
	if fromSongID != s.currentSongID {
		return errors.Wrapf(ErrStaleSelection, "expected %s, current is %s", fromSongID, s.currentSongID)
	}
	if !s.chain.Contains(toSongID) {
		return errors.Wrapf(ErrInvalidSelection, "song %s is not a chain member", toSongID)
	}
	offered := false
	for _, sg := range s.suggestions {
		if sg.SongID == toSongID {
			offered = true
			break
		}
	}
	if !offered {
		return errors.Wrapf(ErrInvalidSelection, "song %s", toSongID)
	}

	return s.selectLocked(toSongID, false)
}

// Stop halts playback and clears transient state. Valid from any non-idle
// state.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return ErrNotPlaying
	}
	s.stopLocked()
	return nil
}

// Edit applies a structural chain edit serialized against playback. The
// edit function must leave the chain valid or return an error without
// partial changes (chain operations are validate-then-apply). An edit that
// removes the current song forces the session into Stopped.
func (s *Session) Edit(fn func(c *chain.Chain) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chain == nil {
		return ErrNotPlaying
	}
	if err := fn(s.chain); err != nil {
		return err
	}

	if s.currentSongID != "" && !s.chain.Contains(s.currentSongID) {
		zlog.Info().Msgf("playback: current song %s removed by edit, stopping", s.currentSongID)
		s.stopLocked()
		return nil
	}

	// Suggestions may now reference removed songs or stale weights;
	// refresh while a selection is pending.
	if s.state == StateAwaitingSelection {
		s.cancelCountdownLocked()
		s.state = StatePlaying
		s.fetchSuggestionsLocked()
	}
	return nil
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentSongID returns the current song, or "" if none.
func (s *Session) CurrentSongID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSongID
}

// Suggestions returns a copy of the pending suggestions.
func (s *Session) Suggestions() []suggest.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]suggest.Suggestion(nil), s.suggestions...)
}

// Countdown returns the seconds remaining until auto-selection; 0 means no
// active timer.
func (s *Session) Countdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown
}

// RecentlyPlayed returns a copy of the recently-played window, oldest first.
func (s *Session) RecentlyPlayed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recentlyPlayed...)
}

// ChainSnapshot returns a deep copy of the session's chain for persistence.
func (s *Session) ChainSnapshot() *chain.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chain == nil {
		return nil
	}
	return s.chain.Clone()
}

// Close releases session resources. Events are dropped from here on; the
// channel close happens under the lock so in-flight sends cannot race it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelCountdownLocked()
	s.cancel()
	close(s.eventCh)
}

// enterPlayingLocked marks the current song as playing and kicks off a
// suggestion fetch. Must be called with lock held.
func (s *Session) enterPlayingLocked() {
	s.state = StatePlaying
	s.suggestions = nil
	s.countdown = 0
	s.sendEventLocked(Event{
		Type:   EventSongStarted,
		SongID: s.currentSongID,
		State:  s.state,
	})
	s.fetchSuggestionsLocked()
}

// fetchSuggestionsLocked requests suggestions for the current song, tagged
// with the next sequence number. Must be called with lock held.
func (s *Session) fetchSuggestionsLocked() {
	s.suggestSeq++
	seq := s.suggestSeq

	if !s.cfg.AsyncSuggestions {
		sugs, err := s.engine.Suggest(s.chain, s.currentSongID, s.recentlyPlayed, s.cfg.SuggestionCount)
		if err != nil {
			zlog.Warn().Msgf("playback: suggestion fetch failed: %v", err)
			sugs = nil
		}
		s.applySuggestionsLocked(seq, sugs)
		return
	}

	// The chain may be edited while the fetch is in flight; compute on a
	// snapshot and let the sequence check discard stale results.
	snapshot := s.chain.Clone()
	current := s.currentSongID
	recent := append([]string(nil), s.recentlyPlayed...)
	count := s.cfg.SuggestionCount

	go func() {
		sugs, err := s.engine.Suggest(snapshot, current, recent, count)
		if err != nil {
			zlog.Warn().Msgf("playback: suggestion fetch failed: %v", err)
			sugs = nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.applySuggestionsLocked(seq, sugs)
	}()
}

// applySuggestionsLocked installs a fetch result unless it is stale. Must
// be called with lock held.
func (s *Session) applySuggestionsLocked(seq uint64, sugs []suggest.Suggestion) {
	if seq != s.suggestSeq {
		zlog.Debug().Msgf("playback: discarding stale suggestions: seq=%d latest=%d", seq, s.suggestSeq)
		return
	}
	if s.state != StatePlaying {
		return
	}

	s.suggestions = sugs
	s.state = StateAwaitingSelection

	// No candidate to select: auto-advance is a no-op.
	s.countdown = 0
	if s.chain.AutoAdvance && len(sugs) > 0 {
		s.countdown = s.chain.AutoAdvanceDelaySeconds
	}
	s.sendEventLocked(Event{
		Type:        EventSuggestionsReady,
		SongID:      s.currentSongID,
		Suggestions: append([]suggest.Suggestion(nil), sugs...),
		Countdown:   s.countdown,
		State:       s.state,
	})
	if s.countdown > 0 {
		s.startCountdownLocked()
	}
}

// selectLocked advances to the given song: cancels the countdown,
// reinforces the taken edge, updates the recently-played window and
// re-enters Playing. Must be called with lock held.
func (s *Session) selectLocked(toSongID string, auto bool) error {
	s.cancelCountdownLocked()

	from := s.currentSongID
	if err := s.learner.RecordTransitionPlayed(s.chain, from, toSongID); err != nil {
		return errors.Wrap(err, "failed to reinforce transition")
	}

	s.pushRecentLocked(toSongID)
	s.currentSongID = toSongID

	eventType := EventSelectionMade
	if auto {
		eventType = EventAutoAdvanced
	}
	s.sendEventLocked(Event{
		Type:       eventType,
		SongID:     toSongID,
		FromSongID: from,
		State:      StatePlaying,
	})

	s.enterPlayingLocked()
	return nil
}

// stopLocked cancels the timer and clears transient playback state. Must be
// called with lock held.
func (s *Session) stopLocked() {
	s.cancelCountdownLocked()
	s.state = StateStopped
	s.currentSongID = ""
	s.suggestions = nil
	s.recentlyPlayed = s.recentlyPlayed[:0]
	s.countdown = 0
	s.sendEventLocked(Event{Type: EventStopped, State: s.state})
}

// pushRecentLocked appends a song to the recently-played window,
// deduplicating and evicting the oldest entry past the window size. Must be
// called with lock held.
func (s *Session) pushRecentLocked(songID string) {
	for i, id := range s.recentlyPlayed {
		if id == songID {
			s.recentlyPlayed = append(s.recentlyPlayed[:i], s.recentlyPlayed[i+1:]...)
			break
		}
	}
	s.recentlyPlayed = append(s.recentlyPlayed, songID)
	if len(s.recentlyPlayed) > s.cfg.RecentWindow {
		s.recentlyPlayed = s.recentlyPlayed[1:]
	}
}

// startCountdownLocked starts the one-tick-per-second countdown goroutine.
// Must be called with lock held.
func (s *Session) startCountdownLocked() {
	s.cancelCountdownLocked()
	if s.clk == nil {
		return // countdown driven by explicit Tick calls
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ticker := s.clk.NewTicker(time.Second)
	gen := s.countdownGen

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if !s.tickFromTicker(gen) {
					return
				}
			}
		}
	}()

	s.tickerCancel = cancel
}

// cancelCountdownLocked cancels any running countdown goroutine and
// invalidates ticks it already received. Must be called with lock held.
func (s *Session) cancelCountdownLocked() {
	s.countdownGen++
	if s.tickerCancel != nil {
		s.tickerCancel()
		s.tickerCancel = nil
	}
}

// sendEventLocked sends an event without blocking. Must be called with lock
// held.
func (s *Session) sendEventLocked(e Event) {
	if s.closed {
		return
	}
	select {
	case s.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
