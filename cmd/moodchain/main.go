// Package main provides the moodchain CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/moodfm/moodchain/internal/app/history"
	"github.com/moodfm/moodchain/internal/app/learner"
	"github.com/moodfm/moodchain/internal/app/playback"
	"github.com/moodfm/moodchain/internal/app/suggest"
	"github.com/moodfm/moodchain/internal/domain/chain"
	"github.com/moodfm/moodchain/internal/infra/catalog"
	"github.com/moodfm/moodchain/internal/infra/clock"
	"github.com/moodfm/moodchain/internal/infra/config"
	"github.com/moodfm/moodchain/internal/infra/histfile"
	"github.com/moodfm/moodchain/internal/infra/logger"
	"github.com/moodfm/moodchain/internal/infra/spotify"
	"github.com/moodfm/moodchain/internal/infra/store"
)

var (
	app        = kingpin.New("moodchain", "Mood chain transition and playback engine")
	configPath = app.Flag("config", "Path to config file").String()
	dataDir    = app.Flag("data-dir", "Chain store directory").Default("data/chains").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// build command
	buildCmd     = app.Command("build", "Build a chain from a listening history file")
	buildHistory = buildCmd.Arg("history", "Path to history YAML file").Required().String()
	buildName    = buildCmd.Flag("name", "Chain name").Default("History chain").String()
	buildDesc    = buildCmd.Flag("description", "Chain description").String()

	// list command
	listCmd = app.Command("list", "List stored chains")

	// show command
	showCmd   = app.Command("show", "Show a chain's songs and transitions")
	showChain = showCmd.Arg("chain-id", "Chain ID").Required().String()

	// suggest command
	suggestCmd     = app.Command("suggest", "Suggest next songs from a chain position")
	suggestChain   = suggestCmd.Arg("chain-id", "Chain ID").Required().String()
	suggestFrom    = suggestCmd.Arg("song-id", "Current song ID").Required().String()
	suggestCatalog = suggestCmd.Flag("catalog", "Path to song catalog YAML file").String()
	suggestRecent  = suggestCmd.Flag("recent", "Recently played song ID (repeatable)").Strings()
	suggestCount   = suggestCmd.Flag("count", "Number of suggestions").Int()

	// play command
	playCmd     = app.Command("play", "Run an interactive playback session")
	playChain   = playCmd.Arg("chain-id", "Chain ID").Required().String()
	playCatalog = playCmd.Flag("catalog", "Path to song catalog YAML file").String()
	playStart   = playCmd.Flag("start", "Starting song ID (default: first song)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	st, err := store.NewFileStore(*dataDir)
	if err != nil {
		zlog.Fatal().Msgf("Failed to open chain store: %v", err)
	}

	switch command {
	case buildCmd.FullCommand():
		err = runBuild(cfg, st)
	case listCmd.FullCommand():
		err = runList(st)
	case showCmd.FullCommand():
		err = runShow(st)
	case suggestCmd.FullCommand():
		err = runSuggest(cfg, st)
	case playCmd.FullCommand():
		err = runPlay(cfg, st)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		zlog.Debug().Msg("No config file specified, using defaults")
		return config.Default(), nil
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

func runBuild(cfg *config.Config, st *store.FileStore) error {
	src, err := histfile.Load(*buildHistory)
	if err != nil {
		return err
	}
	zlog.Info().Msgf("Loaded %d history events", src.Len())

	agg := history.NewAggregator(history.Options{
		Name:         *buildName,
		Description:  *buildDesc,
		MinPlayCount: cfg.History.MinPlayCount,
		MaxGap:       cfg.MaxGap(),
	})

	c, err := agg.BuildFromSource(context.Background(), src, "", time.Time{}, time.Time{})
	if err != nil {
		return err
	}

	if err := st.Save(c); err != nil {
		return err
	}

	fmt.Printf("Built chain %s: %d songs, %d transitions\n", c.ID, c.SongCount(), len(c.Transitions))
	return nil
}

func runList(st *store.FileStore) error {
	ids, err := st.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No chains stored")
		return nil
	}
	for _, id := range ids {
		c, err := st.Load(id)
		if err != nil {
			fmt.Printf("  %s: (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("  %s: %s (%d songs, style: %s, played %d times)\n",
			c.ID, c.Name, c.SongCount(), c.Style, c.PlayCount)
	}
	return nil
}

func runShow(st *store.FileStore) error {
	c, err := st.Load(*showChain)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", c.ID, c.Name)
	if c.Description != "" {
		fmt.Printf("  %s\n", c.Description)
	}
	fmt.Printf("  Style: %s, auto-advance: %v (%ds)\n", c.Style, c.AutoAdvance, c.AutoAdvanceDelaySeconds)
	if len(c.MoodTags) > 0 {
		fmt.Printf("  Mood tags: %s\n", strings.Join(c.MoodTags, ", "))
	}
	fmt.Println("  Songs:")
	for i, id := range c.Songs {
		fmt.Printf("    %2d. %s\n", i+1, id)
		for _, e := range c.OutgoingEdges(id) {
			fmt.Printf("        -> %s (weight %.2f, played %d)\n", e.To, e.Weight, e.PlayCount)
		}
	}
	return nil
}

func runSuggest(cfg *config.Config, st *store.FileStore) error {
	c, err := st.Load(*suggestChain)
	if err != nil {
		return err
	}

	provider, err := featureProvider(cfg, *suggestCatalog, c)
	if err != nil {
		return err
	}

	engine, err := suggest.NewEngine(provider, cfg.Suggest.Styles)
	if err != nil {
		return err
	}

	count := cfg.Suggest.Count
	if *suggestCount > 0 {
		count = *suggestCount
	}

	sugs, err := engine.Suggest(c, *suggestFrom, *suggestRecent, count)
	if err != nil {
		return err
	}

	if len(sugs) == 0 {
		fmt.Println("No suggestions available")
		return nil
	}
	for i, s := range sugs {
		fmt.Printf("  %d. %s (score %.3f) - %s\n", i+1, s.SongID, s.Score, s.Reason)
	}
	return nil
}

func runPlay(cfg *config.Config, st *store.FileStore) error {
	c, err := st.Load(*playChain)
	if err != nil {
		return err
	}

	provider, err := featureProvider(cfg, *playCatalog, c)
	if err != nil {
		return err
	}

	engine, err := suggest.NewEngine(provider, cfg.Suggest.Styles)
	if err != nil {
		return err
	}

	lrn, err := learner.NewWithAlpha(cfg.Learner.Alpha)
	if err != nil {
		return err
	}

	sess := playback.NewSession(engine, lrn, clock.Wall{}, playback.Config{
		RecentWindow:     cfg.Playback.RecentWindow,
		SuggestionCount:  cfg.Suggest.Count,
		AsyncSuggestions: cfg.Playback.AsyncSuggestions,
	})
	defer sess.Close()

	go printEvents(sess.Events())

	if err := sess.Start(c, *playStart); err != nil {
		return err
	}

	fmt.Println("Commands: <number> select suggestion, s stop, q quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "q":
			if sess.State() != playback.StateIdle && sess.State() != playback.StateStopped {
				_ = sess.Stop()
			}
			// Persist the reinforced weights before leaving.
			return st.Save(sess.ChainSnapshot())
		case line == "s":
			if err := sess.Stop(); err != nil {
				fmt.Printf("Cannot stop: %v\n", err)
			}
		case line == "":
		default:
			n, err := strconv.Atoi(line)
			if err != nil {
				fmt.Println("Enter a suggestion number, s, or q")
				continue
			}
			sugs := sess.Suggestions()
			if n < 1 || n > len(sugs) {
				fmt.Printf("Pick between 1 and %d\n", len(sugs))
				continue
			}
			if err := sess.SelectNext(sess.CurrentSongID(), sugs[n-1].SongID); err != nil {
				if errors.Is(err, playback.ErrStaleSelection) {
					fmt.Println("Too late, the song already advanced")
				} else {
					fmt.Printf("Cannot select: %v\n", err)
				}
			}
		}
	}
	return scanner.Err()
}

// printEvents renders session events for the interactive loop.
func printEvents(events <-chan playback.Event) {
	for e := range events {
		switch e.Type {
		case playback.EventSongStarted:
			fmt.Printf("\n♪ Now playing: %s\n", e.SongID)
		case playback.EventSuggestionsReady:
			if len(e.Suggestions) == 0 {
				fmt.Println("No transitions from here")
				continue
			}
			fmt.Println("Up next?")
			for i, s := range e.Suggestions {
				fmt.Printf("  %d. %s (score %.3f) - %s\n", i+1, s.SongID, s.Score, s.Reason)
			}
			if e.Countdown > 0 {
				fmt.Printf("Auto-advancing in %ds\n", e.Countdown)
			}
		case playback.EventCountdownTick:
			fmt.Printf("  %ds...\n", e.Countdown)
		case playback.EventAutoAdvanced:
			fmt.Printf("Auto-advanced %s -> %s\n", e.FromSongID, e.SongID)
		case playback.EventSelectionMade:
			fmt.Printf("Selected %s -> %s\n", e.FromSongID, e.SongID)
		case playback.EventStopped:
			fmt.Println("Playback stopped")
		}
	}
}

// featureProvider picks the audio feature source: the Spotify API when
// enabled, otherwise a local catalog file.
func featureProvider(cfg *config.Config, catalogPath string, c *chain.Chain) (suggest.FeatureProvider, error) {
	if cfg.Spotify.Enabled {
		zlog.Info().Msg("Using Spotify audio features")
		ctx := context.Background()
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		if err != nil {
			return nil, err
		}
		if err := client.Warm(ctx, c.Songs); err != nil {
			return nil, errors.Wrap(err, "failed to warm audio features")
		}
		if err := client.WarmGenres(ctx, c.Songs); err != nil {
			zlog.Warn().Msgf("Failed to resolve genres: %v", err)
		}
		return client, nil
	}

	if catalogPath == "" {
		return nil, errors.New("a catalog file is required (--catalog) unless Spotify is enabled")
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("Loaded catalog with %d songs", cat.Len())
	return cat, nil
}
