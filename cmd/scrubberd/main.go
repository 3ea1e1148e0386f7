// Command scrubberd runs the scrobble-history cleaner: the monitor loop by
// default, or one of a handful of ad-hoc processing/inspection subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/config"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/database"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/encryption"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/event"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/lastfmclient"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/logging"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/musicbrainz"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrobbler"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrubber"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/storage"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest/authority"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest/llm"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest/rules"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/trackcache"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps the unrecoverable error classes spec.md names
// (InvalidInput, fatal StorageIO at startup) to a nonzero exit code; any
// other error also exits nonzero, just without a distinguished code.
func exitCodeFor(err error) int {
	var invalid *scrubber.ErrInvalidInput
	if asInvalidInput(err, &invalid) {
		return 2
	}
	return 1
}

func asInvalidInput(err error, target **scrubber.ErrInvalidInput) bool {
	for err != nil {
		if inv, ok := err.(*scrubber.ErrInvalidInput); ok {
			*target = inv
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func run() error {
	configPath := os.Getenv("SCRUBBER_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logMgr, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logMgr.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Storage.StateFile)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := storage.NewSQLiteStore(db)
	if err := seedDefaultRulesIfEmpty(context.Background(), store); err != nil {
		return fmt.Errorf("seeding default rules: %w", err)
	}

	client := lastfmclient.New(lastfmclient.Config{
		APIKey:   cfg.LastFM.APIKey,
		Username: cfg.LastFM.Username,
		Password: resolveLastFMPassword(cfg, logger),
	})

	provider := buildSuggestionProvider(cfg, store, logger)
	cache := trackcache.NewPassthroughProvider()
	bus := event.NewBus(logger, 1000)
	go bus.Start()
	defer bus.Stop()

	s := scrubber.New(client, store, provider, cache, bus, logger, scrubber.Config{
		Interval:                        cfg.Scrubber.Interval,
		DryRun:                          cfg.Scrubber.DryRun,
		RequireConfirmation:             cfg.Scrubber.RequireConfirmation,
		RequireProposedRuleConfirmation: cfg.Scrubber.RequireProposedRuleConfirmation,
	})

	args := os.Args[1:]
	if len(args) == 0 {
		return runMonitorLoop(s, configPath, logMgr, logger)
	}

	ctx := context.Background()
	switch args[0] {
	case "run":
		return runMonitorLoop(s, configPath, logMgr, logger)
	case "once":
		return s.TriggerRun(ctx)
	case "last-n":
		n, err := requireIntArg(args, "last-n")
		if err != nil {
			return err
		}
		return s.ProcessLastNTracks(ctx, n)
	case "artist":
		artist, err := requireStringArg(args, "artist")
		if err != nil {
			return err
		}
		return s.ProcessArtist(ctx, artist)
	case "album":
		if len(args) < 3 {
			return &scrubber.ErrInvalidInput{Message: "album requires <album> <artist>"}
		}
		return s.ProcessAlbum(ctx, args[1], args[2])
	case "search":
		query, err := requireStringArg(args, "search")
		if err != nil {
			return err
		}
		return s.ProcessSearch(ctx, query)
	case "search-albums":
		query, err := requireStringArg(args, "search-albums")
		if err != nil {
			return err
		}
		return s.ProcessSearchAlbums(ctx, query)
	case "set-anchor":
		return runSetAnchor(ctx, client, s, args)
	case "set-anchor-timestamp":
		return runSetAnchorTimestamp(ctx, store, args)
	case "show-cache":
		return runShowCache(cache)
	case "show-rules":
		return runShowRules(ctx, store)
	case "show-recent-tracks":
		return runShowRecentTracks(ctx, client)
	case "web":
		return &scrubber.ErrInvalidInput{Message: "web subcommand not supported in this build"}
	default:
		return &scrubber.ErrInvalidInput{Message: "unknown subcommand: " + args[0]}
	}
}

func runMonitorLoop(s *scrubber.Scrubber, configPath string, logMgr *logging.Manager, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchConfigFile(ctx, configPath, logMgr, logger)

	logger.Info("scrubberd starting")
	s.Run(ctx)
	logger.Info("scrubberd stopped")
	return nil
}

func requireIntArg(args []string, name string) (int, error) {
	if len(args) < 2 {
		return 0, &scrubber.ErrInvalidInput{Message: name + " requires an argument"}
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, &scrubber.ErrInvalidInput{Message: name + " argument must be an integer"}
	}
	return n, nil
}

func requireStringArg(args []string, name string) (string, error) {
	if len(args) < 2 || args[1] == "" {
		return "", &scrubber.ErrInvalidInput{Message: name + " requires a non-empty argument"}
	}
	return args[1], nil
}

func runSetAnchor(ctx context.Context, client scrobbler.Client, s *scrubber.Scrubber, args []string) error {
	if len(args) < 3 {
		return &scrubber.ErrInvalidInput{Message: "set-anchor requires <track> <artist>"}
	}
	track, artist := args[1], args[2]

	pager, err := client.SearchTracks(ctx, track)
	if err != nil {
		return err
	}
	items, _, err := pager.Next(ctx)
	if err != nil {
		return err
	}
	for _, play := range items {
		if strings.EqualFold(play.Artist, artist) {
			return s.SetTimestampToTrack(ctx, play)
		}
	}
	return &scrubber.ErrInvalidInput{Message: "no matching play found for " + track + " by " + artist}
}

func runSetAnchorTimestamp(ctx context.Context, store storage.Store, args []string) error {
	if len(args) < 2 {
		return &scrubber.ErrInvalidInput{Message: "set-anchor-timestamp requires a unix timestamp"}
	}
	unix, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return &scrubber.ErrInvalidInput{Message: "set-anchor-timestamp argument must be a unix timestamp"}
	}
	ts := time.Unix(unix, 0).UTC()
	return store.SaveAnchor(ctx, model.Anchor{Timestamp: &ts})
}

func runShowCache(cache trackcache.Provider) error {
	plays := cache.GetAllRecentTracks()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(plays)
}

func runShowRules(ctx context.Context, store storage.Store) error {
	recs, err := store.LoadRewriteRules(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func runShowRecentTracks(ctx context.Context, client scrobbler.Client) error {
	pager, err := client.RecentTracks(ctx)
	if err != nil {
		return err
	}
	items, _, err := pager.Next(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// buildSuggestionProvider composes the enabled suggestion providers in a
// fixed order (rules, authority, llm) behind a Disjunction, matching
// spec.md's provider-registration-order tie-break for concatenated
// suggestions.
func buildSuggestionProvider(cfg *config.Config, store storage.Store, logger *slog.Logger) suggest.Provider {
	var providers []suggest.Provider

	if cfg.Providers.EnableRewriteRules {
		providers = append(providers, rules.New(ruleSourceAdapter{store: store}))
	}
	if cfg.Providers.EnableMusicBrainz {
		mb := musicbrainz.New(logger)
		providers = append(providers, authority.New(mb, authority.Config{
			OfficialOnly:        cfg.Providers.MusicBrainz.OfficialOnly,
			MaxResults:          cfg.Providers.MusicBrainz.MaxResults,
			ConfidenceThreshold: cfg.Providers.MusicBrainz.ConfidenceThreshold,
			ReleaseFilters:      cfg.Providers.MusicBrainz.ReleaseFilters,
		}))
	}
	if cfg.Providers.EnableOpenAI {
		providers = append(providers, llm.New(llm.Config{
			APIKey:       cfg.Providers.OpenAI.APIKey,
			Model:        cfg.Providers.OpenAI.Model,
			SystemPrompt: cfg.Providers.OpenAI.SystemPrompt,
		}, logger))
	}

	return suggest.NewDisjunction(logger, providers...)
}

// ruleSourceAdapter converts storage.Store's ID-tagged RuleRecord slice to
// the plain rewrite.RewriteRule slice rules.Provider consumes.
type ruleSourceAdapter struct {
	store storage.Store
}

func (a ruleSourceAdapter) LoadRewriteRules(ctx context.Context) ([]rewrite.RewriteRule, error) {
	recs, err := a.store.LoadRewriteRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]rewrite.RewriteRule, len(recs))
	for i, r := range recs {
		out[i] = r.Rule
	}
	return out, nil
}

func seedDefaultRulesIfEmpty(ctx context.Context, store storage.Store) error {
	existing, err := store.LoadRewriteRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return store.SaveRewriteRules(ctx, defaultRuleRecords())
}

func defaultRuleRecords() []storage.RuleRecord {
	defaults := rewrite.DefaultRules()
	out := make([]storage.RuleRecord, len(defaults))
	for i, r := range defaults {
		out[i] = storage.RuleRecord{ID: "default-" + strconv.Itoa(i+1), Rule: r}
	}
	return out
}

// resolveLastFMPassword decrypts cfg.LastFM.Password when it carries the
// "enc:" prefix this project uses to mark passphrase-encrypted config
// values; otherwise it is used as plaintext.
func resolveLastFMPassword(cfg *config.Config, logger *slog.Logger) string {
	const encPrefix = "enc:"
	if cfg.LastFM.Password == "" {
		return promptLastFMPassword(logger)
	}
	if !strings.HasPrefix(cfg.LastFM.Password, encPrefix) {
		return cfg.LastFM.Password
	}
	if cfg.Encryption.Passphrase == "" {
		logger.Warn("lastfm.password is encrypted but encryption.passphrase is not set")
		return ""
	}
	enc, err := encryption.NewPassphraseEncryptor(cfg.Encryption.Passphrase)
	if err != nil {
		logger.Error("building passphrase encryptor", "error", err)
		return ""
	}
	plain, err := enc.Decrypt(strings.TrimPrefix(cfg.LastFM.Password, encPrefix))
	if err != nil {
		logger.Error("decrypting lastfm.password", "error", err)
		return ""
	}
	return plain
}

// promptLastFMPassword reads the password from the controlling terminal
// without echoing it, for the common case where the operator would rather
// not put a plaintext password in a config file or environment variable.
// Returns empty outside of an interactive terminal.
func promptLastFMPassword(logger *slog.Logger) string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ""
	}
	fmt.Fprint(os.Stderr, "Last.fm password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		logger.Error("reading password from terminal", "error", err)
		return ""
	}
	return string(pw)
}
