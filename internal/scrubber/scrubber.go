// Package scrubber is the core orchestrator: it owns the remote client,
// the shared storage handle, the composed suggestion provider, and the
// track cache, and drives both the automatic monitor loop and the
// ad-hoc processing commands through one shared per-track routine.
package scrubber

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/event"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrobbler"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/storage"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/trackcache"
)

// State is the scrubber's cycle state machine.
type State string

const (
	StateIdle     State = "idle"
	StateCycling  State = "cycling"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// ProcessingType tags which command routed a play through the per-track
// routine, carried on TrackProcessingStarted events and on the TracksFound
// and CycleCompleted events of an ad-hoc batch.
type ProcessingType string

const (
	ProcessingTrack  ProcessingType = "track"
	ProcessingArtist ProcessingType = "artist"
	ProcessingAlbum  ProcessingType = "album"
	ProcessingSearch ProcessingType = "search"
)

// Config is the subset of config.ScrubberConfig the core needs.
type Config struct {
	Interval                        time.Duration
	DryRun                          bool
	RequireConfirmation             bool
	RequireProposedRuleConfirmation bool
}

// Scrubber is the scrobble-history cleaning orchestrator.
type Scrubber struct {
	client   scrobbler.Client
	store    storage.Store
	provider suggest.Provider
	cache    trackcache.Provider
	bus      *event.Bus
	logger   *slog.Logger
	cfg      Config
	newID    func() string
	now      func() time.Time

	mu    sync.Mutex
	state State

	stopCh    chan struct{}
	stopOnce  sync.Once
	triggerCh chan struct{}
}

// New constructs a Scrubber and starts forwarding the remote client's
// own connection-lifecycle events onto the shared event bus. A nil
// logger defaults to slog.Default().
func New(client scrobbler.Client, store storage.Store, provider suggest.Provider, cache trackcache.Provider, bus *event.Bus, logger *slog.Logger, cfg Config) *Scrubber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scrubber{
		client:    client,
		store:     store,
		provider:  provider,
		cache:     cache,
		bus:       bus,
		logger:    logger,
		cfg:       cfg,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
		state:     StateIdle,
		stopCh:    make(chan struct{}),
		triggerCh: make(chan struct{}, 1),
	}
	go s.forwardClientEvents()
	return s
}

// forwardClientEvents republishes the remote client's connection-lifecycle
// events onto the scrubber's own bus, holding no back-reference to the
// client beyond the subscription channel it was handed at construction.
func (s *Scrubber) forwardClientEvents() {
	ch := s.client.Subscribe()
	if ch == nil {
		return
	}
	for ev := range ch {
		s.bus.Publish(event.Event{
			Type: event.Info,
			Data: map[string]any{
				"source":  "remote_client",
				"kind":    string(ev.Kind),
				"message": ev.Message,
			},
		})
	}
}

func (s *Scrubber) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// IsRunning reports whether a cycle is currently executing.
func (s *Scrubber) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateCycling
}

// Run blocks, executing cycles on a fixed interval, on demand (via
// TriggerImmediateProcessing), or until Stop is called or ctx is
// canceled. Emits Started on entry and Stopped on exit.
func (s *Scrubber) Run(ctx context.Context) {
	s.bus.Publish(event.Event{Type: event.Started})
	defer func() {
		s.setState(StateStopped)
		s.bus.Publish(event.Event{Type: event.Stopped})
	}()

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 300 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.setState(StateIdle)
		s.bus.Publish(event.Event{Type: event.Sleeping})

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.triggerCh:
			s.runCycle(ctx)
		}
	}
}

// TriggerImmediateProcessing pokes Run to start a cycle now, without
// waiting for the interval timer. Non-blocking: a pending trigger is not
// duplicated.
func (s *Scrubber) TriggerImmediateProcessing() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// TriggerRun refuses if a cycle is already in progress; otherwise it runs
// one cycle synchronously on the calling goroutine.
func (s *Scrubber) TriggerRun(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateCycling {
		s.mu.Unlock()
		return &ErrInvalidInput{Message: "a cycle is already in progress"}
	}
	s.mu.Unlock()

	s.runCycle(ctx)
	return nil
}

// Stop requests Run to exit after its current wait or in-flight cycle
// completes. Safe to call more than once.
func (s *Scrubber) Stop() {
	s.setState(StateStopping)
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SetTimestampToTrack manually sets the anchor to play's timestamp, the
// sole sanctioned way to move the anchor backward.
func (s *Scrubber) SetTimestampToTrack(ctx context.Context, play model.Play) error {
	if play.Timestamp == nil {
		return &ErrInvalidInput{Message: "play has no timestamp"}
	}
	ts := time.Unix(*play.Timestamp, 0).UTC()
	if err := s.store.SaveAnchor(ctx, model.Anchor{Timestamp: &ts}); err != nil {
		return err
	}
	s.bus.Publish(event.Event{Type: event.AnchorUpdated, Data: map[string]any{"anchor": ts.Unix(), "manual": true}})
	return nil
}
