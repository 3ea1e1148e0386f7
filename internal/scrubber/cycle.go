package scrubber

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/event"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/storage"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/trackcache"
)

// runCycle is the monitor cycle: establish or load the anchor, refresh the
// track cache, dispatch every newly-seen play oldest-first through the
// per-track routine, then advance the anchor past the last one processed.
func (s *Scrubber) runCycle(ctx context.Context) {
	s.setState(StateCycling)
	defer s.setState(StateIdle)

	s.bus.Publish(event.Event{Type: event.CycleStarted})

	anchor, err := s.store.LoadAnchor(ctx)
	if err != nil {
		s.logger.Error("load anchor failed", "error", err)
		return
	}

	if anchor.Timestamp == nil {
		initialized, err := s.initializeAnchor(ctx)
		if err != nil {
			s.logger.Error("initialize anchor failed", "error", err)
			return
		}
		if initialized == nil {
			s.logger.Warn("no timestamped plays available to initialize anchor")
			return
		}
		anchor.Timestamp = initialized
		// Fall through: the cache refresh below will find zero plays
		// strictly newer than the baseline just established, so this
		// first cycle still closes out with its own TracksFound{0} and
		// CycleCompleted{0,0} instead of exiting silently.
	}

	pager, err := s.client.RecentTracks(ctx)
	if err != nil {
		s.logger.Error("fetch recent tracks failed", "error", err)
		return
	}
	if err := s.cache.UpdateCacheFromAPI(ctx, trackcache.NewClientFetcher(pager), anchor.Timestamp); err != nil {
		s.logger.Error("refresh recent-tracks cache failed", "error", err)
		return
	}

	// GetAllRecentTracks is already newest-first and already bounded to
	// plays strictly newer than anchor (fetchPages' stop-early hint);
	// reverse to the oldest-first dispatch order the per-track routine
	// requires.
	selected := oldestFirst(s.cache.GetAllRecentTracks())

	s.bus.Publish(event.Event{Type: event.TracksFound, Data: map[string]any{
		"count":  len(selected),
		"anchor": anchor.Timestamp.Unix(),
	}})

	if len(selected) == 0 {
		s.bus.Publish(event.Event{Type: event.CycleCompleted, Data: map[string]any{"processed": 0, "edits": 0}})
		return
	}

	for i, play := range selected {
		if err := s.processOne(ctx, play, i, len(selected), ProcessingTrack); err != nil {
			s.logger.Error("storage failure mid-cycle, aborting without advancing anchor", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	last := selected[len(selected)-1]
	if last.Timestamp != nil {
		ts := time.Unix(*last.Timestamp, 0).UTC()
		if err := s.store.SaveAnchor(ctx, model.Anchor{Timestamp: &ts}); err != nil {
			s.logger.Error("persist anchor failed", "error", err)
			return
		}
		s.bus.Publish(event.Event{Type: event.AnchorUpdated, Data: map[string]any{"anchor": ts.Unix()}})
	}

	s.bus.Publish(event.Event{Type: event.CycleCompleted, Data: map[string]any{"processed": len(selected)}})
}

// initializeAnchor handles the first-ever cycle: fetch the most recent
// play and save its timestamp as the anchor, establishing a baseline that
// avoids unbounded backfill on a fresh install. Returns a nil timestamp
// (with a nil error) if the remote has no timestamped plays at all; the
// caller falls through to the normal selection step otherwise, which will
// find zero plays strictly newer than this baseline.
func (s *Scrubber) initializeAnchor(ctx context.Context) (*time.Time, error) {
	pager, err := s.client.RecentTracks(ctx)
	if err != nil {
		return nil, err
	}
	items, _, err := pager.Next(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0].Timestamp == nil {
		return nil, nil
	}

	ts := time.Unix(*items[0].Timestamp, 0).UTC()
	if err := s.store.SaveAnchor(ctx, model.Anchor{Timestamp: &ts}); err != nil {
		return nil, err
	}
	s.bus.Publish(event.Event{Type: event.AnchorUpdated, Data: map[string]any{"anchor": ts.Unix(), "initial": true}})
	return &ts, nil
}

// oldestFirst reverses a newest-first slice without mutating it.
func oldestFirst(plays []model.Play) []model.Play {
	out := make([]model.Play, len(plays))
	for i, p := range plays {
		out[len(plays)-1-i] = p
	}
	return out
}

// loadPendingContexts loads the pending-edits and pending-rules records
// concurrently, joining both before the per-track analysis call.
func (s *Scrubber) loadPendingContexts(ctx context.Context) ([]model.PendingEdit, []model.PendingRewriteRule, error) {
	var edits []model.PendingEdit
	var rules []model.PendingRewriteRule

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.store.LoadPendingEdits(gctx)
		edits = e
		return err
	})
	g.Go(func() error {
		r, err := s.store.LoadPendingRewriteRules(gctx)
		rules = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return edits, rules, nil
}

// processOne is the per-track routine shared by the monitor cycle and
// every ad-hoc command. A non-nil error signals a storage failure, which
// aborts the enclosing cycle without advancing the anchor; edit-commit
// and provider failures are absorbed (logged and turned into events).
func (s *Scrubber) processOne(ctx context.Context, play model.Play, idx, batchSize int, kind ProcessingType) error {
	s.bus.Publish(event.Event{Type: event.TrackProcessingStarted, Data: map[string]any{
		"index":           idx,
		"batch_size":      batchSize,
		"processing_type": string(kind),
		"track_name":      play.Name,
		"artist_name":     play.Artist,
	}})
	defer s.bus.Publish(event.Event{Type: event.TrackProcessingCompleted, Data: map[string]any{"index": idx}})

	pendingEdits, pendingRules, err := s.loadPendingContexts(ctx)
	if err != nil {
		return err
	}

	suggestions, err := suggest.AnalyzeOne(ctx, s.provider, play, pendingEdits, pendingRules)
	if err != nil {
		// Retry once without the pending context before giving up.
		suggestions, err = suggest.AnalyzeOne(ctx, s.provider, play, nil, nil)
		if err != nil {
			s.logger.Warn("suggestion analysis failed", "track", play.Name, "artist", play.Artist, "error", err)
			return nil
		}
	}

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	globalRequireConfirmation := settings.RequireConfirmation || s.cfg.RequireConfirmation
	requireRuleConfirmation := settings.RequireProposedRuleConfirmation || s.cfg.RequireProposedRuleConfirmation
	dryRun := settings.DryRun || s.cfg.DryRun

	var editsApplied, editsPending int
	var ruleProposed bool

	for _, sg := range suggestions {
		switch sg.Kind {
		case model.SuggestionEdit:
			applied, pending, err := s.applyEditSuggestion(ctx, sg, idx, dryRun, globalRequireConfirmation, pendingEdits)
			if err != nil {
				return err
			}
			editsApplied += applied
			editsPending += pending

		case model.SuggestionProposeRule:
			proposed, err := s.applyRuleSuggestion(ctx, sg, play, idx, requireRuleConfirmation, pendingRules)
			if err != nil {
				return err
			}
			ruleProposed = ruleProposed || proposed

		case model.SuggestionNoAction:
		}
	}

	s.bus.Publish(event.Event{Type: event.TrackProcessed, Data: map[string]any{
		"index":         idx,
		"edits_applied": editsApplied,
		"edits_pending": editsPending,
		"rule_proposed": ruleProposed,
	}})
	return nil
}

func (s *Scrubber) applyEditSuggestion(ctx context.Context, sg model.Suggestion, idx int, dryRun, requiresConfirmation bool, pendingEdits []model.PendingEdit) (applied, pending int, err error) {
	if sg.Edit == nil || !editHasChanges(*sg.Edit) {
		return 0, 0, nil
	}

	if dryRun {
		s.bus.Publish(event.Event{Type: event.TrackSkipped, Data: map[string]any{"reason": "dry_run", "index": idx}})
		return 0, 0, nil
	}

	if requiresConfirmation || sg.RequiresConfirmation {
		p := model.NewPendingEdit(s.newID(), *sg.Edit, s.now())
		if err := s.store.SavePendingEdits(ctx, append(pendingEdits, p)); err != nil {
			return 0, 0, err
		}
		s.bus.Publish(event.Event{Type: event.PendingEditCreated, Data: map[string]any{"id": p.ID, "index": idx}})
		return 0, 1, nil
	}

	resp, editErr := s.client.EditScrobble(ctx, *sg.Edit)
	if editErr != nil || !resp.Success {
		s.logger.Warn("edit_scrobble failed", "track", sg.Edit.OriginalTrackName, "error", editErr)
		s.bus.Publish(event.Event{Type: event.TrackEditFailed, Data: map[string]any{"index": idx, "error": errString(editErr)}})
		return 0, 0, nil
	}
	s.bus.Publish(event.Event{Type: event.TrackEdited, Data: map[string]any{"index": idx}})
	return 1, 0, nil
}

func (s *Scrubber) applyRuleSuggestion(ctx context.Context, sg model.Suggestion, play model.Play, idx int, requiresConfirmation bool, pendingRules []model.PendingRewriteRule) (bool, error) {
	if sg.ProposedRule == nil {
		return false, nil
	}

	if requiresConfirmation {
		p := model.PendingRewriteRule{
			ID:                     s.newID(),
			Rule:                   *sg.ProposedRule,
			Reason:                 sg.ProposeMotivation,
			ExampleTrackName:       play.Name,
			ExampleArtistName:      play.Artist,
			ExampleAlbumName:       play.Album,
			ExampleAlbumArtistName: play.AlbumArtist,
			CreatedAt:              s.now(),
		}
		if err := s.store.SavePendingRewriteRules(ctx, append(pendingRules, p)); err != nil {
			return false, err
		}
		s.bus.Publish(event.Event{Type: event.Info, Data: map[string]any{
			"source": "scrubber", "kind": "pending_rule_created", "id": p.ID, "index": idx,
		}})
		return true, nil
	}

	rules, err := s.store.LoadRewriteRules(ctx)
	if err != nil {
		return false, err
	}
	rules = append(rules, storage.RuleRecord{ID: s.newID(), Rule: *sg.ProposedRule})
	if err := s.store.SaveRewriteRules(ctx, rules); err != nil {
		return false, err
	}
	s.bus.Publish(event.Event{Type: event.RuleApplied, Data: map[string]any{"rule": sg.ProposedRule.Name, "index": idx}})
	return true, nil
}

// editHasChanges reports whether any field of e differs from its
// original, the has_changes check S1/S5 depend on.
func editHasChanges(e rewrite.ScrobbleEdit) bool {
	if e.NewTrackName != e.OriginalTrackName {
		return true
	}
	if e.NewArtistName != e.OriginalArtistName {
		return true
	}
	if !rewrite.StrPtrEqual(e.NewAlbumName, e.OriginalAlbumName) {
		return true
	}
	if !rewrite.StrPtrEqual(e.NewAlbumArtistName, e.OriginalAlbumArtistName) {
		return true
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
