// Package suggest defines the suggestion-provider contract the scrubber
// core drives: deterministic rules, metadata-authority lookups, and an LLM
// provider all implement Provider, composed through Disjunction.
package suggest

import (
	"context"
	"log/slog"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// ErrProviderUnavailable wraps a provider-level transport or timeout
// failure; the disjunction combinator absorbs it and continues with the
// remaining providers.
type ErrProviderUnavailable struct {
	Provider string
	Cause    error
}

func (e *ErrProviderUnavailable) Error() string {
	return "suggest: provider " + e.Provider + " unavailable: " + e.Cause.Error()
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// IndexedSuggestions pairs a batch index with the suggestions a provider
// produced for that play. Not every index in a batch need appear.
type IndexedSuggestions struct {
	Index       int
	Suggestions []model.Suggestion
}

// Provider analyzes a batch of plays and proposes suggestions for some or
// all of them. pendingEdits/pendingRules let a provider avoid re-proposing
// what is already queued; either may be nil.
type Provider interface {
	Name() string
	AnalyzeTracks(ctx context.Context, plays []model.Play, pendingEdits []model.PendingEdit, pendingRules []model.PendingRewriteRule) ([]IndexedSuggestions, error)
}

// Disjunction runs an ordered list of providers sequentially and merges
// their output by track index; a failing provider is logged and skipped,
// never aborting the others.
type Disjunction struct {
	providers []Provider
	logger    *slog.Logger
}

// NewDisjunction composes providers in the given order.
func NewDisjunction(logger *slog.Logger, providers ...Provider) *Disjunction {
	return &Disjunction{providers: providers, logger: logger}
}

// Name identifies the combinator itself as a Provider.
func (d *Disjunction) Name() string { return "disjunction" }

// AnalyzeTracks runs every composed provider and merges suggestions by
// index, preserving provider order within each index's suggestion list.
func (d *Disjunction) AnalyzeTracks(ctx context.Context, plays []model.Play, pendingEdits []model.PendingEdit, pendingRules []model.PendingRewriteRule) ([]IndexedSuggestions, error) {
	merged := make(map[int][]model.Suggestion)
	var order []int
	seen := make(map[int]bool)

	for _, p := range d.providers {
		results, err := p.AnalyzeTracks(ctx, plays, pendingEdits, pendingRules)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("suggestion provider failed", slog.String("provider", p.Name()), slog.Any("error", err))
			}
			continue
		}
		for _, r := range results {
			if !seen[r.Index] {
				seen[r.Index] = true
				order = append(order, r.Index)
			}
			merged[r.Index] = append(merged[r.Index], r.Suggestions...)
		}
	}

	out := make([]IndexedSuggestions, 0, len(order))
	for _, idx := range order {
		out = append(out, IndexedSuggestions{Index: idx, Suggestions: merged[idx]})
	}
	return out, nil
}

// AnalyzeOne is a convenience for the per-track routine: calls
// AnalyzeTracks on a single-play batch and returns just that play's
// suggestions (empty if the provider set emitted none).
func AnalyzeOne(ctx context.Context, p Provider, play model.Play, pendingEdits []model.PendingEdit, pendingRules []model.PendingRewriteRule) ([]model.Suggestion, error) {
	results, err := p.AnalyzeTracks(ctx, []model.Play{play}, pendingEdits, pendingRules)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Index == 0 {
			return r.Suggestions, nil
		}
	}
	return nil, nil
}
