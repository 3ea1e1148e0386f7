// Package rules implements the deterministic rewrite-rule suggestion
// provider: for each play, if any active rule matches, it builds a no-op
// edit, runs ApplyAll, and emits an Edit suggestion when anything changed.
package rules

import (
	"context"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
)

// RuleSource supplies the currently active rules; cmd/scrubberd wires this
// to storage.Store.LoadRewriteRules through ruleSourceAdapter.
type RuleSource interface {
	LoadRewriteRules(ctx context.Context) ([]rewrite.RewriteRule, error)
}

// Provider is the deterministic-rules suggestion provider.
type Provider struct {
	source RuleSource
}

// New creates a rules Provider backed by source.
func New(source RuleSource) *Provider {
	return &Provider{source: source}
}

// Name identifies the provider for logging and provider-name tagging.
func (p *Provider) Name() string { return "rules" }

// AnalyzeTracks applies every active rule to each play and emits an Edit
// suggestion wherever ApplyAll changed anything.
func (p *Provider) AnalyzeTracks(ctx context.Context, plays []model.Play, _ []model.PendingEdit, _ []model.PendingRewriteRule) ([]suggest.IndexedSuggestions, error) {
	activeRules, err := p.source.LoadRewriteRules(ctx)
	if err != nil {
		return nil, &suggest.ErrProviderUnavailable{Provider: p.Name(), Cause: err}
	}

	var out []suggest.IndexedSuggestions
	for i, play := range plays {
		edit := rewrite.NoOpEdit(play)
		requiresConfirmation := false
		anyChanged := false

		// Mirrors rewrite.ApplyAll's control flow (apply each rule in turn
		// against the evolving edit) while also tracking which rules
		// actually fired, to OR their requires_confirmation flags.
		for j := range activeRules {
			rule := activeRules[j]
			changed, err := rule.Apply(&edit)
			if err != nil {
				return nil, &suggest.ErrProviderUnavailable{Provider: p.Name(), Cause: err}
			}
			if changed {
				anyChanged = true
				if rule.RequiresConfirmation {
					requiresConfirmation = true
				}
			}
		}

		if !anyChanged {
			continue
		}

		out = append(out, suggest.IndexedSuggestions{
			Index: i,
			Suggestions: []model.Suggestion{
				{
					Kind:                 model.SuggestionEdit,
					Edit:                 &edit,
					RequiresConfirmation: requiresConfirmation,
					ProviderName:         p.Name(),
				},
			},
		})
	}
	return out, nil
}
