// Package model defines the data types that flow through the scrubber
// pipeline beyond the rewrite engine's own Play/ScrobbleEdit/RewriteRule
// types (see internal/rewrite): suggestions, pending-confirmation queues,
// the anchor, and runtime settings.
package model

import (
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

// Play is a single scrobble record retrieved from the remote service.
type Play = rewrite.Play

// ScrobbleEdit is an intent to mutate a scrobble's metadata on the remote
// service.
type ScrobbleEdit = rewrite.ScrobbleEdit

// SuggestionKind discriminates the Suggestion tagged variant.
type SuggestionKind string

const (
	SuggestionEdit        SuggestionKind = "edit"
	SuggestionProposeRule SuggestionKind = "propose_rule"
	SuggestionNoAction    SuggestionKind = "no_action"
)

// Suggestion is a provider's proposal for one play: an edit, a rule
// proposal, or a no-op. Modeled as a tagged struct rather than an
// interface, matching how plain-data variants are represented elsewhere
// in this codebase.
type Suggestion struct {
	Kind SuggestionKind

	Edit              *ScrobbleEdit
	ProposedRule      *rewrite.RewriteRule
	ProposeMotivation string

	RequiresConfirmation bool
	ProviderName         string
}

// PendingEdit is an edit awaiting user confirmation before it is applied
// to the remote service.
type PendingEdit struct {
	ID                      string
	OriginalTrackName       string
	OriginalArtistName      string
	OriginalAlbumName       *string
	OriginalAlbumArtistName *string
	NewTrackName            *string
	NewArtistName           *string
	NewAlbumName            *string
	NewAlbumArtistName      *string
	Timestamp               *int64
	CreatedAt               time.Time
}

// NewPendingEdit builds a PendingEdit from a ScrobbleEdit, populating the
// New* fields only where they differ from the original (per the
// pending-edit fidelity invariant).
func NewPendingEdit(id string, e ScrobbleEdit, now time.Time) PendingEdit {
	p := PendingEdit{
		ID:                      id,
		OriginalTrackName:       e.OriginalTrackName,
		OriginalArtistName:      e.OriginalArtistName,
		OriginalAlbumName:       e.OriginalAlbumName,
		OriginalAlbumArtistName: e.OriginalAlbumArtistName,
		Timestamp:               e.Timestamp,
		CreatedAt:               now,
	}
	if e.NewTrackName != e.OriginalTrackName {
		v := e.NewTrackName
		p.NewTrackName = &v
	}
	if e.NewArtistName != e.OriginalArtistName {
		v := e.NewArtistName
		p.NewArtistName = &v
	}
	if !rewrite.StrPtrEqual(e.NewAlbumName, e.OriginalAlbumName) {
		p.NewAlbumName = e.NewAlbumName
	}
	if !rewrite.StrPtrEqual(e.NewAlbumArtistName, e.OriginalAlbumArtistName) {
		p.NewAlbumArtistName = e.NewAlbumArtistName
	}
	return p
}

// RuleTransformationPreview shows the per-field before/after of applying a
// candidate rule to its motivating example.
type RuleTransformationPreview struct {
	OriginalTrackName          string
	OriginalArtistName         string
	OriginalAlbumName          *string
	OriginalAlbumArtistName    *string
	TransformedTrackName       *string
	TransformedArtistName      *string
	TransformedAlbumName       *string
	TransformedAlbumArtistName *string
}

// PendingRewriteRule is a candidate rule awaiting confirmation, along with
// the example play that motivated it.
type PendingRewriteRule struct {
	ID                     string
	Rule                   rewrite.RewriteRule
	Reason                 string
	ExampleTrackName       string
	ExampleArtistName      string
	ExampleAlbumName       *string
	ExampleAlbumArtistName *string
	CreatedAt              time.Time
}

// Preview applies the rule to the motivating example and reports the
// per-field before/after.
func (p PendingRewriteRule) Preview() (RuleTransformationPreview, error) {
	example := Play{
		Name:        p.ExampleTrackName,
		Artist:      p.ExampleArtistName,
		Album:       p.ExampleAlbumName,
		AlbumArtist: p.ExampleAlbumArtistName,
	}

	preview := RuleTransformationPreview{
		OriginalTrackName:       p.ExampleTrackName,
		OriginalArtistName:      p.ExampleArtistName,
		OriginalAlbumName:       p.ExampleAlbumName,
		OriginalAlbumArtistName: p.ExampleAlbumArtistName,
	}

	matched, err := p.Rule.Matches(example)
	if err != nil {
		return preview, err
	}
	if !matched {
		return preview, nil
	}

	edit := rewrite.NoOpEdit(example)
	changed, err := p.Rule.Apply(&edit)
	if err != nil {
		return preview, err
	}
	if !changed {
		return preview, nil
	}

	if edit.NewTrackName != preview.OriginalTrackName {
		v := edit.NewTrackName
		preview.TransformedTrackName = &v
	}
	if edit.NewArtistName != preview.OriginalArtistName {
		v := edit.NewArtistName
		preview.TransformedArtistName = &v
	}
	if !rewrite.StrPtrEqual(edit.NewAlbumName, preview.OriginalAlbumName) {
		preview.TransformedAlbumName = edit.NewAlbumName
	}
	if !rewrite.StrPtrEqual(edit.NewAlbumArtistName, preview.OriginalAlbumArtistName) {
		preview.TransformedAlbumArtistName = edit.NewAlbumArtistName
	}
	return preview, nil
}

// Anchor is the timestamp of the most recently fully-processed play; the
// scrubber processes plays strictly newer than this.
type Anchor struct {
	Timestamp *time.Time
}

// Settings is the subset of runtime configuration that can change without
// a process restart, the fifth persisted-state record.
type Settings struct {
	DryRun                          bool
	RequireConfirmation             bool
	RequireProposedRuleConfirmation bool
	EnabledProviders                []string
}
