// Package storage implements the persisted-state contract: five
// independently-loadable records (anchor, active rules, pending edits,
// pending rules, settings) behind load/save pairs, with a SQLite-backed
// production implementation and an in-memory one for tests.
package storage

import (
	"context"
	"fmt"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

// ErrIO wraps a persistence read/write failure. Every error a Store
// implementation returns is, by contract, an IO failure — there is no
// other failure mode a caller needs to distinguish.
type ErrIO struct {
	Op    string
	Cause error
}

func (e *ErrIO) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Cause) }

func (e *ErrIO) Unwrap() error { return e.Cause }

// Store is the persistence capability the scrubber core and external
// consumers (CLI, web UI) share behind a mutual-exclusion guard.
type Store interface {
	LoadAnchor(ctx context.Context) (model.Anchor, error)
	SaveAnchor(ctx context.Context, a model.Anchor) error

	LoadRewriteRules(ctx context.Context) ([]RuleRecord, error)
	SaveRewriteRules(ctx context.Context, rules []RuleRecord) error

	LoadPendingEdits(ctx context.Context) ([]model.PendingEdit, error)
	SavePendingEdits(ctx context.Context, edits []model.PendingEdit) error

	LoadPendingRewriteRules(ctx context.Context) ([]model.PendingRewriteRule, error)
	SavePendingRewriteRules(ctx context.Context, rules []model.PendingRewriteRule) error

	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// RuleRecord pairs a rule with a stable identifier, for listing and
// removing individual rules from the active set.
type RuleRecord struct {
	ID   string
	Rule rewrite.RewriteRule
}
