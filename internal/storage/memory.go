package storage

import (
	"context"
	"sync"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// MemoryStore is an in-process, mutex-guarded Store used by tests.
type MemoryStore struct {
	mu sync.Mutex

	anchor       model.Anchor
	rules        []RuleRecord
	pendingEdits []model.PendingEdit
	pendingRules []model.PendingRewriteRule
	settings     model.Settings
}

// NewMemoryStore creates an empty MemoryStore seeded with the default rule
// set, mirroring the seed-on-first-creation behavior of the production
// store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: seedRuleRecords(),
	}
}

func (m *MemoryStore) LoadAnchor(_ context.Context) (model.Anchor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anchor, nil
}

func (m *MemoryStore) SaveAnchor(_ context.Context, a model.Anchor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchor = a
	return nil
}

func (m *MemoryStore) LoadRewriteRules(_ context.Context) ([]RuleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RuleRecord, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStore) SaveRewriteRules(_ context.Context, rules []RuleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]RuleRecord(nil), rules...)
	return nil
}

func (m *MemoryStore) LoadPendingEdits(_ context.Context) ([]model.PendingEdit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingEdit, len(m.pendingEdits))
	copy(out, m.pendingEdits)
	return out, nil
}

func (m *MemoryStore) SavePendingEdits(_ context.Context, edits []model.PendingEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingEdits = append([]model.PendingEdit(nil), edits...)
	return nil
}

func (m *MemoryStore) LoadPendingRewriteRules(_ context.Context) ([]model.PendingRewriteRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingRewriteRule, len(m.pendingRules))
	copy(out, m.pendingRules)
	return out, nil
}

func (m *MemoryStore) SavePendingRewriteRules(_ context.Context, rules []model.PendingRewriteRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingRules = append([]model.PendingRewriteRule(nil), rules...)
	return nil
}

func (m *MemoryStore) LoadSettings(_ context.Context) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *MemoryStore) SaveSettings(_ context.Context, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}
