package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

// SQLiteStore persists the five records in a SQLite database, opened and
// migrated by internal/database. Anchor and settings live in a single
// key-value table; rewrite rules, pending edits, and pending rewrite
// rules each get their own table, and saving one of those lists replaces
// all of that table's rows in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-migrated *sql.DB.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const (
	keyAnchor = "timestamp_state"
)

func (s *SQLiteStore) LoadAnchor(ctx context.Context) (model.Anchor, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state_kv WHERE key = ?`, keyAnchor).Scan(&value)
	if err == sql.ErrNoRows {
		return model.Anchor{}, nil
	}
	if err != nil {
		return model.Anchor{}, fmt.Errorf("loading anchor: %w", err)
	}

	var ts *int64
	if err := json.Unmarshal([]byte(value), &ts); err != nil {
		return model.Anchor{}, fmt.Errorf("decoding anchor: %w", err)
	}
	if ts == nil {
		return model.Anchor{}, nil
	}
	t := time.Unix(*ts, 0).UTC()
	return model.Anchor{Timestamp: &t}, nil
}

func (s *SQLiteStore) SaveAnchor(ctx context.Context, a model.Anchor) error {
	var ts *int64
	if a.Timestamp != nil {
		v := a.Timestamp.Unix()
		ts = &v
	}
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("encoding anchor: %w", err)
	}
	return s.upsertKV(ctx, keyAnchor, string(data))
}

func (s *SQLiteStore) upsertKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

type ruleFields struct {
	Find            string `json:"find"`
	Replace         string `json:"replace"`
	Kind            string `json:"kind"`
	Flags           string `json:"flags,omitempty"`
	MaxReplacements uint   `json:"max_replacements,omitempty"`
}

type ruleJSON struct {
	TrackName                     *ruleFields `json:"track_name,omitempty"`
	ArtistName                    *ruleFields `json:"artist_name,omitempty"`
	AlbumName                     *ruleFields `json:"album_name,omitempty"`
	AlbumArtistName               *ruleFields `json:"album_artist_name,omitempty"`
	RequiresConfirmation          bool        `json:"requires_confirmation"`
	RequiresAuthorityConfirmation bool        `json:"requires_authority_confirmation,omitempty"`
}

func toRuleJSON(r rewrite.RewriteRule) ruleJSON {
	conv := func(fr *rewrite.FindReplace) *ruleFields {
		if fr == nil {
			return nil
		}
		return &ruleFields{Find: fr.Find, Replace: fr.Replace, Kind: string(fr.Kind), Flags: fr.Flags, MaxReplacements: fr.MaxReplacements}
	}
	return ruleJSON{
		TrackName:                     conv(r.TrackName),
		ArtistName:                    conv(r.ArtistName),
		AlbumName:                     conv(r.AlbumName),
		AlbumArtistName:               conv(r.AlbumArtistName),
		RequiresConfirmation:          r.RequiresConfirmation,
		RequiresAuthorityConfirmation: r.RequiresAuthorityConfirmation,
	}
}

func fromRuleJSON(name string, j ruleJSON) rewrite.RewriteRule {
	conv := func(f *ruleFields) *rewrite.FindReplace {
		if f == nil {
			return nil
		}
		return &rewrite.FindReplace{Find: f.Find, Replace: f.Replace, Kind: rewrite.Kind(f.Kind), Flags: f.Flags, MaxReplacements: f.MaxReplacements}
	}
	return rewrite.RewriteRule{
		Name:                          name,
		TrackName:                     conv(j.TrackName),
		ArtistName:                    conv(j.ArtistName),
		AlbumName:                     conv(j.AlbumName),
		AlbumArtistName:               conv(j.AlbumArtistName),
		RequiresConfirmation:          j.RequiresConfirmation,
		RequiresAuthorityConfirmation: j.RequiresAuthorityConfirmation,
	}
}

func (s *SQLiteStore) LoadRewriteRules(ctx context.Context) ([]RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, matchers_json, rewrites_json FROM rewrite_rules WHERE enabled = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("loading rewrite rules: %w", err)
	}
	defer rows.Close()

	var out []RuleRecord
	for rows.Next() {
		var id, name, matchersJSON, rewritesJSON string
		if err := rows.Scan(&id, &name, &matchersJSON, &rewritesJSON); err != nil {
			return nil, fmt.Errorf("scanning rewrite rule: %w", err)
		}
		var j ruleJSON
		if err := json.Unmarshal([]byte(rewritesJSON), &j); err != nil {
			return nil, fmt.Errorf("decoding rewrite rule %s: %w", id, err)
		}
		out = append(out, RuleRecord{ID: id, Rule: fromRuleJSON(name, j)})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRewriteRules(ctx context.Context, rules []RuleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM rewrite_rules`); err != nil {
		return fmt.Errorf("clearing rewrite rules: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rules {
		j := toRuleJSON(r.Rule)
		payload, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("encoding rule %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rewrite_rules (id, name, matchers_json, rewrites_json, enabled, created_at, updated_at)
			VALUES (?, ?, '{}', ?, 1, ?, ?)
		`, r.ID, r.Rule.Name, string(payload), now, now); err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rewrite rules: %w", err)
	}
	return nil
}

type pendingEditJSON struct {
	OriginalTrackName       string  `json:"original_track_name"`
	OriginalArtistName      string  `json:"original_artist_name"`
	OriginalAlbumName       *string `json:"original_album_name,omitempty"`
	OriginalAlbumArtistName *string `json:"original_album_artist_name,omitempty"`
	NewTrackName            *string `json:"new_track_name,omitempty"`
	NewArtistName           *string `json:"new_artist_name,omitempty"`
	NewAlbumName            *string `json:"new_album_name,omitempty"`
	NewAlbumArtistName      *string `json:"new_album_artist_name,omitempty"`
	Timestamp               *int64  `json:"timestamp,omitempty"`
}

func (s *SQLiteStore) LoadPendingEdits(ctx context.Context) ([]model.PendingEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_track_name, original_artist_name, original_album_name,
		       original_album_artist_name, new_track_name, new_artist_name,
		       new_album_name, new_album_artist_name, play_timestamp, created_at
		FROM pending_edits ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("loading pending edits: %w", err)
	}
	defer rows.Close()

	var out []model.PendingEdit
	for rows.Next() {
		var p model.PendingEdit
		var createdAt string
		if err := rows.Scan(&p.ID, &p.OriginalTrackName, &p.OriginalArtistName,
			&p.OriginalAlbumName, &p.OriginalAlbumArtistName, &p.NewTrackName,
			&p.NewArtistName, &p.NewAlbumName, &p.NewAlbumArtistName, &p.Timestamp, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pending edit: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			p.CreatedAt = t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePendingEdits(ctx context.Context, edits []model.PendingEdit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_edits`); err != nil {
		return fmt.Errorf("clearing pending edits: %w", err)
	}

	for _, e := range edits {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_edits (id, original_track_name, original_artist_name, original_album_name,
				original_album_artist_name, new_track_name, new_artist_name, new_album_name,
				new_album_artist_name, play_timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.OriginalTrackName, e.OriginalArtistName, e.OriginalAlbumName,
			e.OriginalAlbumArtistName, e.NewTrackName, e.NewArtistName, e.NewAlbumName,
			e.NewAlbumArtistName, e.Timestamp, createdAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting pending edit %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pending edits: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadPendingRewriteRules(ctx context.Context) ([]model.PendingRewriteRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_json, reason, example_track_name, example_artist_name,
		       example_album_name, example_album_artist_name, created_at
		FROM pending_rewrite_rules ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("loading pending rewrite rules: %w", err)
	}
	defer rows.Close()

	var out []model.PendingRewriteRule
	for rows.Next() {
		var id, ruleJSONStr, reason, exampleTrack, exampleArtist, createdAt string
		var exampleAlbum, exampleAlbumArtist *string
		if err := rows.Scan(&id, &ruleJSONStr, &reason, &exampleTrack, &exampleArtist,
			&exampleAlbum, &exampleAlbumArtist, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pending rewrite rule: %w", err)
		}
		var j ruleJSON
		if err := json.Unmarshal([]byte(ruleJSONStr), &j); err != nil {
			return nil, fmt.Errorf("decoding pending rule %s: %w", id, err)
		}
		p := model.PendingRewriteRule{
			ID:                     id,
			Rule:                   fromRuleJSON("", j),
			Reason:                 reason,
			ExampleTrackName:       exampleTrack,
			ExampleArtistName:      exampleArtist,
			ExampleAlbumName:       exampleAlbum,
			ExampleAlbumArtistName: exampleAlbumArtist,
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			p.CreatedAt = t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePendingRewriteRules(ctx context.Context, rules []model.PendingRewriteRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_rewrite_rules`); err != nil {
		return fmt.Errorf("clearing pending rewrite rules: %w", err)
	}

	for _, p := range rules {
		j := toRuleJSON(p.Rule)
		payload, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("encoding pending rule %s: %w", p.ID, err)
		}
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_rewrite_rules (id, rule_json, reason, example_track_name,
				example_artist_name, example_album_name, example_album_artist_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, string(payload), p.Reason, p.ExampleTrackName, p.ExampleArtistName,
			p.ExampleAlbumName, p.ExampleAlbumArtistName, createdAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting pending rule %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pending rewrite rules: %w", err)
	}
	return nil
}

type settingsJSON struct {
	DryRun                          bool     `json:"dry_run"`
	RequireConfirmation             bool     `json:"require_confirmation"`
	RequireProposedRuleConfirmation bool     `json:"require_proposed_rule_confirmation"`
	EnabledProviders                []string `json:"enabled_providers,omitempty"`
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (model.Settings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state_kv WHERE key = 'settings_state'`).Scan(&value)
	if err == sql.ErrNoRows {
		return model.Settings{}, nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	var j settingsJSON
	if err := json.Unmarshal([]byte(value), &j); err != nil {
		return model.Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return model.Settings{
		DryRun:                          j.DryRun,
		RequireConfirmation:             j.RequireConfirmation,
		RequireProposedRuleConfirmation: j.RequireProposedRuleConfirmation,
		EnabledProviders:                j.EnabledProviders,
	}, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st model.Settings) error {
	j := settingsJSON{
		DryRun:                          st.DryRun,
		RequireConfirmation:             st.RequireConfirmation,
		RequireProposedRuleConfirmation: st.RequireProposedRuleConfirmation,
		EnabledProviders:                st.EnabledProviders,
	}
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return s.upsertKV(ctx, "settings_state", string(data))
}

// SeedDefaultRules inserts the built-in cleanup rule set if the rewrite_rules
// table is empty; on a non-empty table it does nothing.
func SeedDefaultRules(ctx context.Context, s *SQLiteStore, idGen func() string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rewrite_rules`).Scan(&count); err != nil {
		return fmt.Errorf("counting rewrite rules: %w", err)
	}
	if count > 0 {
		return nil
	}

	records := seedRuleRecordsWithIDs(idGen)
	return s.SaveRewriteRules(ctx, records)
}
