package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

func strp(s string) *string { return &s }

func TestMemoryStoreAnchorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	empty, err := s.LoadAnchor(ctx)
	if err != nil {
		t.Fatalf("LoadAnchor: %v", err)
	}
	if empty.Timestamp != nil {
		t.Fatal("expected default anchor to be empty")
	}

	ts := time.Unix(1700000000, 0).UTC()
	if err := s.SaveAnchor(ctx, model.Anchor{Timestamp: &ts}); err != nil {
		t.Fatalf("SaveAnchor: %v", err)
	}

	loaded, err := s.LoadAnchor(ctx)
	if err != nil {
		t.Fatalf("LoadAnchor: %v", err)
	}
	if loaded.Timestamp == nil || !loaded.Timestamp.Equal(ts) {
		t.Fatalf("round-trip mismatch: got %v, want %v", loaded.Timestamp, ts)
	}
}

func TestMemoryStoreSeededWithDefaultRules(t *testing.T) {
	s := NewMemoryStore()
	rules, err := s.LoadRewriteRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRewriteRules: %v", err)
	}
	if len(rules) != len(rewrite.DefaultRules()) {
		t.Fatalf("expected %d seeded rules, got %d", len(rewrite.DefaultRules()), len(rules))
	}
}

func TestMemoryStorePendingEditsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	edits := []model.PendingEdit{
		{ID: "p1", OriginalTrackName: "A", OriginalArtistName: "B", NewTrackName: strp("A2")},
	}
	if err := s.SavePendingEdits(ctx, edits); err != nil {
		t.Fatalf("SavePendingEdits: %v", err)
	}

	loaded, err := s.LoadPendingEdits(ctx)
	if err != nil {
		t.Fatalf("LoadPendingEdits: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "p1" {
		t.Fatalf("unexpected pending edits: %+v", loaded)
	}
}

func TestMemoryStoreSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	settings := model.Settings{DryRun: true, RequireConfirmation: true, EnabledProviders: []string{"rules"}}
	if err := s.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	loaded, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !reflect.DeepEqual(loaded, settings) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", loaded, settings)
	}
}

func TestMemoryStorePendingRewriteRulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rules := []model.PendingRewriteRule{
		{
			ID:                "r1",
			Rule:              rewrite.RewriteRule{Name: "test", TrackName: &rewrite.FindReplace{Find: "a", Replace: "b", Kind: rewrite.KindLiteral}},
			Reason:            "testing",
			ExampleTrackName:  "a track",
			ExampleArtistName: "an artist",
		},
	}
	if err := s.SavePendingRewriteRules(ctx, rules); err != nil {
		t.Fatalf("SavePendingRewriteRules: %v", err)
	}

	loaded, err := s.LoadPendingRewriteRules(ctx)
	if err != nil {
		t.Fatalf("LoadPendingRewriteRules: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "r1" {
		t.Fatalf("unexpected pending rules: %+v", loaded)
	}
}
