package trackcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

func i64(v int64) *int64 { return &v }

type fakeFetcher struct {
	pages map[int][]model.Play
}

func (f *fakeFetcher) RecentTracksPage(_ context.Context, page int) ([]model.Play, bool, error) {
	plays, ok := f.pages[page]
	return plays, ok, nil
}

func TestPassthroughProviderStopsAtAnchor(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][]model.Play{
			1: {
				{Name: "Newest", Timestamp: i64(400)},
				{Name: "Middle", Timestamp: i64(300)},
				{Name: "AtAnchor", Timestamp: i64(200)},
			},
		},
	}

	anchor := time.Unix(200, 0).UTC()
	p := NewPassthroughProvider()
	if err := p.UpdateCacheFromAPI(context.Background(), fetcher, &anchor); err != nil {
		t.Fatalf("UpdateCacheFromAPI: %v", err)
	}

	tracks := p.GetAllRecentTracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks newer than anchor, got %d: %+v", len(tracks), tracks)
	}
	if tracks[0].Name != "Newest" || tracks[1].Name != "Middle" {
		t.Errorf("expected newest-first order, got %+v", tracks)
	}
}

func TestPassthroughProviderNoAnchorFetchesAll(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][]model.Play{
			1: {{Name: "A", Timestamp: i64(100)}, {Name: "B", Timestamp: i64(50)}},
		},
	}

	p := NewPassthroughProvider()
	if err := p.UpdateCacheFromAPI(context.Background(), fetcher, nil); err != nil {
		t.Fatalf("UpdateCacheFromAPI: %v", err)
	}
	if len(p.GetAllRecentTracks()) != 2 {
		t.Fatalf("expected all tracks with no anchor")
	}
}

func TestCachedProviderPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track_cache.json")

	fetcher := &fakeFetcher{
		pages: map[int][]model.Play{
			1: {{Name: "A", Timestamp: i64(100)}},
		},
	}

	p1 := NewCachedProvider(path)
	if err := p1.UpdateCacheFromAPI(context.Background(), fetcher, nil); err != nil {
		t.Fatalf("UpdateCacheFromAPI: %v", err)
	}

	p2 := NewCachedProvider(path)
	if len(p2.pages) != 1 {
		t.Fatalf("expected reloaded cache to have 1 page, got %d", len(p2.pages))
	}
}

func TestCachedProviderToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track_cache.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := NewCachedProvider(path)
	if len(p.GetAllRecentTracks()) != 0 {
		t.Fatalf("expected empty cache on parse failure")
	}
}
