package trackcache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// cacheVersion is the on-disk track_cache.json format version.
const cacheVersion = 1

// diskCache mirrors the track_cache.json schema: recent tracks keyed by
// fetch page number, artist tracks keyed by artist name, plus metadata.
type diskCache struct {
	RecentTracks map[int][]model.Play    `json:"recent_tracks"`
	ArtistTracks map[string][]model.Play `json:"artist_tracks"`
	Metadata     cacheMetadata            `json:"metadata"`
}

type cacheMetadata struct {
	LastUpdated int64 `json:"last_updated"`
	Version     int   `json:"version"`
}

// CachedProvider retains fetched pages for the lifetime of the process
// and persists them to a JSON file on disk, keyed by fetch page number.
// The cache is not authoritative for ordering decisions; the anchor is.
type CachedProvider struct {
	mu       sync.RWMutex
	path     string
	recent   []model.Play
	pages    map[int][]model.Play
	artists  map[string][]model.Play
}

// NewCachedProvider creates a CachedProvider backed by path (track_cache.json),
// loading any pre-existing cache. A parse failure reverts to an empty cache.
func NewCachedProvider(path string) *CachedProvider {
	p := &CachedProvider{
		path:    path,
		pages:   make(map[int][]model.Play),
		artists: make(map[string][]model.Play),
	}
	p.load()
	return p
}

func (p *CachedProvider) load() {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return
	}
	var dc diskCache
	if err := json.Unmarshal(data, &dc); err != nil {
		return
	}
	if dc.RecentTracks != nil {
		p.pages = dc.RecentTracks
	}
	if dc.ArtistTracks != nil {
		p.artists = dc.ArtistTracks
	}
}

func (p *CachedProvider) persist() error {
	dc := diskCache{
		RecentTracks: p.pages,
		ArtistTracks: p.artists,
		Metadata: cacheMetadata{
			LastUpdated: time.Now().UTC().Unix(),
			Version:     cacheVersion,
		},
	}
	data, err := json.MarshalIndent(dc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o640)
}

func (p *CachedProvider) UpdateCacheFromAPI(ctx context.Context, client RecentTracksFetcher, anchor *time.Time) error {
	all, pages, err := fetchPages(ctx, client, anchor)
	if err != nil && len(all) == 0 {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.recent = all
	for page, plays := range pages {
		p.pages[page] = plays
	}

	_ = p.persist()
	return err
}

func (p *CachedProvider) GetAllRecentTracks() []model.Play {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Play, len(p.recent))
	copy(out, p.recent)
	return out
}
