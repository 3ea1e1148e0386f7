// Package trackcache implements the Track Provider: refreshing the
// scrubber's view of recently-played tracks from the remote client and
// presenting a newest-first snapshot for the current cycle.
package trackcache

import (
	"context"
	"fmt"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// RecentTracksFetcher is the narrow slice of scrobbler.Client the
// provider needs: a newest-first paginated view of recent plays.
type RecentTracksFetcher interface {
	RecentTracksPage(ctx context.Context, page int) ([]model.Play, bool, error)
}

// Provider refreshes the cache of recently fetched plays and presents a
// newest-first view for the current cycle.
type Provider interface {
	// UpdateCacheFromAPI paginates recent plays newest-first, stopping as
	// soon as a play older than anchor is seen (or the remote signals end).
	UpdateCacheFromAPI(ctx context.Context, client RecentTracksFetcher, anchor *time.Time) error
	// GetAllRecentTracks returns a newest-first view of what was fetched
	// this cycle.
	GetAllRecentTracks() []model.Play
}

// fetchPages is shared pagination logic: walk pages newest-first, collect
// plays until one strictly older than or equal to anchor is seen, or the
// remote signals end of data.
func fetchPages(ctx context.Context, client RecentTracksFetcher, anchor *time.Time) ([]model.Play, map[int][]model.Play, error) {
	var all []model.Play
	pages := make(map[int][]model.Play)

	for page := 1; ; page++ {
		plays, hasMore, err := client.RecentTracksPage(ctx, page)
		if err != nil {
			return all, pages, fmt.Errorf("fetching recent tracks page %d: %w", page, err)
		}
		if len(plays) == 0 {
			break
		}
		pages[page] = plays

		stop := false
		for _, p := range plays {
			if anchor != nil && p.Timestamp != nil {
				ts := time.Unix(*p.Timestamp, 0).UTC()
				if !ts.After(*anchor) {
					stop = true
					break
				}
			}
			all = append(all, p)
		}

		if stop || !hasMore || len(plays) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return all, pages, ctx.Err()
		default:
		}
	}

	return all, pages, nil
}
