package trackcache

import (
	"context"
	"sync"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrobbler"
)

// clientFetcher adapts a scrobbler.Pager[model.Play] (a sequential,
// suspension-point iterator) to the page-indexed RecentTracksFetcher
// contract fetchPages expects. fetchPages always requests pages 1, 2, 3...
// in order, which matches a Pager's Next() call sequence exactly.
type clientFetcher struct {
	mu    sync.Mutex
	pager scrobbler.Pager[model.Play]
	next  int
}

// NewClientFetcher wraps a scrobbler.Client's recent-tracks pager so a
// trackcache.Provider can drive it.
func NewClientFetcher(pager scrobbler.Pager[model.Play]) RecentTracksFetcher {
	return &clientFetcher{pager: pager, next: 1}
}

func (f *clientFetcher) RecentTracksPage(ctx context.Context, page int) ([]model.Play, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if page != f.next {
		return nil, false, nil
	}
	items, ok, err := f.pager.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	f.next++
	return items, ok, nil
}
