package trackcache

import (
	"context"
	"sync"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// PassthroughProvider discards fetched pages between cycles, used by
// lightweight deployments and ad-hoc commands that must not grow an
// unbounded cache.
type PassthroughProvider struct {
	mu     sync.RWMutex
	recent []model.Play
}

// NewPassthroughProvider creates an empty PassthroughProvider.
func NewPassthroughProvider() *PassthroughProvider {
	return &PassthroughProvider{}
}

func (p *PassthroughProvider) UpdateCacheFromAPI(ctx context.Context, client RecentTracksFetcher, anchor *time.Time) error {
	all, _, err := fetchPages(ctx, client, anchor)

	p.mu.Lock()
	p.recent = all
	p.mu.Unlock()

	return err
}

func (p *PassthroughProvider) GetAllRecentTracks() []model.Play {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Play, len(p.recent))
	copy(out, p.recent)
	return out
}
