package scrubber

import (
	"context"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/event"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrobbler"
)

// drainPager reads every page a Pager offers, up to limit items (0 means
// no limit), without ever touching the anchor.
func drainPager[T any](ctx context.Context, pager scrobbler.Pager[T], limit int) ([]T, error) {
	var out []T
	for {
		items, ok, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if !ok {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// reversed returns a newest-first slice reversed to oldest-first, the
// dispatch order every ad-hoc command shares with the monitor cycle.
func reversed(plays []model.Play) []model.Play {
	out := make([]model.Play, len(plays))
	for i, p := range plays {
		out[len(plays)-1-i] = p
	}
	return out
}

// processBatch runs every play in plays through the shared per-track
// routine, oldest-first, tagging each with kind. It never touches the
// anchor; a storage failure aborts the remaining plays in the batch.
func (s *Scrubber) processBatch(ctx context.Context, plays []model.Play, kind ProcessingType) error {
	s.setState(StateCycling)
	defer s.setState(StateIdle)

	ordered := reversed(plays)
	s.bus.Publish(event.Event{Type: event.TracksFound, Data: map[string]any{
		"count":           len(ordered),
		"processing_type": string(kind),
	}})

	for i, play := range ordered {
		if err := s.processOne(ctx, play, i, len(ordered), kind); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.bus.Publish(event.Event{Type: event.CycleCompleted, Data: map[string]any{
		"processed":       len(ordered),
		"processing_type": string(kind),
	}})
	return nil
}

// ProcessLastNTracks processes the n most recent plays without regard to
// the anchor, and without advancing it.
func (s *Scrubber) ProcessLastNTracks(ctx context.Context, n int) error {
	if n <= 0 {
		return &ErrInvalidInput{Message: "n must be positive"}
	}
	pager, err := s.client.RecentTracks(ctx)
	if err != nil {
		return err
	}
	plays, err := drainPager(ctx, pager, n)
	if err != nil {
		return err
	}
	return s.processBatch(ctx, plays, ProcessingTrack)
}

// ProcessArtist processes every known play by artist.
func (s *Scrubber) ProcessArtist(ctx context.Context, artist string) error {
	if artist == "" {
		return &ErrInvalidInput{Message: "artist must not be empty"}
	}
	pager, err := s.client.ArtistTracks(ctx, artist)
	if err != nil {
		return err
	}
	plays, err := drainPager(ctx, pager, 0)
	if err != nil {
		return err
	}
	return s.processBatch(ctx, plays, ProcessingArtist)
}

// ProcessAlbum processes every known play of one album by one artist.
func (s *Scrubber) ProcessAlbum(ctx context.Context, album, artist string) error {
	if album == "" || artist == "" {
		return &ErrInvalidInput{Message: "album and artist must not be empty"}
	}
	plays, err := s.client.GetAlbumTracks(ctx, album, artist)
	if err != nil {
		return err
	}
	return s.processBatch(ctx, plays, ProcessingAlbum)
}

// ProcessSearch processes every play matching a free-text track search.
func (s *Scrubber) ProcessSearch(ctx context.Context, query string) error {
	if query == "" {
		return &ErrInvalidInput{Message: "query must not be empty"}
	}
	pager, err := s.client.SearchTracks(ctx, query)
	if err != nil {
		return err
	}
	plays, err := drainPager(ctx, pager, 0)
	if err != nil {
		return err
	}
	return s.processBatch(ctx, plays, ProcessingSearch)
}

// ProcessSearchAlbums resolves albums matching query, then processes every
// play of every matched album.
func (s *Scrubber) ProcessSearchAlbums(ctx context.Context, query string) error {
	if query == "" {
		return &ErrInvalidInput{Message: "query must not be empty"}
	}
	pager, err := s.client.SearchAlbums(ctx, query)
	if err != nil {
		return err
	}
	albums, err := drainPager(ctx, pager, 0)
	if err != nil {
		return err
	}

	var all []model.Play
	for _, al := range albums {
		plays, err := s.client.GetAlbumTracks(ctx, al.Name, al.Artist)
		if err != nil {
			return err
		}
		all = append(all, plays...)
	}
	return s.processBatch(ctx, all, ProcessingSearch)
}
