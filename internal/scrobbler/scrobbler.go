// Package scrobbler defines the remote scrobble-service contract the core
// consumes: fetching recent plays, searching tracks and albums, and
// committing edits back to the service. Implementations live in
// internal/lastfmclient (and, for tests, in-memory fakes).
package scrobbler

import (
	"context"
	"errors"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
)

// ErrTransport wraps a failure reaching or parsing a response from the
// remote scrobble service.
type ErrTransport struct {
	Op    string
	Cause error
}

func (e *ErrTransport) Error() string {
	if e.Cause == nil {
		return "scrobbler: transport error during " + e.Op
	}
	return "scrobbler: transport error during " + e.Op + ": " + e.Cause.Error()
}

func (e *ErrTransport) Unwrap() error { return e.Cause }

// ErrAuthRequired signals the remote service rejected the configured
// credentials.
var ErrAuthRequired = errors.New("scrobbler: authentication required")

// Album is a minimal remote album identity, returned by SearchAlbums and
// accepted by GetAlbumTracks.
type Album struct {
	Name   string
	Artist string
}

// EditResponse reports the outcome of a remote edit_scrobble call.
type EditResponse struct {
	Success bool
	Message string
}

// ClientEventKind enumerates the narrow set of connection-lifecycle events
// a Client forwards through Subscribe, distinct from the core's own
// event.Bus vocabulary (the scrubber re-publishes these onto its own bus).
type ClientEventKind string

const (
	ClientEventConnected    ClientEventKind = "connected"
	ClientEventDisconnected ClientEventKind = "disconnected"
	ClientEventRateLimited  ClientEventKind = "rate_limited"
)

// ClientEvent is forwarded by a Client's Subscribe channel.
type ClientEvent struct {
	Kind    ClientEventKind
	Message string
}

// Pager is a suspension-point page fetcher: Next returns the next page, or
// ok=false once the remote signals end of data.
type Pager[T any] interface {
	Next(ctx context.Context) (items []T, ok bool, err error)
}

// PageIterator adapts a page-fetch function into a Pager, the shape every
// Client method below returns: a paginated, newest-first (for recent/artist
// tracks) or relevance-ordered (for search) suspension-point iterator.
type PageIterator[T any] struct {
	fetch   func(ctx context.Context, page int) ([]T, bool, error)
	page    int
	done    bool
}

// NewPageIterator builds a PageIterator backed by fetch, a 1-indexed page
// fetch function returning the page's items and whether more pages follow.
func NewPageIterator[T any](fetch func(ctx context.Context, page int) ([]T, bool, error)) *PageIterator[T] {
	return &PageIterator[T]{fetch: fetch, page: 0}
}

// Next advances to the next page. It returns ok=false once the remote
// signals no more data; a transport failure returns a non-nil error and
// leaves the iterator exhausted.
func (it *PageIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}
	it.page++
	items, hasMore, err := it.fetch(ctx, it.page)
	if err != nil {
		it.done = true
		return nil, false, err
	}
	if !hasMore {
		it.done = true
	}
	return items, true, nil
}

// Client is the remote scrobble service contract the scrubber core
// consumes. Every method that performs network I/O is a suspension point.
type Client interface {
	// RecentTracks returns a newest-first paginated view of the user's
	// recent plays.
	RecentTracks(ctx context.Context) (Pager[model.Play], error)
	// ArtistTracks returns a newest-first paginated view of plays by artist.
	ArtistTracks(ctx context.Context, artist string) (Pager[model.Play], error)
	// SearchTracks returns a paginated view of plays matching a query.
	SearchTracks(ctx context.Context, query string) (Pager[model.Play], error)
	// SearchAlbums returns a paginated view of albums matching a query.
	SearchAlbums(ctx context.Context, query string) (Pager[Album], error)
	// GetAlbumTracks returns every known play for one album by one artist.
	GetAlbumTracks(ctx context.Context, album, artist string) ([]model.Play, error)
	// EditScrobble commits an edit to the remote service.
	EditScrobble(ctx context.Context, edit model.ScrobbleEdit) (EditResponse, error)
	// Subscribe returns a channel of connection-lifecycle events, or nil
	// when the client emits none. The interface has no Close method, and
	// lastfmclient.Client never closes its channel.
	Subscribe() <-chan ClientEvent
}
