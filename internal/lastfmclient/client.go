// Package lastfmclient is a reference scrobbler.Client implementation
// against the Last.fm Audioscrobbler API. Read operations (recent tracks,
// artist tracks, search) use the public JSON API with an API key; editing a
// scrobble has no official API and instead authenticates a web session with
// username/password, the way the unofficial scrobble-edit tooling this
// project stands in for does it.
package lastfmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/scrobbler"
)

const (
	defaultAPIBaseURL = "https://ws.audioscrobbler.com/2.0"
	defaultWebBaseURL = "https://www.last.fm"
	userAgent         = "scrobble-scrubber-go/1.0"
)

var csrfTokenPattern = regexp.MustCompile(`name=["']csrfmiddlewaretoken["']\s+value=["']([^"']+)["']`)

// Config configures a Client.
type Config struct {
	APIKey     string
	Username   string
	Password   string
	APIBaseURL string
	WebBaseURL string
}

// Client implements scrobbler.Client against Last.fm.
type Client struct {
	rc       *resty.Client
	cfg      Config
	limiter  *rate.Limiter
	events   chan scrobbler.ClientEvent

	mu        sync.Mutex
	csrfToken string
	loggedIn  bool
}

// New creates a Client. No network calls are made until a method is invoked.
func New(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.WebBaseURL == "" {
		cfg.WebBaseURL = defaultWebBaseURL
	}
	rc := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("User-Agent", userAgent)
	rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Client{
		rc:      rc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		events:  make(chan scrobbler.ClientEvent, 64),
	}
}

func (c *Client) emit(kind scrobbler.ClientEventKind, message string) {
	select {
	case c.events <- scrobbler.ClientEvent{Kind: kind, Message: message}:
	default:
	}
}

// Subscribe returns a channel of connection-lifecycle events.
func (c *Client) Subscribe() <-chan scrobbler.ClientEvent { return c.events }

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.emit(scrobbler.ClientEventRateLimited, err.Error())
		return err
	}
	return nil
}

// apiGet performs one Audioscrobbler GET request and decodes the JSON body
// into out.
func (c *Client) apiGet(ctx context.Context, params url.Values, out any) error {
	if err := c.wait(ctx); err != nil {
		return &scrobbler.ErrTransport{Op: "rate limit", Cause: err}
	}

	params.Set("api_key", c.cfg.APIKey)
	params.Set("format", "json")

	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(c.cfg.APIBaseURL + "/")
	if err != nil {
		c.emit(scrobbler.ClientEventDisconnected, err.Error())
		return &scrobbler.ErrTransport{Op: params.Get("method"), Cause: err}
	}

	if resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized {
		return scrobbler.ErrAuthRequired
	}

	var apiErr errorResponse
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Error != 0 {
		return &scrobbler.ErrTransport{Op: params.Get("method"), Cause: fmt.Errorf("lastfm error %d: %s", apiErr.Error, apiErr.Message)}
	}

	if resp.IsError() {
		return &scrobbler.ErrTransport{Op: params.Get("method"), Cause: fmt.Errorf("HTTP %d", resp.StatusCode())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &scrobbler.ErrTransport{Op: params.Get("method"), Cause: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func playFromAPITrack(t apiTrack) model.Play {
	p := model.Play{Name: t.Name}
	if t.Artist.Text != "" {
		artist := t.Artist.Text
		p.Artist = artist
	}
	if t.Album.Text != "" {
		album := t.Album.Text
		p.Album = &album
	}
	if t.Date.UTS != "" {
		if secs, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
			p.Timestamp = &secs
		}
	}
	p.PlayCount = 1
	return p
}

// RecentTracks returns a newest-first paginated view of recent plays.
func (c *Client) RecentTracks(ctx context.Context) (scrobbler.Pager[model.Play], error) {
	fetch := func(ctx context.Context, page int) ([]model.Play, bool, error) {
		params := url.Values{
			"method": {"user.getrecenttracks"},
			"user":   {c.cfg.Username},
			"page":   {strconv.Itoa(page)},
			"limit":  {"200"},
		}
		var resp recentTracksResponse
		if err := c.apiGet(ctx, params, &resp); err != nil {
			return nil, false, err
		}
		plays := make([]model.Play, 0, len(resp.RecentTracks.Track))
		for _, t := range resp.RecentTracks.Track {
			if t.Attributes.NowPlaying == "true" {
				continue
			}
			plays = append(plays, playFromAPITrack(t))
		}
		totalPages, _ := strconv.Atoi(resp.RecentTracks.Attributes.TotalPages)
		hasMore := page < totalPages
		return plays, hasMore, nil
	}
	return scrobbler.NewPageIterator(fetch), nil
}

// ArtistTracks returns a newest-first paginated view of plays by artist.
func (c *Client) ArtistTracks(ctx context.Context, artist string) (scrobbler.Pager[model.Play], error) {
	fetch := func(ctx context.Context, page int) ([]model.Play, bool, error) {
		params := url.Values{
			"method": {"user.getrecenttracks"},
			"user":   {c.cfg.Username},
			"page":   {strconv.Itoa(page)},
			"limit":  {"200"},
		}
		var resp recentTracksResponse
		if err := c.apiGet(ctx, params, &resp); err != nil {
			return nil, false, err
		}
		plays := make([]model.Play, 0, len(resp.RecentTracks.Track))
		for _, t := range resp.RecentTracks.Track {
			if t.Attributes.NowPlaying == "true" {
				continue
			}
			if !strings.EqualFold(t.Artist.Text, artist) {
				continue
			}
			plays = append(plays, playFromAPITrack(t))
		}
		totalPages, _ := strconv.Atoi(resp.RecentTracks.Attributes.TotalPages)
		hasMore := page < totalPages
		return plays, hasMore, nil
	}
	return scrobbler.NewPageIterator(fetch), nil
}

// SearchTracks returns a paginated view of plays matching query.
func (c *Client) SearchTracks(ctx context.Context, query string) (scrobbler.Pager[model.Play], error) {
	fetch := func(ctx context.Context, page int) ([]model.Play, bool, error) {
		params := url.Values{
			"method": {"track.search"},
			"track":  {query},
			"page":   {strconv.Itoa(page)},
			"limit":  {"30"},
		}
		var resp trackSearchResponse
		if err := c.apiGet(ctx, params, &resp); err != nil {
			return nil, false, err
		}
		plays := make([]model.Play, 0, len(resp.Results.TrackMatches.Track))
		for _, t := range resp.Results.TrackMatches.Track {
			plays = append(plays, playFromAPITrack(t))
		}
		hasMore := len(plays) > 0
		return plays, hasMore, nil
	}
	return scrobbler.NewPageIterator(fetch), nil
}

// SearchAlbums returns a paginated view of albums matching query.
func (c *Client) SearchAlbums(ctx context.Context, query string) (scrobbler.Pager[scrobbler.Album], error) {
	fetch := func(ctx context.Context, page int) ([]scrobbler.Album, bool, error) {
		params := url.Values{
			"method": {"album.search"},
			"album":  {query},
			"page":   {strconv.Itoa(page)},
			"limit":  {"30"},
		}
		var resp albumSearchResponse
		if err := c.apiGet(ctx, params, &resp); err != nil {
			return nil, false, err
		}
		albums := make([]scrobbler.Album, 0, len(resp.Results.AlbumMatches.Album))
		for _, a := range resp.Results.AlbumMatches.Album {
			albums = append(albums, scrobbler.Album{Name: a.Name, Artist: a.Artist})
		}
		hasMore := len(albums) > 0
		return albums, hasMore, nil
	}
	return scrobbler.NewPageIterator(fetch), nil
}

// GetAlbumTracks returns every known play for one album by one artist.
func (c *Client) GetAlbumTracks(ctx context.Context, album, artist string) ([]model.Play, error) {
	params := url.Values{
		"method": {"album.getinfo"},
		"album":  {album},
		"artist": {artist},
	}
	var resp albumInfoResponse
	if err := c.apiGet(ctx, params, &resp); err != nil {
		return nil, err
	}

	plays := make([]model.Play, 0, len(resp.Album.Tracks.Track))
	for _, t := range resp.Album.Tracks.Track {
		albumName := resp.Album.Name
		p := model.Play{
			Name:   t.Name,
			Artist: t.Artist.Name,
			Album:  &albumName,
		}
		if p.Artist == "" {
			p.Artist = resp.Album.Artist
		}
		plays = append(plays, p)
	}
	return plays, nil
}

// EditScrobble commits an edit to the remote service via a session-backed
// AJAX request, since the official API has no scrobble-edit method.
func (c *Client) EditScrobble(ctx context.Context, edit model.ScrobbleEdit) (scrobbler.EditResponse, error) {
	if err := c.ensureSession(ctx); err != nil {
		return scrobbler.EditResponse{}, err
	}
	if err := c.wait(ctx); err != nil {
		return scrobbler.EditResponse{}, &scrobbler.ErrTransport{Op: "edit_scrobble", Cause: err}
	}

	form := url.Values{
		"csrfmiddlewaretoken": {c.csrfToken},
		"track_name":          {edit.OriginalTrackName},
		"artist_name":         {edit.OriginalArtistName},
		"track_name_new":      {edit.NewTrackName},
		"artist_name_new":     {edit.NewArtistName},
	}
	if edit.NewAlbumName != nil {
		form.Set("album_name_new", *edit.NewAlbumName)
	}
	if edit.NewAlbumArtistName != nil {
		form.Set("album_artist_name_new", *edit.NewAlbumArtistName)
	}
	if edit.Timestamp != nil {
		form.Set("timestamp", strconv.FormatInt(*edit.Timestamp, 10))
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Referer", c.cfg.WebBaseURL+"/user/"+c.cfg.Username+"/library").
		SetFormDataFromValues(form).
		Post(c.cfg.WebBaseURL + "/library/edit")
	if err != nil {
		c.emit(scrobbler.ClientEventDisconnected, err.Error())
		return scrobbler.EditResponse{}, &scrobbler.ErrTransport{Op: "edit_scrobble", Cause: err}
	}
	if resp.IsError() {
		return scrobbler.EditResponse{Success: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode())}, nil
	}
	return scrobbler.EditResponse{Success: true}, nil
}

// ensureSession logs into the web UI once, scraping the CSRF token the
// edit-track AJAX endpoint requires.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	loginPage, err := c.rc.R().SetContext(ctx).Get(c.cfg.WebBaseURL + "/login")
	if err != nil {
		return &scrobbler.ErrTransport{Op: "login page", Cause: err}
	}
	token := extractCSRFToken(loginPage.String())
	if token == "" {
		return &scrobbler.ErrTransport{Op: "login page", Cause: fmt.Errorf("csrf token not found")}
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"csrfmiddlewaretoken": token,
			"username_or_email":   c.cfg.Username,
			"password":            c.cfg.Password,
		}).
		Post(c.cfg.WebBaseURL + "/login")
	if err != nil {
		return &scrobbler.ErrTransport{Op: "login", Cause: err}
	}
	if resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized {
		return scrobbler.ErrAuthRequired
	}

	c.csrfToken = extractCSRFToken(resp.String())
	if c.csrfToken == "" {
		c.csrfToken = token
	}
	c.loggedIn = true
	c.emit(scrobbler.ClientEventConnected, "session established")
	return nil
}

func extractCSRFToken(body string) string {
	m := csrfTokenPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
