// Package musicbrainz is the metadata-authority transport: a rate-limited
// client over the public MusicBrainz web service, used by the authority
// suggestion provider to look up every known release of a recording.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	userAgent      = "scrobble-scrubber-go/1.0 (https://github.com/colonelpanic8/scrobble-scrubber-go)"
)

// ErrNotFound indicates the requested MBID has no corresponding resource.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string { return "musicbrainz: not found: " + e.ID }

// ErrUnavailable wraps a transport or rate-limit failure reaching MusicBrainz.
type ErrUnavailable struct {
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return "musicbrainz: unavailable: " + e.Cause.Error()
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// Client is a rate-limited MusicBrainz web-service client.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
}

// New creates a Client against the public MusicBrainz instance. logger may
// be nil, in which case a discard logger is used.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(logger, defaultBaseURL)
}

// NewWithBaseURL creates a Client against a custom base URL, for tests.
func NewWithBaseURL(logger *slog.Logger, baseURL string) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger.With(slog.String("provider", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SearchRecordings finds recordings matching (artist, title), each carrying
// its known releases (inc=releases+release-groups).
func (c *Client) SearchRecordings(ctx context.Context, artist, title string) ([]Recording, error) {
	query := fmt.Sprintf("recording:%q AND artist:%q", title, artist)
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"inc":   {"releases+release-groups"},
		"limit": {"25"},
	}
	reqURL := c.baseURL + "/recording?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp RecordingSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("musicbrainz: parsing recording search response: %w", err)
	}
	return resp.Recordings, nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz: creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrNotFound{ID: reqURL}
	}
	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrUnavailable{Cause: fmt.Errorf("HTTP %d", resp.StatusCode), RetryAfter: 2 * time.Second}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrUnavailable{Cause: fmt.Errorf("unexpected HTTP %d", resp.StatusCode)}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
