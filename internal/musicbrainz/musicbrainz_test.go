package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	return NewWithBaseURL(nil, baseURL)
}

func TestSearchRecordingsParsesReleases(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recording" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"created": "",
			"count": 1,
			"offset": 0,
			"recordings": [
				{
					"id": "rec-1",
					"title": "Here Comes the Sun",
					"score": 100,
					"releases": [
						{
							"id": "rel-compilation",
							"title": "Love",
							"status": "Official",
							"date": "2006",
							"release-group": {"id": "rg-1", "primary-type": "Compilation"}
						},
						{
							"id": "rel-album",
							"title": "Abbey Road",
							"status": "Official",
							"date": "1969",
							"release-group": {"id": "rg-2", "primary-type": "Album"}
						}
					]
				}
			]
		}`))
	})

	c := newTestClient(srv.URL)
	recordings, err := c.SearchRecordings(context.Background(), "The Beatles", "Here Comes the Sun")
	if err != nil {
		t.Fatalf("SearchRecordings: %v", err)
	}
	if len(recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(recordings))
	}
	if len(recordings[0].Releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(recordings[0].Releases))
	}
	if recordings[0].Releases[1].ReleaseGroup.PrimaryType != "Album" {
		t.Errorf("expected second release to be an Album, got %q", recordings[0].Releases[1].ReleaseGroup.PrimaryType)
	}
}

func TestSearchRecordingsNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(srv.URL)
	_, err := c.SearchRecordings(context.Background(), "Nobody", "Nothing")
	if err == nil {
		t.Fatal("expected an error")
	}
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v (%T)", err, err)
	}
}

func TestSearchRecordingsRetriesSignaledOnServiceUnavailable(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(srv.URL)
	_, err := c.SearchRecordings(context.Background(), "Artist", "Title")
	if err == nil {
		t.Fatal("expected an error")
	}
	var ua *ErrUnavailable
	if !errors.As(err, &ua) {
		t.Fatalf("expected ErrUnavailable, got %v (%T)", err, err)
	}
	if ua.RetryAfter <= 0 {
		t.Errorf("expected a positive RetryAfter hint")
	}
}
