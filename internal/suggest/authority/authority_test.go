package authority

import (
	"context"
	"testing"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/musicbrainz"
)

type fakeSearcher struct {
	recordings []musicbrainz.Recording
}

func (f fakeSearcher) SearchRecordings(ctx context.Context, artist, title string) ([]musicbrainz.Recording, error) {
	return f.recordings, nil
}

func strp(s string) *string { return &s }

func TestAnalyzeTracksProposesCanonicalRelease(t *testing.T) {
	searcher := fakeSearcher{recordings: []musicbrainz.Recording{
		{
			ID:    "rec-1",
			Title: "Here Comes the Sun",
			Releases: []musicbrainz.Release{
				{Title: "Love", Status: "Official", Date: "2006", ReleaseGroup: musicbrainz.ReleaseGroup{PrimaryType: "Compilation"}},
				{Title: "Abbey Road", Status: "Official", Date: "1969", ReleaseGroup: musicbrainz.ReleaseGroup{PrimaryType: "Album"}},
			},
		},
	}}

	p := New(searcher, Config{OfficialOnly: true})
	plays := []model.Play{{Name: "Here Comes the Sun", Artist: "The Beatles", Album: strp("Love")}}

	results, err := p.AnalyzeTracks(context.Background(), plays, nil, nil)
	if err != nil {
		t.Fatalf("AnalyzeTracks: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	s := results[0].Suggestions
	if len(s) != 1 || s[0].Kind != model.SuggestionEdit {
		t.Fatalf("expected one edit suggestion, got %+v", s)
	}
	if s[0].Edit.NewAlbumName == nil || *s[0].Edit.NewAlbumName != "Abbey Road" {
		t.Fatalf("expected proposed album Abbey Road, got %+v", s[0].Edit.NewAlbumName)
	}
	if !s[0].RequiresConfirmation {
		t.Errorf("expected RequiresConfirmation true")
	}
}

func TestAnalyzeTracksSkipsPlaysWithoutAlbum(t *testing.T) {
	p := New(fakeSearcher{}, Config{})
	plays := []model.Play{{Name: "No Album Track", Artist: "Someone"}}
	results, err := p.AnalyzeTracks(context.Background(), plays, nil, nil)
	if err != nil {
		t.Fatalf("AnalyzeTracks: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestAnalyzeTracksSkipsWhenAlreadyCanonical(t *testing.T) {
	searcher := fakeSearcher{recordings: []musicbrainz.Recording{
		{
			Releases: []musicbrainz.Release{
				{Title: "Abbey Road", Status: "Official", Date: "1969", ReleaseGroup: musicbrainz.ReleaseGroup{PrimaryType: "Album"}},
			},
		},
	}}
	p := New(searcher, Config{})
	plays := []model.Play{{Name: "Come Together", Artist: "The Beatles", Album: strp("Abbey Road")}}

	results, err := p.AnalyzeTracks(context.Background(), plays, nil, nil)
	if err != nil {
		t.Fatalf("AnalyzeTracks: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no suggestions for an already-canonical album, got %+v", results)
	}
}

func TestCompareReleasesDateGapOverride(t *testing.T) {
	single := rankedRelease{title: "Early Single", date: "1960", primaryType: "Single", primaryPriority: primaryTypePriority("Single")}
	album := rankedRelease{title: "Later Album", date: "1975", primaryType: "Album", primaryPriority: primaryTypePriority("Album")}

	if compareReleases(single, album, nil) >= 0 {
		t.Errorf("expected single predating album by 10+ years to rank first")
	}
}

func TestIsCompilationTitle(t *testing.T) {
	cases := map[string]bool{
		"Greatest Hits":               true,
		"The Essential Collection":    true,
		"Abbey Road":                  false,
		"Now That's What I Call Music": true,
	}
	for title, want := range cases {
		if got := isCompilationTitle(title); got != want {
			t.Errorf("isCompilationTitle(%q) = %v, want %v", title, got, want)
		}
	}
}
