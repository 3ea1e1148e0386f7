// Package authority is the metadata-authority suggestion provider: for
// plays carrying an album, it queries MusicBrainz for every known release
// of (artist, track), ranks them, and proposes retargeting the play to the
// best non-compilation release when the currently-named album is a
// compilation and a strictly-better release exists.
package authority

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/musicbrainz"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
)

// RecordingSearcher is the narrow slice of musicbrainz.Client this provider
// needs.
type RecordingSearcher interface {
	SearchRecordings(ctx context.Context, artist, title string) ([]musicbrainz.Recording, error)
}

// Config tunes the ranking and filtering behavior.
type Config struct {
	OfficialOnly bool
	MaxResults   int
	// ConfidenceThreshold discards MusicBrainz recording matches whose
	// search score (0-100) falls below threshold*100. Zero disables the
	// filter.
	ConfidenceThreshold float64
	// ReleaseFilters excludes releases whose release-group primary or
	// secondary type (e.g. "Live", "Remix", "Soundtrack") matches one of
	// these values, case-insensitively, before ranking even considers them.
	ReleaseFilters        []string
	DeprioritizeCountries []string
}

// Provider is the metadata-authority suggestion provider.
type Provider struct {
	client RecordingSearcher
	cfg    Config
}

// New creates an authority Provider.
func New(client RecordingSearcher, cfg Config) *Provider {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Provider{client: client, cfg: cfg}
}

// Name identifies the provider for logging and provider-name tagging.
func (p *Provider) Name() string { return "authority" }

// AnalyzeTracks queries the authority for every play carrying an album and
// proposes an album-field-only Edit when the current album is a
// compilation and a better release exists.
func (p *Provider) AnalyzeTracks(ctx context.Context, plays []model.Play, _ []model.PendingEdit, _ []model.PendingRewriteRule) ([]suggest.IndexedSuggestions, error) {
	var out []suggest.IndexedSuggestions

	for i, play := range plays {
		if play.Album == nil || *play.Album == "" {
			continue
		}

		// Rate-limit courteously between authority calls.
		if i > 0 {
			time.Sleep(100 * time.Millisecond)
		}

		recordings, err := p.client.SearchRecordings(ctx, play.Artist, play.Name)
		if err != nil {
			return nil, &suggest.ErrProviderUnavailable{Provider: p.Name(), Cause: err}
		}
		recordings = filterByConfidence(recordings, p.cfg.ConfidenceThreshold)

		releases := collectReleases(recordings, p.cfg.OfficialOnly, p.cfg.ReleaseFilters, p.cfg.MaxResults)
		if len(releases) == 0 {
			continue
		}
		ranked := rankReleases(releases, p.cfg.DeprioritizeCountries)

		currentIsCompilation := isCompilationTitle(*play.Album) || releaseNamed(ranked, *play.Album).isCompilation
		if !currentIsCompilation {
			continue
		}

		best := bestNonCompilation(ranked)
		if best == nil || strings.EqualFold(best.title, *play.Album) {
			continue
		}

		edit := model.ScrobbleEdit{
			OriginalTrackName:       play.Name,
			OriginalArtistName:      play.Artist,
			OriginalAlbumName:       play.Album,
			OriginalAlbumArtistName: play.AlbumArtist,
			NewTrackName:            play.Name,
			NewArtistName:           play.Artist,
			NewAlbumArtistName:      play.AlbumArtist,
			Timestamp:               play.Timestamp,
		}
		newAlbum := best.title
		edit.NewAlbumName = &newAlbum

		out = append(out, suggest.IndexedSuggestions{
			Index: i,
			Suggestions: []model.Suggestion{
				{
					Kind:                 model.SuggestionEdit,
					Edit:                 &edit,
					RequiresConfirmation: true,
					ProviderName:         p.Name(),
				},
			},
		})
	}

	return out, nil
}

// rankedRelease carries the ranking verdicts computed for one release.
type rankedRelease struct {
	title           string
	date            string
	country         string
	statusPriority  int
	isCompilation   bool
	isSpecial       bool
	primaryType     string
	primaryPriority int
}

func releaseNamed(releases []rankedRelease, name string) rankedRelease {
	for _, r := range releases {
		if strings.EqualFold(r.title, name) {
			return r
		}
	}
	return rankedRelease{}
}

// filterByConfidence drops recordings whose MusicBrainz search score falls
// below threshold*100. A non-positive threshold disables the filter.
func filterByConfidence(recordings []musicbrainz.Recording, threshold float64) []musicbrainz.Recording {
	if threshold <= 0 {
		return recordings
	}
	out := make([]musicbrainz.Recording, 0, len(recordings))
	for _, rec := range recordings {
		if float64(rec.Score) >= threshold*100 {
			out = append(out, rec)
		}
	}
	return out
}

// releaseFiltered reports whether rel's release-group primary or secondary
// type matches one of the configured filter values, case-insensitively.
func releaseFiltered(rel musicbrainz.Release, filters []string) bool {
	for _, f := range filters {
		if strings.EqualFold(rel.ReleaseGroup.PrimaryType, f) {
			return true
		}
		for _, st := range rel.ReleaseGroup.SecondaryTypes {
			if strings.EqualFold(st, f) {
				return true
			}
		}
	}
	return false
}

func collectReleases(recordings []musicbrainz.Recording, officialOnly bool, releaseFilters []string, maxResults int) []musicbrainz.Release {
	var out []musicbrainz.Release
	for _, rec := range recordings {
		for _, rel := range rec.Releases {
			if officialOnly && rel.Status != "" && !strings.EqualFold(rel.Status, "Official") {
				continue
			}
			if releaseFiltered(rel, releaseFilters) {
				continue
			}
			out = append(out, rel)
			if len(out) >= maxResults {
				return out
			}
		}
	}
	return out
}

func statusPriority(status string) int {
	switch strings.ToLower(status) {
	case "official":
		return 0
	case "":
		return 1
	case "promotion":
		return 2
	case "bootleg":
		return 3
	case "pseudo-release":
		return 4
	default:
		return 5
	}
}

func primaryTypePriority(primaryType string) int {
	switch primaryType {
	case "Album":
		return 0
	case "EP":
		return 1
	case "Single":
		return 2
	case "Broadcast":
		return 3
	default:
		return 4
	}
}

var compilationSecondaryTypes = map[string]bool{
	"Compilation":    true,
	"Soundtrack":     true,
	"Live":           true,
	"Remix":          true,
	"DJ-mix":         true,
	"Mixtape/Street": true,
	"Interview":      true,
}

func hasCompilationSecondaryTypes(rel musicbrainz.Release) bool {
	if rel.ReleaseGroup.PrimaryType == "Compilation" {
		return true
	}
	for _, st := range rel.ReleaseGroup.SecondaryTypes {
		if compilationSecondaryTypes[st] {
			return true
		}
	}
	return false
}

func isCompilationTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, pattern := range []string{"greatest", "best of", "collection", "essential", "anthology", "ultimate", "soundtrack", "compilati", "hits", "present", "introducing"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return strings.HasPrefix(lower, "now that's what")
}

func isSpecialEdition(title string) bool {
	lower := strings.ToLower(title)
	for _, pattern := range []string{"deluxe", "remaster", "special", "anniversary", "expanded", "collector", "limited", "super", "bonus"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func extractYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

// rankReleases converts raw releases to ranked verdicts and sorts them
// best-first using the seven-stage comparator from spec.md §4.4.
func rankReleases(releases []musicbrainz.Release, deprioritize []string) []rankedRelease {
	ranked := make([]rankedRelease, 0, len(releases))
	for _, rel := range releases {
		ranked = append(ranked, rankedRelease{
			title:           rel.Title,
			date:            rel.Date,
			country:         rel.Country,
			statusPriority:  statusPriority(rel.Status),
			isCompilation:   hasCompilationSecondaryTypes(rel) || isCompilationTitle(rel.Title),
			isSpecial:       isSpecialEdition(rel.Title),
			primaryType:     rel.ReleaseGroup.PrimaryType,
			primaryPriority: primaryTypePriority(rel.ReleaseGroup.PrimaryType),
		})
	}

	deprioritized := make(map[string]bool, len(deprioritize))
	for _, c := range deprioritize {
		deprioritized[strings.ToUpper(c)] = true
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return compareReleases(ranked[i], ranked[j], deprioritized) < 0
	})
	return ranked
}

// compareReleases implements the seven ranking stages: status, then
// compilation-ness, then special-edition, then a single/album date-gap
// override, then primary type, then date, then geographic deprioritization.
func compareReleases(a, b rankedRelease, deprioritized map[string]bool) int {
	if a.statusPriority != b.statusPriority {
		return a.statusPriority - b.statusPriority
	}
	if a.isCompilation != b.isCompilation {
		if a.isCompilation {
			return 1
		}
		return -1
	}
	if a.isSpecial != b.isSpecial {
		if a.isSpecial {
			return 1
		}
		return -1
	}

	aYear, aHasYear := extractYear(a.date)
	bYear, bHasYear := extractYear(b.date)
	if aHasYear && bHasYear {
		if a.primaryType == "Single" && b.primaryType == "Album" && aYear+10 <= bYear {
			return -1
		}
		if a.primaryType == "Album" && b.primaryType == "Single" && bYear+10 <= aYear {
			return 1
		}
	}

	if a.primaryPriority != b.primaryPriority {
		return a.primaryPriority - b.primaryPriority
	}

	if aHasYear && bHasYear && aYear != bYear {
		return aYear - bYear
	}

	aDeprioritized := deprioritized[strings.ToUpper(a.country)]
	bDeprioritized := deprioritized[strings.ToUpper(b.country)]
	if aDeprioritized != bDeprioritized {
		if aDeprioritized {
			return 1
		}
		return -1
	}
	return 0
}

func bestNonCompilation(ranked []rankedRelease) *rankedRelease {
	for i := range ranked {
		if !ranked[i].isCompilation {
			return &ranked[i]
		}
	}
	return nil
}
