package lastfmclient

// Audioscrobbler API response shapes for the read-only endpoints this
// client uses (user.getrecenttracks, track.search, album.search,
// album.getinfo). ArtistTracks reuses user.getrecenttracks and filters the
// plays by artist.

type recentTracksResponse struct {
	RecentTracks struct {
		Track      []apiTrack `json:"track"`
		Attributes struct {
			Page       string `json:"page"`
			TotalPages string `json:"totalPages"`
		} `json:"@attr"`
	} `json:"recenttracks"`
}

type apiTrack struct {
	Name string `json:"name"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Album struct {
		Text string `json:"#text"`
	} `json:"album"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attributes struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

type trackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []apiTrack `json:"track"`
		} `json:"trackmatches"`
		OpenSearchQuery struct {
			TotalResults string `json:"#text"`
		} `json:"opensearch:totalResults"`
	} `json:"results"`
}

type albumSearchResponse struct {
	Results struct {
		AlbumMatches struct {
			Album []apiAlbum `json:"album"`
		} `json:"albummatches"`
	} `json:"results"`
}

type apiAlbum struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

type albumInfoResponse struct {
	Album struct {
		Name   string `json:"name"`
		Artist string `json:"artist"`
		Tracks struct {
			Track []apiAlbumTrack `json:"track"`
		} `json:"tracks"`
	} `json:"album"`
}

type apiAlbumTrack struct {
	Name   string `json:"name"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
