package rewrite

// RewriteRule transforms up to four textual fields of a scrobble. A rule
// matches a play only if every FindReplace it defines would modify its
// corresponding field — fields with no FindReplace are unconstrained.
type RewriteRule struct {
	Name            string
	TrackName       *FindReplace
	ArtistName      *FindReplace
	AlbumName       *FindReplace
	AlbumArtistName *FindReplace

	RequiresConfirmation          bool
	RequiresAuthorityConfirmation bool
}

// fieldMatches applies the none-field policy: an absent field value
// matches only the literal regex pattern ".*".
func fieldMatches(fr *FindReplace, value *string) (bool, error) {
	if fr == nil {
		return true, nil
	}
	if value == nil {
		return fr.Kind == KindRegex && fr.Find == ".*", nil
	}
	return fr.WouldModify(*value)
}

// Matches reports whether the rule matches a play: the conjunction of
// would-modify across every field the rule defines.
func (r *RewriteRule) Matches(p Play) (bool, error) {
	checks := []struct {
		fr    *FindReplace
		value *string
	}{
		{r.TrackName, &p.Name},
		{r.ArtistName, &p.Artist},
		{r.AlbumName, p.Album},
		{r.AlbumArtistName, p.AlbumArtist},
	}
	for _, c := range checks {
		if c.fr == nil {
			continue
		}
		ok, err := fieldMatches(c.fr, c.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MatchesEdit is Matches against the proposed values of a ScrobbleEdit.
func (r *RewriteRule) MatchesEdit(e ScrobbleEdit) (bool, error) {
	checks := []struct {
		fr    *FindReplace
		value *string
	}{
		{r.TrackName, &e.NewTrackName},
		{r.ArtistName, &e.NewArtistName},
		{r.AlbumName, e.NewAlbumName},
		{r.AlbumArtistName, e.NewAlbumArtistName},
	}
	for _, c := range checks {
		if c.fr == nil {
			continue
		}
		ok, err := fieldMatches(c.fr, c.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Apply runs every defined FindReplace against its field of edit,
// updating it in place. It first re-checks MatchesEdit and returns false
// without mutating anything on a miss — partial application is forbidden.
func (r *RewriteRule) Apply(edit *ScrobbleEdit) (bool, error) {
	matched, err := r.MatchesEdit(*edit)
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}

	changed := false

	if r.TrackName != nil {
		out, err := r.TrackName.Apply(edit.NewTrackName)
		if err != nil {
			return false, err
		}
		if out != edit.NewTrackName {
			edit.NewTrackName = out
			changed = true
		}
	}

	if r.ArtistName != nil {
		out, err := r.ArtistName.Apply(edit.NewArtistName)
		if err != nil {
			return false, err
		}
		if out != edit.NewArtistName {
			edit.NewArtistName = out
			changed = true
		}
	}

	if r.AlbumName != nil {
		current := ""
		if edit.NewAlbumName != nil {
			current = *edit.NewAlbumName
		}
		out, err := r.AlbumName.Apply(current)
		if err != nil {
			return false, err
		}
		if out != current {
			edit.NewAlbumName = &out
			changed = true
		}
	}

	if r.AlbumArtistName != nil {
		current := ""
		if edit.NewAlbumArtistName != nil {
			current = *edit.NewAlbumArtistName
		}
		out, err := r.AlbumArtistName.Apply(current)
		if err != nil {
			return false, err
		}
		if out != current {
			edit.NewAlbumArtistName = &out
			changed = true
		}
	}

	return changed, nil
}

// ApplyAll runs rules in list order against edit, each seeing the state
// left by earlier rules. Returns true iff any rule made any change.
func ApplyAll(rules []RewriteRule, edit *ScrobbleEdit) (bool, error) {
	anyChanges := false
	for i := range rules {
		changed, err := rules[i].Apply(edit)
		if err != nil {
			return anyChanges, err
		}
		if changed {
			anyChanges = true
		}
	}
	return anyChanges, nil
}

// DefaultRules returns the built-in cleanup rule set seeded into a fresh
// store: remaster-suffix strips, featuring-format normalization,
// whitespace trims, and explicit-tag strips.
func DefaultRules() []RewriteRule {
	return []RewriteRule{
		{
			Name: "strip-remaster-suffix",
			TrackName: &FindReplace{
				Find:  ` - \d{4} [Rr]emaster| - [Rr]emaster \d{4}| - [Rr]emaster| \(\d{4} [Rr]emaster\)| \([Rr]emaster \d{4}\)| \([Rr]emaster\)`,
				Kind:  KindRegex,
			},
		},
		{
			Name: "normalize-featuring",
			ArtistName: &FindReplace{
				Find:    ` [Ff]t\. | [Ff]eaturing `,
				Replace: " feat. ",
				Kind:    KindRegex,
			},
		},
		{
			Name: "collapse-whitespace",
			TrackName: &FindReplace{
				Find:    `\s+`,
				Replace: " ",
				Kind:    KindRegex,
			},
			ArtistName: &FindReplace{
				Find:    `\s+`,
				Replace: " ",
				Kind:    KindRegex,
			},
		},
		{
			Name: "trim-whitespace",
			TrackName: &FindReplace{
				Find: `^\s+|\s+$`,
				Kind: KindRegex,
			},
			ArtistName: &FindReplace{
				Find: `^\s+|\s+$`,
				Kind: KindRegex,
			},
		},
		{
			Name: "strip-explicit-tag",
			TrackName: &FindReplace{
				Find: ` \(Explicit\)$| - Explicit$`,
				Kind: KindRegex,
			},
		},
	}
}
