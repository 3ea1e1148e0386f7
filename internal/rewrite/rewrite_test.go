package rewrite

import "testing"

func strp(s string) *string { return &s }

func TestFindReplaceLiteralApply(t *testing.T) {
	fr := &FindReplace{Find: "foo", Replace: "bar", Kind: KindLiteral}
	out, err := fr.Apply("foo foo baz")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "bar bar baz" {
		t.Errorf("got %q", out)
	}
}

func TestFindReplaceLiteralMaxReplacements(t *testing.T) {
	fr := &FindReplace{Find: "a", Replace: "x", Kind: KindLiteral, MaxReplacements: 2}
	out, err := fr.Apply("aaaa")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "xxaa" {
		t.Errorf("got %q", out)
	}
}

func TestFindReplaceRegexCaptureGroups(t *testing.T) {
	fr := &FindReplace{Find: `(\w+)@(\w+)`, Replace: "$2@$1", Kind: KindRegex}
	out, err := fr.Apply("user@host")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "host@user" {
		t.Errorf("got %q", out)
	}
}

func TestFindReplaceDollarDollarIsLiteral(t *testing.T) {
	fr := &FindReplace{Find: `price`, Replace: "$$5", Kind: KindRegex}
	out, err := fr.Apply("price")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "$5" {
		t.Errorf("got %q", out)
	}
}

func TestFindReplaceInvalidCaptureReference(t *testing.T) {
	fr := &FindReplace{Find: "x", Replace: "$", Kind: KindRegex}
	if err := fr.Compile(); err == nil {
		t.Fatal("expected compile error for trailing $")
	}
}

func TestFindReplaceUnclosedCaptureBrace(t *testing.T) {
	fr := &FindReplace{Find: "x", Replace: "${name", Kind: KindRegex}
	if err := fr.Compile(); err == nil {
		t.Fatal("expected compile error for unclosed brace")
	}
}

func TestFindReplaceWouldModify(t *testing.T) {
	fr := &FindReplace{Find: "x", Replace: "y", Kind: KindLiteral}
	yes, err := fr.WouldModify("x")
	if err != nil || !yes {
		t.Fatalf("expected would-modify true, got %v, %v", yes, err)
	}
	no, err := fr.WouldModify("z")
	if err != nil || no {
		t.Fatalf("expected would-modify false, got %v, %v", no, err)
	}
}

func TestFindReplaceCaseInsensitiveFlag(t *testing.T) {
	fr := &FindReplace{Find: "remaster", Replace: "", Kind: KindRegex, Flags: "i"}
	out, err := fr.Apply("Remaster Edition")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != " Edition" {
		t.Errorf("got %q", out)
	}
}

// S1 from the scenario catalogue: remaster-suffix strip on a track name.
func TestScenarioS1RemasterSuffixStrip(t *testing.T) {
	rule := RewriteRule{
		Name: "strip-remaster",
		TrackName: &FindReplace{
			Find: ` - \d{4} Remaster`,
			Kind: KindRegex,
		},
	}

	play := Play{Name: "Yesterday - 2009 Remaster", Artist: "The Beatles", Album: strp("Help!")}
	matched, err := rule.Matches(play)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !matched {
		t.Fatal("expected rule to match")
	}

	edit := NoOpEdit(play)
	changed, err := rule.Apply(&edit)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if edit.NewTrackName != "Yesterday" {
		t.Errorf("expected track name Yesterday, got %q", edit.NewTrackName)
	}
	if edit.NewArtistName != "The Beatles" {
		t.Errorf("artist should be unchanged, got %q", edit.NewArtistName)
	}
	if !StrPtrEqual(edit.NewAlbumName, strp("Help!")) {
		t.Errorf("album should be unchanged")
	}
}

// S2: conjunctive matching fails when one condition does not hold: the
// artist pattern does not match, and the album condition is a literal
// pattern rather than ".*", so it does not match the absent album either.
func TestScenarioS2ConjunctiveMatchFails(t *testing.T) {
	rule := RewriteRule{
		Name: "chris-thile",
		ArtistName: &FindReplace{
			Find: `^Chris Thile$`,
			Replace: "Chris Thile & Michael Daves",
			Kind: KindRegex,
		},
		AlbumName: &FindReplace{
			Find:    `Sleep With One Eye Open`,
			Replace: "$0",
			Kind:    KindLiteral,
		},
	}

	play := Play{Name: "You And I", Artist: "Queen", Album: nil}
	matched, err := rule.Matches(play)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if matched {
		t.Fatal("expected rule NOT to match: artist condition fails")
	}
}

// Invariant 1: match-before-apply.
func TestInvariantMatchBeforeApply(t *testing.T) {
	rule := RewriteRule{
		ArtistName: &FindReplace{Find: "^Nonexistent$", Kind: KindRegex},
		TrackName:  &FindReplace{Find: ".", Replace: "X", Kind: KindRegex},
	}
	edit := ScrobbleEdit{
		OriginalTrackName:  "abc",
		NewTrackName:       "abc",
		OriginalArtistName: "Someone",
		NewArtistName:      "Someone",
	}
	before := edit
	changed, err := rule.Apply(&edit)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Fatal("expected no change on a non-matching rule")
	}
	if edit != before {
		t.Fatal("edit must be left byte-identical on a miss")
	}
}

// Invariant 3: the none-field policy — only ".*" matches an absent field.
func TestInvariantNoneFieldPolicy(t *testing.T) {
	wildcard := RewriteRule{
		AlbumName: &FindReplace{Find: ".*", Kind: KindRegex},
		TrackName: &FindReplace{Find: "x", Replace: "y", Kind: KindLiteral},
	}
	play := Play{Name: "x", Artist: "a", Album: nil}
	matched, err := wildcard.Matches(play)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !matched {
		t.Fatal("expected .* to match an absent album field")
	}

	specific := RewriteRule{
		AlbumName: &FindReplace{Find: "Help!", Kind: KindRegex},
		TrackName: &FindReplace{Find: "x", Replace: "y", Kind: KindLiteral},
	}
	matched, err = specific.Matches(play)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if matched {
		t.Fatal("expected a non-wildcard pattern not to match an absent field")
	}
}

func TestApplyAllSequentialEvaluation(t *testing.T) {
	rules := []RewriteRule{
		{TrackName: &FindReplace{Find: "a", Replace: "b", Kind: KindLiteral}},
		{TrackName: &FindReplace{Find: "b", Replace: "c", Kind: KindLiteral}},
	}
	play := Play{Name: "a", Artist: "artist"}
	edit := NoOpEdit(play)

	changed, err := ApplyAll(rules, &edit)
	if err != nil {
		t.Fatalf("ApplyAll: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if edit.NewTrackName != "c" {
		t.Errorf("expected sequential rewriting to c, got %q", edit.NewTrackName)
	}
}

func TestDefaultRulesCompile(t *testing.T) {
	for _, rule := range DefaultRules() {
		for _, fr := range []*FindReplace{rule.TrackName, rule.ArtistName, rule.AlbumName, rule.AlbumArtistName} {
			if fr == nil {
				continue
			}
			if err := fr.Compile(); err != nil {
				t.Errorf("rule %s: compile error: %v", rule.Name, err)
			}
		}
	}
}
