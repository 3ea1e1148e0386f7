package llm

import (
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

func toolCall(name, arguments string) openai.ChatCompletionMessageToolCall {
	return openai.ChatCompletionMessageToolCall{
		ID: "call_1",
		Function: openai.ChatCompletionMessageToolCallFunction{
			Name:      name,
			Arguments: arguments,
		},
	}
}

func TestDecodeToolCallSuggestTrackEdit(t *testing.T) {
	p := New(Config{APIKey: "test", Model: "gpt-4o-mini"}, nil)
	plays := []model.Play{{Name: "Yesterday - 2009 Remaster", Artist: "The Beatles"}}

	call := toolCall(toolSuggestTrackEdit, `{"track_index":0,"new_track_name":"Yesterday","reason":"strip remaster suffix"}`)
	idx, s, err := p.decodeToolCall(call, plays)
	if err != nil {
		t.Fatalf("decodeToolCall: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if s.Kind != model.SuggestionEdit {
		t.Fatalf("expected edit suggestion, got %+v", s)
	}
	if s.Edit.NewTrackName != "Yesterday" {
		t.Errorf("expected cleaned track name, got %q", s.Edit.NewTrackName)
	}
	if s.Edit.NewArtistName != "The Beatles" {
		t.Errorf("expected untouched artist name carried over from NoOpEdit, got %q", s.Edit.NewArtistName)
	}
	if !s.RequiresConfirmation {
		t.Errorf("expected RequiresConfirmation true")
	}
}

func TestDecodeToolCallOutOfRangeIndexDropped(t *testing.T) {
	p := New(Config{APIKey: "test"}, nil)
	plays := []model.Play{{Name: "Track", Artist: "Artist"}}

	call := toolCall(toolSuggestTrackEdit, `{"track_index":5,"reason":"bogus"}`)
	_, s, err := p.decodeToolCall(call, plays)
	if err == nil {
		t.Fatalf("expected an error for out-of-range track_index, got suggestion %+v", s)
	}
}

func TestDecodeToolCallSuggestRewriteRule(t *testing.T) {
	p := New(Config{APIKey: "test"}, nil)
	plays := []model.Play{{Name: "You And I", Artist: "Chris Thile"}}

	call := toolCall(toolSuggestRewriteRule, `{
		"track_index": 0,
		"rule_name": "chris-thile-collab",
		"artist_name": {"find": "^Chris Thile$", "replace": "Chris Thile & Michael Daves", "regex": true},
		"requires_confirmation": true,
		"motivation": "artist consistently collaborates on this album"
	}`)
	idx, s, err := p.decodeToolCall(call, plays)
	if err != nil {
		t.Fatalf("decodeToolCall: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if s.Kind != model.SuggestionProposeRule {
		t.Fatalf("expected propose-rule suggestion, got %+v", s)
	}
	if s.ProposedRule.ArtistName == nil || s.ProposedRule.ArtistName.Kind != rewrite.KindRegex {
		t.Fatalf("expected regex artist_name FindReplace, got %+v", s.ProposedRule.ArtistName)
	}
	if s.ProposedRule.Name != "chris-thile-collab" {
		t.Errorf("expected rule name to carry through, got %q", s.ProposedRule.Name)
	}
}

func TestDecodeToolCallUnknownToolRejected(t *testing.T) {
	p := New(Config{APIKey: "test"}, nil)
	call := toolCall("not_a_real_tool", `{}`)
	_, _, err := p.decodeToolCall(call, []model.Play{{Name: "x", Artist: "y"}})
	if err == nil {
		t.Fatalf("expected an error for an unknown tool name")
	}
}

func TestRenderBatchListsTracksAndPendingWork(t *testing.T) {
	album := "Abbey Road"
	plays := []model.Play{{Name: "Come Together", Artist: "The Beatles", Album: &album}}
	pendingEdits := []model.PendingEdit{{OriginalTrackName: "Something", OriginalArtistName: "The Beatles"}}
	pendingRules := []model.PendingRewriteRule{{Rule: rewrite.RewriteRule{Name: "strip-remaster"}}}

	out := renderBatch(plays, pendingEdits, pendingRules)
	if !strings.Contains(out, "Come Together") || !strings.Contains(out, "Abbey Road") {
		t.Errorf("expected rendered batch to include track and album, got: %s", out)
	}
	if !strings.Contains(out, "Something") {
		t.Errorf("expected rendered batch to list pending edits, got: %s", out)
	}
	if !strings.Contains(out, "strip-remaster") {
		t.Errorf("expected rendered batch to list pending rule names, got: %s", out)
	}
}

func TestNewAppliesRuleFocusDirective(t *testing.T) {
	p := New(Config{APIKey: "test", RuleFocus: true}, nil)
	if !strings.Contains(p.prompt, "reusable rewrite rule") {
		t.Errorf("expected rule-focus directive to be appended to the system prompt")
	}
}
