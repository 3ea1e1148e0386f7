// Package llm is the OpenAI-backed suggestion provider: it presents a
// batch of plays to a function-calling chat model and turns tool calls
// back into Edit and ProposeRule suggestions.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/model"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/suggest"
)

const (
	toolSuggestTrackEdit   = "suggest_track_edit"
	toolSuggestRewriteRule = "suggest_rewrite_rule"
)

const defaultSystemPrompt = `You clean up scrobble history metadata. You are shown a numbered
batch of recently played tracks. For each track that has a metadata problem
(remaster suffixes, misspelled artist names, compilation albums standing in
for the studio album, and similar issues), call suggest_track_edit with the
corrected fields. If you notice a pattern that would recur across many
tracks by the same artist or album, call suggest_rewrite_rule instead of
(or in addition to) editing the one track. Only call a tool for tracks that
actually need a change; say nothing about tracks that are already correct.`

const ruleFocusDirective = `Prefer proposing a reusable rewrite rule over a one-off track edit
whenever the same find/replace would plausibly apply to other tracks by
this artist or on this album.`

// Config configures the provider.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	RuleFocus    bool
}

// Provider is the LLM suggestion provider.
type Provider struct {
	client *openai.Client
	model  string
	prompt string
	logger *slog.Logger
}

// New creates an llm Provider. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Provider {
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	if cfg.RuleFocus {
		prompt = prompt + "\n\n" + ruleFocusDirective
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	return &Provider{client: &client, model: cfg.Model, prompt: prompt, logger: logger}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Name identifies the provider for logging and provider-name tagging.
func (p *Provider) Name() string { return "llm" }

// trackEditArgs is the JSON shape of the suggest_track_edit tool call.
type trackEditArgs struct {
	TrackIndex         int     `json:"track_index"`
	NewTrackName       *string `json:"new_track_name"`
	NewArtistName      *string `json:"new_artist_name"`
	NewAlbumName       *string `json:"new_album_name"`
	NewAlbumArtistName *string `json:"new_album_artist_name"`
	Reason             string  `json:"reason"`
}

// findReplaceArg is the JSON shape of one field's find/replace in a
// suggest_rewrite_rule tool call.
type findReplaceArg struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Regex   bool   `json:"regex"`
}

type rewriteRuleArgs struct {
	TrackIndex           int              `json:"track_index"`
	RuleName             string           `json:"rule_name"`
	TrackName            *findReplaceArg  `json:"track_name"`
	ArtistName           *findReplaceArg  `json:"artist_name"`
	AlbumName            *findReplaceArg  `json:"album_name"`
	AlbumArtistName      *findReplaceArg  `json:"album_artist_name"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	Motivation           string           `json:"motivation"`
}

// AnalyzeTracks presents plays to the model and decodes any tool calls it
// makes into suggestions. Tool calls naming an out-of-range track_index
// are dropped with a logged warning rather than failing the batch.
func (p *Provider) AnalyzeTracks(ctx context.Context, plays []model.Play, pendingEdits []model.PendingEdit, pendingRules []model.PendingRewriteRule) ([]suggest.IndexedSuggestions, error) {
	if len(plays) == 0 {
		return nil, nil
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.prompt),
			openai.UserMessage(renderBatch(plays, pendingEdits, pendingRules)),
		},
		Tools:             tools(),
		ParallelToolCalls: openai.Bool(true),
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &suggest.ErrProviderUnavailable{Provider: p.Name(), Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	merged := make(map[int][]model.Suggestion)
	var order []int
	seen := make(map[int]bool)

	for _, call := range resp.Choices[0].Message.ToolCalls {
		idx, s, err := p.decodeToolCall(call, plays)
		if err != nil {
			p.logger.Warn("llm tool call dropped", slog.String("tool", call.Function.Name), slog.Any("error", err))
			continue
		}
		if s == nil {
			continue
		}
		if !seen[idx] {
			seen[idx] = true
			order = append(order, idx)
		}
		merged[idx] = append(merged[idx], *s)
	}

	out := make([]suggest.IndexedSuggestions, 0, len(order))
	for _, idx := range order {
		out = append(out, suggest.IndexedSuggestions{Index: idx, Suggestions: merged[idx]})
	}
	return out, nil
}

func (p *Provider) decodeToolCall(call openai.ChatCompletionMessageToolCall, plays []model.Play) (int, *model.Suggestion, error) {
	switch call.Function.Name {
	case toolSuggestTrackEdit:
		var args trackEditArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return 0, nil, fmt.Errorf("decode %s arguments: %w", toolSuggestTrackEdit, err)
		}
		if args.TrackIndex < 0 || args.TrackIndex >= len(plays) {
			return 0, nil, fmt.Errorf("track_index %d out of range [0,%d)", args.TrackIndex, len(plays))
		}
		edit := rewrite.NoOpEdit(plays[args.TrackIndex])
		if args.NewTrackName != nil {
			edit.NewTrackName = *args.NewTrackName
		}
		if args.NewArtistName != nil {
			edit.NewArtistName = *args.NewArtistName
		}
		if args.NewAlbumName != nil {
			edit.NewAlbumName = args.NewAlbumName
		}
		if args.NewAlbumArtistName != nil {
			edit.NewAlbumArtistName = args.NewAlbumArtistName
		}
		return args.TrackIndex, &model.Suggestion{
			Kind:                 model.SuggestionEdit,
			Edit:                 &edit,
			ProposeMotivation:    args.Reason,
			RequiresConfirmation: true,
			ProviderName:         p.Name(),
		}, nil

	case toolSuggestRewriteRule:
		var args rewriteRuleArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return 0, nil, fmt.Errorf("decode %s arguments: %w", toolSuggestRewriteRule, err)
		}
		if args.TrackIndex < 0 || args.TrackIndex >= len(plays) {
			return 0, nil, fmt.Errorf("track_index %d out of range [0,%d)", args.TrackIndex, len(plays))
		}
		rule := rewrite.RewriteRule{
			Name:                 args.RuleName,
			TrackName:            toFindReplace(args.TrackName),
			ArtistName:           toFindReplace(args.ArtistName),
			AlbumName:            toFindReplace(args.AlbumName),
			AlbumArtistName:      toFindReplace(args.AlbumArtistName),
			RequiresConfirmation: args.RequiresConfirmation,
		}
		return args.TrackIndex, &model.Suggestion{
			Kind:                 model.SuggestionProposeRule,
			ProposedRule:         &rule,
			ProposeMotivation:    args.Motivation,
			RequiresConfirmation: true,
			ProviderName:         p.Name(),
		}, nil

	default:
		return 0, nil, fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}

func toFindReplace(a *findReplaceArg) *rewrite.FindReplace {
	if a == nil {
		return nil
	}
	kind := rewrite.KindLiteral
	if a.Regex {
		kind = rewrite.KindRegex
	}
	return &rewrite.FindReplace{Find: a.Find, Replace: a.Replace, Kind: kind}
}

func renderBatch(plays []model.Play, pendingEdits []model.PendingEdit, pendingRules []model.PendingRewriteRule) string {
	var b strings.Builder
	b.WriteString("Tracks:\n")
	for i, play := range plays {
		fmt.Fprintf(&b, "%d. track=%q artist=%q", i, play.Name, play.Artist)
		if play.Album != nil {
			fmt.Fprintf(&b, " album=%q", *play.Album)
		}
		if play.AlbumArtist != nil {
			fmt.Fprintf(&b, " album_artist=%q", *play.AlbumArtist)
		}
		b.WriteString("\n")
	}

	if len(pendingEdits) > 0 {
		b.WriteString("\nAlready-pending edits (do not duplicate):\n")
		for _, e := range pendingEdits {
			fmt.Fprintf(&b, "- %s / %s\n", e.OriginalTrackName, e.OriginalArtistName)
		}
	}
	if len(pendingRules) > 0 {
		b.WriteString("\nAlready-pending rule proposals (do not duplicate):\n")
		for _, r := range pendingRules {
			fmt.Fprintf(&b, "- %s\n", r.Rule.Name)
		}
	}

	return b.String()
}

func tools() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolSuggestTrackEdit,
				Description: openai.String("Propose a one-off correction to a single track's metadata."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"track_index": map[string]any{
							"type":        "integer",
							"description": "Index into the numbered track list this edit applies to.",
						},
						"new_track_name":        map[string]any{"type": "string"},
						"new_artist_name":       map[string]any{"type": "string"},
						"new_album_name":        map[string]any{"type": "string"},
						"new_album_artist_name": map[string]any{"type": "string"},
						"reason": map[string]any{
							"type":        "string",
							"description": "Why this edit is correct.",
						},
					},
					"required": []string{"track_index", "reason"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolSuggestRewriteRule,
				Description: openai.String("Propose a reusable find/replace rule that would fix this track and others like it."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"track_index": map[string]any{
							"type":        "integer",
							"description": "Index of a track this rule would currently match, used as its motivating example.",
						},
						"rule_name": map[string]any{"type": "string"},
						"track_name":        findReplaceSchema(),
						"artist_name":       findReplaceSchema(),
						"album_name":        findReplaceSchema(),
						"album_artist_name": findReplaceSchema(),
						"requires_confirmation": map[string]any{
							"type":        "boolean",
							"description": "Set true if this rule's edits should always require manual confirmation.",
						},
						"motivation": map[string]any{
							"type":        "string",
							"description": "Why this rule should exist.",
						},
					},
					"required": []string{"track_index", "rule_name", "motivation"},
				},
			},
		},
	}
}

func findReplaceSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"find":    map[string]any{"type": "string"},
			"replace": map[string]any{"type": "string"},
			"regex":   map[string]any{"type": "boolean", "description": "True if find is a regular expression, false for a literal match."},
		},
		"required": []string{"find", "replace"},
	}
}
