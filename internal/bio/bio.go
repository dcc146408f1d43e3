// Package bio implements the narrative biography collaborator used by entity
// sync and identity reconciliation.
//
// The [Generator] turns an entity's append-only event history into a fresh
// prose description, and merges two descriptions of the same entity into one.
// Both operations send a conservative system prompt to an [llm.Provider]; the
// model output is returned verbatim after stripping markdown fences. Neither
// operation parses structure out of the reply, so there is no degradation
// path beyond error propagation — callers decide whether a failed generation
// is fatal (it never is for sync, which leaves the dirty flag set and retries
// later).
package bio

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/provider/llm"
)

const (
	defaultTemperature = 0.4
	defaultMaxTokens   = 1024
)

const generateSystemPrompt = `You are a campaign chronicler for a tabletop role-playing game.

Your task: write an up-to-date biography for the %s named %q, based on the event history below.

Rules:
- Use ONLY the facts in the current description, the DM notes and the event history. Never invent events.
- Write flowing prose in the third person, past tense, 1-3 paragraphs.
- Later events supersede earlier ones when they conflict.
- If DM notes are present, treat them as authoritative and weave them in.
- Respond with ONLY the biography text. No headings, no markdown, no commentary.`

const mergeSystemPrompt = `You are a campaign chronicler for a tabletop role-playing game.

Two descriptions of the same entity exist: an established biography and a newly extracted one. Merge them into a single coherent biography.

Rules:
- Keep every distinct fact from both texts; drop exact duplicates.
- When the texts conflict, prefer the established biography.
- Write flowing prose in the third person, 1-3 paragraphs.
- Respond with ONLY the merged text. No headings, no markdown, no commentary.`

// Context carries the per-entity inputs to a biography generation beyond the
// event history itself.
type Context struct {
	// Name is the canonical entity name.
	Name string

	// CurrentDescription is the existing cached biography, possibly stale.
	// Empty for never-synced entities.
	CurrentDescription string

	// ManualOverride is DM-authored text that must be reflected in every
	// regenerated biography. Nil when unset.
	ManualOverride *string
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithTemperature sets the LLM sampling temperature. Default: 0.4.
func WithTemperature(temp float64) Option {
	return func(g *Generator) {
		g.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		g.maxTokens = n
	}
}

// Generator produces and merges entity biographies through an
// [llm.Provider]. It is safe for concurrent use.
type Generator struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// New returns a new [Generator] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GenerateBio regenerates the biography for an entity of the given kind from
// its full event history.
func (g *Generator) GenerateBio(ctx context.Context, kind knowledge.Kind, bc Context, history []knowledge.Event) (string, error) {
	sysPrompt := fmt.Sprintf(generateSystemPrompt, kindLabel(kind), bc.Name)

	var sb strings.Builder
	if bc.CurrentDescription != "" {
		sb.WriteString("Current description:\n")
		sb.WriteString(bc.CurrentDescription)
		sb.WriteString("\n\n")
	}
	if bc.ManualOverride != nil && *bc.ManualOverride != "" {
		sb.WriteString("DM notes:\n")
		sb.WriteString(*bc.ManualOverride)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Event history (oldest first):\n")
	if len(history) == 0 {
		sb.WriteString("(no recorded events)\n")
	}
	for _, ev := range history {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n",
			ev.Timestamp.Format("2006-01-02"), ev.EventType, ev.Description)
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: sysPrompt,
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("bio: generate %s %q: %w", kind, bc.Name, err)
	}
	return stripMarkdown(resp.Content), nil
}

// MergeBios folds a newly extracted description into an established one.
func (g *Generator) MergeBios(ctx context.Context, existing, fresh string) (string, error) {
	switch {
	case strings.TrimSpace(existing) == "":
		return fresh, nil
	case strings.TrimSpace(fresh) == "":
		return existing, nil
	}

	userMsg := fmt.Sprintf("Established biography:\n%s\n\nNewly extracted description:\n%s", existing, fresh)

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: mergeSystemPrompt,
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: userMsg},
		},
	})
	if err != nil {
		return "", fmt.Errorf("bio: merge: %w", err)
	}
	return stripMarkdown(resp.Content), nil
}

// kindLabel renders a Kind for use inside a prompt.
func kindLabel(kind knowledge.Kind) string {
	switch kind {
	case knowledge.KindNPC:
		return "non-player character"
	case knowledge.KindCharacter:
		return "player character"
	default:
		return string(kind)
	}
}

// stripMarkdown removes optional markdown code fences that some models wrap
// around plain-text output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```text", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
