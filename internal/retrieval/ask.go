package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorevault/lorevault/pkg/provider/llm"
)

const (
	defaultCharBudget = 8000
	defaultAskLimit   = 5

	noMemoryNotice = "No relevant memory was found for this question."

	askSystemPrompt = `You are the lore keeper of a tabletop campaign. Answer the
question using only the session excerpts below. The excerpts are in
chronological order; later excerpts supersede earlier ones. If the excerpts do
not contain the answer, say so plainly instead of inventing lore.

Session excerpts:
%s`
)

// AskConfig tunes an [Asker]. Zero values select the defaults noted per field.
type AskConfig struct {
	// CharBudget caps the total length of concatenated excerpts handed to the
	// model. Excerpts past the budget are truncated, not dropped silently: the
	// budget is a hard character cap on the context block. Default 8000.
	CharBudget int

	// Limit is the number of top hits requested per question. Default 5.
	Limit int

	// Temperature passed through to the chat model.
	Temperature float64
}

func (c AskConfig) withDefaults() AskConfig {
	if c.CharBudget <= 0 {
		c.CharBudget = defaultCharBudget
	}
	if c.Limit <= 0 {
		c.Limit = defaultAskLimit
	}
	return c
}

// Asker answers free-form campaign questions by grounding a chat model in
// retrieved excerpts.
type Asker struct {
	retriever *Retriever
	chat      llm.Provider
	cfg       AskConfig
}

// NewAsker constructs an [Asker] over the retriever and chat provider.
func NewAsker(retriever *Retriever, chat llm.Provider, cfg AskConfig) *Asker {
	return &Asker{
		retriever: retriever,
		chat:      chat,
		cfg:       cfg.withDefaults(),
	}
}

// AskQuestion retrieves excerpts for the question, folds them into the system
// prompt, and completes the chat with the caller's prior history. A retrieval
// degradation (no excerpts) still produces an answer; the model is told no
// memory was found.
func (a *Asker) AskQuestion(ctx context.Context, campaignID, question string, history []llm.Message, scene Scene) (string, error) {
	excerpts, err := a.retriever.SearchKnowledge(ctx, campaignID, question, a.cfg.Limit, scene)
	if err != nil {
		return "", fmt.Errorf("retrieval: ask %q: %w", campaignID, err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	resp, err := a.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(askSystemPrompt, contextBlock(excerpts, a.cfg.CharBudget)),
		Messages:     messages,
		Temperature:  a.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("retrieval: chat completion: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// contextBlock concatenates the excerpts separated by rules, truncated to the
// character budget.
func contextBlock(excerpts []string, budget int) string {
	if len(excerpts) == 0 {
		return noMemoryNotice
	}
	block := strings.Join(excerpts, "\n---\n")
	if len(block) > budget {
		block = block[:budget]
	}
	return block
}
