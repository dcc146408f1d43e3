package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// confirmWords and rejectWords are the recognised reply synonyms, matched
// after lowercasing and trimming punctuation.
var (
	confirmWords = map[string]struct{}{
		"yes": {}, "y": {}, "yeah": {}, "yep": {}, "ok": {}, "okay": {},
		"confirm": {}, "merge": {}, "same": {}, "correct": {},
	}
	rejectWords = map[string]struct{}{
		"no": {}, "n": {}, "nope": {}, "new": {}, "separate": {},
		"different": {}, "create": {},
	}

	// connectiveWords are stripped from the front of a free-form reply before
	// treating the remainder as an alternate entity name ("it's Frulam" →
	// "Frulam").
	connectiveWords = map[string]struct{}{
		"it's": {}, "its": {}, "it": {}, "is": {}, "that's": {}, "thats": {},
		"that": {}, "this": {}, "actually": {}, "i": {}, "mean": {},
		"rather": {}, "instead": {}, "the": {}, "he's": {}, "she's": {},
		"they're": {},
	}
)

// HandleReply applies a human reply to the pending merge referenced by the
// prompt message, driving the PROPOSED state to a terminal one. The returned
// string is the response to post back to the channel; it is non-empty even
// when the merge stays pending (re-prompt).
//
// Replies referencing no pending merge return ("", nil) so the caller can
// ignore unrelated messages.
func (r *Resolver) HandleReply(ctx context.Context, promptMessageID, replyText string) (string, error) {
	pm, err := r.pending.Get(ctx, promptMessageID)
	if err != nil {
		return "", err
	}
	if pm == nil {
		return "", nil
	}

	word := strings.Trim(strings.ToLower(strings.TrimSpace(replyText)), ".,!?")
	switch {
	case isConfirmation(word):
		return r.resolveConfirm(ctx, pm)
	case isRejection(word):
		return r.resolveCreateNew(ctx, pm, knowledge.MergeCreatedNew)
	default:
		return r.resolveRedirect(ctx, pm, replyText)
	}
}

func isConfirmation(word string) bool {
	_, ok := confirmWords[word]
	return ok
}

func isRejection(word string) bool {
	_, ok := rejectWords[word]
	return ok
}

// resolveConfirm merges the detected description into the suggested canonical
// entity. A vanished canonical entity leaves the merge pending and reports
// the problem instead of guessing.
func (r *Resolver) resolveConfirm(ctx context.Context, pm *knowledge.PendingMerge) (string, error) {
	return r.mergeInto(ctx, pm, pm.SuggestedName, knowledge.MergeConfirmed)
}

// resolveRedirect treats the reply as an alternate canonical name. An
// unresolvable name keeps the merge pending and asks again.
func (r *Resolver) resolveRedirect(ctx context.Context, pm *knowledge.PendingMerge, replyText string) (string, error) {
	name := stripConnectives(replyText)
	if name == "" {
		return r.reprompt(pm), nil
	}

	rec, err := r.entities.GetEntity(ctx, pm.CampaignID, pm.Kind, name)
	if err != nil {
		return "", fmt.Errorf("reconcile: resolve redirect %q: %w", name, err)
	}
	if rec == nil {
		return r.reprompt(pm), nil
	}
	return r.mergeInto(ctx, pm, rec.Name, knowledge.MergeRedirected)
}

// mergeInto folds the pending description into the named canonical entity and
// finishes the merge in the given terminal state.
func (r *Resolver) mergeInto(ctx context.Context, pm *knowledge.PendingMerge, canonicalName string, state knowledge.MergeState) (string, error) {
	rec, err := r.entities.GetEntity(ctx, pm.CampaignID, pm.Kind, canonicalName)
	if err != nil {
		return "", fmt.Errorf("reconcile: get canonical %s %q: %w", pm.Kind, canonicalName, err)
	}
	if rec == nil {
		// The canonical record vanished between prompt and reply. Keep the
		// merge pending so a later reply can still resolve it.
		return fmt.Sprintf("I can't find %q anymore — reply **new** to create a separate entry, or name another entity.", canonicalName), nil
	}

	merged, err := r.merger.MergeBios(ctx, rec.Description, pm.NewDescription)
	if err != nil {
		return "", fmt.Errorf("reconcile: merge bios into %q: %w", rec.Name, err)
	}
	if err := r.entities.MergeDescription(ctx, pm.CampaignID, pm.Kind, rec.Name, merged); err != nil {
		return "", fmt.Errorf("reconcile: persist merged bio for %q: %w", rec.Name, err)
	}

	if err := r.finish(ctx, pm, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("Merged %q into %q.", pm.DetectedName, rec.Name), nil
}

// resolveCreateNew creates a fresh canonical entity for the detected name.
// Also used by the janitor to expire unanswered prompts.
func (r *Resolver) resolveCreateNew(ctx context.Context, pm *knowledge.PendingMerge, state knowledge.MergeState) (string, error) {
	now := time.Now().UTC()
	rec := knowledge.EntityRecord{
		CampaignID:  pm.CampaignID,
		Kind:        pm.Kind,
		Name:        pm.DetectedName,
		ShortID:     uuid.NewString()[:8],
		Description: pm.NewDescription,
		Dirty:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.entities.CreateEntity(ctx, rec); err != nil {
		return "", fmt.Errorf("reconcile: create %s %q: %w", pm.Kind, pm.DetectedName, err)
	}

	if err := r.finish(ctx, pm, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created a separate entry for %q.", pm.DetectedName), nil
}

// finish removes the merge from the pending set and records the terminal
// state.
func (r *Resolver) finish(ctx context.Context, pm *knowledge.PendingMerge, state knowledge.MergeState) error {
	if err := r.pending.Remove(ctx, pm.PromptMessageID); err != nil {
		return err
	}
	r.metrics.PendingMerges.Add(ctx, -1)
	r.metrics.RecordMergeResolution(ctx, string(state))
	r.log.Info("identity merge resolved",
		"campaign_id", pm.CampaignID, "kind", pm.Kind,
		"detected", pm.DetectedName, "state", state)
	return nil
}

func (r *Resolver) reprompt(pm *knowledge.PendingMerge) string {
	return fmt.Sprintf(
		"I couldn't match that to a known entity. Is %q the same as %q? Reply **yes**, **new**, or the correct name.",
		pm.DetectedName, pm.SuggestedName)
}

// stripConnectives drops leading connective words and trims punctuation so a
// reply like "actually it's Frulam Mondath" resolves as "Frulam Mondath".
func stripConnectives(reply string) string {
	tokens := strings.Fields(strings.TrimSpace(reply))
	for len(tokens) > 0 {
		head := strings.Trim(strings.ToLower(tokens[0]), ".,!?")
		if _, ok := connectiveWords[head]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	return strings.Trim(strings.Join(tokens, " "), ".,!? ")
}
