package reconcile_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/lorevault/lorevault/internal/bio"
	"github.com/lorevault/lorevault/internal/reconcile"
	"github.com/lorevault/lorevault/pkg/knowledge"
	storemock "github.com/lorevault/lorevault/pkg/knowledge/mock"
	"github.com/lorevault/lorevault/pkg/provider/llm"
	llmmock "github.com/lorevault/lorevault/pkg/provider/llm/mock"
)

// notifierStub records posted messages and hands out message IDs.
type notifierStub struct {
	mu sync.Mutex

	PostMessageResult string
	PostMessageErr    error
	Posts             []string
}

func (n *notifierStub) PostMessage(_ context.Context, _ string, content string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Posts = append(n.Posts, content)
	if n.PostMessageErr != nil {
		return "", n.PostMessageErr
	}
	if n.PostMessageResult == "" {
		return "msg-1", nil
	}
	return n.PostMessageResult, nil
}

type fixture struct {
	entities *storemock.EntityStore
	merges   *storemock.MergeStore
	chat     *llmmock.Provider
	notifier *notifierStub
	pending  *reconcile.PendingSet
	resolver *reconcile.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		entities: &storemock.EntityStore{},
		merges:   &storemock.MergeStore{},
		chat:     &llmmock.Provider{CompleteResult: &llm.CompletionResponse{Content: "A merged biography."}},
		notifier: &notifierStub{},
	}
	f.pending = reconcile.NewPendingSet(f.merges)
	f.resolver = reconcile.New(
		f.entities, f.pending, bio.New(f.chat), f.notifier,
		reconcile.Config{}, slog.New(slog.DiscardHandler), nil)
	return f
}

// rosterOf wires the entity store so ListNames returns the names and
// GetEntity serves matching records with descriptions.
func rosterOf(f *fixture, byName map[string]string) {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	f.entities.ListNamesResult = names
	f.entities.GetEntityFunc = func(_ string, kind knowledge.Kind, name string) (*knowledge.EntityRecord, error) {
		for canonical, desc := range byName {
			if strings.EqualFold(canonical, name) {
				return &knowledge.EntityRecord{
					CampaignID: "camp-1", Kind: kind, Name: canonical, Description: desc,
				}, nil
			}
		}
		return nil, nil
	}
}

func TestResolveIdentity_SpellingDrift(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar":     "a monk of the Order of the Gauntlet, ally of the party",
		"Governor Nighthill": "governor of Greenest",
	})

	match, err := f.resolver.ResolveIdentity(context.Background(), "camp-1", knowledge.KindNPC,
		"Leosin Erentar", "a monk ally of the party")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match for a near-identical name")
	}
	if match.Name != "Leosin Erantar" {
		t.Errorf("match: got %q, want %q", match.Name, "Leosin Erantar")
	}
	if match.Confidence <= 0.6 {
		t.Errorf("confidence: got %.3f, want > 0.6", match.Confidence)
	}
}

func TestResolveIdentity_UnrelatedName(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar": "a monk of the Order of the Gauntlet",
	})

	match, err := f.resolver.ResolveIdentity(context.Background(), "camp-1", knowledge.KindNPC,
		"Bob the Blacksmith", "forges horseshoes in a quiet village")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if match != nil {
		t.Errorf("got match %+v, want none for an unrelated name", match)
	}
}

func TestResolveIdentity_EmptyRoster(t *testing.T) {
	f := newFixture(t)

	match, err := f.resolver.ResolveIdentity(context.Background(), "camp-1", knowledge.KindNPC, "Anyone", "")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if match != nil {
		t.Errorf("got match %+v, want none on an empty roster", match)
	}
}

func TestCheckAndPromptMerge_PostsAndPersists(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar": "a monk of the Order of the Gauntlet, ally of the party",
	})

	handled, err := f.resolver.CheckAndPromptMerge(context.Background(), "camp-1", knowledge.KindNPC,
		reconcile.Candidate{Name: "Leosin Erentar", Description: "a monk ally of the party", Role: "monk ally"},
		"chan-1")
	if err != nil {
		t.Fatalf("CheckAndPromptMerge: %v", err)
	}
	if !handled {
		t.Fatal("expected the candidate to be suspended for confirmation")
	}

	if len(f.notifier.Posts) != 1 {
		t.Fatalf("posts: got %d, want 1", len(f.notifier.Posts))
	}
	if !strings.Contains(f.notifier.Posts[0], "Leosin Erantar") {
		t.Error("prompt does not name the suggested entity")
	}

	calls := f.merges.Calls()
	if len(calls) != 1 || calls[0].Method != "PutMerge" {
		t.Fatalf("merge store calls: %+v", calls)
	}
	pm := calls[0].Args[0].(knowledge.PendingMerge)
	if pm.State != knowledge.MergeProposed {
		t.Errorf("state: got %q, want %q", pm.State, knowledge.MergeProposed)
	}
	if pm.PromptMessageID != "msg-1" {
		t.Errorf("prompt message ID: got %q, want the posted message's ID", pm.PromptMessageID)
	}
	if pm.SuggestedName != "Leosin Erantar" || pm.DetectedName != "Leosin Erentar" {
		t.Errorf("merge names: %+v", pm)
	}
}

func TestCheckAndPromptMerge_SelfMatchPassesThrough(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar": "a monk of the Order of the Gauntlet",
	})

	handled, err := f.resolver.CheckAndPromptMerge(context.Background(), "camp-1", knowledge.KindNPC,
		reconcile.Candidate{Name: "leosin erantar", Description: "a monk"}, "chan-1")
	if err != nil {
		t.Fatalf("CheckAndPromptMerge: %v", err)
	}
	if handled {
		t.Error("an exact (case-insensitive) self-match must not prompt")
	}
	if len(f.notifier.Posts) != 0 {
		t.Error("no prompt should be posted for a self-match")
	}
}

func TestCheckAndPromptMerge_NoMatchPassesThrough(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar": "a monk of the Order of the Gauntlet",
	})

	handled, err := f.resolver.CheckAndPromptMerge(context.Background(), "camp-1", knowledge.KindNPC,
		reconcile.Candidate{Name: "Bob the Blacksmith", Description: "forges horseshoes"}, "chan-1")
	if err != nil {
		t.Fatalf("CheckAndPromptMerge: %v", err)
	}
	if handled {
		t.Error("an unmatched candidate proceeds through the normal create flow")
	}
}

func TestCheckAndPromptMerge_NotifierFailure(t *testing.T) {
	f := newFixture(t)
	rosterOf(f, map[string]string{
		"Leosin Erantar": "a monk of the Order of the Gauntlet, ally of the party",
	})
	f.notifier.PostMessageErr = errors.New("channel gone")

	handled, err := f.resolver.CheckAndPromptMerge(context.Background(), "camp-1", knowledge.KindNPC,
		reconcile.Candidate{Name: "Leosin Erentar", Description: "a monk ally of the party"}, "chan-1")
	if err == nil {
		t.Fatal("expected an error when the prompt cannot be posted")
	}
	if handled {
		t.Error("a failed prompt must not suspend the candidate")
	}
	if f.merges.CallCount("PutMerge") != 0 {
		t.Error("no merge should be persisted without a prompt message")
	}
}
