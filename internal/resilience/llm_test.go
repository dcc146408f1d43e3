package resilience_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/lorevault/lorevault/internal/resilience"
	"github.com/lorevault/lorevault/pkg/provider/llm"
	llmmock "github.com/lorevault/lorevault/pkg/provider/llm/mock"
)

func newFallback(t *testing.T, providers ...llm.Provider) *resilience.ChatFallback {
	t.Helper()
	f, err := resilience.NewChatFallback(providers, resilience.ChatConfig{
		MaxFailures:    2,
		BreakerTimeout: time.Minute,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewChatFallback: %v", err)
	}
	return f
}

func TestChatFallback_PrimaryHealthy(t *testing.T) {
	primary := &llmmock.Provider{
		ModelIDValue:   "primary",
		CompleteResult: &llm.CompletionResponse{Content: "from primary"},
	}
	secondary := &llmmock.Provider{ModelIDValue: "secondary"}
	f := newFallback(t, primary, secondary)

	res, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Content != "from primary" {
		t.Errorf("content: got %q", res.Content)
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Error("secondary must not be called while the primary is healthy")
	}
}

func TestChatFallback_FailsOverToSecondary(t *testing.T) {
	primary := &llmmock.Provider{
		ModelIDValue: "primary",
		CompleteErr:  errors.New("rate limited"),
	}
	secondary := &llmmock.Provider{
		ModelIDValue:   "secondary",
		CompleteResult: &llm.CompletionResponse{Content: "from secondary"},
	}
	f := newFallback(t, primary, secondary)

	res, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Content != "from secondary" {
		t.Errorf("content: got %q", res.Content)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Errorf("primary calls: got %d, want 1", len(primary.CompleteCalls))
	}
}

func TestChatFallback_AllBackendsFailing(t *testing.T) {
	primary := &llmmock.Provider{ModelIDValue: "primary", CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{ModelIDValue: "secondary", CompleteErr: errors.New("also down")}
	f := newFallback(t, primary, secondary)

	_, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, resilience.ErrAllBackendsFailed) {
		t.Fatalf("error: got %v, want ErrAllBackendsFailed", err)
	}
}

func TestChatFallback_BreakerSkipsFailingPrimary(t *testing.T) {
	primary := &llmmock.Provider{ModelIDValue: "primary", CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{
		ModelIDValue:   "secondary",
		CompleteResult: &llm.CompletionResponse{Content: "ok"},
	}
	f := newFallback(t, primary, secondary)

	req := llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}}
	for range 3 {
		if _, err := f.Complete(context.Background(), req); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	// MaxFailures is 2, so the third call found the primary's breaker open.
	if got := len(primary.CompleteCalls); got != 2 {
		t.Errorf("primary calls: got %d, want 2", got)
	}
	if got := len(secondary.CompleteCalls); got != 3 {
		t.Errorf("secondary calls: got %d, want 3", got)
	}
}

func TestChatFallback_RequiresBackend(t *testing.T) {
	if _, err := resilience.NewChatFallback(nil, resilience.ChatConfig{}, nil); err == nil {
		t.Fatal("expected an error for an empty backend list")
	}
}

func TestChatFallback_ModelIDIsPrimary(t *testing.T) {
	primary := &llmmock.Provider{ModelIDValue: "primary"}
	f := newFallback(t, primary)
	if f.ModelID() != "primary" {
		t.Errorf("ModelID: got %q", f.ModelID())
	}
}
