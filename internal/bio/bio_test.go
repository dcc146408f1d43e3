package bio_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lorevault/lorevault/internal/bio"
	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/provider/llm"
	llmmock "github.com/lorevault/lorevault/pkg/provider/llm/mock"
)

func TestGenerateBio_PromptContents(t *testing.T) {
	override := "Secretly a Harper agent."
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "Leosin is a monk of the Order."},
	}
	g := bio.New(provider)

	history := []knowledge.Event{
		{EventType: "met", Description: "Rescued from the raider camp.",
			Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{EventType: "revealed", Description: "Admitted to tracking the cult.",
			Timestamp: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)},
	}

	got, err := g.GenerateBio(context.Background(), knowledge.KindNPC, bio.Context{
		Name:               "Leosin Erantar",
		CurrentDescription: "A half-elf monk.",
		ManualOverride:     &override,
	}, history)
	if err != nil {
		t.Fatalf("GenerateBio: %v", err)
	}
	if got != "Leosin is a monk of the Order." {
		t.Errorf("result: got %q", got)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("Complete calls: got %d, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0]
	if !strings.Contains(req.SystemPrompt, "non-player character") {
		t.Errorf("system prompt missing kind label: %q", req.SystemPrompt)
	}
	if !strings.Contains(req.SystemPrompt, `"Leosin Erantar"`) {
		t.Errorf("system prompt missing entity name: %q", req.SystemPrompt)
	}
	user := req.Messages[0].Content
	for _, want := range []string{"A half-elf monk.", "Secretly a Harper agent.", "Rescued from the raider camp.", "Admitted to tracking the cult."} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q", want)
		}
	}
}

func TestGenerateBio_EmptyHistory(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "bio"},
	}
	g := bio.New(provider)

	_, err := g.GenerateBio(context.Background(), knowledge.KindLocation, bio.Context{Name: "Greenest"}, nil)
	if err != nil {
		t.Fatalf("GenerateBio: %v", err)
	}
	user := provider.CompleteCalls[0].Messages[0].Content
	if !strings.Contains(user, "no recorded events") {
		t.Errorf("user message should flag empty history: %q", user)
	}
}

func TestGenerateBio_ProviderError(t *testing.T) {
	wantErr := errors.New("backend down")
	g := bio.New(&llmmock.Provider{CompleteErr: wantErr})

	_, err := g.GenerateBio(context.Background(), knowledge.KindNPC, bio.Context{Name: "X"}, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestGenerateBio_StripsCodeFences(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "```text\nA clean bio.\n```"},
	}
	g := bio.New(provider)

	got, err := g.GenerateBio(context.Background(), knowledge.KindNPC, bio.Context{Name: "X"}, nil)
	if err != nil {
		t.Fatalf("GenerateBio: %v", err)
	}
	if got != "A clean bio." {
		t.Errorf("got %q, want %q", got, "A clean bio.")
	}
}

func TestMergeBios(t *testing.T) {
	t.Run("both present calls the model", func(t *testing.T) {
		provider := &llmmock.Provider{
			CompleteResult: &llm.CompletionResponse{Content: "merged"},
		}
		g := bio.New(provider)

		got, err := g.MergeBios(context.Background(), "old text", "new text")
		if err != nil {
			t.Fatalf("MergeBios: %v", err)
		}
		if got != "merged" {
			t.Errorf("got %q, want %q", got, "merged")
		}
		user := provider.CompleteCalls[0].Messages[0].Content
		if !strings.Contains(user, "old text") || !strings.Contains(user, "new text") {
			t.Errorf("user message missing inputs: %q", user)
		}
	})

	t.Run("empty existing short-circuits", func(t *testing.T) {
		provider := &llmmock.Provider{}
		g := bio.New(provider)

		got, err := g.MergeBios(context.Background(), "  ", "new text")
		if err != nil {
			t.Fatalf("MergeBios: %v", err)
		}
		if got != "new text" {
			t.Errorf("got %q, want %q", got, "new text")
		}
		if len(provider.CompleteCalls) != 0 {
			t.Errorf("expected no model calls, got %d", len(provider.CompleteCalls))
		}
	})

	t.Run("empty fresh short-circuits", func(t *testing.T) {
		provider := &llmmock.Provider{}
		g := bio.New(provider)

		got, err := g.MergeBios(context.Background(), "old text", "")
		if err != nil {
			t.Fatalf("MergeBios: %v", err)
		}
		if got != "old text" {
			t.Errorf("got %q, want %q", got, "old text")
		}
		if len(provider.CompleteCalls) != 0 {
			t.Errorf("expected no model calls, got %d", len(provider.CompleteCalls))
		}
	})
}
