package config_test

import (
	"strings"
	"testing"

	"github.com/lorevault/lorevault/internal/config"
)

const fullConfig = `
server:
  listen_addr: ":8080"
  log_level: debug
discord:
  token: "bot-token"
  guild_id: "guild-1"
  lore_channel_id: "chan-1"
storage:
  postgres_dsn: "postgres://localhost:5432/lorevault"
  embedding_dimensions: 1536
llm:
  name: openai
  api_key: sk-test
  model: gpt-4o-mini
  fallback:
    name: ollama
    base_url: http://localhost:11434
    model: llama3.1
embeddings:
  active_model: text-embedding-3-small
  providers:
    - name: openai
      api_key: sk-test
      model: text-embedding-3-small
    - name: ollama
      base_url: http://localhost:11434
      model: nomic-embed-text
ingest:
  window_chars: 1000
  overlap_chars: 200
  min_chunk_chars: 50
  concurrency: 4
retrieval:
  limit: 5
  macro_boost: 0.05
  micro_boost: 0.10
  char_budget: 8000
sync:
  min_summary_chars: 80
reconcile:
  prompt_threshold: 0.6
  merge_ttl_hours: 48
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log level: got %q", cfg.Server.LogLevel)
	}
	if cfg.LLM.Fallback == nil || cfg.LLM.Fallback.Model != "llama3.1" {
		t.Errorf("llm fallback: got %+v", cfg.LLM.Fallback)
	}
	if cfg.Embeddings.ActiveModel != "text-embedding-3-small" {
		t.Errorf("active model: got %q", cfg.Embeddings.ActiveModel)
	}
	if len(cfg.Embeddings.Providers) != 2 {
		t.Fatalf("providers: got %d, want 2", len(cfg.Embeddings.Providers))
	}
	if cfg.Embeddings.Providers[1].BaseURL != "http://localhost:11434" {
		t.Errorf("ollama base url: got %q", cfg.Embeddings.Providers[1].BaseURL)
	}
	if cfg.Ingest.OverlapChars != 200 {
		t.Errorf("overlap: got %d", cfg.Ingest.OverlapChars)
	}
	if cfg.Reconcile.PromptThreshold != 0.6 {
		t.Errorf("prompt threshold: got %v", cfg.Reconcile.PromptThreshold)
	}
	if cfg.Discord.LoreChannelID != "chan-1" {
		t.Errorf("lore channel: got %q", cfg.Discord.LoreChannelID)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  listen_address: ":8080"
`))
	if err == nil {
		t.Fatal("a misspelled key should be rejected")
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "invalid log level",
			yaml: "server:\n  log_level: verbose\n",
			want: "server.log_level",
		},
		{
			name: "active model without matching provider",
			yaml: "embeddings:\n  active_model: model-x\n  providers:\n    - name: openai\n      model: model-a\n",
			want: "embeddings.active_model",
		},
		{
			name: "missing active model",
			yaml: "embeddings:\n  providers:\n    - name: openai\n      model: model-a\n",
			want: "embeddings.active_model is required",
		},
		{
			name: "duplicate embedding models",
			yaml: "embeddings:\n  active_model: model-a\n  providers:\n    - name: openai\n      model: model-a\n    - name: ollama\n      model: model-a\n",
			want: "duplicate",
		},
		{
			name: "overlap not smaller than window",
			yaml: "ingest:\n  window_chars: 100\n  overlap_chars: 100\n",
			want: "ingest.overlap_chars",
		},
		{
			name: "threshold out of range",
			yaml: "reconcile:\n  prompt_threshold: 1.5\n",
			want: "reconcile.prompt_threshold",
		},
		{
			name: "discord token without channel",
			yaml: "discord:\n  token: t\n",
			want: "discord.lore_channel_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_EmptyConfigIsUsable(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("{}\n"))
	if err != nil {
		t.Fatalf("an empty config should validate: %v", err)
	}
	if cfg.Server.LogLevel != "" {
		t.Errorf("log level: got %q", cfg.Server.LogLevel)
	}
}
