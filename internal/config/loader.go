package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.LLM.Name)
	if cfg.LLM.Fallback != nil {
		validateProviderName("llm", cfg.LLM.Fallback.Name)
	}
	for _, p := range cfg.Embeddings.Providers {
		validateProviderName("embeddings", p.Name)
	}

	// Embedding providers: duplicate models break per-model replacement,
	// and retrieval needs the active model to actually exist.
	modelsSeen := make(map[string]int, len(cfg.Embeddings.Providers))
	for i, p := range cfg.Embeddings.Providers {
		prefix := fmt.Sprintf("embeddings.providers[%d]", i)
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
			continue
		}
		if prev, ok := modelsSeen[p.Model]; ok {
			errs = append(errs, fmt.Errorf("%s.model %q is a duplicate of embeddings.providers[%d]", prefix, p.Model, prev))
		}
		modelsSeen[p.Model] = i
	}
	if cfg.Embeddings.ActiveModel != "" {
		if _, ok := modelsSeen[cfg.Embeddings.ActiveModel]; !ok {
			errs = append(errs, fmt.Errorf("embeddings.active_model %q does not match any configured provider model", cfg.Embeddings.ActiveModel))
		}
	} else if len(cfg.Embeddings.Providers) > 0 {
		errs = append(errs, errors.New("embeddings.active_model is required when embedding providers are configured"))
	}

	// Embeddings ↔ storage dimensions
	if len(cfg.Embeddings.Providers) > 0 && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("embedding providers are configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; campaign memory will not be persisted")
	}

	// Ingest chunking
	if cfg.Ingest.WindowChars < 0 || cfg.Ingest.OverlapChars < 0 {
		errs = append(errs, errors.New("ingest.window_chars and ingest.overlap_chars must not be negative"))
	}
	if cfg.Ingest.WindowChars > 0 && cfg.Ingest.OverlapChars >= cfg.Ingest.WindowChars {
		errs = append(errs, fmt.Errorf("ingest.overlap_chars %d must be smaller than ingest.window_chars %d", cfg.Ingest.OverlapChars, cfg.Ingest.WindowChars))
	}

	// Retrieval scoring
	if cfg.Retrieval.MacroBoost < 0 || cfg.Retrieval.MicroBoost < 0 {
		errs = append(errs, errors.New("retrieval boosts must not be negative"))
	}

	// Reconciliation
	if cfg.Reconcile.PromptThreshold < 0 || cfg.Reconcile.PromptThreshold > 1 {
		errs = append(errs, fmt.Errorf("reconcile.prompt_threshold %.2f is out of range [0, 1]", cfg.Reconcile.PromptThreshold))
	}
	if cfg.Reconcile.MergeTTLHours < 0 {
		errs = append(errs, fmt.Errorf("reconcile.merge_ttl_hours %d must not be negative", cfg.Reconcile.MergeTTLHours))
	}

	// Discord
	if cfg.Discord.Token != "" && cfg.Discord.LoreChannelID == "" {
		errs = append(errs, errors.New("discord.lore_channel_id is required when discord.token is set"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
