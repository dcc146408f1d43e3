// Command lorevault is the main entry point for the Lorevault knowledge
// server. It exposes the campaign memory core as MCP tools over stdio and
// serves health and metrics endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/lorevault/lorevault/internal/bio"
	"github.com/lorevault/lorevault/internal/config"
	discordbot "github.com/lorevault/lorevault/internal/discord"
	"github.com/lorevault/lorevault/internal/health"
	"github.com/lorevault/lorevault/internal/ingest"
	"github.com/lorevault/lorevault/internal/mcp"
	"github.com/lorevault/lorevault/internal/observe"
	"github.com/lorevault/lorevault/internal/reconcile"
	"github.com/lorevault/lorevault/internal/resilience"
	"github.com/lorevault/lorevault/internal/retrieval"
	"github.com/lorevault/lorevault/internal/syncer"
	"github.com/lorevault/lorevault/internal/transcript"
	"github.com/lorevault/lorevault/pkg/knowledge/postgres"
	"github.com/lorevault/lorevault/pkg/provider/embeddings"
	ollamaembed "github.com/lorevault/lorevault/pkg/provider/embeddings/ollama"
	oaembed "github.com/lorevault/lorevault/pkg/provider/embeddings/openai"
	"github.com/lorevault/lorevault/pkg/provider/llm"
	"github.com/lorevault/lorevault/pkg/provider/llm/anyllm"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lorevault: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lorevault: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Logs go to stderr: stdout belongs to the MCP stdio transport.
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lorevault starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lorevault",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.PostgresDSN == "" {
		slog.Error("storage.postgres_dsn is required")
		return 1
	}
	store, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer store.Close()
	slog.Info("postgres store ready")

	// ── Providers ─────────────────────────────────────────────────────────────
	embedProviders, err := buildEmbeddingProviders(cfg.Embeddings.Providers)
	if err != nil {
		slog.Error("failed to build embedding providers", "err", err)
		return 1
	}
	gateway, err := embeddings.NewGateway(embedProviders, embeddings.GatewayConfig{
		MaxFailures:       cfg.Embeddings.MaxFailures,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
	}, logger)
	if err != nil {
		slog.Error("failed to build embedding gateway", "err", err)
		return 1
	}

	chat, err := buildChatProvider(cfg.LLM, logger)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}
	slog.Info("providers ready",
		"llm", cfg.LLM.Name,
		"embedding_models", len(embedProviders),
		"active_model", cfg.Embeddings.ActiveModel,
	)

	// ── Knowledge components ──────────────────────────────────────────────────
	biogen := bio.New(chat)

	retriever := retrieval.New(store, store, gateway, retrieval.Config{
		Model:      cfg.Embeddings.ActiveModel,
		MacroBoost: cfg.Retrieval.MacroBoost,
		MicroBoost: cfg.Retrieval.MicroBoost,
	}, logger, metrics)
	asker := retrieval.NewAsker(retriever, chat, retrieval.AskConfig{
		CharBudget: cfg.Retrieval.CharBudget,
		Limit:      cfg.Retrieval.Limit,
	})
	sync := syncer.New(store, store, store, biogen, gateway, syncer.Config{
		Model:           cfg.Embeddings.ActiveModel,
		MinSummaryChars: cfg.Sync.MinSummaryChars,
	}, logger, metrics)
	corrector := transcript.New(
		transcript.WithVerifier(chat),
		transcript.WithLogger(logger),
	)
	ingestor := ingest.New(store, store, store, gateway, ingest.Config{
		Window:        cfg.Ingest.WindowChars,
		Overlap:       cfg.Ingest.OverlapChars,
		MinChunkChars: cfg.Ingest.MinChunkChars,
		Concurrency:   cfg.Ingest.Concurrency,
	}, logger, metrics, ingest.WithCorrector(corrector))

	// ── Discord + reconciliation (optional) ───────────────────────────────────
	// Identity-merge prompts need a human channel; without Discord the
	// reconciliation loop stays offline and ambiguous names simply become
	// new entities downstream.
	var bot *discordbot.Bot
	var janitor *reconcile.Janitor
	if cfg.Discord.Token != "" {
		bot, err = discordbot.New(ctx, cfg.Discord, logger)
		if err != nil {
			slog.Error("failed to create Discord bot", "err", err)
			return 1
		}
		defer bot.Close()

		pending := reconcile.NewPendingSet(store)
		if err := pending.Load(ctx); err != nil {
			slog.Error("failed to load pending merges", "err", err)
			return 1
		}
		resolver := reconcile.New(store, pending, biogen, bot.Notifier(), reconcile.Config{
			PromptThreshold: cfg.Reconcile.PromptThreshold,
		}, logger, metrics)
		bot.SetHandler(resolver)

		var jopts []reconcile.JanitorOption
		if cfg.Reconcile.MergeTTLHours > 0 {
			jopts = append(jopts, reconcile.WithTTL(time.Duration(cfg.Reconcile.MergeTTLHours)*time.Hour))
		}
		janitor = reconcile.NewJanitor(store, resolver, logger, jopts...)
		janitor.Start(ctx)
		defer janitor.Stop()

		slog.Info("discord bot connected",
			"guild_id", cfg.Discord.GuildID,
			"lore_channel", cfg.Discord.LoreChannelID,
			"pending_merges", pending.Len(),
		)
	} else {
		slog.Warn("discord is not configured; identity-merge prompts are disabled")
	}

	// ── HTTP: health + metrics ────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(health.Checker{Name: "database", Check: store.Ping}).Register(mux)
		mux.Handle("/metrics", promhttp.Handler())

		httpSrv := &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: observe.Middleware(metrics)(mux),
		}
		go func() {
			slog.Info("http endpoints ready", "addr", cfg.Server.ListenAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}()
	}

	// ── MCP server over stdio ─────────────────────────────────────────────────
	server := mcp.NewServer(retriever, asker, sync, ingestor, version, logger)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := server.Run(ctx, &sdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildEmbeddingProviders instantiates every configured embedding provider.
func buildEmbeddingProviders(entries []config.ProviderEntry) ([]embeddings.Provider, error) {
	providers := make([]embeddings.Provider, 0, len(entries))
	for _, entry := range entries {
		switch entry.Name {
		case "openai":
			var opts []oaembed.Option
			if entry.BaseURL != "" {
				opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
			}
			p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
			if err != nil {
				return nil, fmt.Errorf("embeddings provider %q: %w", entry.Model, err)
			}
			providers = append(providers, p)
		case "ollama":
			p, err := ollamaembed.New(entry.BaseURL, entry.Model)
			if err != nil {
				return nil, fmt.Errorf("embeddings provider %q: %w", entry.Model, err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
		}
		slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", entry.Model)
	}
	if len(providers) == 0 {
		return nil, errors.New("at least one embedding provider is required")
	}
	return providers, nil
}

// buildChatProvider instantiates the chat backend through any-llm. When a
// fallback is configured both backends are wrapped in a [resilience.ChatFallback].
func buildChatProvider(cfg config.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
	primary, err := buildLLMProvider(cfg.ProviderEntry)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == nil {
		return primary, nil
	}

	fallback, err := buildLLMProvider(*cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("llm fallback: %w", err)
	}
	return resilience.NewChatFallback([]llm.Provider{primary, fallback}, resilience.ChatConfig{}, logger)
}

// buildLLMProvider instantiates a single chat provider. All any-llm backends
// share the same option pattern: optional APIKey + optional BaseURL.
func buildLLMProvider(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("llm.name is required")
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	p, err := anyllm.New(entry.Name, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
