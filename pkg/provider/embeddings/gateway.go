package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrNoProvider is returned by [Gateway.ByModel] when no registered provider
// serves the requested model.
var ErrNoProvider = errors.New("embeddings: no provider for model")

// Result is the outcome of one provider's leg of a fan-out call. Exactly one
// of Vectors and Err is set.
type Result struct {
	// Model is the provider's model identifier.
	Model string

	// Vectors holds one vector per input text, in input order.
	Vectors [][]float32

	// Err is the provider's failure, nil on success.
	Err error
}

// GatewayConfig tunes the per-provider protection the [Gateway] applies.
type GatewayConfig struct {
	// MaxFailures is the number of consecutive failures that trips a
	// provider's circuit. Zero means 3.
	MaxFailures uint32

	// BreakerTimeout is how long a tripped circuit stays open before allowing
	// probe requests again. Zero means 30s.
	BreakerTimeout time.Duration

	// RequestsPerSecond caps each provider's request rate. Zero disables
	// rate limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Zero means 1 (only meaningful
	// when RequestsPerSecond is set).
	Burst int
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	return c
}

// guarded couples a provider with its circuit breaker and rate limiter.
type guarded struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// Gateway fans embedding requests out across every registered provider and
// shields each one behind its own circuit breaker and rate limiter. A slow or
// failing backend degrades only its own model's vectors; the others keep
// embedding.
//
// Gateway is safe for concurrent use.
type Gateway struct {
	providers []guarded
	byModel   map[string]*guarded
	log       *slog.Logger
}

// NewGateway constructs a Gateway over the given providers. Providers with
// duplicate model IDs are rejected.
func NewGateway(providers []Provider, cfg GatewayConfig, log *slog.Logger) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("embeddings: gateway needs at least one provider")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	g := &Gateway{
		providers: make([]guarded, 0, len(providers)),
		byModel:   make(map[string]*guarded, len(providers)),
		log:       log,
	}
	for _, p := range providers {
		model := p.ModelID()
		if _, dup := g.byModel[model]; dup {
			return nil, fmt.Errorf("embeddings: duplicate provider for model %q", model)
		}

		var limiter *rate.Limiter
		if cfg.RequestsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		}
		breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "embeddings/" + model,
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("embedding circuit state change",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		})

		g.providers = append(g.providers, guarded{provider: p, breaker: breaker, limiter: limiter})
		g.byModel[model] = &g.providers[len(g.providers)-1]
	}
	return g, nil
}

// Models returns the model IDs of all registered providers, in registration
// order.
func (g *Gateway) Models() []string {
	out := make([]string, len(g.providers))
	for i, gp := range g.providers {
		out[i] = gp.provider.ModelID()
	}
	return out
}

// ByModel returns the provider serving the given model wrapped in the
// gateway's protection, or [ErrNoProvider].
func (g *Gateway) ByModel(model string) (Provider, error) {
	gp, ok := g.byModel[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, model)
	}
	return &guardedProvider{g: gp}, nil
}

// EmbedBatchAll embeds the texts under every registered provider
// concurrently and waits for all legs to settle. One provider failing does
// not abort the others: its Result carries the error and the remaining
// results stay usable. The returned slice is in registration order.
func (g *Gateway) EmbedBatchAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(g.providers))

	var wg sync.WaitGroup
	for i := range g.providers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gp := &g.providers[i]
			model := gp.provider.ModelID()
			vecs, err := embedThrough(ctx, gp, texts)
			if err != nil {
				g.log.Warn("embedding provider failed", "model", model, "error", err)
			}
			results[i] = Result{Model: model, Vectors: vecs, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}

// embedThrough runs one batch request through a provider's limiter and
// breaker.
func embedThrough(ctx context.Context, gp *guarded, texts []string) ([][]float32, error) {
	if gp.limiter != nil {
		if err := gp.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embeddings: rate limit wait: %w", err)
		}
	}
	out, err := gp.breaker.Execute(func() (any, error) {
		return gp.provider.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return out.([][]float32), nil
}

// guardedProvider applies a guarded entry's breaker and limiter to the
// [Provider] surface, so single-model callers (retrieval, sync) share the
// same protection as the fan-out path.
type guardedProvider struct {
	g *guarded
}

var _ Provider = (*guardedProvider)(nil)

func (p *guardedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.g.limiter != nil {
		if err := p.g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embeddings: rate limit wait: %w", err)
		}
	}
	out, err := p.g.breaker.Execute(func() (any, error) {
		return p.g.provider.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (p *guardedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return embedThrough(ctx, p.g, texts)
}

func (p *guardedProvider) Dimensions() int { return p.g.provider.Dimensions() }

func (p *guardedProvider) ModelID() string { return p.g.provider.ModelID() }
