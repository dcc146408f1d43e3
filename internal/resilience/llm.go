// Package resilience provides failover across chat model backends.
//
// Biography regeneration and question answering degrade badly when the chat
// backend is down, so the server can be configured with a fallback model.
// Each backend sits behind its own circuit breaker; when the primary fails or
// its breaker is open, the next healthy backend is tried in order.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lorevault/lorevault/pkg/provider/llm"
)

// ErrAllBackendsFailed is returned when every backend fails or has an open
// circuit breaker.
var ErrAllBackendsFailed = errors.New("resilience: all chat backends failed")

// ChatConfig tunes the per-backend circuit breakers of a [ChatFallback].
// Zero values select the defaults noted per field.
type ChatConfig struct {
	// MaxFailures is the number of consecutive failures before a backend's
	// breaker opens. Default 3.
	MaxFailures uint32

	// BreakerTimeout is how long an open breaker waits before allowing a
	// probe request. Default 30s.
	BreakerTimeout time.Duration
}

func (c ChatConfig) withDefaults() ChatConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

type backend struct {
	provider llm.Provider
	breaker  *gobreaker.CircuitBreaker
}

// ChatFallback implements [llm.Provider] over an ordered list of backends.
// It is safe for concurrent use.
type ChatFallback struct {
	backends []backend
	log      *slog.Logger
}

var _ llm.Provider = (*ChatFallback)(nil)

// NewChatFallback constructs a [ChatFallback]. The first provider is the
// primary; the rest are tried in order when it fails.
func NewChatFallback(providers []llm.Provider, cfg ChatConfig, log *slog.Logger) (*ChatFallback, error) {
	if len(providers) == 0 {
		return nil, errors.New("resilience: chat fallback needs at least one backend")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	f := &ChatFallback{
		backends: make([]backend, 0, len(providers)),
		log:      log,
	}
	for _, p := range providers {
		f.backends = append(f.backends, backend{
			provider: p,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    "chat/" + p.ModelID(),
				Timeout: cfg.BreakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= cfg.MaxFailures
				},
			}),
		})
	}
	return f, nil
}

// Complete sends req to the first healthy backend and returns its response.
func (f *ChatFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for i := range f.backends {
		b := &f.backends[i]
		res, err := b.breaker.Execute(func() (any, error) {
			return b.provider.Complete(ctx, req)
		})
		if err == nil {
			return res.(*llm.CompletionResponse), nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			f.log.Debug("skipping chat backend, circuit open", "model", b.provider.ModelID())
		} else {
			f.log.Warn("chat backend failed, trying next",
				"model", b.provider.ModelID(), "error", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// ModelID returns the primary backend's model identifier.
func (f *ChatFallback) ModelID() string {
	return f.backends[0].provider.ModelID()
}
