package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

const (
	defaultMergeTTL      = 48 * time.Hour
	defaultSweepInterval = time.Hour
)

// Janitor expires pending merges nobody answers. An expired merge
// auto-resolves as CREATED_NEW: keeping the mention as a separate entry is
// reversible later (a human can still merge entities), whereas silently
// merging is not.
type Janitor struct {
	store    knowledge.MergeStore
	resolver *Resolver
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger

	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// JanitorOption is a functional option for configuring a [Janitor].
type JanitorOption func(*Janitor)

// WithTTL sets how long a prompt stays answerable. Default: 48h.
func WithTTL(ttl time.Duration) JanitorOption {
	return func(j *Janitor) {
		j.ttl = ttl
	}
}

// WithSweepInterval sets how often expired prompts are collected. Default: 1h.
func WithSweepInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		j.interval = d
	}
}

// NewJanitor constructs a [Janitor] over the persisted pending set.
func NewJanitor(store knowledge.MergeStore, resolver *Resolver, log *slog.Logger, opts ...JanitorOption) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	j := &Janitor{
		store:    store,
		resolver: resolver,
		ttl:      defaultMergeTTL,
		interval: defaultSweepInterval,
		log:      log,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Start launches the background sweep loop. Call [Janitor.Stop] to shut it
// down.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Sweep(ctx)
			case <-j.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit. Safe to call more
// than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
}

// Sweep expires every pending merge older than the TTL. Exported so callers
// can force a sweep outside the ticker cadence.
func (j *Janitor) Sweep(ctx context.Context) {
	merges, err := j.store.ListPending(ctx)
	if err != nil {
		j.log.Error("pending merge sweep failed", "error", err)
		return
	}

	cutoff := j.now().Add(-j.ttl)
	for _, pm := range merges {
		if pm.CreatedAt.After(cutoff) {
			continue
		}
		if _, err := j.resolver.resolveCreateNew(ctx, &pm, knowledge.MergeCreatedNew); err != nil {
			j.log.Error("expiring pending merge failed",
				"prompt_message_id", pm.PromptMessageID,
				"detected", pm.DetectedName, "error", err)
			continue
		}
		j.log.Info("pending merge expired, kept as separate entity",
			"prompt_message_id", pm.PromptMessageID,
			"detected", pm.DetectedName,
			"suggested", pm.SuggestedName,
			"age", j.now().Sub(pm.CreatedAt))
	}
}
