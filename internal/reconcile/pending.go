package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// PendingSet is the in-memory index over the persisted pending-merge table.
// The table is the source of truth; this cache only saves a round trip on the
// reply hot path and is rebuilt from the store at startup via [PendingSet.Load].
type PendingSet struct {
	store knowledge.MergeStore

	mu   sync.RWMutex
	byID map[string]knowledge.PendingMerge
}

// NewPendingSet wraps the merge store. Call [PendingSet.Load] before serving
// replies so prompts posted by a previous process remain answerable.
func NewPendingSet(store knowledge.MergeStore) *PendingSet {
	return &PendingSet{
		store: store,
		byID:  make(map[string]knowledge.PendingMerge),
	}
}

// Load rebuilds the cache from the persisted pending set.
func (p *PendingSet) Load(ctx context.Context) error {
	merges, err := p.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: load pending merges: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]knowledge.PendingMerge, len(merges))
	for _, m := range merges {
		p.byID[m.PromptMessageID] = m
	}
	return nil
}

// Put persists the merge and caches it.
func (p *PendingSet) Put(ctx context.Context, m knowledge.PendingMerge) error {
	if err := p.store.PutMerge(ctx, m); err != nil {
		return fmt.Errorf("reconcile: persist pending merge %q: %w", m.PromptMessageID, err)
	}
	p.mu.Lock()
	p.byID[m.PromptMessageID] = m
	p.mu.Unlock()
	return nil
}

// Get returns the pending merge for the prompt message, or (nil, nil) when
// none is pending. A cache miss falls through to the store, since the cache
// may trail the table.
func (p *PendingSet) Get(ctx context.Context, promptMessageID string) (*knowledge.PendingMerge, error) {
	p.mu.RLock()
	m, ok := p.byID[promptMessageID]
	p.mu.RUnlock()
	if ok {
		return &m, nil
	}

	stored, err := p.store.GetMerge(ctx, promptMessageID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: get pending merge %q: %w", promptMessageID, err)
	}
	if stored == nil {
		return nil, nil
	}
	p.mu.Lock()
	p.byID[promptMessageID] = *stored
	p.mu.Unlock()
	return stored, nil
}

// Remove deletes a resolved merge from the store and the cache. Terminal
// states are never kept.
func (p *PendingSet) Remove(ctx context.Context, promptMessageID string) error {
	if err := p.store.DeleteMerge(ctx, promptMessageID); err != nil {
		return fmt.Errorf("reconcile: delete pending merge %q: %w", promptMessageID, err)
	}
	p.mu.Lock()
	delete(p.byID, promptMessageID)
	p.mu.Unlock()
	return nil
}

// Len returns the number of cached pending merges.
func (p *PendingSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}
