// Package retrieval answers campaign questions from the fragment store.
//
// A search embeds the query under the active model, scores the campaign's
// fragments by cosine similarity with contextual location boosts, selects the
// top hits, expands each hit with its same-session chronological neighbours,
// and returns the excerpts in chronological order. Relevance drives selection
// only; presentation order is always temporal, because downstream narrative
// consumption needs coherent scenes rather than a relevance ranking.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lorevault/lorevault/internal/observe"
	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/provider/embeddings"
)

const (
	defaultLimit      = 5
	defaultMacroBoost = 0.05
	defaultMicroBoost = 0.10
)

// Scene is the caller's current location context. Fragments sharing it score
// higher; an empty Scene disables boosting.
type Scene struct {
	MacroLocation string
	MicroLocation string
}

// Config tunes a [Retriever]. Model is required; zero boosts select the
// defaults noted per field.
type Config struct {
	// Model is the active embedding model. Queries are embedded with it and
	// only fragments embedded under it are considered.
	Model string

	// MacroBoost is added to a fragment's score when its macro location
	// matches the scene. Default 0.05.
	MacroBoost float64

	// MicroBoost is added when the micro location also matches, independently
	// of and on top of MacroBoost. Default 0.10.
	MicroBoost float64
}

func (c Config) withDefaults() Config {
	if c.MacroBoost == 0 {
		c.MacroBoost = defaultMacroBoost
	}
	if c.MicroBoost == 0 {
		c.MicroBoost = defaultMicroBoost
	}
	return c
}

// Retriever serves semantic searches over a campaign's fragments.
// It holds no state between queries and is safe for concurrent use.
type Retriever struct {
	fragments knowledge.FragmentStore
	entities  knowledge.EntityStore
	gateway   *embeddings.Gateway
	cfg       Config
	log       *slog.Logger
	metrics   *observe.Metrics
}

// New constructs a [Retriever].
func New(
	fragments knowledge.FragmentStore,
	entities knowledge.EntityStore,
	gateway *embeddings.Gateway,
	cfg Config,
	log *slog.Logger,
	metrics *observe.Metrics,
) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Retriever{
		fragments: fragments,
		entities:  entities,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
	}
}

// SearchKnowledge returns up to limit relevant excerpts (plus their temporal
// neighbours) for the query, in chronological order.
//
// An embedding failure is not an error: the query degrades to "no relevant
// memory" and an empty slice is returned. Store failures propagate.
func (r *Retriever) SearchKnowledge(ctx context.Context, campaignID, query string, limit int, scene Scene) ([]string, error) {
	ctx, span := observe.StartSpan(ctx, "retrieval.search")
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if limit <= 0 {
		limit = defaultLimit
	}

	queryVec, ok := r.embedQuery(ctx, query)
	if !ok {
		return []string{}, nil
	}

	frags, err := r.fragments.ListFragments(ctx, campaignID, r.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("retrieval: list fragments for %q under %q: %w", campaignID, r.cfg.Model, err)
	}
	if len(frags) == 0 {
		return []string{}, nil
	}

	candidates := r.investigativeFilter(ctx, campaignID, query, frags)
	selected := selectTop(frags, candidates, queryVec, scene, r.cfg, limit)
	final := expandNeighbours(frags, selected)

	excerpts := make([]string, len(final))
	for i, idx := range final {
		excerpts[i] = frags[idx].Content
	}
	return excerpts, nil
}

// embedQuery embeds the query under the active model. Any failure, including
// an unconfigured model, degrades the query rather than erroring.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	provider, err := r.gateway.ByModel(r.cfg.Model)
	if err != nil {
		r.log.Warn("active embedding model unavailable", "model", r.cfg.Model, "error", err)
		return nil, false
	}
	vec, err := provider.Embed(ctx, query)
	if err != nil {
		r.metrics.RecordProviderError(ctx, r.cfg.Model, "embeddings")
		r.log.Warn("query embedding failed", "model", r.cfg.Model, "error", err)
		return nil, false
	}
	return vec, true
}

// investigativeFilter narrows the candidate index set to fragments tagged with
// an entity the query mentions by name. The filter fails open: when it would
// eliminate every candidate, or the roster cannot be loaded, the full set is
// used instead.
func (r *Retriever) investigativeFilter(ctx context.Context, campaignID, query string, frags []knowledge.Fragment) []int {
	all := make([]int, len(frags))
	for i := range frags {
		all[i] = i
	}

	roster, err := r.entities.ListNames(ctx, campaignID, "")
	if err != nil {
		r.log.Warn("loading entity roster failed, skipping investigative filter",
			"campaign_id", campaignID, "error", err)
		return all
	}

	lowerQuery := strings.ToLower(query)
	mentioned := make(map[string]struct{})
	for _, name := range roster {
		if name != "" && strings.Contains(lowerQuery, strings.ToLower(name)) {
			mentioned[strings.ToLower(name)] = struct{}{}
		}
	}
	if len(mentioned) == 0 {
		return all
	}

	var filtered []int
	for i, f := range frags {
		for _, tag := range f.EntityTags {
			if _, ok := mentioned[strings.ToLower(tag)]; ok {
				filtered = append(filtered, i)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return all
	}
	return filtered
}

// selectTop scores the candidate indexes and returns the best limit of them.
func selectTop(frags []knowledge.Fragment, candidates []int, queryVec []float32, scene Scene, cfg Config, limit int) []int {
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, idx := range candidates {
		f := frags[idx]
		score := cosine(queryVec, f.Embedding)
		if scene.MacroLocation != "" && f.MacroLocation == scene.MacroLocation {
			score += cfg.MacroBoost
		}
		if scene.MicroLocation != "" && f.MicroLocation == scene.MicroLocation {
			score += cfg.MicroBoost
		}
		ranked = append(ranked, scored{idx: idx, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]int, len(ranked))
	for i, s := range ranked {
		out[i] = s.idx
	}
	return out
}

// expandNeighbours widens each selected index with its immediate neighbours in
// the chronological fragment list, staying inside the same session, then
// deduplicates and returns the set sorted chronologically.
func expandNeighbours(frags []knowledge.Fragment, selected []int) []int {
	include := make(map[int]struct{}, len(selected)*3)
	for _, idx := range selected {
		include[idx] = struct{}{}
		if prev := idx - 1; prev >= 0 && frags[prev].SessionID == frags[idx].SessionID {
			include[prev] = struct{}{}
		}
		if next := idx + 1; next < len(frags) && frags[next].SessionID == frags[idx].SessionID {
			include[next] = struct{}{}
		}
	}

	out := make([]int, 0, len(include))
	for idx := range include {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// cosine computes the cosine similarity of two vectors. Mismatched dimensions
// or a zero vector score 0 rather than erroring; fragments under the active
// model always share the query's dimensionality.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
