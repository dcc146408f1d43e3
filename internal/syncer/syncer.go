// Package syncer keeps cached entity descriptions consistent with their
// event histories, lazily.
//
// Any event-history write marks its entity dirty; nothing regenerates
// eagerly. A dirty entity is resynchronized on the next [Syncer.SyncIfNeeded]
// call: the biography is regenerated from the full history, persisted, and
// the entity's canonical fragment in the retrieval store is replaced. The
// description update is the primary effect and must be durable; the fragment
// refresh is best-effort within the same call — a failed refresh is logged
// and the dirty flag stays set so the next sync retries it.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lorevault/lorevault/internal/bio"
	"github.com/lorevault/lorevault/internal/observe"
	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/provider/embeddings"
)

const defaultMinSummaryChars = 80

// BioGenerator is the narrative collaborator that turns event history into
// prose. Satisfied by [bio.Generator].
type BioGenerator interface {
	GenerateBio(ctx context.Context, kind knowledge.Kind, bc bio.Context, history []knowledge.Event) (string, error)
}

// Config tunes a [Syncer]. Zero values select the defaults noted per field.
type Config struct {
	// Model is the embedding model canonical summary fragments are embedded
	// under. It must match the retriever's active model.
	Model string

	// MinSummaryChars is the minimum regenerated-description length that
	// earns a canonical fragment. Shorter descriptions are persisted but not
	// indexed. Default 80.
	MinSummaryChars int
}

func (c Config) withDefaults() Config {
	if c.MinSummaryChars <= 0 {
		c.MinSummaryChars = defaultMinSummaryChars
	}
	return c
}

// Syncer regenerates stale entity descriptions and their canonical retrieval
// fragments. It is safe for concurrent use; concurrent syncs of the same
// entity are collapsed into one regeneration.
type Syncer struct {
	entities  knowledge.EntityStore
	history   knowledge.HistoryStore
	fragments knowledge.FragmentStore
	generator BioGenerator
	gateway   *embeddings.Gateway
	cfg       Config
	log       *slog.Logger
	metrics   *observe.Metrics

	// group collapses concurrent syncs of the same (campaign, kind, name)
	// into a single regeneration.
	group singleflight.Group
}

// New constructs a [Syncer].
func New(
	entities knowledge.EntityStore,
	history knowledge.HistoryStore,
	fragments knowledge.FragmentStore,
	generator BioGenerator,
	gateway *embeddings.Gateway,
	cfg Config,
	log *slog.Logger,
	metrics *observe.Metrics,
) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Syncer{
		entities:  entities,
		history:   history,
		fragments: fragments,
		generator: generator,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
	}
}

// SyncIfNeeded returns the entity's current description, regenerating it
// first when the record is dirty or force is set.
//
// Returns (nil, nil) when the entity does not exist. The clean-and-not-forced
// path returns the cached description without touching the generator or the
// fragment store.
func (s *Syncer) SyncIfNeeded(ctx context.Context, kind knowledge.Kind, campaignID, name string, force bool) (*string, error) {
	key := campaignID + "\x00" + string(kind) + "\x00" + name
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.sync(ctx, kind, campaignID, name, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*string), nil
}

func (s *Syncer) sync(ctx context.Context, kind knowledge.Kind, campaignID, name string, force bool) (*string, error) {
	ctx, span := observe.StartSpan(ctx, "syncer.sync")
	defer span.End()

	rec, err := s.entities.GetEntity(ctx, campaignID, kind, name)
	if err != nil {
		return nil, fmt.Errorf("syncer: get %s %q: %w", kind, name, err)
	}
	if rec == nil {
		return nil, nil
	}
	if !force && !rec.Dirty {
		return &rec.Description, nil
	}

	start := time.Now()
	defer func() {
		s.metrics.SyncDuration.Record(ctx, time.Since(start).Seconds())
	}()

	events, err := s.history.ListEvents(ctx, campaignID, kind, rec.Name)
	if err != nil {
		s.metrics.RecordEntitySynced(ctx, string(kind), "error")
		return nil, fmt.Errorf("syncer: list events for %s %q: %w", kind, rec.Name, err)
	}

	desc, err := s.generator.GenerateBio(ctx, kind, bio.Context{
		Name:               rec.Name,
		CurrentDescription: rec.Description,
		ManualOverride:     rec.ManualOverride,
	}, events)
	if err != nil {
		// Description unchanged, dirty flag untouched: the next sync retries.
		s.metrics.RecordEntitySynced(ctx, string(kind), "error")
		return nil, fmt.Errorf("syncer: regenerate %s %q: %w", kind, rec.Name, err)
	}

	var lastEventID int64
	for _, ev := range events {
		if ev.ID > lastEventID {
			lastEventID = ev.ID
		}
	}
	if err := s.entities.UpdateDescription(ctx, campaignID, kind, rec.Name, desc, lastEventID); err != nil {
		s.metrics.RecordEntitySynced(ctx, string(kind), "error")
		return nil, fmt.Errorf("syncer: update description for %s %q: %w", kind, rec.Name, err)
	}

	// The description is durable from here on; everything below is
	// best-effort refresh of derived state.
	s.refreshFragment(ctx, kind, campaignID, rec.Name, desc)

	if err := s.entities.SetDirty(ctx, campaignID, kind, rec.Name, false); err != nil {
		s.log.Warn("clearing dirty flag failed, entity will resync",
			"kind", kind, "name", rec.Name, "error", err)
	}

	s.metrics.RecordEntitySynced(ctx, string(kind), "ok")
	s.log.Info("entity synced",
		"kind", kind, "campaign_id", campaignID, "name", rec.Name,
		"events", len(events), "duration", time.Since(start))
	return &desc, nil
}

// refreshFragment replaces the entity's canonical fragment with one built
// from the fresh description. Failures here never fail the sync.
func (s *Syncer) refreshFragment(ctx context.Context, kind knowledge.Kind, campaignID, name, desc string) {
	if _, err := s.fragments.DeleteEntityFragments(ctx, campaignID, name); err != nil {
		s.log.Warn("deleting stale canonical fragments failed",
			"kind", kind, "name", name, "error", err)
		return
	}
	if len(desc) < s.cfg.MinSummaryChars {
		return
	}

	body := fmt.Sprintf(
		"Canonical record for the %s %q. The following supersedes any fragmentary prior information about this entity.\n\n%s",
		kind, name, desc)

	provider, err := s.gateway.ByModel(s.cfg.Model)
	if err != nil {
		s.log.Warn("canonical fragment skipped, model unavailable",
			"kind", kind, "name", name, "model", s.cfg.Model, "error", err)
		return
	}
	vec, err := provider.Embed(ctx, body)
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.cfg.Model, "embeddings")
		s.log.Warn("embedding canonical fragment failed",
			"kind", kind, "name", name, "model", s.cfg.Model, "error", err)
		return
	}

	now := time.Now().UTC()
	frag := knowledge.Fragment{
		ID:             uuid.NewString(),
		CampaignID:     campaignID,
		Content:        body,
		Embedding:      vec,
		EmbeddingModel: s.cfg.Model,
		CreatedAt:      now,
		StartTimestamp: now,
		EntityTags:     []string{name},
	}
	if err := s.fragments.InsertFragment(ctx, frag); err != nil {
		s.log.Warn("inserting canonical fragment failed",
			"kind", kind, "name", name, "error", err)
		return
	}
	s.metrics.RecordFragments(ctx, s.cfg.Model, "sync", 1)
}

// SyncAllDirty resynchronizes every dirty entity of the kind in the campaign,
// sequentially. One entity's failure is logged and skipped, never aborts the
// batch. Returns the number of entities successfully synced.
func (s *Syncer) SyncAllDirty(ctx context.Context, kind knowledge.Kind, campaignID string) (int, error) {
	names, err := s.entities.ListDirty(ctx, campaignID, kind)
	if err != nil {
		return 0, fmt.Errorf("syncer: list dirty %s for %q: %w", kind, campaignID, err)
	}

	count := 0
	for _, name := range names {
		if _, err := s.syncOne(ctx, kind, campaignID, name); err != nil {
			s.log.Error("batch sync entity failed, skipping",
				"kind", kind, "campaign_id", campaignID, "name", name, "error", err)
			continue
		}
		count++
	}

	if len(names) > 0 {
		s.log.Info("dirty sweep complete",
			"kind", kind, "campaign_id", campaignID,
			"synced", count, "skipped", len(names)-count)
	}
	return count, nil
}

// syncOne wraps a single forced sync with a panic guard so a misbehaving
// collaborator cannot abort the rest of a sweep.
func (s *Syncer) syncOne(ctx context.Context, kind knowledge.Kind, campaignID, name string) (_ *string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("syncer: panic syncing %s %q: %v", kind, name, r)
		}
	}()
	return s.SyncIfNeeded(ctx, kind, campaignID, name, true)
}
