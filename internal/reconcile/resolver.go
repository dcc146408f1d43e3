package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lorevault/lorevault/internal/observe"
	"github.com/lorevault/lorevault/pkg/knowledge"
)

const defaultPromptThreshold = 0.6

// Notifier posts messages to the human confirmation channel and returns the
// posted message's ID. Satisfied by the discord notifier.
type Notifier interface {
	PostMessage(ctx context.Context, channelID, content string) (string, error)
}

// BioMerger folds a newly extracted description into an established one.
// Satisfied by [bio.Generator].
type BioMerger interface {
	MergeBios(ctx context.Context, existing, fresh string) (string, error)
}

// Candidate is a freshly detected entity mention awaiting reconciliation.
type Candidate struct {
	// Name is the entity name as extracted from the transcript.
	Name string

	// Description is the freshly extracted description text.
	Description string

	// Role is free-text context shown in the disambiguation prompt
	// (e.g., "monk ally").
	Role string
}

// Config tunes a [Resolver]. Zero values select the defaults noted per field.
type Config struct {
	// PromptThreshold is the confidence above which a non-identical match
	// triggers a disambiguation prompt instead of a silent create. Default 0.6.
	PromptThreshold float64
}

func (c Config) withDefaults() Config {
	if c.PromptThreshold == 0 {
		c.PromptThreshold = defaultPromptThreshold
	}
	return c
}

// Resolver maps detected entity mentions onto canonical records, suspending
// ambiguous ones for human confirmation. It is safe for concurrent use.
type Resolver struct {
	entities knowledge.EntityStore
	pending  *PendingSet
	merger   BioMerger
	notifier Notifier
	cfg      Config
	log      *slog.Logger
	metrics  *observe.Metrics
}

// New constructs a [Resolver].
func New(
	entities knowledge.EntityStore,
	pending *PendingSet,
	merger BioMerger,
	notifier Notifier,
	cfg Config,
	log *slog.Logger,
	metrics *observe.Metrics,
) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Resolver{
		entities: entities,
		pending:  pending,
		merger:   merger,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  metrics,
	}
}

// ResolveIdentity scores the candidate against the campaign's roster of the
// kind and returns the best match, or nil when nothing plausible exists.
func (r *Resolver) ResolveIdentity(ctx context.Context, campaignID string, kind knowledge.Kind, name, description string) (*Match, error) {
	roster, err := r.entities.ListNames(ctx, campaignID, kind)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list %s roster for %q: %w", kind, campaignID, err)
	}

	var best *Match
	for _, canonical := range roster {
		canonicalDesc := ""
		rec, err := r.entities.GetEntity(ctx, campaignID, kind, canonical)
		if err != nil {
			r.log.Warn("loading roster entity failed, scoring on name only",
				"kind", kind, "name", canonical, "error", err)
		} else if rec != nil {
			canonicalDesc = rec.Description
		}

		conf := score(name, description, canonical, canonicalDesc)
		if best == nil || conf > best.Confidence {
			best = &Match{Name: canonical, Confidence: conf}
		}
	}

	if best == nil || best.Confidence < minMatchConfidence {
		return nil, nil
	}
	return best, nil
}

// CheckAndPromptMerge decides whether the candidate needs a human call.
//
// Returns false when the candidate can proceed through the normal create
// flow: no plausible match, confidence at or below the threshold, or the
// match is just the candidate's own name. Otherwise a disambiguation prompt
// is posted, the merge is persisted as PROPOSED, and true is returned — the
// caller must suspend normal processing for this entity.
func (r *Resolver) CheckAndPromptMerge(ctx context.Context, campaignID string, kind knowledge.Kind, candidate Candidate, channelID string) (bool, error) {
	match, err := r.ResolveIdentity(ctx, campaignID, kind, candidate.Name, candidate.Description)
	if err != nil {
		return false, err
	}
	if match == nil || match.Confidence <= r.cfg.PromptThreshold || strings.EqualFold(match.Name, candidate.Name) {
		return false, nil
	}

	msgID, err := r.notifier.PostMessage(ctx, channelID, promptText(candidate, *match))
	if err != nil {
		return false, fmt.Errorf("reconcile: post merge prompt for %q: %w", candidate.Name, err)
	}

	pm := knowledge.PendingMerge{
		PromptMessageID: msgID,
		CampaignID:      campaignID,
		Kind:            kind,
		DetectedName:    candidate.Name,
		SuggestedName:   match.Name,
		NewDescription:  candidate.Description,
		Role:            candidate.Role,
		State:           knowledge.MergeProposed,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.pending.Put(ctx, pm); err != nil {
		return false, err
	}

	r.metrics.PendingMerges.Add(ctx, 1)
	r.log.Info("identity merge proposed",
		"campaign_id", campaignID, "kind", kind,
		"detected", candidate.Name, "suggested", match.Name,
		"confidence", match.Confidence, "prompt_message_id", msgID)
	return true, nil
}

func promptText(candidate Candidate, match Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "I heard about %q", candidate.Name)
	if candidate.Role != "" {
		fmt.Fprintf(&sb, " (%s)", candidate.Role)
	}
	fmt.Fprintf(&sb, " — is that the same as %q? (confidence %.0f%%)\n\n", match.Name, match.Confidence*100)
	sb.WriteString("Reply **yes** to merge them, **new** to keep a separate entry, or reply with the name of the entity it actually is.")
	return sb.String()
}
