package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lorevault/lorevault/internal/observe"
	"github.com/lorevault/lorevault/internal/transcript"
	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/provider/embeddings"
)

const (
	defaultWindow      = 1000
	defaultOverlap     = 200
	defaultMinChunk    = 50
	defaultConcurrency = 5
)

// timeMarkerRe matches the [mm:ss] markers rendered into the transcript blob.
var timeMarkerRe = regexp.MustCompile(`\[(\d{1,3}):(\d{2})\]`)

// Config tunes the chunking and concurrency behaviour of an [Ingestor].
// Zero values select the defaults noted per field.
type Config struct {
	// Window is the sliding-window size in characters. Default 1000.
	Window int

	// Overlap is the number of characters shared between neighbouring
	// windows. Default 200.
	Overlap int

	// MinChunkChars drops chunks shorter than this. Default 50.
	MinChunkChars int

	// Concurrency bounds the number of chunks embedded in flight. Default 5.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Overlap <= 0 {
		c.Overlap = defaultOverlap
	}
	if c.MinChunkChars <= 0 {
		c.MinChunkChars = defaultMinChunk
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// Corrector fixes mis-transcribed entity names in a rendered dialogue line.
// Satisfied by [transcript.Corrector].
type Corrector interface {
	Correct(ctx context.Context, text string, roster []string) (string, []transcript.Correction, error)
}

// Option configures optional Ingestor collaborators.
type Option func(*Ingestor)

// WithCorrector attaches a transcript name corrector applied to every
// dialogue line before chunking.
func WithCorrector(c Corrector) Option {
	return func(in *Ingestor) {
		in.corrector = c
	}
}

// Ingestor converts finished sessions into knowledge fragments.
// It is safe for concurrent use.
type Ingestor struct {
	source    knowledge.SessionSource
	fragments knowledge.FragmentStore
	entities  knowledge.EntityStore
	gateway   *embeddings.Gateway
	corrector Corrector
	cfg       Config
	log       *slog.Logger
	metrics   *observe.Metrics
}

// New constructs an [Ingestor].
func New(
	source knowledge.SessionSource,
	fragments knowledge.FragmentStore,
	entities knowledge.EntityStore,
	gateway *embeddings.Gateway,
	cfg Config,
	log *slog.Logger,
	metrics *observe.Metrics,
	opts ...Option,
) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	in := &Ingestor{
		source:    source,
		fragments: fragments,
		entities:  entities,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// IngestSession re-ingests the whole session: existing fragments for the
// session are deleted under every configured model, then the transcript is
// chunked, embedded and stored afresh.
//
// A session without an associated campaign is skipped silently (logged, not
// an error). Individual embedding failures degrade only the affected
// (chunk, model) pair.
func (in *Ingestor) IngestSession(ctx context.Context, sessionID string) error {
	ctx, span := observe.StartSpan(ctx, "ingest.session")
	defer span.End()

	start := time.Now()
	defer func() {
		in.metrics.IngestDuration.Record(ctx, time.Since(start).Seconds())
	}()

	sess, err := in.source.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("ingest: get session %q: %w", sessionID, err)
	}
	if sess == nil {
		in.log.Info("session has no campaign, skipping ingestion", "session_id", sessionID)
		return nil
	}

	lines, err := in.loadDialogue(ctx, sess)
	if err != nil {
		return err
	}

	roster := in.npcRoster(ctx, sess.CampaignID)
	if in.corrector != nil {
		in.correctLines(ctx, lines, roster)
	}

	blob := renderBlob(lines)
	chunks := splitWindows(blob, in.cfg.Window, in.cfg.Overlap)

	// Re-ingestion replaces: clear the session's fragments for every model
	// before writing new ones.
	for _, model := range in.gateway.Models() {
		if err := in.fragments.DeleteSessionFragments(ctx, sessionID, model); err != nil {
			return fmt.Errorf("ingest: clear session %q fragments for %q: %w", sessionID, model, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Concurrency)

	kept := 0
	for _, chunk := range chunks {
		if len(chunk) < in.cfg.MinChunkChars {
			continue
		}
		kept++
		meta := in.chunkMeta(sess, lines, roster, chunk)
		g.Go(func() error {
			in.embedAndStore(gctx, sess, sessionID, chunk, meta)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ingest: session %q: %w", sessionID, err)
	}

	in.log.Info("session ingested",
		"session_id", sessionID,
		"campaign_id", sess.CampaignID,
		"chunks", kept,
		"models", len(in.gateway.Models()),
		"duration", time.Since(start))
	return nil
}

// loadDialogue fetches all recordings and segments and merges them into the
// chronological line list.
func (in *Ingestor) loadDialogue(ctx context.Context, sess *knowledge.Session) ([]dialogueLine, error) {
	recordings, err := in.source.ListRecordings(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("ingest: list recordings for %q: %w", sess.ID, err)
	}

	segments := make(map[string][]knowledge.Segment, len(recordings))
	for _, rec := range recordings {
		segs, err := in.source.ListSegments(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("ingest: list segments for recording %q: %w", rec.ID, err)
		}
		segments[rec.ID] = segs
	}
	return buildDialogue(sess, recordings, segments), nil
}

// correctLines aligns mis-transcribed names in each line with the campaign
// roster. A per-line correction failure keeps the original line.
func (in *Ingestor) correctLines(ctx context.Context, lines []dialogueLine, roster []string) {
	if len(roster) == 0 {
		return
	}
	applied := 0
	for i := range lines {
		corrected, corrections, err := in.corrector.Correct(ctx, lines[i].Rendered, roster)
		if err != nil {
			in.log.Warn("transcript correction failed, keeping original line", "error", err)
			continue
		}
		if len(corrections) > 0 {
			lines[i].Rendered = corrected
			applied += len(corrections)
		}
	}
	if applied > 0 {
		in.log.Info("transcript names corrected", "corrections", applied)
	}
}

// npcRoster loads the campaign's known NPC names for substring tagging.
// A roster load failure degrades tagging, never ingestion.
func (in *Ingestor) npcRoster(ctx context.Context, campaignID string) []string {
	roster, err := in.entities.ListNames(ctx, campaignID, knowledge.KindNPC)
	if err != nil {
		in.log.Warn("loading NPC roster failed, chunks get location tags only",
			"campaign_id", campaignID, "error", err)
		return nil
	}
	return roster
}

// chunkProvenance carries the derived per-chunk tags.
type chunkProvenance struct {
	startTimestamp time.Time
	macroLocation  string
	microLocation  string
	entityTags     []string
}

// chunkMeta derives the chunk's timestamp, scene locations and entity tags.
//
// The timestamp comes from the first [mm:ss] marker inside the chunk,
// falling back to the session start. Locations and explicit NPC tags come
// from the dialogue line the chunk starts with (prefix match); the tag set
// is unioned with every roster name appearing as a case-insensitive
// substring of the chunk.
func (in *Ingestor) chunkMeta(sess *knowledge.Session, lines []dialogueLine, roster []string, chunk string) chunkProvenance {
	meta := chunkProvenance{startTimestamp: sess.StartedAt}

	if m := timeMarkerRe.FindStringSubmatch(chunk); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		meta.startTimestamp = sess.StartedAt.Add(
			time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second)
	}

	tags := make(map[string]struct{})
	for _, line := range lines {
		if strings.HasPrefix(chunk, line.Rendered) {
			meta.macroLocation = line.MacroLocation
			meta.microLocation = line.MicroLocation
			for _, npc := range line.TaggedNPCs {
				tags[npc] = struct{}{}
			}
			break
		}
	}

	lowerChunk := strings.ToLower(chunk)
	for _, name := range roster {
		if name != "" && strings.Contains(lowerChunk, strings.ToLower(name)) {
			tags[name] = struct{}{}
		}
	}

	meta.entityTags = make([]string, 0, len(tags))
	for tag := range tags {
		meta.entityTags = append(meta.entityTags, tag)
	}
	sort.Strings(meta.entityTags)
	return meta
}

// embedAndStore fans the chunk out to every provider and writes one fragment
// per successful model. All failures here are provider- or row-local.
func (in *Ingestor) embedAndStore(ctx context.Context, sess *knowledge.Session, sessionID, chunk string, meta chunkProvenance) {
	embedStart := time.Now()
	results := in.gateway.EmbedBatchAll(ctx, []string{chunk})
	in.metrics.EmbedDuration.Record(ctx, time.Since(embedStart).Seconds())

	for _, res := range results {
		if res.Err != nil {
			in.metrics.RecordProviderError(ctx, res.Model, "embeddings")
			in.log.Warn("chunk embedding failed",
				"session_id", sessionID, "model", res.Model, "error", res.Err)
			continue
		}
		if len(res.Vectors) != 1 {
			in.log.Warn("chunk embedding returned unexpected vector count",
				"session_id", sessionID, "model", res.Model, "count", len(res.Vectors))
			continue
		}

		frag := knowledge.Fragment{
			ID:             uuid.NewString(),
			CampaignID:     sess.CampaignID,
			SessionID:      sessionID,
			Content:        chunk,
			Embedding:      res.Vectors[0],
			EmbeddingModel: res.Model,
			CreatedAt:      time.Now().UTC(),
			StartTimestamp: meta.startTimestamp,
			MacroLocation:  meta.macroLocation,
			MicroLocation:  meta.microLocation,
			EntityTags:     meta.entityTags,
		}
		if err := in.fragments.InsertFragment(ctx, frag); err != nil {
			in.log.Error("fragment insert failed",
				"session_id", sessionID, "model", res.Model, "error", err)
			continue
		}
		in.metrics.RecordFragments(ctx, res.Model, "ingest", 1)
	}
}
