package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/lorevault/lorevault/pkg/knowledge"
	"github.com/lorevault/lorevault/pkg/knowledge/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if LOREVAULT_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LOREVAULT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOREVAULT_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema and a raw
// pool for seeding transcript tables the store itself only reads.
func newTestStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	raw := mustPool(t, ctx, dsn)
	t.Cleanup(raw.Close)
	dropSchema(t, ctx, raw)

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store, raw
}

func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// best-effort: pgvector may not be installed yet on a fresh DB
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS transcript_segments CASCADE",
		"DROP TABLE IF EXISTS recordings CASCADE",
		"DROP TABLE IF EXISTS sessions CASCADE",
		"DROP TABLE IF EXISTS pending_merges CASCADE",
		"DROP TABLE IF EXISTS entity_events CASCADE",
		"DROP TABLE IF EXISTS entity_records CASCADE",
		"DROP TABLE IF EXISTS fragments CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func mustInsertFragment(t *testing.T, ctx context.Context, store *postgres.Store, f knowledge.Fragment) {
	t.Helper()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if err := store.InsertFragment(ctx, f); err != nil {
		t.Fatalf("InsertFragment %s: %v", f.ID, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Fragments
// ─────────────────────────────────────────────────────────────────────────────

func TestFragments_ListIsModelScopedAndChronological(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "f-late", CampaignID: "c1", SessionID: "s1",
		Content: "[30:00] Later in the evening.", Embedding: []float32{0, 1, 0},
		EmbeddingModel: "nomic-embed-text", StartTimestamp: base.Add(30 * time.Minute),
	})
	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "f-early", CampaignID: "c1", SessionID: "s1",
		Content: "[00:10] The party reaches Greenest.", Embedding: []float32{1, 0, 0},
		EmbeddingModel: "nomic-embed-text", StartTimestamp: base.Add(10 * time.Second),
		MacroLocation: "Greenest", EntityTags: []string{"Governor Nighthill"},
	})
	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "f-other-model", CampaignID: "c1", SessionID: "s1",
		Content: "Same dialogue under another model.", Embedding: []float32{1, 0, 0, 0},
		EmbeddingModel: "text-embedding-3-small", StartTimestamp: base,
	})
	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "f-other-campaign", CampaignID: "c2", SessionID: "s9",
		Content: "A different table's game.", Embedding: []float32{0, 0, 1},
		EmbeddingModel: "nomic-embed-text", StartTimestamp: base,
	})

	frags, err := store.ListFragments(ctx, "c1", "nomic-embed-text")
	if err != nil {
		t.Fatalf("ListFragments: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("ListFragments: want 2, got %d", len(frags))
	}
	if frags[0].ID != "f-early" || frags[1].ID != "f-late" {
		t.Errorf("ordering: want [f-early f-late], got [%s %s]", frags[0].ID, frags[1].ID)
	}
	if frags[0].MacroLocation != "Greenest" {
		t.Errorf("MacroLocation: want Greenest, got %q", frags[0].MacroLocation)
	}
	if len(frags[0].EntityTags) != 1 || frags[0].EntityTags[0] != "Governor Nighthill" {
		t.Errorf("EntityTags round-trip: got %v", frags[0].EntityTags)
	}
	if len(frags[0].Embedding) != 3 {
		t.Errorf("Embedding round-trip: want 3 dims, got %d", len(frags[0].Embedding))
	}

	empty, err := store.ListFragments(ctx, "c1", "unknown-model")
	if err != nil {
		t.Fatalf("ListFragments unknown model: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown model: want empty non-nil slice, got %v", empty)
	}
}

func TestFragments_DeleteSessionFragments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, f := range []knowledge.Fragment{
		{ID: "d-1", CampaignID: "c1", SessionID: "s1", Content: "a", Embedding: []float32{1}, EmbeddingModel: "m1", StartTimestamp: now},
		{ID: "d-2", CampaignID: "c1", SessionID: "s1", Content: "b", Embedding: []float32{1, 0}, EmbeddingModel: "m2", StartTimestamp: now},
		{ID: "d-3", CampaignID: "c1", SessionID: "s2", Content: "c", Embedding: []float32{1}, EmbeddingModel: "m1", StartTimestamp: now},
	} {
		mustInsertFragment(t, ctx, store, f)
	}

	if err := store.DeleteSessionFragments(ctx, "s1", "m1"); err != nil {
		t.Fatalf("DeleteSessionFragments: %v", err)
	}

	m1, _ := store.ListFragments(ctx, "c1", "m1")
	if len(m1) != 1 || m1[0].ID != "d-3" {
		t.Errorf("m1 after delete: want [d-3], got %d fragments", len(m1))
	}
	m2, _ := store.ListFragments(ctx, "c1", "m2")
	if len(m2) != 1 {
		t.Errorf("m2 untouched: want 1, got %d", len(m2))
	}

	// Unknown session is not an error.
	if err := store.DeleteSessionFragments(ctx, "never-existed", "m1"); err != nil {
		t.Errorf("DeleteSessionFragments unknown: %v", err)
	}
}

func TestFragments_DeleteEntityFragmentsOnlyTouchesCanonical(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Canonical summary: empty session, tagged with the entity.
	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "canon", CampaignID: "c1", SessionID: "",
		Content: "Canonical record for the npc \"Leosin Erantar\".",
		Embedding: []float32{1}, EmbeddingModel: "m1", StartTimestamp: now,
		EntityTags: []string{"Leosin Erantar"},
	})
	// Ingested dialogue mentioning the same entity must survive.
	mustInsertFragment(t, ctx, store, knowledge.Fragment{
		ID: "dialogue", CampaignID: "c1", SessionID: "s1",
		Content: "Leosin Erantar is chained to the wall.",
		Embedding: []float32{0}, EmbeddingModel: "m1", StartTimestamp: now,
		EntityTags: []string{"Leosin Erantar"},
	})

	n, err := store.DeleteEntityFragments(ctx, "c1", "Leosin Erantar")
	if err != nil {
		t.Fatalf("DeleteEntityFragments: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted count: want 1, got %d", n)
	}
	rest, _ := store.ListFragments(ctx, "c1", "m1")
	if len(rest) != 1 || rest[0].ID != "dialogue" {
		t.Errorf("surviving fragments: want [dialogue], got %d", len(rest))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Entity records
// ─────────────────────────────────────────────────────────────────────────────

func TestEntities_Lifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := knowledge.EntityRecord{
		CampaignID: "c1", Kind: knowledge.KindNPC,
		Name: "Leosin Erantar", ShortID: "leosin",
		Description: "A monk of the Order of the Gauntlet.",
		Dirty:       true,
	}
	if err := store.CreateEntity(ctx, rec); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}

	// Case-insensitive lookup returns the canonical casing.
	got, err := store.GetEntity(ctx, "c1", knowledge.KindNPC, "leosin erantar")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got == nil {
		t.Fatal("GetEntity: expected record, got nil")
	}
	if got.Name != "Leosin Erantar" {
		t.Errorf("Name: want canonical casing, got %q", got.Name)
	}
	if !got.Dirty {
		t.Error("Dirty: want true after create")
	}
	if got.ManualOverride != nil {
		t.Errorf("ManualOverride: want nil, got %q", *got.ManualOverride)
	}

	// Duplicate create (even with different casing) is rejected.
	dup := rec
	dup.Name = "LEOSIN ERANTAR"
	if err := store.CreateEntity(ctx, dup); err == nil {
		t.Error("CreateEntity duplicate: expected error, got nil")
	}

	// Missing entity is (nil, nil).
	missing, err := store.GetEntity(ctx, "c1", knowledge.KindNPC, "Bob the Blacksmith")
	if err != nil {
		t.Fatalf("GetEntity missing: %v", err)
	}
	if missing != nil {
		t.Errorf("GetEntity missing: want nil, got %+v", missing)
	}

	// UpdateDescription advances the sync watermark but leaves dirty alone.
	if err := store.UpdateDescription(ctx, "c1", knowledge.KindNPC, "Leosin Erantar", "Rescued from the raider camp.", 7); err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}
	updated, _ := store.GetEntity(ctx, "c1", knowledge.KindNPC, "Leosin Erantar")
	if updated.Description != "Rescued from the raider camp." {
		t.Errorf("Description: got %q", updated.Description)
	}
	if updated.LastSyncedEventID != 7 {
		t.Errorf("LastSyncedEventID: want 7, got %d", updated.LastSyncedEventID)
	}
	if !updated.Dirty {
		t.Error("UpdateDescription must not clear the dirty flag")
	}

	if err := store.SetDirty(ctx, "c1", knowledge.KindNPC, "Leosin Erantar", false); err != nil {
		t.Fatalf("SetDirty: %v", err)
	}
	clean, _ := store.GetEntity(ctx, "c1", knowledge.KindNPC, "Leosin Erantar")
	if clean.Dirty {
		t.Error("SetDirty(false): record still dirty")
	}

	// MergeDescription re-stales the record.
	if err := store.MergeDescription(ctx, "c1", knowledge.KindNPC, "Leosin Erantar", "Merged biography."); err != nil {
		t.Fatalf("MergeDescription: %v", err)
	}
	merged, _ := store.GetEntity(ctx, "c1", knowledge.KindNPC, "Leosin Erantar")
	if merged.Description != "Merged biography." || !merged.Dirty {
		t.Errorf("MergeDescription: description=%q dirty=%v, want merged text + dirty", merged.Description, merged.Dirty)
	}

	// Updating a missing record reports ErrNotFound.
	err = store.UpdateDescription(ctx, "c1", knowledge.KindNPC, "nobody", "x", 1)
	if err == nil {
		t.Error("UpdateDescription missing: expected error")
	}
}

func TestEntities_DirtyAndNameListings(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, rec := range []knowledge.EntityRecord{
		{CampaignID: "c1", Kind: knowledge.KindNPC, Name: "Leosin Erantar", ShortID: "leosin", Dirty: true},
		{CampaignID: "c1", Kind: knowledge.KindNPC, Name: "Governor Nighthill", ShortID: "nighthill", Dirty: false},
		{CampaignID: "c1", Kind: knowledge.KindLocation, Name: "Greenest", ShortID: "greenest", Dirty: true},
		{CampaignID: "c2", Kind: knowledge.KindNPC, Name: "Frulam Mondath", ShortID: "mondath", Dirty: true},
	} {
		if err := store.CreateEntity(ctx, rec); err != nil {
			t.Fatalf("CreateEntity %s: %v", rec.Name, err)
		}
	}

	dirty, err := store.ListDirty(ctx, "c1", knowledge.KindNPC)
	if err != nil {
		t.Fatalf("ListDirty: %v", err)
	}
	if len(dirty) != 1 || dirty[0] != "Leosin Erantar" {
		t.Errorf("ListDirty: want [Leosin Erantar], got %v", dirty)
	}

	npcs, err := store.ListNames(ctx, "c1", knowledge.KindNPC)
	if err != nil {
		t.Fatalf("ListNames npc: %v", err)
	}
	if len(npcs) != 2 {
		t.Errorf("ListNames npc: want 2, got %v", npcs)
	}

	// Empty kind is the whole-campaign roster.
	all, err := store.ListNames(ctx, "c1", "")
	if err != nil {
		t.Fatalf("ListNames all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListNames all kinds: want 3, got %v", all)
	}

	none, err := store.ListNames(ctx, "empty-campaign", "")
	if err != nil {
		t.Fatalf("ListNames empty campaign: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("empty campaign: want empty non-nil slice, got %v", none)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Event history
// ─────────────────────────────────────────────────────────────────────────────

func TestHistory_AppendMarksEntityDirty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := knowledge.EntityRecord{
		CampaignID: "c1", Kind: knowledge.KindNPC,
		Name: "Governor Nighthill", ShortID: "nighthill",
	}
	if err := store.CreateEntity(ctx, rec); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if err := store.SetDirty(ctx, "c1", knowledge.KindNPC, "Governor Nighthill", false); err != nil {
		t.Fatalf("SetDirty: %v", err)
	}

	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	first, err := store.AppendEvent(ctx, knowledge.Event{
		CampaignID: "c1", Kind: knowledge.KindNPC, EntityName: "Governor Nighthill",
		SessionID: "s1", EventType: "met",
		Description: "Asked the party to save the mill.",
		Timestamp:   base,
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	second, err := store.AppendEvent(ctx, knowledge.Event{
		CampaignID: "c1", Kind: knowledge.KindNPC, EntityName: "Governor Nighthill",
		SessionID: "s1", EventType: "revealed",
		Description: "Offered a reward for the monk's rescue.",
		Timestamp:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("AppendEvent second: %v", err)
	}
	if second <= first {
		t.Errorf("event IDs not increasing: first=%d second=%d", first, second)
	}

	// History writes stale the cached description.
	after, _ := store.GetEntity(ctx, "c1", knowledge.KindNPC, "Governor Nighthill")
	if !after.Dirty {
		t.Error("AppendEvent did not mark the entity dirty")
	}

	events, err := store.ListEvents(ctx, "c1", knowledge.KindNPC, "Governor Nighthill")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListEvents: want 2, got %d", len(events))
	}
	if events[0].EventType != "met" || events[1].EventType != "revealed" {
		t.Errorf("event ordering: got [%s %s]", events[0].EventType, events[1].EventType)
	}

	empty, err := store.ListEvents(ctx, "c1", knowledge.KindNPC, "nobody")
	if err != nil {
		t.Fatalf("ListEvents empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("no events: want empty non-nil slice, got %v", empty)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pending merges
// ─────────────────────────────────────────────────────────────────────────────

func TestMerges_PutGetDeleteAndPendingListing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := knowledge.PendingMerge{
		PromptMessageID: "msg-older", CampaignID: "c1", Kind: knowledge.KindNPC,
		DetectedName: "Leosin Erentar", SuggestedName: "Leosin Erantar",
		NewDescription: "A captured monk.", Role: "monk ally",
		State: knowledge.MergeProposed, CreatedAt: base,
	}
	newer := older
	newer.PromptMessageID = "msg-newer"
	newer.CreatedAt = base.Add(time.Hour)
	resolved := older
	resolved.PromptMessageID = "msg-resolved"
	resolved.State = knowledge.MergeConfirmed

	for _, m := range []knowledge.PendingMerge{newer, older, resolved} {
		if err := store.PutMerge(ctx, m); err != nil {
			t.Fatalf("PutMerge %s: %v", m.PromptMessageID, err)
		}
	}

	got, err := store.GetMerge(ctx, "msg-older")
	if err != nil {
		t.Fatalf("GetMerge: %v", err)
	}
	if got == nil || got.DetectedName != "Leosin Erentar" || got.SuggestedName != "Leosin Erantar" {
		t.Errorf("GetMerge round-trip: got %+v", got)
	}

	// Only PROPOSED merges are pending, oldest first.
	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPending: want 2, got %d", len(pending))
	}
	if pending[0].PromptMessageID != "msg-older" || pending[1].PromptMessageID != "msg-newer" {
		t.Errorf("ListPending order: got [%s %s]", pending[0].PromptMessageID, pending[1].PromptMessageID)
	}

	// PutMerge replaces by prompt message ID.
	older.State = knowledge.MergeCreatedNew
	if err := store.PutMerge(ctx, older); err != nil {
		t.Fatalf("PutMerge replace: %v", err)
	}
	replaced, _ := store.GetMerge(ctx, "msg-older")
	if replaced.State != knowledge.MergeCreatedNew {
		t.Errorf("replace: state = %s, want CREATED_NEW", replaced.State)
	}

	if err := store.DeleteMerge(ctx, "msg-newer"); err != nil {
		t.Fatalf("DeleteMerge: %v", err)
	}
	gone, err := store.GetMerge(ctx, "msg-newer")
	if err != nil {
		t.Fatalf("GetMerge after delete: %v", err)
	}
	if gone != nil {
		t.Errorf("merge still present after delete: %+v", gone)
	}
	if err := store.DeleteMerge(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteMerge non-existent: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcript source (read-only)
// ─────────────────────────────────────────────────────────────────────────────

func seedTranscript(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	for _, stmt := range []struct {
		q    string
		args []any
	}{
		{`INSERT INTO sessions (id, campaign_id, started_at) VALUES ($1, $2, $3)`,
			[]any{"s1", "c1", start}},
		{`INSERT INTO sessions (id, campaign_id, started_at) VALUES ($1, $2, $3)`,
			[]any{"s-orphan", "", start}},
		{`INSERT INTO recordings (id, session_id, started_at, macro_location, micro_location, tagged_npcs)
		  VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"r2", "s1", start.Add(30 * time.Minute), "Greenest", "the keep", []string{}}},
		{`INSERT INTO recordings (id, session_id, started_at, macro_location, micro_location, tagged_npcs)
		  VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"r1", "s1", start, "Greenest", "the mill", []string{"Governor Nighthill"}}},
		{`INSERT INTO transcript_segments (recording_id, offset_ns, speaker_name, text)
		  VALUES ($1, $2, $3, $4)`,
			[]any{"r1", int64(90 * time.Second), "Alice", "The mill is burning!"}},
		{`INSERT INTO transcript_segments (recording_id, offset_ns, speaker_name, text)
		  VALUES ($1, $2, $3, $4)`,
			[]any{"r1", int64(5 * time.Second), "DM", "Smoke rises over Greenest."}},
	} {
		if _, err := pool.Exec(ctx, stmt.q, stmt.args...); err != nil {
			t.Fatalf("seed transcript: %v", err)
		}
	}
}

func TestSessionSource_Reads(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()
	seedTranscript(t, ctx, pool)

	sess, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess == nil || sess.CampaignID != "c1" {
		t.Fatalf("GetSession: got %+v, want campaign c1", sess)
	}

	// A session without a campaign is reported as absent.
	orphan, err := store.GetSession(ctx, "s-orphan")
	if err != nil {
		t.Fatalf("GetSession orphan: %v", err)
	}
	if orphan != nil {
		t.Errorf("orphan session: want nil, got %+v", orphan)
	}
	unknown, err := store.GetSession(ctx, "never-existed")
	if err != nil {
		t.Fatalf("GetSession unknown: %v", err)
	}
	if unknown != nil {
		t.Errorf("unknown session: want nil, got %+v", unknown)
	}

	recs, err := store.ListRecordings(ctx, "s1")
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "r1" || recs[1].ID != "r2" {
		t.Fatalf("ListRecordings: want [r1 r2] by start time, got %d recordings", len(recs))
	}
	if recs[0].MicroLocation != "the mill" {
		t.Errorf("MicroLocation: got %q", recs[0].MicroLocation)
	}
	if len(recs[0].TaggedNPCs) != 1 || recs[0].TaggedNPCs[0] != "Governor Nighthill" {
		t.Errorf("TaggedNPCs round-trip: got %v", recs[0].TaggedNPCs)
	}

	segs, err := store.ListSegments(ctx, "r1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("ListSegments: want 2, got %d", len(segs))
	}
	if segs[0].SpeakerName != "DM" || segs[1].SpeakerName != "Alice" {
		t.Errorf("segment ordering by offset: got [%s %s]", segs[0].SpeakerName, segs[1].SpeakerName)
	}
	if segs[1].Offset != 90*time.Second {
		t.Errorf("Offset round-trip: want 90s, got %v", segs[1].Offset)
	}
}
