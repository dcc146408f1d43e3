// Package postgres provides the PostgreSQL-backed implementation of the
// lorevault knowledge store (fragments, entity records, event history,
// pending merges, and the read-only transcript source).
//
// All planes share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.InsertFragment(ctx, frag)
//	frags, _ := store.ListFragments(ctx, campaignID, model)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fragments DDL
// ─────────────────────────────────────────────────────────────────────────────

// The embedding column is dimensionless on purpose: fragments from multiple
// embedding models with different vector widths coexist in the same table,
// partitioned logically by embedding_model. Retrieval loads a whole
// (campaign, model) slice and scores in memory, so no ANN index is needed.
const ddlFragments = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS fragments (
    id               TEXT         PRIMARY KEY,
    campaign_id      TEXT         NOT NULL,
    session_id       TEXT         NOT NULL DEFAULT '',
    content          TEXT         NOT NULL,
    embedding        vector,
    embedding_model  TEXT         NOT NULL,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    start_timestamp  TIMESTAMPTZ  NOT NULL,
    macro_location   TEXT         NOT NULL DEFAULT '',
    micro_location   TEXT         NOT NULL DEFAULT '',
    entity_tags      TEXT[]       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_fragments_campaign_model_ts
    ON fragments (campaign_id, embedding_model, start_timestamp);

CREATE INDEX IF NOT EXISTS idx_fragments_session_model
    ON fragments (session_id, embedding_model);

CREATE INDEX IF NOT EXISTS idx_fragments_entity_tags
    ON fragments USING GIN (entity_tags);
`

// ─────────────────────────────────────────────────────────────────────────────
// Entity records + event history DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlEntities = `
CREATE TABLE IF NOT EXISTS entity_records (
    campaign_id           TEXT         NOT NULL,
    kind                  TEXT         NOT NULL,
    name                  TEXT         NOT NULL,
    short_id              TEXT         NOT NULL,
    description           TEXT         NOT NULL DEFAULT '',
    manual_override       TEXT,
    dirty                 BOOLEAN      NOT NULL DEFAULT FALSE,
    last_synced_event_id  BIGINT       NOT NULL DEFAULT 0,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (campaign_id, kind, name)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entity_records_ci_name
    ON entity_records (campaign_id, kind, lower(name));

CREATE INDEX IF NOT EXISTS idx_entity_records_dirty
    ON entity_records (campaign_id, kind) WHERE dirty;

CREATE TABLE IF NOT EXISTS entity_events (
    id           BIGSERIAL    PRIMARY KEY,
    campaign_id  TEXT         NOT NULL,
    kind         TEXT         NOT NULL,
    entity_name  TEXT         NOT NULL,
    session_id   TEXT         NOT NULL DEFAULT '',
    event_type   TEXT         NOT NULL DEFAULT '',
    description  TEXT         NOT NULL,
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entity_events_entity
    ON entity_events (campaign_id, kind, entity_name, timestamp);
`

// ─────────────────────────────────────────────────────────────────────────────
// Pending merges DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlMerges = `
CREATE TABLE IF NOT EXISTS pending_merges (
    prompt_message_id  TEXT         PRIMARY KEY,
    campaign_id        TEXT         NOT NULL,
    kind               TEXT         NOT NULL,
    detected_name      TEXT         NOT NULL,
    suggested_name     TEXT         NOT NULL,
    new_description    TEXT         NOT NULL DEFAULT '',
    role               TEXT         NOT NULL DEFAULT '',
    state              TEXT         NOT NULL DEFAULT 'PROPOSED',
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pending_merges_state
    ON pending_merges (state, created_at);
`

// ─────────────────────────────────────────────────────────────────────────────
// Transcript source DDL
// ─────────────────────────────────────────────────────────────────────────────

// These tables are written by the recording pipeline; the knowledge core only
// reads them. The DDL is still applied here so a fresh database is usable
// end to end.
const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT         PRIMARY KEY,
    campaign_id  TEXT         NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recordings (
    id              TEXT         PRIMARY KEY,
    session_id      TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    started_at      TIMESTAMPTZ  NOT NULL,
    macro_location  TEXT         NOT NULL DEFAULT '',
    micro_location  TEXT         NOT NULL DEFAULT '',
    tagged_npcs     TEXT[]       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_recordings_session
    ON recordings (session_id, started_at);

CREATE TABLE IF NOT EXISTS transcript_segments (
    id            BIGSERIAL    PRIMARY KEY,
    recording_id  TEXT         NOT NULL REFERENCES recordings (id) ON DELETE CASCADE,
    offset_ns     BIGINT       NOT NULL DEFAULT 0,
    speaker_name  TEXT         NOT NULL DEFAULT '',
    text          TEXT         NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_recording
    ON transcript_segments (recording_id, offset_ns);
`

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT
// EXISTS) and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlFragments,
		ddlEntities,
		ddlMerges,
		ddlSessions,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
