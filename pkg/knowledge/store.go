// Package knowledge defines the shared data model and store contracts for the
// Lorevault knowledge-memory core.
//
// The model has three planes:
//
//   - Fragments ([Fragment]): embedded text chunks, the unit of semantic
//     retrieval. Written by ingestion and by entity sync, read by retrieval.
//   - Entity records ([EntityRecord]) and their append-only event histories
//     ([Event]): the source of truth that cached descriptions derive from,
//     kept lazily consistent via a per-record dirty flag.
//   - Pending merges ([PendingMerge]): suspended identity-reconciliation
//     decisions awaiting a human reply.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres/pgvector, in-memory, …) without depending on
// lorevault internals.
//
// Every implementation must be safe for concurrent use.
package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups whose subject does not exist, where the
// absence is an error rather than a "nothing to do" condition.
var ErrNotFound = errors.New("knowledge: not found")

// ─────────────────────────────────────────────────────────────────────────────
// Fragments
// ─────────────────────────────────────────────────────────────────────────────

// FragmentStore persists [Fragment] records.
//
// Implementations must be safe for concurrent use.
type FragmentStore interface {
	// InsertFragment stores a pre-embedded fragment.
	InsertFragment(ctx context.Context, f Fragment) error

	// ListFragments returns every fragment for the campaign that was embedded
	// under the given model, ordered by StartTimestamp ascending. The ordering
	// is the index space used by temporal neighbour expansion.
	// Returns an empty (non-nil) slice when no fragments match.
	ListFragments(ctx context.Context, campaignID, model string) ([]Fragment, error)

	// DeleteSessionFragments removes all fragments for the session embedded
	// under the given model. Used to make re-ingestion replace rather than
	// duplicate. Deleting from an unknown session is not an error.
	DeleteSessionFragments(ctx context.Context, sessionID, model string) error

	// DeleteEntityFragments removes the canonical summary fragments tagged
	// with the entity name (fragments whose SessionID is empty and whose
	// EntityTags contain name). Returns the number removed.
	DeleteEntityFragments(ctx context.Context, campaignID, name string) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Entity records and event history
// ─────────────────────────────────────────────────────────────────────────────

// EntityStore persists canonical [EntityRecord] rows for all kinds.
//
// Implementations must be safe for concurrent use.
type EntityStore interface {
	// GetEntity retrieves the record for (campaignID, kind, name).
	// The name lookup is case-insensitive. Returns (nil, nil) when the record
	// does not exist — a missing entity is "nothing to do", not an error.
	GetEntity(ctx context.Context, campaignID string, kind Kind, name string) (*EntityRecord, error)

	// CreateEntity inserts a new canonical record. The record's ShortID is
	// assigned by the caller. Returns an error if the record already exists.
	CreateEntity(ctx context.Context, rec EntityRecord) error

	// UpdateDescription durably replaces the record's cached description and
	// advances LastSyncedEventID. It does not touch the dirty flag; callers
	// clear it separately once the RAG refresh has been attempted.
	UpdateDescription(ctx context.Context, campaignID string, kind Kind, name, description string, lastEventID int64) error

	// MergeDescription replaces the record's description with merged text and
	// marks the record dirty so the next sync folds the merge into a fresh
	// regeneration.
	MergeDescription(ctx context.Context, campaignID string, kind Kind, name, description string) error

	// SetDirty sets or clears the record's dirty flag.
	SetDirty(ctx context.Context, campaignID string, kind Kind, name string, dirty bool) error

	// ListDirty returns the names of every dirty record of the kind in the
	// campaign. Returns an empty (non-nil) slice when none are dirty.
	ListDirty(ctx context.Context, campaignID string, kind Kind) ([]string, error)

	// ListNames returns every canonical name of the kind in the campaign.
	// Kind may be empty ("") to list names across all kinds — the roster used
	// by the investigative retrieval filter and by identity reconciliation.
	// Returns an empty (non-nil) slice when the campaign has no entities.
	ListNames(ctx context.Context, campaignID string, kind Kind) ([]string, error)
}

// HistoryStore reads the append-only event history.
//
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// ListEvents returns the full event history for the entity ordered by
	// timestamp ascending. Returns an empty (non-nil) slice when no events
	// exist.
	ListEvents(ctx context.Context, campaignID string, kind Kind, name string) ([]Event, error)

	// AppendEvent appends a new event row and marks the entity dirty in the
	// same transaction, preserving the invariant that a history write always
	// stales the cached description.
	AppendEvent(ctx context.Context, ev Event) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Pending merges
// ─────────────────────────────────────────────────────────────────────────────

// MergeStore persists [PendingMerge] rows. The persisted table is the source
// of truth; in-memory indexes over it are caches only.
//
// Implementations must be safe for concurrent use.
type MergeStore interface {
	// PutMerge inserts or replaces the merge keyed by PromptMessageID.
	PutMerge(ctx context.Context, m PendingMerge) error

	// GetMerge retrieves the merge keyed by the prompt message ID.
	// Returns (nil, nil) when no such merge is pending.
	GetMerge(ctx context.Context, promptMessageID string) (*PendingMerge, error)

	// DeleteMerge removes the merge keyed by the prompt message ID.
	// Deleting a non-existent merge is not an error.
	DeleteMerge(ctx context.Context, promptMessageID string) error

	// ListPending returns every merge still in the PROPOSED state across all
	// campaigns, oldest first. Called at startup to rebuild the in-memory
	// index, and by the expiry janitor.
	ListPending(ctx context.Context) ([]PendingMerge, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcript source
// ─────────────────────────────────────────────────────────────────────────────

// SessionSource reads the raw transcript material that ingestion turns into
// fragments. It is a read-only view over tables owned by the recording
// pipeline.
type SessionSource interface {
	// GetSession returns the session row, or (nil, nil) when the session is
	// unknown or has no associated campaign.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ListRecordings returns the session's recordings ordered by StartedAt.
	ListRecordings(ctx context.Context, sessionID string) ([]Recording, error)

	// ListSegments returns the recording's transcript segments ordered by
	// Offset.
	ListSegments(ctx context.Context, recordingID string) ([]Segment, error)
}

// Store aggregates every persistence contract the knowledge core consumes.
// Backends typically implement all of them over one connection pool.
type Store interface {
	FragmentStore
	EntityStore
	HistoryStore
	MergeStore
	SessionSource
}
