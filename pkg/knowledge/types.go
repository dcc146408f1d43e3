package knowledge

import "time"

// Kind classifies a canonical entity record. Every kind has its own
// event-history table and its own bio prompt, but all kinds share the
// same record shape and sync behaviour.
type Kind string

const (
	KindNPC       Kind = "npc"
	KindLocation  Kind = "location"
	KindCharacter Kind = "character"
	KindQuest     Kind = "quest"
	KindItem      Kind = "item"
	KindMonster   Kind = "monster"
	KindFaction   Kind = "faction"
	KindArtifact  Kind = "artifact"
)

// Kinds lists every recognised entity kind in a stable order. Useful for
// callers that sweep all kinds (e.g., a full-campaign dirty sync).
func Kinds() []Kind {
	return []Kind{
		KindNPC, KindLocation, KindCharacter, KindQuest,
		KindItem, KindMonster, KindFaction, KindArtifact,
	}
}

// IsValid reports whether k is a recognised entity kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindNPC, KindLocation, KindCharacter, KindQuest,
		KindItem, KindMonster, KindFaction, KindArtifact:
		return true
	}
	return false
}

// Fragment is a stored text chunk plus its embedding vector and provenance
// tags. Fragments are written by session ingestion and by entity sync
// (canonical summaries), and are the unit of semantic retrieval.
type Fragment struct {
	// ID is the unique identifier for this fragment (a UUID).
	ID string

	// CampaignID scopes the fragment to a single campaign. All retrieval is
	// campaign-scoped; fragments never leak across campaigns.
	CampaignID string

	// SessionID is the game session this fragment was ingested from. Canonical
	// entity summaries carry an empty SessionID.
	SessionID string

	// Content is the raw chunk text.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32

	// EmbeddingModel identifies the model that produced Embedding. Vectors
	// from different models live in different spaces and are never compared;
	// every retrieval query selects only fragments whose EmbeddingModel
	// matches the query's model.
	EmbeddingModel string

	// CreatedAt is when the fragment was written.
	CreatedAt time.Time

	// StartTimestamp is the in-session time the chunk's dialogue began.
	// Fragments for a campaign are ordered by this field; temporal neighbour
	// expansion addresses positions in that ordering.
	StartTimestamp time.Time

	// MacroLocation is the broad location the dialogue took place in
	// (e.g., "Greenest"). Empty when unknown.
	MacroLocation string

	// MicroLocation is the fine-grained location (e.g., "the keep's cellar").
	// Empty when unknown.
	MicroLocation string

	// EntityTags lists canonical entity names mentioned in or associated with
	// this chunk. Used by the investigative retrieval filter and by per-entity
	// fragment replacement during sync.
	EntityTags []string
}

// EntityRecord is the canonical record for a named entity of some Kind.
// One record exists per (campaign, kind, name).
type EntityRecord struct {
	CampaignID string
	Kind       Kind

	// Name is the canonical display name the entity resolves to.
	Name string

	// ShortID is a stable compact identifier, assigned at creation.
	ShortID string

	// Description is the cached biography derived from event history.
	// Valid only while Dirty is false.
	Description string

	// ManualOverride is DM-authored text merged into every regenerated
	// description. Nil when no override has been set.
	ManualOverride *string

	// Dirty marks the cached Description as stale relative to event history.
	// Any event-history write for this entity must set it.
	Dirty bool

	// LastSyncedEventID is the ID of the newest event that Description
	// reflects. Zero for never-synced records.
	LastSyncedEventID int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is one append-only event-history row for an entity. The event
// history is the authoritative source of truth that sync regenerates
// descriptions from.
type Event struct {
	// ID is the monotonically increasing row identifier.
	ID int64

	CampaignID string
	Kind       Kind
	EntityName string

	// SessionID is the session during which the event happened.
	SessionID string

	// EventType is a short label (e.g., "met", "fought", "revealed").
	EventType string

	// Description is the narrative text of what happened.
	Description string

	Timestamp time.Time
}

// MergeState is the lifecycle state of a [PendingMerge].
type MergeState string

const (
	// MergeProposed is the initial state: a disambiguation prompt has been
	// posted and no resolution has arrived yet.
	MergeProposed MergeState = "PROPOSED"

	// MergeConfirmed means a human confirmed the suggested canonical entity;
	// the biographies were merged. Terminal.
	MergeConfirmed MergeState = "CONFIRMED"

	// MergeCreatedNew means a human rejected the suggestion and a fresh
	// canonical entity was created for the detected name. Terminal.
	MergeCreatedNew MergeState = "CREATED_NEW"

	// MergeRedirected means a human named a different existing entity and the
	// merge went there instead. Terminal.
	MergeRedirected MergeState = "REDIRECTED"
)

// Terminal reports whether s is a final state; terminal merges are removed
// from the pending store.
func (s MergeState) Terminal() bool {
	return s == MergeConfirmed || s == MergeCreatedNew || s == MergeRedirected
}

// PendingMerge is a suspended identity-reconciliation decision awaiting a
// human reply. Pending merges are persisted so that an unanswered prompt
// survives a process restart.
type PendingMerge struct {
	// PromptMessageID is the chat message ID of the disambiguation prompt.
	// Inbound replies reference it; it is the primary key of the pending set.
	PromptMessageID string

	CampaignID string
	Kind       Kind

	// DetectedName is the name as extracted from the transcript.
	DetectedName string

	// SuggestedName is the canonical entity the matcher believes
	// DetectedName refers to.
	SuggestedName string

	// NewDescription is the freshly extracted description for DetectedName,
	// merged into the winning record on resolution.
	NewDescription string

	// Role is free-text context for the prompt (e.g., "monk ally").
	Role string

	State     MergeState
	CreatedAt time.Time
}

// Session is a recorded game session. A session without a campaign is
// skipped by ingestion.
type Session struct {
	ID         string
	CampaignID string
	StartedAt  time.Time
}

// Recording is one contiguous audio recording within a session. Segment
// offsets are relative to StartedAt. The DM may tag the scene's locations
// and present NPCs on the recording; those tags become chunk provenance.
type Recording struct {
	ID        string
	SessionID string
	StartedAt time.Time

	MacroLocation string
	MicroLocation string

	// TaggedNPCs lists canonical NPC names explicitly marked as present.
	TaggedNPCs []string
}

// Segment is a single transcribed utterance within a recording.
type Segment struct {
	RecordingID string

	// Offset is the utterance start relative to the recording start.
	Offset time.Duration

	SpeakerName string
	Text        string
}
