// Package mock provides in-memory test doubles for the knowledge store
// interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.EntityStore{}
//	store.GetEntityResult = &knowledge.EntityRecord{Name: "Leosin", Dirty: true}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("GetEntity"); got != 1 {
//	    t.Errorf("expected 1 GetEntity call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/lorevault/lorevault/pkg/knowledge"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// FragmentStore mock
// ─────────────────────────────────────────────────────────────────────────────

// FragmentStore is a configurable test double for [knowledge.FragmentStore].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil (empty slice returned).
type FragmentStore struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// InsertFragmentErr is returned by [FragmentStore.InsertFragment] when
	// non-nil.
	InsertFragmentErr error

	// ListFragmentsResult is returned by [FragmentStore.ListFragments].
	// When nil, ListFragments returns an empty non-nil slice.
	ListFragmentsResult []knowledge.Fragment

	// ListFragmentsErr is returned by [FragmentStore.ListFragments] when
	// non-nil.
	ListFragmentsErr error

	// DeleteSessionFragmentsErr is returned by
	// [FragmentStore.DeleteSessionFragments] when non-nil.
	DeleteSessionFragmentsErr error

	// DeleteEntityFragmentsResult is the count returned by
	// [FragmentStore.DeleteEntityFragments].
	DeleteEntityFragmentsResult int64

	// DeleteEntityFragmentsErr is returned by
	// [FragmentStore.DeleteEntityFragments] when non-nil.
	DeleteEntityFragmentsErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *FragmentStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *FragmentStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *FragmentStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// InsertFragment implements [knowledge.FragmentStore].
func (m *FragmentStore) InsertFragment(_ context.Context, f knowledge.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "InsertFragment", Args: []any{f}})
	return m.InsertFragmentErr
}

// ListFragments implements [knowledge.FragmentStore].
func (m *FragmentStore) ListFragments(_ context.Context, campaignID, model string) ([]knowledge.Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListFragments", Args: []any{campaignID, model}})
	if m.ListFragmentsResult == nil {
		return []knowledge.Fragment{}, m.ListFragmentsErr
	}
	out := make([]knowledge.Fragment, len(m.ListFragmentsResult))
	copy(out, m.ListFragmentsResult)
	return out, m.ListFragmentsErr
}

// DeleteSessionFragments implements [knowledge.FragmentStore].
func (m *FragmentStore) DeleteSessionFragments(_ context.Context, sessionID, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteSessionFragments", Args: []any{sessionID, model}})
	return m.DeleteSessionFragmentsErr
}

// DeleteEntityFragments implements [knowledge.FragmentStore].
func (m *FragmentStore) DeleteEntityFragments(_ context.Context, campaignID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteEntityFragments", Args: []any{campaignID, name}})
	return m.DeleteEntityFragmentsResult, m.DeleteEntityFragmentsErr
}

// Ensure FragmentStore satisfies the interface at compile time.
var _ knowledge.FragmentStore = (*FragmentStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// EntityStore mock
// ─────────────────────────────────────────────────────────────────────────────

// EntityStore is a configurable test double for [knowledge.EntityStore].
// Each method has a corresponding *Err field (returned on non-nil) and, where
// applicable, a *Result field (returned on success).
type EntityStore struct {
	mu sync.Mutex

	calls []Call

	// ──── GetEntity ────────────────────────────────────────────────────────
	GetEntityResult *knowledge.EntityRecord
	GetEntityErr    error

	// GetEntityFunc, when non-nil, overrides GetEntityResult/GetEntityErr and
	// computes the response from the arguments. Useful for tests whose system
	// under test looks up several different entities.
	GetEntityFunc func(campaignID string, kind knowledge.Kind, name string) (*knowledge.EntityRecord, error)

	// ──── CreateEntity ─────────────────────────────────────────────────────
	CreateEntityErr error

	// ──── UpdateDescription ────────────────────────────────────────────────
	UpdateDescriptionErr error

	// ──── MergeDescription ─────────────────────────────────────────────────
	MergeDescriptionErr error

	// ──── SetDirty ─────────────────────────────────────────────────────────
	SetDirtyErr error

	// ──── ListDirty ────────────────────────────────────────────────────────
	ListDirtyResult []string
	ListDirtyErr    error

	// ──── ListNames ────────────────────────────────────────────────────────
	ListNamesResult []string
	ListNamesErr    error
}

// Calls returns a copy of all recorded method invocations.
func (m *EntityStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *EntityStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *EntityStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// GetEntity implements [knowledge.EntityStore].
func (m *EntityStore) GetEntity(_ context.Context, campaignID string, kind knowledge.Kind, name string) (*knowledge.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetEntity", Args: []any{campaignID, kind, name}})
	if m.GetEntityFunc != nil {
		return m.GetEntityFunc(campaignID, kind, name)
	}
	return m.GetEntityResult, m.GetEntityErr
}

// CreateEntity implements [knowledge.EntityStore].
func (m *EntityStore) CreateEntity(_ context.Context, rec knowledge.EntityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "CreateEntity", Args: []any{rec}})
	return m.CreateEntityErr
}

// UpdateDescription implements [knowledge.EntityStore].
func (m *EntityStore) UpdateDescription(_ context.Context, campaignID string, kind knowledge.Kind, name, description string, lastEventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpdateDescription", Args: []any{campaignID, kind, name, description, lastEventID}})
	return m.UpdateDescriptionErr
}

// MergeDescription implements [knowledge.EntityStore].
func (m *EntityStore) MergeDescription(_ context.Context, campaignID string, kind knowledge.Kind, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "MergeDescription", Args: []any{campaignID, kind, name, description}})
	return m.MergeDescriptionErr
}

// SetDirty implements [knowledge.EntityStore].
func (m *EntityStore) SetDirty(_ context.Context, campaignID string, kind knowledge.Kind, name string, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SetDirty", Args: []any{campaignID, kind, name, dirty}})
	return m.SetDirtyErr
}

// ListDirty implements [knowledge.EntityStore].
func (m *EntityStore) ListDirty(_ context.Context, campaignID string, kind knowledge.Kind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListDirty", Args: []any{campaignID, kind}})
	if m.ListDirtyResult == nil {
		return []string{}, m.ListDirtyErr
	}
	out := make([]string, len(m.ListDirtyResult))
	copy(out, m.ListDirtyResult)
	return out, m.ListDirtyErr
}

// ListNames implements [knowledge.EntityStore].
func (m *EntityStore) ListNames(_ context.Context, campaignID string, kind knowledge.Kind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListNames", Args: []any{campaignID, kind}})
	if m.ListNamesResult == nil {
		return []string{}, m.ListNamesErr
	}
	out := make([]string, len(m.ListNamesResult))
	copy(out, m.ListNamesResult)
	return out, m.ListNamesErr
}

// Ensure EntityStore satisfies the interface at compile time.
var _ knowledge.EntityStore = (*EntityStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// HistoryStore mock
// ─────────────────────────────────────────────────────────────────────────────

// HistoryStore is a configurable test double for [knowledge.HistoryStore].
type HistoryStore struct {
	mu sync.Mutex

	calls []Call

	// ListEventsResult is returned by [HistoryStore.ListEvents].
	// When nil, ListEvents returns an empty non-nil slice.
	ListEventsResult []knowledge.Event

	// ListEventsErr is returned by [HistoryStore.ListEvents] when non-nil.
	ListEventsErr error

	// AppendEventResult is the event ID returned by
	// [HistoryStore.AppendEvent].
	AppendEventResult int64

	// AppendEventErr is returned by [HistoryStore.AppendEvent] when non-nil.
	AppendEventErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *HistoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *HistoryStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *HistoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// ListEvents implements [knowledge.HistoryStore].
func (m *HistoryStore) ListEvents(_ context.Context, campaignID string, kind knowledge.Kind, name string) ([]knowledge.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListEvents", Args: []any{campaignID, kind, name}})
	if m.ListEventsResult == nil {
		return []knowledge.Event{}, m.ListEventsErr
	}
	out := make([]knowledge.Event, len(m.ListEventsResult))
	copy(out, m.ListEventsResult)
	return out, m.ListEventsErr
}

// AppendEvent implements [knowledge.HistoryStore].
func (m *HistoryStore) AppendEvent(_ context.Context, ev knowledge.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "AppendEvent", Args: []any{ev}})
	return m.AppendEventResult, m.AppendEventErr
}

// Ensure HistoryStore satisfies the interface at compile time.
var _ knowledge.HistoryStore = (*HistoryStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// MergeStore mock
// ─────────────────────────────────────────────────────────────────────────────

// MergeStore is a configurable test double for [knowledge.MergeStore].
type MergeStore struct {
	mu sync.Mutex

	calls []Call

	// PutMergeErr is returned by [MergeStore.PutMerge] when non-nil.
	PutMergeErr error

	// GetMergeResult is returned by [MergeStore.GetMerge].
	GetMergeResult *knowledge.PendingMerge

	// GetMergeErr is returned by [MergeStore.GetMerge] when non-nil.
	GetMergeErr error

	// DeleteMergeErr is returned by [MergeStore.DeleteMerge] when non-nil.
	DeleteMergeErr error

	// ListPendingResult is returned by [MergeStore.ListPending].
	// When nil, ListPending returns an empty non-nil slice.
	ListPendingResult []knowledge.PendingMerge

	// ListPendingErr is returned by [MergeStore.ListPending] when non-nil.
	ListPendingErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *MergeStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *MergeStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *MergeStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// PutMerge implements [knowledge.MergeStore].
func (m *MergeStore) PutMerge(_ context.Context, pm knowledge.PendingMerge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "PutMerge", Args: []any{pm}})
	return m.PutMergeErr
}

// GetMerge implements [knowledge.MergeStore].
func (m *MergeStore) GetMerge(_ context.Context, promptMessageID string) (*knowledge.PendingMerge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetMerge", Args: []any{promptMessageID}})
	return m.GetMergeResult, m.GetMergeErr
}

// DeleteMerge implements [knowledge.MergeStore].
func (m *MergeStore) DeleteMerge(_ context.Context, promptMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteMerge", Args: []any{promptMessageID}})
	return m.DeleteMergeErr
}

// ListPending implements [knowledge.MergeStore].
func (m *MergeStore) ListPending(_ context.Context) ([]knowledge.PendingMerge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListPending", Args: nil})
	if m.ListPendingResult == nil {
		return []knowledge.PendingMerge{}, m.ListPendingErr
	}
	out := make([]knowledge.PendingMerge, len(m.ListPendingResult))
	copy(out, m.ListPendingResult)
	return out, m.ListPendingErr
}

// Ensure MergeStore satisfies the interface at compile time.
var _ knowledge.MergeStore = (*MergeStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SessionSource mock
// ─────────────────────────────────────────────────────────────────────────────

// SessionSource is a configurable test double for [knowledge.SessionSource].
type SessionSource struct {
	mu sync.Mutex

	calls []Call

	// GetSessionResult is returned by [SessionSource.GetSession].
	GetSessionResult *knowledge.Session

	// GetSessionErr is returned by [SessionSource.GetSession] when non-nil.
	GetSessionErr error

	// ListRecordingsResult is returned by [SessionSource.ListRecordings].
	// When nil, ListRecordings returns an empty non-nil slice.
	ListRecordingsResult []knowledge.Recording

	// ListRecordingsErr is returned by [SessionSource.ListRecordings] when
	// non-nil.
	ListRecordingsErr error

	// SegmentsByRecording maps a recording ID to the segments returned by
	// [SessionSource.ListSegments] for it. Recordings absent from the map get
	// an empty slice.
	SegmentsByRecording map[string][]knowledge.Segment

	// ListSegmentsErr is returned by [SessionSource.ListSegments] when
	// non-nil.
	ListSegmentsErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SessionSource) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SessionSource) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *SessionSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// GetSession implements [knowledge.SessionSource].
func (m *SessionSource) GetSession(_ context.Context, sessionID string) (*knowledge.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetSession", Args: []any{sessionID}})
	return m.GetSessionResult, m.GetSessionErr
}

// ListRecordings implements [knowledge.SessionSource].
func (m *SessionSource) ListRecordings(_ context.Context, sessionID string) ([]knowledge.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListRecordings", Args: []any{sessionID}})
	if m.ListRecordingsResult == nil {
		return []knowledge.Recording{}, m.ListRecordingsErr
	}
	out := make([]knowledge.Recording, len(m.ListRecordingsResult))
	copy(out, m.ListRecordingsResult)
	return out, m.ListRecordingsErr
}

// ListSegments implements [knowledge.SessionSource].
func (m *SessionSource) ListSegments(_ context.Context, recordingID string) ([]knowledge.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListSegments", Args: []any{recordingID}})
	segs := m.SegmentsByRecording[recordingID]
	if segs == nil {
		return []knowledge.Segment{}, m.ListSegmentsErr
	}
	out := make([]knowledge.Segment, len(segs))
	copy(out, segs)
	return out, m.ListSegmentsErr
}

// Ensure SessionSource satisfies the interface at compile time.
var _ knowledge.SessionSource = (*SessionSource)(nil)
