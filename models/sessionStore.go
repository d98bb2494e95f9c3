package models

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionStore is the session-scoped container for the authoritative session
// document and the ordered draft entry list (newest first). All engine
// mutation funnels through it; there is no ambient package-level state, so
// one session's store can be constructed and discarded without leaking into
// the next.
type SessionStore struct {
	mu     sync.Mutex
	cache  *DraftCache
	logger *logrus.Logger

	session           *InspectionSession
	entries           []DraftEntry
	generation        uint64
	skipNextReconcile bool
	currentKey        string
}

func NewSessionStore(cache *DraftCache, logger *logrus.Logger) *SessionStore {
	return &SessionStore{cache: cache, logger: logger}
}

// Generation identifies the currently bound session context. Async results
// carrying an older generation are discarded by their producers.
func (s *SessionStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Session returns the current authoritative document, or nil outside a bound
// session.
func (s *SessionStore) Session() *InspectionSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Entries returns a copy of the draft list, newest first.
func (s *SessionStore) Entries() []DraftEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DraftEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// BeginSession binds the store to a session document. Switching away from a
// previous session clears that session's draft key exactly once. For an
// IN_PROGRESS session the draft list is hydrated from the cache; terminal
// sessions (read-only history views) get an empty list and their stored
// draft, if any, is discarded so it can never resurrect.
func (s *SessionStore) BeginSession(ctx context.Context, session *InspectionSession) error {
	if session == nil {
		return NewValidationError("cannot begin a nil session")
	}

	s.mu.Lock()
	previousKey := s.currentKey
	newKey := DraftKey(session.SessionId)
	s.mu.Unlock()

	if previousKey != "" && previousKey != newKey {
		if err := s.cache.ClearKey(ctx, previousKey); err != nil && s.logger != nil {
			s.logger.WithField("key", previousKey).Warn("failed to clear previous session draft: " + err.Error())
		}
	}

	var entries []DraftEntry
	var hydrateErr error
	if session.Status == SessionStatusInProgress {
		entries, hydrateErr = s.cache.Load(ctx, session.SessionId)
		if hydrateErr != nil {
			entries = []DraftEntry{}
		}
	} else {
		entries = []DraftEntry{}
		_ = s.cache.Clear(ctx, session.SessionId)
	}

	s.mu.Lock()
	s.session = session
	s.entries = entries
	s.currentKey = newKey
	s.generation++
	s.skipNextReconcile = session.Status != SessionStatusInProgress
	s.mu.Unlock()

	return hydrateErr
}

// EndSession unbinds the store. When clearDrafts is set (cancellation, or a
// submitted session) the session's draft collection is removed from both
// stores.
func (s *SessionStore) EndSession(ctx context.Context, clearDrafts bool) {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.entries = nil
	s.currentKey = ""
	s.generation++
	s.skipNextReconcile = false
	s.mu.Unlock()

	if clearDrafts && session != nil {
		_ = s.cache.Clear(ctx, session.SessionId)
	}
}

// ReplaceSession swaps in a fresh authoritative document. Last writer wins;
// the caller is responsible for generation checks on async paths.
func (s *SessionStore) ReplaceSession(session *InspectionSession) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

// ReplaceSessionIfGeneration swaps the document only when the store is still
// on the generation captured when the async fetch was scheduled. Stale
// results are dropped, not applied.
func (s *SessionStore) ReplaceSessionIfGeneration(session *InspectionSession, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.session = session
	return true
}

// SetSkipNextReconcile arms the one-shot latch. The recorder sets it right
// after it replaced the summary itself, so the next poll-driven
// reconciliation does not re-count an action already appended locally.
func (s *SessionStore) SetSkipNextReconcile() {
	s.mu.Lock()
	s.skipNextReconcile = true
	s.mu.Unlock()
}

// Reconcile runs one merge pass against the current summary and persists the
// list when it changed. Honors (and consumes) the skip-once latch.
func (s *SessionStore) Reconcile(ctx context.Context) (ReconcileResult, error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ReconcileResult{}, nil
	}
	if s.skipNextReconcile {
		s.skipNextReconcile = false
		result := ReconcileResult{Entries: s.entries}
		s.mu.Unlock()
		return result, nil
	}
	session := s.session
	entries := s.entries
	s.mu.Unlock()

	result := ReconcileDrafts(entries, session.Summary, session.ConfirmedActionIds())
	if !result.Changed() {
		return result, nil
	}

	s.mu.Lock()
	s.entries = result.Entries
	sessionId := session.SessionId
	s.mu.Unlock()

	return result, s.cache.Save(ctx, sessionId, result.Entries)
}

// AppendEntry prepends a draft entry and persists the list best-effort.
func (s *SessionStore) AppendEntry(ctx context.Context, entry DraftEntry) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return NewValidationError("no active session")
	}
	s.entries = append([]DraftEntry{entry}, s.entries...)
	sessionId := s.session.SessionId
	entries := s.entries
	s.mu.Unlock()

	return s.cache.Save(ctx, sessionId, entries)
}

// RemoveEntry drops exactly the entry with the given client id and persists.
// Unknown ids are a no-op.
func (s *SessionStore) RemoveEntry(ctx context.Context, entryId string) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return NewValidationError("no active session")
	}
	kept := make([]DraftEntry, 0, len(s.entries))
	removed := false
	for _, entry := range s.entries {
		if entry.Id == entryId {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		s.mu.Unlock()
		return nil
	}
	s.entries = kept
	sessionId := s.session.SessionId
	entries := s.entries
	s.mu.Unlock()

	return s.cache.Save(ctx, sessionId, entries)
}

// ProcessedItemIds derives the set of item ids already covered by a draft
// entry.
func (s *SessionStore) ProcessedItemIds() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]bool)
	for _, entry := range s.entries {
		if entry.ItemId != "" {
			ids[entry.ItemId] = true
		}
	}
	return ids
}

// RemainingItemCount is the number of session items with no recorded action.
// Submit is only permitted when it reaches zero.
func (s *SessionStore) RemainingItemCount() int {
	processed := s.ProcessedItemIds()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0
	}
	remaining := 0
	for _, item := range s.session.Items {
		if !processed[item.UnitId] {
			remaining++
		}
	}
	return remaining
}

// LastSavedAt exposes the cache's last successful save for the status line.
func (s *SessionStore) LastSavedAt() *time.Time {
	return s.cache.LastSavedAt()
}
