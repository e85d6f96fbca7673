package notification

import (
	"sync"

	"github.com/yourorg/maintenance-sync/internal/model"
)

// Store is the in-memory authoritative client-side cache of notifications.
// State is two-phase: a confirmed base (list + unread counter) and pending
// optimistic deltas layered on top. Readers see the merged view; the
// transient window where the merged view disagrees with the server is
// exactly the set of pending deltas, inspectable via HasPending.
//
// The base counter and base list are only ever mutated together, so after
// every settled state the counter equals the number of unread items.
type Store struct {
	mu     sync.Mutex
	items  []model.Notification
	unread int

	pendingReads   map[int]bool
	pendingReadAll bool
}

// NewStore creates an empty notification store
func NewStore() *Store {
	return &Store{
		pendingReads: make(map[int]bool),
	}
}

// UpsertAll replaces the confirmed base with an authoritative server list and
// discards all pending deltas: a full reload settles every in-flight
// optimistic mutation, which bounds the inconsistency window.
func (s *Store) UpsertAll(items []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]model.Notification, len(items))
	copy(s.items, items)
	s.pendingReads = make(map[int]bool)
	s.pendingReadAll = false
	s.recomputeUnreadLocked()
}

// Append adds a server-pushed notification to the base and increments the
// unread counter by exactly one
func (s *Store) Append(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, n)
	if !n.IsRead {
		s.unread++
	}
}

// ApplyReadLocally records an optimistic mark-read delta for one
// notification. Returns false when the notification is unknown or already
// read in the merged view, in which case nothing changes.
func (s *Store) ApplyReadLocally(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.ID != id {
			continue
		}
		if item.IsRead || s.pendingReadAll || s.pendingReads[id] {
			return false
		}
		s.pendingReads[id] = true
		return true
	}
	return false
}

// ApplyReadAllLocally records an optimistic mark-all-read delta and returns
// the number of items it covers
func (s *Store) ApplyReadAllLocally() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	covered := 0
	for _, item := range s.items {
		if !item.IsRead && !s.pendingReads[item.ID] {
			covered++
		}
	}
	s.pendingReadAll = true
	return covered
}

// ConfirmRead applies a server-confirmed mark-read directly to the base,
// mutating list and counter together. Marking an already-read notification
// again is a no-op.
func (s *Store) ConfirmRead(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pendingReads, id)
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].IsRead {
			s.items[i].IsRead = true
			s.unread--
		}
	}
}

// ConfirmReadAll applies a server-confirmed mark-all-read to the base
func (s *Store) ConfirmReadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingReads = make(map[int]bool)
	s.pendingReadAll = false
	for i := range s.items {
		s.items[i].IsRead = true
	}
	s.unread = 0
}

// RevertRead discards a pending mark-read delta without touching the base
func (s *Store) RevertRead(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingReads, id)
}

// RevertReadAll discards a pending mark-all-read delta
func (s *Store) RevertReadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReadAll = false
}

// RecomputeUnreadFromList re-derives the base unread counter from the base
// list. This is one of the two legal ways to change the counter; the other
// is a base list mutation that adjusts it in the same step.
func (s *Store) RecomputeUnreadFromList() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeUnreadLocked()
	return s.unread
}

func (s *Store) recomputeUnreadLocked() {
	count := 0
	for _, item := range s.items {
		if !item.IsRead {
			count++
		}
	}
	s.unread = count
}

// Snapshot returns the merged view: the base with pending optimistic deltas
// applied, plus its unread count
func (s *Store) Snapshot() ([]model.Notification, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Notification, len(s.items))
	copy(items, s.items)

	unread := 0
	for i := range items {
		if s.pendingReadAll || s.pendingReads[items[i].ID] {
			items[i].IsRead = true
		}
		if !items[i].IsRead {
			unread++
		}
	}
	return items, unread
}

// UnreadCount returns the unread count of the merged view
func (s *Store) UnreadCount() int {
	_, unread := s.Snapshot()
	return unread
}

// HasPending reports whether any optimistic delta is awaiting reconciliation
func (s *Store) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingReadAll || len(s.pendingReads) > 0
}
