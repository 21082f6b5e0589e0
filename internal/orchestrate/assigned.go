// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import "sync"

// AssignedSet tracks which external identifiers are held by which records
// during a run. All methods are safe for concurrent use; workers must claim
// an identifier here before committing it.
type AssignedSet struct {
	mu  sync.Mutex
	ids map[string]string // external id → local record id
}

// NewAssignedSet seeds the set from identifiers already committed in the
// catalog. The seed map is copied.
func NewAssignedSet(seed map[string]string) *AssignedSet {
	ids := make(map[string]string, len(seed))
	for externalID, localID := range seed {
		ids[externalID] = localID
	}
	return &AssignedSet{ids: ids}
}

// Claim attempts to take an identifier for a record. It reports success and,
// on failure, the local id of the current holder. Claiming an identifier the
// record already holds succeeds, so reruns stay idempotent.
func (s *AssignedSet) Claim(externalID, localID string) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holder, taken := s.ids[externalID]
	if taken && holder != localID {
		return false, holder
	}
	s.ids[externalID] = localID
	return true, ""
}

// Release frees an identifier if the record still holds it.
func (s *AssignedSet) Release(externalID, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[externalID] == localID {
		delete(s.ids, externalID)
	}
}

// Reassign moves a record's claim from one identifier to another in a single
// critical section.
func (s *AssignedSet) Reassign(oldID, newID, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[oldID] == localID {
		delete(s.ids, oldID)
	}
	if newID != "" {
		s.ids[newID] = localID
	}
}

// Holder returns the local id holding an identifier, if any.
func (s *AssignedSet) Holder(externalID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holder, ok := s.ids[externalID]
	return holder, ok
}

// Len returns the number of identifiers currently claimed.
func (s *AssignedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
