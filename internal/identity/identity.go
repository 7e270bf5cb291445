// Package identity issues unique integer IDs and unique prefixed names for
// newly created model entities. State is process-wide per Service instance
// and is expected to be cleared (via Reset) whenever a model is loaded.
package identity

import (
	"fmt"
	"sync"
)

// Service hands out unique object IDs and unique object names. It is safe
// for concurrent use; callers mutating the object pool already hold the
// pool's writer lock, but the identity service is also queried read-only
// by diagnostics, so it keeps its own mutex.
type Service struct {
	mu       sync.Mutex
	usedIDs  map[int]struct{}
	nextHint int
	usedName map[string]struct{}
}

// NewService returns an empty identity service.
func NewService() *Service {
	return &Service{
		usedIDs:  make(map[int]struct{}),
		usedName: make(map[string]struct{}),
	}
}

// Reset clears all allocated IDs and names. Called on model load.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedIDs = make(map[int]struct{})
	s.usedName = make(map[string]struct{})
	s.nextHint = 0
}

// ReserveID marks id as allocated without going through UniqueID, for use
// when loading a model whose entities already carry IDs.
func (s *Service) ReserveID(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedIDs[id] = struct{}{}
}

// ReserveName marks name as allocated, for use when loading a model.
func (s *Service) ReserveName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedName[name] = struct{}{}
}

// ReleaseID frees id for reuse, called when the owning entity is removed.
func (s *Service) ReleaseID(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.usedIDs, id)
	if id < s.nextHint {
		s.nextHint = id
	}
}

// ReleaseName frees name for reuse.
func (s *Service) ReleaseName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.usedName, name)
}

// UniqueID returns the lowest non-negative integer not currently allocated,
// and marks it allocated.
func (s *Service) UniqueID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHint
	for {
		if _, taken := s.usedIDs[id]; !taken {
			break
		}
		id++
	}
	s.usedIDs[id] = struct{}{}
	s.nextHint = id + 1
	return id
}

// UniqueName returns prefix concatenated with the smallest non-negative
// integer whose zero-padded (width digits) formatted form is not currently
// used as a name, and marks that name allocated. width <= 0 means no
// zero-padding.
func (s *Service) UniqueName(prefix string, width int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for {
		var candidate string
		if width > 0 {
			candidate = fmt.Sprintf("%s%0*d", prefix, width, n)
		} else {
			candidate = fmt.Sprintf("%s%d", prefix, n)
		}
		if _, taken := s.usedName[candidate]; !taken {
			s.usedName[candidate] = struct{}{}
			return candidate
		}
		n++
	}
}
