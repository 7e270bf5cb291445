package orders

import (
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// OrderSequence groups transport orders that a single vehicle must process
// in insertion order.
type OrderSequence struct {
	ID         int
	Name       string
	Properties map[string]string

	Members []string // transport-order names, insertion order

	Complete     bool
	FailureFatal bool

	IntendedVehicle   *topology.Ref
	ProcessingVehicle *topology.Ref

	// FinishedIndex is the index of the last member known to have reached a
	// terminal state; -1 means no member has finished yet.
	FinishedIndex int
}

func (s *OrderSequence) ObjectID() int      { return s.ID }
func (s *OrderSequence) ObjectName() string { return s.Name }
func (s *OrderSequence) Kind() string       { return "OrderSequence" }

func (s *OrderSequence) Clone() objectpool.Entity {
	cp := *s
	if s.Properties != nil {
		cp.Properties = make(map[string]string, len(s.Properties))
		for k, v := range s.Properties {
			cp.Properties[k] = v
		}
	}
	cp.Members = append([]string(nil), s.Members...)
	if s.IntendedVehicle != nil {
		r := *s.IntendedVehicle
		cp.IntendedVehicle = &r
	}
	if s.ProcessingVehicle != nil {
		r := *s.ProcessingVehicle
		cp.ProcessingVehicle = &r
	}
	return &cp
}

func (s *OrderSequence) WithName(name string) objectpool.Entity {
	clone := s.Clone().(*OrderSequence)
	clone.Name = name
	return clone
}

// AddOrder appends order to the sequence. alreadyActivated describes the
// order's own activation state, known only to the caller.
func (s *OrderSequence) AddOrder(order string, alreadyActivated bool) error {
	if s.Complete {
		return kernelerr.IllegalState("order sequence " + s.Name + " is complete")
	}
	for _, m := range s.Members {
		if m == order {
			return kernelerr.IllegalArgument("order " + order + " is already a member of sequence " + s.Name)
		}
	}
	if alreadyActivated {
		return kernelerr.IllegalArgument("order " + order + " has already been activated outside its sequence")
	}
	s.Members = append(s.Members, order)
	return nil
}

// RemoveOrder removes order from the sequence; fails if the sequence is
// complete.
func (s *OrderSequence) RemoveOrder(order string) error {
	if s.Complete {
		return kernelerr.IllegalState("order sequence " + s.Name + " is complete")
	}
	filtered := s.Members[:0:0]
	for _, m := range s.Members {
		if m != order {
			filtered = append(filtered, m)
		}
	}
	s.Members = filtered
	return nil
}

// SetComplete sets the complete flag. The flag is monotone: once true,
// attempting to set it false fails.
func (s *OrderSequence) SetComplete(complete bool) error {
	if s.Complete && !complete {
		return kernelerr.IllegalState("order sequence " + s.Name + " is already complete")
	}
	s.Complete = complete
	return nil
}

// IsNextPending reports whether order is the sequence's next-pending
// member: sequences are processed in insertion order.
func (s *OrderSequence) IsNextPending(order string) bool {
	idx := s.FinishedIndex + 1
	return idx < len(s.Members) && s.Members[idx] == order
}

// MemberIndex returns the index of order within the sequence, or -1.
func (s *OrderSequence) MemberIndex(order string) int {
	for i, m := range s.Members {
		if m == order {
			return i
		}
	}
	return -1
}

// AdvanceFinished records that the member at the given index reached a
// terminal state and reports whether the whole sequence is now finished
// (complete AND every member terminal).
func (s *OrderSequence) AdvanceFinished(index int) (finished bool) {
	if index == s.FinishedIndex+1 {
		s.FinishedIndex = index
	}
	return s.Complete && s.FinishedIndex == len(s.Members)-1
}
