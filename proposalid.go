package paxos

import (
	"fmt"
	"strings"
)

// ProposalID identifies a round of the protocol.
// Proposal IDs are totally ordered: first by Round, then by UID.
// The UID breaks ties between proposers that pick the same round number,
// so two distinct proposers can never issue equal proposal IDs.
type ProposalID struct {
	Round uint64
	UID   string
}

// NextProposalID returns a proposal ID owned by uid that is strictly greater than both
// current and any proposal with a round of at most observedFloor.
func NextProposalID(current ProposalID, observedFloor uint64, uid string) ProposalID {
	round := current.Round
	if observedFloor > round {
		round = observedFloor
	}
	return ProposalID{Round: round + 1, UID: uid}
}

// Compare returns -1 if id < other, 0 if id == other, and +1 if id > other.
func (id ProposalID) Compare(other ProposalID) int {
	switch {
	case id.Round < other.Round:
		return -1
	case id.Round > other.Round:
		return 1
	}
	return strings.Compare(id.UID, other.UID)
}

// Less returns true if id is ordered before other.
func (id ProposalID) Less(other ProposalID) bool {
	return id.Compare(other) < 0
}

// Equal returns true if both the round and the UID are equal.
func (id ProposalID) Equal(other ProposalID) bool {
	return id == other
}

// IsZero returns true for the zero ProposalID, which is used to represent an absent ID.
// NextProposalID never returns the zero ProposalID.
func (id ProposalID) IsZero() bool {
	return id == ProposalID{}
}

func (id ProposalID) String() string {
	if id.IsZero() {
		return "(-)"
	}
	return fmt.Sprintf("(%d,%s)", id.Round, id.UID)
}

// MaxProposalID returns the greater of a and b.
func MaxProposalID(a, b ProposalID) ProposalID {
	if a.Less(b) {
		return b
	}
	return a
}
