// Package learner implements the Paxos learner role.
package learner

import (
	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
)

type vote struct {
	proposalID paxos.ProposalID
	value      paxos.Value
}

// Learner detects when a quorum of acceptors has accepted the same value in the same round.
// Its state is volatile.
type Learner struct {
	logger    logging.Logger
	messenger paxos.LearnerMessenger

	quorumSize int

	// votes holds the latest accepted notification from each acceptor.
	votes map[string]vote
	// tally counts the acceptors currently reporting each vote.
	tally map[vote]int

	final    vote
	complete bool
}

// New returns a learner that needs accepted notifications from quorumSize acceptors.
func New(quorumSize int, messenger paxos.LearnerMessenger, logger logging.Logger) *Learner {
	return &Learner{
		logger:     logger,
		messenger:  messenger,
		quorumSize: quorumSize,
		votes:      make(map[string]vote),
		tally:      make(map[vote]int),
	}
}

// ReceiveAccepted records that fromUID accepted value in proposalID, replacing
// any earlier vote from that acceptor. When a quorum agrees, the value is final and
// OnResolution is called. Messages that arrive after that are ignored.
// It returns true if this call completed the learner.
func (l *Learner) ReceiveAccepted(fromUID string, proposalID paxos.ProposalID, value paxos.Value) bool {
	if l.complete {
		return false
	}

	v := vote{proposalID: proposalID, value: value}
	if old, ok := l.votes[fromUID]; ok {
		if old == v {
			return false
		}
		l.tally[old]--
		if l.tally[old] == 0 {
			delete(l.tally, old)
		}
	}
	l.votes[fromUID] = v
	l.tally[v]++

	if l.tally[v] < l.quorumSize {
		return false
	}

	l.final = v
	l.complete = true
	// the tallies are not needed anymore
	l.votes = nil
	l.tally = nil
	l.logger.Debugf("resolved %v: %.16q", proposalID, value)
	l.messenger.OnResolution(proposalID, value)
	return true
}

// IsComplete returns true once a value has been chosen.
func (l *Learner) IsComplete() bool {
	return l.complete
}

// FinalValue returns the chosen value, if the learner is complete.
func (l *Learner) FinalValue() (paxos.Value, bool) {
	return l.final.value, l.complete
}

// FinalProposalID returns the proposal in which the value was chosen, if the learner is complete.
func (l *Learner) FinalProposalID() (paxos.ProposalID, bool) {
	return l.final.proposalID, l.complete
}

// QuorumSize returns the number of acceptors that must agree.
func (l *Learner) QuorumSize() int {
	return l.quorumSize
}
