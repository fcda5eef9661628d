// Package proposer implements the Paxos proposer role.
package proposer

import (
	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
)

// Proposer drives prepare and accept rounds and tracks the promises of the acceptors.
// Its state is volatile; a restarted proposer simply starts a higher round.
type Proposer struct {
	logger    logging.Logger
	messenger paxos.ProposerMessenger

	uid        string
	quorumSize int

	proposalID    paxos.ProposalID
	proposedValue paxos.Value
	hasValue      bool

	// lastAcceptedID is the highest previously accepted proposal reported in a promise.
	// The proposed value was adopted from that proposal.
	lastAcceptedID paxos.ProposalID
	promises       map[string]struct{}

	// highestRound is the highest round observed in any message, including our own.
	highestRound uint64
	leader       bool
	acceptSent   bool
}

// New returns a new proposer with the given UID that requires promises from quorumSize acceptors.
func New(uid string, quorumSize int, messenger paxos.ProposerMessenger, logger logging.Logger) *Proposer {
	return &Proposer{
		logger:     logger,
		messenger:  messenger,
		uid:        uid,
		quorumSize: quorumSize,
		promises:   make(map[string]struct{}),
	}
}

// SetProposal sets the value to propose. It has no effect if a value is already set,
// either by an earlier call or because a previously accepted value was adopted.
// If the proposer already leads the current round, the accept request is sent immediately.
func (p *Proposer) SetProposal(value paxos.Value) {
	if p.hasValue {
		return
	}
	p.proposedValue = value
	p.hasValue = true
	if p.leader {
		p.sendAccept()
	}
}

// Prepare starts the prepare phase. If increment is true, or if no proposal ID exists yet,
// a new proposal ID is chosen above every round observed so far.
// Otherwise the prepare request for the current round is sent again.
func (p *Proposer) Prepare(increment bool) {
	if increment || p.proposalID.IsZero() {
		p.proposalID = paxos.NextProposalID(p.proposalID, p.highestRound, p.uid)
		p.highestRound = p.proposalID.Round
		p.leader = false
		p.acceptSent = false
		clear(p.promises)
	}
	p.logger.Debugf("prepare %v", p.proposalID)
	p.messenger.SendPrepare(p.proposalID)
}

// ReceivePromise handles a promise from an acceptor.
// Promises for other rounds and duplicate promises are ignored.
// It returns true if this promise completed the quorum and made the proposer leader.
func (p *Proposer) ReceivePromise(fromUID string, proposalID, prevAcceptedID paxos.ProposalID, prevAcceptedValue paxos.Value) bool {
	p.ObserveProposal(fromUID, proposalID)

	if p.proposalID.IsZero() || proposalID != p.proposalID {
		return false
	}
	if _, ok := p.promises[fromUID]; ok {
		return false
	}
	p.promises[fromUID] = struct{}{}

	// Once the quorum is complete the value is fixed for this round.
	if p.leader {
		return false
	}

	if !prevAcceptedID.IsZero() && p.lastAcceptedID.Less(prevAcceptedID) {
		p.lastAcceptedID = prevAcceptedID
		p.proposedValue = prevAcceptedValue
		p.hasValue = true
		p.logger.Debugf("adopted value of %v from %s", prevAcceptedID, fromUID)
	}

	if len(p.promises) != p.quorumSize {
		return false
	}
	p.leader = true
	p.logger.Debugf("quorum of promises for %v", p.proposalID)
	if p.hasValue {
		p.sendAccept()
	}
	return true
}

// ReceivePrepareNACK handles a rejected prepare request.
// It returns true if the rejection preempted the current round.
// Retrying is left to the caller.
func (p *Proposer) ReceivePrepareNACK(fromUID string, proposalID, promisedID paxos.ProposalID) bool {
	return p.receiveNACK(fromUID, proposalID, promisedID)
}

// ReceiveAcceptNACK handles a rejected accept request.
// It returns true if the rejection preempted the current round.
// A single rejection does not cost the proposer its leadership, since the remaining
// acceptors may still form a quorum; the caller decides when to give up.
func (p *Proposer) ReceiveAcceptNACK(fromUID string, proposalID, promisedID paxos.ProposalID) bool {
	return p.receiveNACK(fromUID, proposalID, promisedID)
}

func (p *Proposer) receiveNACK(fromUID string, proposalID, promisedID paxos.ProposalID) bool {
	p.ObserveProposal(fromUID, promisedID)
	return proposalID == p.proposalID && p.proposalID.Less(promisedID)
}

// ObserveProposal raises the observed round floor, so the next proposal will be higher.
func (p *Proposer) ObserveProposal(_ string, proposalID paxos.ProposalID) {
	if proposalID.Round > p.highestRound {
		p.highestRound = proposalID.Round
	}
}

// ResendAccept sends the last accept request again. It does nothing if no accept request was sent.
func (p *Proposer) ResendAccept() {
	if !p.leader || !p.acceptSent {
		return
	}
	p.logger.Debugf("resend accept %v", p.proposalID)
	p.messenger.SendAccept(p.proposalID, p.proposedValue)
}

func (p *Proposer) sendAccept() {
	p.acceptSent = true
	p.logger.Debugf("accept %v", p.proposalID)
	p.messenger.SendAccept(p.proposalID, p.proposedValue)
}

// UID returns the UID of the proposer.
func (p *Proposer) UID() string {
	return p.uid
}

// QuorumSize returns the number of promises needed to lead a round.
func (p *Proposer) QuorumSize() int {
	return p.quorumSize
}

// ProposalID returns the current proposal ID, if a round has been started.
func (p *Proposer) ProposalID() (paxos.ProposalID, bool) {
	return p.proposalID, !p.proposalID.IsZero()
}

// ProposedValue returns the value that will be proposed, if one is known.
func (p *Proposer) ProposedValue() (paxos.Value, bool) {
	return p.proposedValue, p.hasValue
}

// LastAcceptedID returns the highest previously accepted proposal reported by a promise.
func (p *Proposer) LastAcceptedID() (paxos.ProposalID, bool) {
	return p.lastAcceptedID, !p.lastAcceptedID.IsZero()
}

// HighestObservedRound returns the highest round seen so far.
func (p *Proposer) HighestObservedRound() (uint64, bool) {
	return p.highestRound, p.highestRound > 0
}

// NumPromises returns the number of promises received for the current round.
func (p *Proposer) NumPromises() int {
	return len(p.promises)
}

// IsLeader returns true if the proposer holds a quorum of promises for the current round.
func (p *Proposer) IsLeader() bool {
	return p.leader
}

// SetLeader sets the leader flag. It is used by the node when it concedes leadership.
func (p *Proposer) SetLeader(leader bool) {
	p.leader = leader
}
