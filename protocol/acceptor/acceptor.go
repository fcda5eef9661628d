// Package acceptor implements the Paxos acceptor role.
package acceptor

import (
	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
)

// Acceptor responds to prepare and accept requests.
//
// Its state must be durable: every reply produced after PersistenceRequired
// starts returning true must be held back by the host until the state has been
// written to stable storage and Persisted has been called.
type Acceptor struct {
	logger    logging.Logger
	messenger paxos.AcceptorMessenger

	promisedID    paxos.ProposalID
	acceptedID    paxos.ProposalID
	acceptedValue paxos.Value

	dirty bool
}

// New returns an acceptor that has not promised or accepted anything.
func New(messenger paxos.AcceptorMessenger, logger logging.Logger) *Acceptor {
	return &Acceptor{
		logger:    logger,
		messenger: messenger,
	}
}

// ReceivePrepare handles a prepare request.
// The acceptor promises proposalID if it is higher than any proposal promised so far;
// otherwise it replies with a NACK carrying the current promise.
func (a *Acceptor) ReceivePrepare(fromUID string, proposalID paxos.ProposalID) {
	if a.promisedID.IsZero() || a.promisedID.Less(proposalID) {
		a.promisedID = proposalID
		a.dirty = true
		a.logger.Debugf("promise %v to %s", proposalID, fromUID)
		a.messenger.SendPromise(fromUID, proposalID, a.acceptedID, a.acceptedValue)
		return
	}
	a.logger.Debugf("reject prepare %v from %s: promised %v", proposalID, fromUID, a.promisedID)
	a.messenger.SendPrepareNACK(fromUID, proposalID, a.promisedID)
}

// ReceiveAcceptRequest handles an accept request.
// The value is accepted unless the acceptor has promised a higher proposal.
func (a *Acceptor) ReceiveAcceptRequest(fromUID string, proposalID paxos.ProposalID, value paxos.Value) {
	if a.promisedID.IsZero() || !proposalID.Less(a.promisedID) {
		// a repeated accept request leaves the state unchanged
		if a.promisedID != proposalID || a.acceptedID != proposalID || a.acceptedValue != value {
			a.dirty = true
		}
		a.promisedID = proposalID
		a.acceptedID = proposalID
		a.acceptedValue = value
		a.logger.Debugf("accept %v from %s", proposalID, fromUID)
		a.messenger.SendAccepted(proposalID, value)
		return
	}
	a.logger.Debugf("reject accept %v from %s: promised %v", proposalID, fromUID, a.promisedID)
	a.messenger.SendAcceptNACK(fromUID, proposalID, a.promisedID)
}

// PromisedID returns the highest promised proposal, if any.
func (a *Acceptor) PromisedID() (paxos.ProposalID, bool) {
	return a.promisedID, !a.promisedID.IsZero()
}

// AcceptedID returns the proposal of the accepted value, if any.
func (a *Acceptor) AcceptedID() (paxos.ProposalID, bool) {
	return a.acceptedID, !a.acceptedID.IsZero()
}

// AcceptedValue returns the accepted value, if any.
func (a *Acceptor) AcceptedValue() (paxos.Value, bool) {
	return a.acceptedValue, !a.acceptedID.IsZero()
}

// State returns a snapshot of the durable state.
func (a *Acceptor) State() paxos.AcceptorState {
	return paxos.AcceptorState{
		PromisedID:    a.promisedID,
		AcceptedID:    a.acceptedID,
		AcceptedValue: a.acceptedValue,
	}
}

// PersistenceRequired returns true if the state changed since the last call to Persisted.
func (a *Acceptor) PersistenceRequired() bool {
	return a.dirty
}

// Persisted tells the acceptor that its current state has been written to stable storage.
func (a *Acceptor) Persisted() {
	a.dirty = false
}

// Recover restores state that was loaded from stable storage after a restart.
// A recovered promise below the current one is ignored, so the promise never moves backwards.
func (a *Acceptor) Recover(promisedID, acceptedID paxos.ProposalID, acceptedValue paxos.Value) {
	a.promisedID = paxos.MaxProposalID(a.promisedID, paxos.MaxProposalID(promisedID, acceptedID))
	a.acceptedID = acceptedID
	a.acceptedValue = acceptedValue
	a.dirty = false
}
