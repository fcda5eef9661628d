package node

import "github.com/relab/paxos"

// gate drops protocol messages while the node is inactive.
// Notifications to the host are always passed on.
type gate struct {
	paxos.Messenger
	active bool
}

func (g *gate) SendPrepare(proposalID paxos.ProposalID) {
	if g.active {
		g.Messenger.SendPrepare(proposalID)
	}
}

func (g *gate) SendPromise(toUID string, proposalID, prevAcceptedID paxos.ProposalID, prevAcceptedValue paxos.Value) {
	if g.active {
		g.Messenger.SendPromise(toUID, proposalID, prevAcceptedID, prevAcceptedValue)
	}
}

func (g *gate) SendAccept(proposalID paxos.ProposalID, value paxos.Value) {
	if g.active {
		g.Messenger.SendAccept(proposalID, value)
	}
}

func (g *gate) SendAccepted(proposalID paxos.ProposalID, value paxos.Value) {
	if g.active {
		g.Messenger.SendAccepted(proposalID, value)
	}
}

func (g *gate) SendPrepareNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	if g.active {
		g.Messenger.SendPrepareNACK(toUID, proposalID, promisedID)
	}
}

func (g *gate) SendAcceptNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	if g.active {
		g.Messenger.SendAcceptNACK(toUID, proposalID, promisedID)
	}
}

func (g *gate) SendHeartbeat(leaderProposalID paxos.ProposalID) {
	if g.active {
		g.Messenger.SendHeartbeat(leaderProposalID)
	}
}
