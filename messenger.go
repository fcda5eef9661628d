package paxos

// AcceptorMessenger is used by the acceptor to answer proposers and inform learners.
type AcceptorMessenger interface {
	// SendPromise sends a promise to the proposer. The previously accepted ID is zero
	// (and the value empty) if the acceptor has not accepted anything.
	SendPromise(toUID string, proposalID, prevAcceptedID ProposalID, prevAcceptedValue Value)
	// SendAccepted broadcasts an accepted notification to all learners.
	SendAccepted(proposalID ProposalID, value Value)
	// SendPrepareNACK rejects a prepare request.
	SendPrepareNACK(toUID string, proposalID, promisedID ProposalID)
	// SendAcceptNACK rejects an accept request.
	SendAcceptNACK(toUID string, proposalID, promisedID ProposalID)
}

// ProposerMessenger is used by the proposer to reach the acceptors.
type ProposerMessenger interface {
	// SendPrepare broadcasts a prepare request to all acceptors.
	SendPrepare(proposalID ProposalID)
	// SendAccept broadcasts an accept request to all acceptors.
	SendAccept(proposalID ProposalID, value Value)
}

// LearnerMessenger receives the outcome of the protocol.
type LearnerMessenger interface {
	// OnResolution is called once, when a value has been chosen.
	OnResolution(proposalID ProposalID, value Value)
}

// LeadershipMessenger is used by the node to maintain leadership.
type LeadershipMessenger interface {
	// SendHeartbeat broadcasts a heartbeat on behalf of the current leader.
	SendHeartbeat(leaderProposalID ProposalID)
	// OnLeadershipAcquired is called when this node becomes the leader.
	OnLeadershipAcquired()
	// OnLeadershipLost is called when this node stops being the leader.
	OnLeadershipLost()
	// OnLeadershipChange is called when the known leader changes.
	// Either UID may be empty if no leader is known.
	OnLeadershipChange(prevLeaderUID, newLeaderUID string)
}

// Messenger is the outbound side of a node. It is implemented by the host and must not block:
// every send is fire-and-forget, and replies arrive later as independent calls on the node.
//
//go:generate mockgen -destination=internal/mocks/messenger_mock.go -package=mocks . Messenger
type Messenger interface {
	AcceptorMessenger
	ProposerMessenger
	LearnerMessenger
	LeadershipMessenger
}
