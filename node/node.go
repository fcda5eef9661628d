// Package node combines an acceptor, a proposer and a learner into a single Paxos node
// that elects a stable leader by exchanging heartbeats.
package node

import (
	"fmt"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/protocol/acceptor"
	"github.com/relab/paxos/protocol/learner"
	"github.com/relab/paxos/protocol/proposer"
)

// State is the leadership state of a node.
type State int

// States of the leadership state machine.
const (
	Follower State = iota
	AcquiringLeadership
	Leader
)

func (s State) String() string {
	switch s {
	case Follower:
		return "follower"
	case AcquiringLeadership:
		return "acquiring"
	case Leader:
		return "leader"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Node is a Paxos node with heartbeat-based leader election.
//
// A Node is not safe for concurrent use. The host must serialize every call,
// including the periodic PollLiveness, Pulse and ResendAccept ticks.
type Node struct {
	logger    logging.Logger
	messenger *gate
	cfg       Config

	acceptor *acceptor.Acceptor
	proposer *proposer.Proposer
	learner  *learner.Learner

	state            State
	leaderUID        string
	leaderProposalID paxos.ProposalID
	lastHeartbeat    time.Time

	// lastPrepare is when a prepare from another node was last seen.
	lastPrepare    time.Time
	acquireStarted time.Time
	retryPending   bool
	nacks          map[string]struct{}
}

// New returns a node in the follower state.
// The liveness window starts now, so a seeded leader gets one full heartbeat timeout
// before the node bids for leadership.
func New(cfg Config, messenger paxos.Messenger, logger logging.Logger) (*Node, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}
	g := &gate{Messenger: messenger, active: true}
	n := &Node{
		logger:        logger,
		messenger:     g,
		cfg:           cfg,
		acceptor:      acceptor.New(g, logger),
		proposer:      proposer.New(cfg.UID, cfg.QuorumSize, g, logger),
		learner:       learner.New(cfg.QuorumSize, g, logger),
		leaderUID:     cfg.LeaderUID,
		lastHeartbeat: cfg.Clock(),
		nacks:         make(map[string]struct{}),
	}
	return n, nil
}

// Now returns the time of the node's clock.
func (n *Node) Now() time.Time {
	return n.cfg.Clock()
}

// UID returns the UID of the node.
func (n *Node) UID() string {
	return n.cfg.UID
}

// State returns the leadership state.
func (n *Node) State() State {
	return n.state
}

// LeaderUID returns the UID of the node currently believed to be leader, if any.
func (n *Node) LeaderUID() (string, bool) {
	return n.leaderUID, n.leaderUID != ""
}

// LeaderProposalID returns the proposal ID under which the current leader was elected, if known.
func (n *Node) LeaderProposalID() (paxos.ProposalID, bool) {
	return n.leaderProposalID, !n.leaderProposalID.IsZero()
}

// HeartbeatPeriod returns how often a leader should call Pulse.
func (n *Node) HeartbeatPeriod() time.Duration {
	return n.cfg.HeartbeatPeriod
}

// HeartbeatTimeout returns how long a leader is trusted without a heartbeat.
func (n *Node) HeartbeatTimeout() time.Duration {
	return n.cfg.HeartbeatTimeout
}

// SetActive enables or disables outbound protocol messages.
// An inactive node still updates its state and reports notifications.
func (n *Node) SetActive(active bool) {
	n.messenger.active = active
}

// IsActive returns true if the node sends protocol messages.
func (n *Node) IsActive() bool {
	return n.messenger.active
}

// IsLeaderAlive returns true if a heartbeat was seen within the heartbeat timeout.
// A leader always considers itself alive.
func (n *Node) IsLeaderAlive() bool {
	if n.state == Leader {
		return true
	}
	return n.Now().Sub(n.lastHeartbeat) < n.cfg.HeartbeatTimeout
}

// PollLiveness checks the leader and bids for leadership if it appears to be dead.
// A bid that was preempted, or that has not completed within a heartbeat timeout,
// is retried with a higher proposal ID.
func (n *Node) PollLiveness() {
	if n.IsLeaderAlive() {
		return
	}
	if n.cfg.PrepareWindow > 0 && !n.lastPrepare.IsZero() && n.Now().Sub(n.lastPrepare) < n.cfg.PrepareWindow {
		n.logger.Debug("leader is silent, but another node is preparing")
		return
	}
	switch n.state {
	case Follower:
		n.logger.Infof("leader %q timed out", n.leaderUID)
		n.AcquireLeadership()
	case AcquiringLeadership:
		if n.retryPending || n.Now().Sub(n.acquireStarted) >= n.cfg.HeartbeatTimeout {
			n.bid()
		}
	}
}

// AcquireLeadership starts a leadership bid. It does nothing if the node is already leader.
func (n *Node) AcquireLeadership() {
	if n.state == Leader {
		return
	}
	n.state = AcquiringLeadership
	n.bid()
}

func (n *Node) bid() {
	clear(n.nacks)
	n.retryPending = false
	n.acquireStarted = n.Now()
	n.proposer.Prepare(true)
	id, _ := n.proposer.ProposalID()
	n.logger.Debugf("bidding for leadership with %v", id)
}

// Pulse refreshes the leader's own liveness and broadcasts a heartbeat.
// It does nothing unless the node is leader.
func (n *Node) Pulse() {
	if n.state != Leader {
		return
	}
	n.lastHeartbeat = n.Now()
	n.messenger.SendHeartbeat(n.leaderProposalID)
}

// ReceiveHeartbeat handles a heartbeat from the node that claims leadership under proposalID.
// Heartbeats with a lower proposal ID than the known leader's are ignored.
func (n *Node) ReceiveHeartbeat(fromUID string, proposalID paxos.ProposalID) {
	n.proposer.ObserveProposal(fromUID, proposalID)
	if !n.leaderProposalID.IsZero() && proposalID.Less(n.leaderProposalID) {
		n.logger.Debugf("stale heartbeat %v from %s", proposalID, fromUID)
		return
	}
	if fromUID == n.cfg.UID {
		// our own broadcast
		if proposalID == n.leaderProposalID {
			n.lastHeartbeat = n.Now()
		}
		return
	}

	prevLeader := n.leaderUID
	n.leaderUID = fromUID
	n.leaderProposalID = proposalID
	n.lastHeartbeat = n.Now()

	switch n.state {
	case Leader:
		n.logger.Infof("conceding leadership to %s (%v)", fromUID, proposalID)
		n.state = Follower
		n.proposer.SetLeader(false)
		n.messenger.OnLeadershipLost()
	case AcquiringLeadership:
		n.logger.Debugf("abandoning bid, %s leads with %v", fromUID, proposalID)
		n.state = Follower
		n.retryPending = false
	}
	if prevLeader != fromUID {
		n.messenger.OnLeadershipChange(prevLeader, fromUID)
	}
}

// ReceivePrepare handles a prepare request.
func (n *Node) ReceivePrepare(fromUID string, proposalID paxos.ProposalID) {
	n.proposer.ObserveProposal(fromUID, proposalID)
	if fromUID != n.cfg.UID {
		n.lastPrepare = n.Now()
	}
	n.acceptor.ReceivePrepare(fromUID, proposalID)
}

// ReceivePromise handles a promise. Completing the quorum makes the node leader,
// unless it has meanwhile learned of a leader with a higher proposal ID.
func (n *Node) ReceivePromise(fromUID string, proposalID, prevAcceptedID paxos.ProposalID, prevAcceptedValue paxos.Value) {
	if !n.proposer.ReceivePromise(fromUID, proposalID, prevAcceptedID, prevAcceptedValue) {
		return
	}
	if proposalID.Less(n.leaderProposalID) {
		n.logger.Debugf("quorum for %v arrived after %s took over with %v", proposalID, n.leaderUID, n.leaderProposalID)
		n.proposer.SetLeader(false)
		return
	}
	n.becomeLeader(proposalID)
}

func (n *Node) becomeLeader(proposalID paxos.ProposalID) {
	prevLeader := n.leaderUID
	n.state = Leader
	n.leaderUID = n.cfg.UID
	n.leaderProposalID = proposalID
	n.retryPending = false
	clear(n.nacks)
	n.logger.Infof("acquired leadership with %v", proposalID)

	n.messenger.OnLeadershipAcquired()
	if prevLeader != n.cfg.UID {
		n.messenger.OnLeadershipChange(prevLeader, n.cfg.UID)
	}
	n.Pulse()
}

// ReceivePrepareNACK handles a rejected prepare request.
func (n *Node) ReceivePrepareNACK(fromUID string, proposalID, promisedID paxos.ProposalID) {
	preempted := n.proposer.ReceivePrepareNACK(fromUID, proposalID, promisedID)
	n.receiveNACK(fromUID, preempted)
}

// ReceiveAcceptNACK handles a rejected accept request.
func (n *Node) ReceiveAcceptNACK(fromUID string, proposalID, promisedID paxos.ProposalID) {
	preempted := n.proposer.ReceiveAcceptNACK(fromUID, proposalID, promisedID)
	n.receiveNACK(fromUID, preempted)
}

// receiveNACK records a rejection of the current round. Once more acceptors have rejected
// the round than can be missing from a quorum, the round cannot succeed.
func (n *Node) receiveNACK(fromUID string, preempted bool) {
	if !preempted || n.state == Follower {
		return
	}
	n.nacks[fromUID] = struct{}{}
	blocked := len(n.nacks) > n.cfg.ClusterSize-n.cfg.QuorumSize

	switch n.state {
	case AcquiringLeadership:
		if blocked {
			n.logger.Infof("leadership bid rejected by %d acceptors", len(n.nacks))
			n.state = Follower
			n.retryPending = false
			clear(n.nacks)
			return
		}
		n.retryPending = true
	case Leader:
		if blocked {
			n.stepDown()
		}
	}
}

func (n *Node) stepDown() {
	n.logger.Infof("lost leadership: %d acceptors promised a higher proposal", len(n.nacks))
	n.state = Follower
	n.proposer.SetLeader(false)
	clear(n.nacks)
	prevLeader := n.leaderUID
	n.leaderUID = ""
	n.messenger.OnLeadershipLost()
	n.messenger.OnLeadershipChange(prevLeader, "")
}

// ReceiveAcceptRequest handles an accept request.
func (n *Node) ReceiveAcceptRequest(fromUID string, proposalID paxos.ProposalID, value paxos.Value) {
	n.proposer.ObserveProposal(fromUID, proposalID)
	n.acceptor.ReceiveAcceptRequest(fromUID, proposalID, value)
}

// ReceiveAccepted handles an accepted notification.
func (n *Node) ReceiveAccepted(fromUID string, proposalID paxos.ProposalID, value paxos.Value) {
	n.proposer.ObserveProposal(fromUID, proposalID)
	n.learner.ReceiveAccepted(fromUID, proposalID, value)
}

// SetProposal sets the value to propose. A leader sends the accept request immediately.
func (n *Node) SetProposal(value paxos.Value) {
	n.proposer.SetProposal(value)
}

// Prepare starts or repeats the prepare phase of the proposer.
func (n *Node) Prepare(increment bool) {
	if increment {
		clear(n.nacks)
	}
	n.proposer.Prepare(increment)
}

// ResendAccept repeats the last accept request, if any.
func (n *Node) ResendAccept() {
	n.proposer.ResendAccept()
}

// PersistenceRequired returns true if the acceptor state must be saved before
// the messages produced since the last call to Persisted are released.
func (n *Node) PersistenceRequired() bool {
	return n.acceptor.PersistenceRequired()
}

// Persisted tells the node that the acceptor state has been saved.
func (n *Node) Persisted() {
	n.acceptor.Persisted()
}

// AcceptorState returns the durable acceptor state.
func (n *Node) AcceptorState() paxos.AcceptorState {
	return n.acceptor.State()
}

// Recover restores acceptor state loaded from stable storage.
// The proposer will pick rounds above the recovered promise.
func (n *Node) Recover(promisedID, acceptedID paxos.ProposalID, acceptedValue paxos.Value) {
	n.acceptor.Recover(promisedID, acceptedID, acceptedValue)
	n.proposer.ObserveProposal(n.cfg.UID, promisedID)
}

// IsComplete returns true once a value has been chosen.
func (n *Node) IsComplete() bool {
	return n.learner.IsComplete()
}

// FinalValue returns the chosen value, if any.
func (n *Node) FinalValue() (paxos.Value, bool) {
	return n.learner.FinalValue()
}

// FinalProposalID returns the proposal ID under which the value was chosen, if any.
func (n *Node) FinalProposalID() (paxos.ProposalID, bool) {
	return n.learner.FinalProposalID()
}

// ProposalID returns the proposer's current proposal ID, if any.
func (n *Node) ProposalID() (paxos.ProposalID, bool) {
	return n.proposer.ProposalID()
}

// ProposedValue returns the value the proposer will propose, if any.
func (n *Node) ProposedValue() (paxos.Value, bool) {
	return n.proposer.ProposedValue()
}

// PromisedID returns the acceptor's promise, if any.
func (n *Node) PromisedID() (paxos.ProposalID, bool) {
	return n.acceptor.PromisedID()
}

// AcceptedID returns the acceptor's accepted proposal, if any.
func (n *Node) AcceptedID() (paxos.ProposalID, bool) {
	return n.acceptor.AcceptedID()
}

// AcceptedValue returns the acceptor's accepted value, if any.
func (n *Node) AcceptedValue() (paxos.Value, bool) {
	return n.acceptor.AcceptedValue()
}

// IsLeader returns true if the node is leader.
func (n *Node) IsLeader() bool {
	return n.state == Leader
}
