package simnet

import (
	"fmt"

	"github.com/relab/paxos"
	"github.com/relab/paxos/node"
	"go.uber.org/multierr"
)

// simNode is the Messenger of a node in the simulated network.
type simNode struct {
	net  *Network
	uid  string
	node *node.Node

	// holdUntil is the tick before which the node does not bid after a rejected bid.
	holdUntil int

	decided    bool
	decision   paxos.Value
	decisionID paxos.ProposalID
	// conflicts records resolutions that disagree with the first one.
	conflicts []string
}

var _ paxos.Messenger = (*simNode)(nil)

// observe runs f and holds back the next bid if f ended a bid without a live leader.
func (sn *simNode) observe(f func()) {
	before := sn.node.State()
	f()
	if before == node.AcquiringLeadership && sn.node.State() == node.Follower && !sn.node.IsLeaderAlive() {
		sn.holdUntil = sn.net.tick + 1 + sn.net.rnd.Intn(sn.net.cfg.MaxHold)
	}
}

func (sn *simNode) broadcast(msg paxos.Message) {
	for _, uid := range sn.net.uids {
		sn.net.enqueue(uid, msg)
	}
}

func (sn *simNode) SendPrepare(proposalID paxos.ProposalID) {
	sn.broadcast(paxos.PrepareMsg{From: sn.uid, ProposalID: proposalID})
}

func (sn *simNode) SendPromise(toUID string, proposalID, prevAcceptedID paxos.ProposalID, prevAcceptedValue paxos.Value) {
	sn.net.enqueue(toUID, paxos.PromiseMsg{
		From:              sn.uid,
		ProposalID:        proposalID,
		PrevAcceptedID:    prevAcceptedID,
		PrevAcceptedValue: prevAcceptedValue,
	})
}

func (sn *simNode) SendAccept(proposalID paxos.ProposalID, value paxos.Value) {
	sn.broadcast(paxos.AcceptMsg{From: sn.uid, ProposalID: proposalID, Value: value})
}

func (sn *simNode) SendAccepted(proposalID paxos.ProposalID, value paxos.Value) {
	sn.broadcast(paxos.AcceptedMsg{From: sn.uid, ProposalID: proposalID, Value: value})
}

func (sn *simNode) SendPrepareNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	sn.net.enqueue(toUID, paxos.PrepareNACKMsg{From: sn.uid, ProposalID: proposalID, PromisedID: promisedID})
}

func (sn *simNode) SendAcceptNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	sn.net.enqueue(toUID, paxos.AcceptNACKMsg{From: sn.uid, ProposalID: proposalID, PromisedID: promisedID})
}

func (sn *simNode) SendHeartbeat(leaderProposalID paxos.ProposalID) {
	sn.broadcast(paxos.HeartbeatMsg{From: sn.uid, ProposalID: leaderProposalID})
}

func (sn *simNode) OnResolution(proposalID paxos.ProposalID, value paxos.Value) {
	sn.net.logger.Infof("tick %d: %s learned %q in %v", sn.net.tick, sn.uid, value, proposalID)
	if sn.decided && sn.decision != value {
		sn.conflicts = append(sn.conflicts, fmt.Sprintf("%q in %v after %q in %v", value, proposalID, sn.decision, sn.decisionID))
		return
	}
	if !sn.decided {
		sn.decided = true
		sn.decision = value
		sn.decisionID = proposalID
	}
}

func (sn *simNode) OnLeadershipAcquired() {
	sn.net.logger.Infof("tick %d: %s is leader", sn.net.tick, sn.uid)
}

func (sn *simNode) OnLeadershipLost() {
	sn.net.logger.Infof("tick %d: %s lost leadership", sn.net.tick, sn.uid)
}

func (sn *simNode) OnLeadershipChange(prevLeaderUID, newLeaderUID string) {
	sn.net.logger.Debugf("tick %d: %s sees leader %q (was %q)", sn.net.tick, sn.uid, newLeaderUID, prevLeaderUID)
}

// CheckAgreement returns an error for every node that learned a value no node
// proposed, or a value different from what the other nodes learned.
func (n *Network) CheckAgreement() error {
	proposed := make(map[paxos.Value]bool)
	for _, uid := range n.uids {
		proposed[ProposedValue(uid)] = true
	}
	var (
		err              error
		chosen, chosenBy string
	)
	for _, uid := range n.uids {
		sn := n.nodes[uid]
		if !sn.decided {
			continue
		}
		if !proposed[sn.decision] {
			err = multierr.Append(err, fmt.Errorf("%s learned %q, which was never proposed", uid, sn.decision))
		}
		if chosenBy == "" {
			chosen, chosenBy = sn.decision, uid
		} else if sn.decision != chosen {
			err = multierr.Append(err, fmt.Errorf("%s learned %q, but %s learned %q", uid, sn.decision, chosenBy, chosen))
		}
		for _, c := range sn.conflicts {
			err = multierr.Append(err, fmt.Errorf("%s learned %s", uid, c))
		}
	}
	return err
}
