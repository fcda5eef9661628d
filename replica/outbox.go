package replica

import (
	"github.com/relab/paxos"
)

type envelope struct {
	to  string // empty for broadcast
	msg paxos.Message
}

// outbox is the Messenger of the node. Messages are held back until the event that
// produced them has been handled and the acceptor state is durable.
type outbox struct {
	r       *Replica
	pending []envelope
}

var _ paxos.Messenger = (*outbox)(nil)

func (o *outbox) send(to string, msg paxos.Message) {
	o.pending = append(o.pending, envelope{to: to, msg: msg})
}

func (o *outbox) broadcast(msg paxos.Message) {
	o.pending = append(o.pending, envelope{msg: msg})
}

// flush releases the pending messages. Messages addressed to this node, including
// its share of every broadcast, are queued on its own event loop.
func (o *outbox) flush() {
	self := o.r.uid
	for _, e := range o.pending {
		switch e.to {
		case "":
			o.r.transport.Broadcast(e.msg)
			o.r.el.AddEvent(e.msg)
		case self:
			o.r.el.AddEvent(e.msg)
		default:
			o.r.transport.Send(e.to, e.msg)
		}
	}
	o.drop()
}

func (o *outbox) drop() {
	clear(o.pending)
	o.pending = o.pending[:0]
}

func (o *outbox) SendPrepare(proposalID paxos.ProposalID) {
	o.broadcast(paxos.PrepareMsg{From: o.r.uid, ProposalID: proposalID})
}

func (o *outbox) SendPromise(toUID string, proposalID, prevAcceptedID paxos.ProposalID, prevAcceptedValue paxos.Value) {
	o.send(toUID, paxos.PromiseMsg{
		From:              o.r.uid,
		ProposalID:        proposalID,
		PrevAcceptedID:    prevAcceptedID,
		PrevAcceptedValue: prevAcceptedValue,
	})
}

func (o *outbox) SendAccept(proposalID paxos.ProposalID, value paxos.Value) {
	o.broadcast(paxos.AcceptMsg{From: o.r.uid, ProposalID: proposalID, Value: value})
}

func (o *outbox) SendAccepted(proposalID paxos.ProposalID, value paxos.Value) {
	o.broadcast(paxos.AcceptedMsg{From: o.r.uid, ProposalID: proposalID, Value: value})
}

func (o *outbox) SendPrepareNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	o.send(toUID, paxos.PrepareNACKMsg{From: o.r.uid, ProposalID: proposalID, PromisedID: promisedID})
}

func (o *outbox) SendAcceptNACK(toUID string, proposalID, promisedID paxos.ProposalID) {
	o.send(toUID, paxos.AcceptNACKMsg{From: o.r.uid, ProposalID: proposalID, PromisedID: promisedID})
}

func (o *outbox) SendHeartbeat(leaderProposalID paxos.ProposalID) {
	o.broadcast(paxos.HeartbeatMsg{From: o.r.uid, ProposalID: leaderProposalID})
}

func (o *outbox) OnResolution(proposalID paxos.ProposalID, value paxos.Value) {
	o.r.resolved(proposalID, value)
}

func (o *outbox) OnLeadershipAcquired() {
	o.r.logger.Infof("%s is now leader", o.r.uid)
	o.r.backoff.Succeeded()
}

func (o *outbox) OnLeadershipLost() {
	o.r.logger.Infof("%s is no longer leader", o.r.uid)
}

func (o *outbox) OnLeadershipChange(prevLeaderUID, newLeaderUID string) {
	o.r.logger.Debugf("leader changed from %q to %q", prevLeaderUID, newLeaderUID)
	o.r.mut.Lock()
	o.r.leader = newLeaderUID
	o.r.mut.Unlock()
}
