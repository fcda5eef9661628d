package network_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
)

type inbox struct {
	msgs []paxos.Message
}

func (in *inbox) handle(msg paxos.Message) {
	in.msgs = append(in.msgs, msg)
}

func TestHubBroadcast(t *testing.T) {
	hub := network.NewHub(logging.Nop())
	var a, b, c inbox
	ea := hub.Join("a", a.handle)
	hub.Join("b", b.handle)
	hub.Join("c", c.handle)

	msg := paxos.PrepareMsg{From: "a", ProposalID: paxos.ProposalID{Round: 1, UID: "a"}}
	ea.Broadcast(msg)

	if len(a.msgs) != 0 {
		t.Errorf("broadcast was delivered to the sender: %v", a.msgs)
	}
	for _, in := range []*inbox{&b, &c} {
		if diff := cmp.Diff([]paxos.Message{msg}, in.msgs); diff != "" {
			t.Errorf("broadcast mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestHubSendAndDisconnect(t *testing.T) {
	hub := network.NewHub(logging.Nop())
	var b inbox
	ea := hub.Join("a", func(paxos.Message) {})
	eb := hub.Join("b", b.handle)

	promise := paxos.PromiseMsg{From: "a", ProposalID: paxos.ProposalID{Round: 2, UID: "b"}}
	ea.Send("b", promise)
	ea.Send("nobody", promise)

	hub.SetConnected("b", false)
	ea.Send("b", promise)
	hub.SetConnected("b", true)

	hub.SetConnected("a", false)
	ea.Send("b", promise)
	hub.SetConnected("a", true)

	eb.Close()
	ea.Send("b", promise)

	if len(b.msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(b.msgs))
	}
}
