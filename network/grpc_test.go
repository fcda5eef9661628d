package network_test

import (
	"strings"
	"testing"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
	"google.golang.org/grpc"
)

func newGRPC(t *testing.T, uid string, opts ...network.Option) (*network.GRPC, chan paxos.Message) {
	t.Helper()
	c := make(chan paxos.Message, 16)
	tr := network.NewGRPC(uid, func(msg paxos.Message) { c <- msg }, logging.New("net-"+uid), opts...)
	if err := tr.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, c
}

func receive(t *testing.T, c chan paxos.Message) paxos.Message {
	t.Helper()
	select {
	case msg := <-c:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func TestGRPCSend(t *testing.T) {
	a, _ := newGRPC(t, "a")
	b, inB := newGRPC(t, "b")
	a.Connect(map[string]string{"a": a.Addr().String(), "b": b.Addr().String()})

	want := paxos.AcceptMsg{From: "a", ProposalID: paxos.ProposalID{Round: 3, UID: "a"}, Value: "v"}
	a.Send("b", want)
	if got := receive(t, inB); got != want {
		t.Errorf("received %v, want %v", got, want)
	}

	// messages that claim another sender are dropped
	a.Send("b", paxos.HeartbeatMsg{From: "c", ProposalID: paxos.ProposalID{Round: 9, UID: "c"}})
	hb := paxos.HeartbeatMsg{From: "a", ProposalID: paxos.ProposalID{Round: 3, UID: "a"}}
	a.Send("b", hb)
	if got := receive(t, inB); got != hb {
		t.Errorf("received %v, want %v", got, hb)
	}
}

func TestGRPCBroadcast(t *testing.T) {
	a, _ := newGRPC(t, "a")
	b, inB := newGRPC(t, "b")
	c, inC := newGRPC(t, "c")
	a.Connect(map[string]string{"b": b.Addr().String(), "c": c.Addr().String()})

	want := paxos.PrepareMsg{From: "a", ProposalID: paxos.ProposalID{Round: 1, UID: "a"}}
	a.Broadcast(want)
	for _, in := range []chan paxos.Message{inB, inC} {
		if got := receive(t, in); got != want {
			t.Errorf("received %v, want %v", got, want)
		}
	}
}

func TestGRPCRateLimit(t *testing.T) {
	a, _ := newGRPC(t, "a", network.WithRateLimit(20, 1))
	b, inB := newGRPC(t, "b")
	a.Connect(map[string]string{"b": b.Addr().String()})

	start := time.Now()
	for i := 0; i < 5; i++ {
		a.Send("b", paxos.HeartbeatMsg{From: "a", ProposalID: paxos.ProposalID{Round: uint64(i + 1), UID: "a"}})
	}
	for i := 0; i < 5; i++ {
		receive(t, inB)
	}
	// one message is allowed immediately, the other four wait 50ms each
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("5 messages at 20/s took only %v", elapsed)
	}
}

func TestGRPCMaxMessageSize(t *testing.T) {
	a, _ := newGRPC(t, "a", network.WithRetryDelay(10*time.Millisecond), network.WithQueueSize(4))
	b, inB := newGRPC(t, "b", network.WithServerOptions(grpc.MaxRecvMsgSize(1024)))
	a.Connect(map[string]string{"b": b.Addr().String()})

	// the oversized message breaks the stream, and the sender reconnects
	a.Send("b", paxos.AcceptMsg{From: "a", ProposalID: paxos.ProposalID{Round: 1, UID: "a"}, Value: strings.Repeat("x", 4096)})
	small := paxos.AcceptMsg{From: "a", ProposalID: paxos.ProposalID{Round: 2, UID: "a"}, Value: "y"}
	deadline := time.After(5 * time.Second)
	for {
		a.Send("b", small)
		select {
		case got := <-inB:
			if got != small {
				t.Fatalf("received %v, want %v", got, small)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no message arrived after the oversized one")
		}
	}
}
