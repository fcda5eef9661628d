package acceptor_test

import (
	"math/rand"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/relab/paxos"
	"github.com/relab/paxos/internal/mocks"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/protocol/acceptor"
)

func pid(round uint64, uid string) paxos.ProposalID {
	return paxos.ProposalID{Round: round, UID: uid}
}

func TestPromiseFirstPrepare(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	a := acceptor.New(m, logging.Nop())

	m.EXPECT().SendPromise("P1", pid(1, "P1"), paxos.ProposalID{}, "")
	a.ReceivePrepare("P1", pid(1, "P1"))

	if got, ok := a.PromisedID(); !ok || got != pid(1, "P1") {
		t.Errorf("PromisedID() = %v, %t; want %v", got, ok, pid(1, "P1"))
	}
	if !a.PersistenceRequired() {
		t.Error("promise did not mark the acceptor dirty")
	}
	a.Persisted()
	if a.PersistenceRequired() {
		t.Error("Persisted did not clear the dirty flag")
	}
	if _, ok := a.AcceptedID(); ok {
		t.Error("AcceptedID present before any accept")
	}
}

// An acceptor that promised (1,P1)
// re-promises (1,P2) and then rejects the accept request of P1.
func TestTieBreakRepromise(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	a := acceptor.New(m, logging.Nop())

	gomock.InOrder(
		m.EXPECT().SendPromise("P1", pid(1, "P1"), paxos.ProposalID{}, ""),
		m.EXPECT().SendPromise("P2", pid(1, "P2"), paxos.ProposalID{}, ""),
		m.EXPECT().SendAcceptNACK("P1", pid(1, "P1"), pid(1, "P2")),
	)
	a.ReceivePrepare("P1", pid(1, "P1"))
	a.ReceivePrepare("P2", pid(1, "P2"))
	a.ReceiveAcceptRequest("P1", pid(1, "P1"), "X")

	if _, ok := a.AcceptedValue(); ok {
		t.Error("rejected accept request was recorded")
	}
}

func TestPrepareNACK(t *testing.T) {
	tests := []struct {
		name    string
		prepare paxos.ProposalID
	}{
		{name: "Lower", prepare: pid(1, "b")},
		{name: "Equal", prepare: pid(2, "a")},
		{name: "TieLow", prepare: pid(2, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mocks.NewMockMessenger(ctrl)
			a := acceptor.New(m, logging.Nop())
			m.EXPECT().SendPromise("a", pid(2, "a"), paxos.ProposalID{}, "")
			a.ReceivePrepare("a", pid(2, "a"))
			a.Persisted()

			m.EXPECT().SendPrepareNACK("b", tt.prepare, pid(2, "a"))
			a.ReceivePrepare("b", tt.prepare)
			if a.PersistenceRequired() {
				t.Error("rejected prepare marked the acceptor dirty")
			}
		})
	}
}

func TestAcceptAtPromisedRound(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	a := acceptor.New(m, logging.Nop())

	m.EXPECT().SendPromise("P1", pid(1, "P1"), paxos.ProposalID{}, "")
	m.EXPECT().SendAccepted(pid(1, "P1"), "X")
	m.EXPECT().SendPromise("P2", pid(2, "P2"), pid(1, "P1"), "X")

	a.ReceivePrepare("P1", pid(1, "P1"))
	a.ReceiveAcceptRequest("P1", pid(1, "P1"), "X")
	a.ReceivePrepare("P2", pid(2, "P2"))

	want := paxos.AcceptorState{PromisedID: pid(2, "P2"), AcceptedID: pid(1, "P1"), AcceptedValue: "X"}
	if got := a.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

func TestAcceptWithoutPromise(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	a := acceptor.New(m, logging.Nop())

	m.EXPECT().SendAccepted(pid(3, "L"), "V")
	a.ReceiveAcceptRequest("L", pid(3, "L"), "V")

	if got, _ := a.PromisedID(); got != pid(3, "L") {
		t.Errorf("accept did not raise the promise: %v", got)
	}
	a.Persisted()

	// a resent accept request is answered again without changing the state
	m.EXPECT().SendAccepted(pid(3, "L"), "V")
	a.ReceiveAcceptRequest("L", pid(3, "L"), "V")
	if a.PersistenceRequired() {
		t.Error("repeated accept marked the acceptor dirty")
	}
}

func TestRecover(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	a := acceptor.New(m, logging.Nop())
	a.Recover(pid(5, "b"), pid(4, "a"), "Y")

	if a.PersistenceRequired() {
		t.Error("recovered state should not require persistence")
	}
	m.EXPECT().SendPrepareNACK("c", pid(5, "a"), pid(5, "b"))
	a.ReceivePrepare("c", pid(5, "a"))

	m.EXPECT().SendPromise("c", pid(6, "c"), pid(4, "a"), "Y")
	a.ReceivePrepare("c", pid(6, "c"))
}

// TestPromiseMonotonic feeds random requests and checks that the promise never decreases
// and never falls below the accepted proposal.
func TestPromiseMonotonic(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMessenger(ctrl)
	m.EXPECT().SendPromise(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().SendPrepareNACK(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().SendAccepted(gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().SendAcceptNACK(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	a := acceptor.New(m, logging.Nop())
	rnd := rand.New(rand.NewSource(7))
	uids := []string{"a", "b", "c"}
	var prev paxos.ProposalID
	for i := 0; i < 1000; i++ {
		id := pid(uint64(rnd.Intn(10)+1), uids[rnd.Intn(len(uids))])
		if rnd.Intn(2) == 0 {
			a.ReceivePrepare(id.UID, id)
		} else {
			a.ReceiveAcceptRequest(id.UID, id, id.String())
		}
		promised, _ := a.PromisedID()
		if promised.Less(prev) {
			t.Fatalf("promise decreased from %v to %v", prev, promised)
		}
		if accepted, ok := a.AcceptedID(); ok && promised.Less(accepted) {
			t.Fatalf("promise %v below accepted %v", promised, accepted)
		}
		prev = promised
	}
}
