package paxos_test

import (
	"testing"

	"github.com/relab/paxos"
)

func TestHasAccepted(t *testing.T) {
	promised := paxos.AcceptorState{PromisedID: paxos.ProposalID{Round: 2, UID: "a"}}
	if promised.HasAccepted() {
		t.Error("HasAccepted() = true for a state with only a promise")
	}
	accepted := paxos.AcceptorState{
		PromisedID:    paxos.ProposalID{Round: 2, UID: "a"},
		AcceptedID:    paxos.ProposalID{Round: 2, UID: "a"},
		AcceptedValue: "v",
	}
	if !accepted.HasAccepted() {
		t.Error("HasAccepted() = false for a state with an accepted value")
	}
}
