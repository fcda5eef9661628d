package simnet_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/relab/paxos"
	"github.com/relab/paxos/internal/simnet"
	"go.uber.org/multierr"
)

func newNetwork(t *testing.T, cfg simnet.Config) *simnet.Network {
	t.Helper()
	n, err := simnet.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func checkAgreement(t *testing.T, n *simnet.Network) {
	t.Helper()
	for _, err := range multierr.Errors(n.CheckAgreement()) {
		t.Error(err)
	}
}

func TestReliableNetwork(t *testing.T) {
	n := newNetwork(t, simnet.Config{Nodes: 3, Seed: 1, Faults: simnet.Reliable})
	ticks := n.Run(500, simnet.AllDecided)
	if !simnet.AllDecided(n) {
		t.Fatalf("no decision after %d ticks\n%s", ticks, n.Log())
	}
	checkAgreement(t, n)
	if leaders := n.Leaders(); len(leaders) != 1 {
		t.Errorf("Leaders() = %v, want exactly one leader", leaders)
	}
}

func TestSafety(t *testing.T) {
	faults := simnet.Faults{Deliver: 6, Drop: 3, Duplicate: 1, MaxDelay: 8}
	for _, nodes := range []int{3, 5} {
		for seed := int64(1); seed <= 50; seed++ {
			t.Run(fmt.Sprintf("n%d/seed%d", nodes, seed), func(t *testing.T) {
				n := newNetwork(t, simnet.Config{Nodes: nodes, Seed: seed, Faults: faults})
				uids := n.UIDs()
				// crash and restart nodes while the protocol runs
				for round := 0; round < 4; round++ {
					victim := uids[(int(seed)+round)%len(uids)]
					n.Run(50, nil)
					n.Crash(victim)
					n.Run(50, nil)
					checkAgreement(t, n)
					n.Restart(victim)
				}
				n.Run(200, nil)
				checkAgreement(t, n)
				if t.Failed() {
					t.Log(n.Log())
				}
			})
		}
	}
}

func TestLiveness(t *testing.T) {
	faults := simnet.Faults{Deliver: 9, Drop: 1, MaxDelay: 2}
	for seed := int64(1); seed <= 10; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			n := newNetwork(t, simnet.Config{Nodes: 5, Seed: seed, Faults: faults})
			ticks := n.Run(5000, simnet.AllDecided)
			if !simnet.AllDecided(n) {
				t.Fatalf("decided %v after %d ticks\n%s", n.Decisions(), ticks, n.Log())
			}
			checkAgreement(t, n)
		})
	}
}

func TestLivenessWithCrashedMinority(t *testing.T) {
	n := newNetwork(t, simnet.Config{Nodes: 5, Seed: 7, Faults: simnet.Reliable})
	n.Crash("n1")
	n.Crash("n2")
	ticks := n.Run(2000, func(n *simnet.Network) bool { return len(n.Decisions()) == 3 })
	decisions := n.Decisions()
	if len(decisions) != 3 {
		t.Fatalf("decided %v after %d ticks\n%s", decisions, ticks, n.Log())
	}
	for _, uid := range []string{"n1", "n2"} {
		if _, ok := decisions[uid]; ok {
			t.Errorf("crashed node %s learned a value", uid)
		}
	}

	// the restarted nodes learn from the resent accept requests
	n.Restart("n1")
	n.Restart("n2")
	ticks = n.Run(2000, simnet.AllDecided)
	if !simnet.AllDecided(n) {
		t.Fatalf("decided %v after %d more ticks\n%s", n.Decisions(), ticks, n.Log())
	}
	checkAgreement(t, n)
}

func TestSeedIsReproducible(t *testing.T) {
	faults := simnet.Faults{Deliver: 8, Drop: 1, Duplicate: 1, MaxDelay: 4}
	run := func() (int, map[string]paxos.Value, []string) {
		n := newNetwork(t, simnet.Config{Nodes: 3, Seed: 42, Faults: faults})
		ticks := n.Run(5000, simnet.AllDecided)
		return ticks, n.Decisions(), n.Leaders()
	}
	ticksA, decisionsA, leadersA := run()
	ticksB, decisionsB, leadersB := run()
	if ticksA != ticksB {
		t.Errorf("runs took %d and %d ticks", ticksA, ticksB)
	}
	if diff := cmp.Diff(decisionsA, decisionsB); diff != "" {
		t.Errorf("decisions differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(leadersA, leadersB); diff != "" {
		t.Errorf("leaders differ (-first +second):\n%s", diff)
	}
}

func TestNeverDelivered(t *testing.T) {
	if _, err := simnet.New(simnet.Config{Nodes: 3, Faults: simnet.Faults{Drop: 1}}); err == nil {
		t.Error("expected an error for a network that never delivers")
	}
}
