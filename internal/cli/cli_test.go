package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/relab/paxos/node"
)

func fastCluster(replicas, disconnect int) localOptions {
	return localOptions{
		replicas:   replicas,
		disconnect: disconnect,
		timeout:    20 * time.Second,
		node: node.Config{
			HeartbeatPeriod:  10 * time.Millisecond,
			HeartbeatTimeout: 50 * time.Millisecond,
		},
	}
}

func TestRunLocal(t *testing.T) {
	tests := []struct {
		name       string
		replicas   int
		disconnect int
	}{
		{name: "Single", replicas: 1},
		{name: "Three", replicas: 3},
		{name: "FiveOneCut", replicas: 5, disconnect: 1},
		{name: "FiveTwoCut", replicas: 5, disconnect: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			decisions, err := runLocal(context.Background(), &out, fastCluster(tt.replicas, tt.disconnect))
			if err != nil {
				t.Fatal(err)
			}
			if got, want := len(decisions), tt.replicas-tt.disconnect; got != want {
				t.Fatalf("%d replicas decided, want %d", got, want)
			}
			var first string
			for uid, v := range decisions {
				if first == "" {
					first = v
				}
				if v != first {
					t.Errorf("%s decided %q, others decided %q", uid, v, first)
				}
			}
			if !strings.Contains(out.String(), "replicas decided") {
				t.Errorf("unexpected output:\n%s", out.String())
			}
		})
	}
}

func TestRunLocalNoQuorum(t *testing.T) {
	if _, err := runLocal(context.Background(), &bytes.Buffer{}, fastCluster(3, 2)); err == nil {
		t.Error("expected an error when a majority is disconnected")
	}
	if _, err := runLocal(context.Background(), &bytes.Buffer{}, fastCluster(0, 0)); err == nil {
		t.Error("expected an error for an empty cluster")
	}
}

func TestSimulate(t *testing.T) {
	simNodes, simRuns, simTicks, simSeed = 3, 5, 3000, 1
	simDeliver, simDrop, simDuplicate, simMaxDelay = 8, 1, 1, 3
	simVerbose = true

	var out bytes.Buffer
	if err := simulate(&out); err != nil {
		t.Fatalf("simulate: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "0 unsafe") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
