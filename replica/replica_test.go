package replica_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
	"github.com/relab/paxos/node"
	"github.com/relab/paxos/replica"
	"github.com/relab/paxos/storage"
)

func nodeConfig(uid string, n int) node.Config {
	return node.Config{
		UID:              uid,
		ClusterSize:      n,
		QuorumSize:       node.MajorityQuorum(n),
		HeartbeatPeriod:  10 * time.Millisecond,
		HeartbeatTimeout: 50 * time.Millisecond,
	}
}

func newCluster(t *testing.T, n int, stores []storage.Store) (*network.Hub, []*replica.Replica) {
	t.Helper()
	hub := network.NewHub(logging.New("hub"))
	replicas := make([]*replica.Replica, n)
	for i := range replicas {
		uid := fmt.Sprintf("r%d", i+1)
		store := storage.Store(storage.NewMemory())
		if stores != nil {
			store = stores[i]
		}
		r, err := replica.New(nodeConfig(uid, n), store, func(h network.Handler) network.Transport {
			return hub.Join(uid, h)
		}, logging.New(uid),
			replica.WithSeed(int64(i)),
			replica.WithPollInterval(5*time.Millisecond),
			replica.WithResendInterval(10*time.Millisecond),
			replica.WithBackoff(1.5, 100*time.Millisecond),
			replica.WithEventBuffer(256),
		)
		if err != nil {
			t.Fatal(err)
		}
		replicas[i] = r
	}
	return hub, replicas
}

func waitAll(t *testing.T, replicas []*replica.Replica) []paxos.Value {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	values := make([]paxos.Value, len(replicas))
	for i, r := range replicas {
		v, err := r.WaitForDecision(ctx)
		if err != nil {
			t.Fatalf("%s: %v", r.UID(), err)
		}
		values[i] = v
	}
	return values
}

func TestClusterDecides(t *testing.T) {
	_, replicas := newCluster(t, 3, nil)
	for i, r := range replicas {
		r.Propose(fmt.Sprintf("value-%d", i))
		r.Start()
	}
	defer func() {
		for _, r := range replicas {
			r.Stop()
		}
	}()

	values := waitAll(t, replicas)
	for _, v := range values[1:] {
		if v != values[0] {
			t.Fatalf("replicas decided different values: %v", values)
		}
	}
	proposed := false
	for i := range replicas {
		if values[0] == fmt.Sprintf("value-%d", i) {
			proposed = true
		}
	}
	if !proposed {
		t.Errorf("decided %q, which nobody proposed", values[0])
	}
}

func TestMinorityDown(t *testing.T) {
	hub, replicas := newCluster(t, 3, nil)
	hub.SetConnected("r3", false)
	for _, r := range replicas {
		r.Propose("v")
		r.Start()
	}
	defer func() {
		for _, r := range replicas {
			r.Stop()
		}
	}()

	waitAll(t, replicas[:2])
	if _, _, ok := replicas[2].Decision(); ok {
		t.Error("disconnected replica learned a value")
	}

	hub.SetConnected("r3", true)
	// the leader resends its accept request, so the lagging replica catches up
	waitAll(t, replicas[2:])
}

func TestRecoverPromise(t *testing.T) {
	store := storage.NewMemory()
	promised := paxos.ProposalID{Round: 41, UID: "zz"}
	if err := store.Save(context.Background(), paxos.AcceptorState{PromisedID: promised}); err != nil {
		t.Fatal(err)
	}
	stores := []storage.Store{store, storage.NewMemory(), storage.NewMemory()}
	_, replicas := newCluster(t, 3, stores)
	for _, r := range replicas {
		r.Propose("v")
		r.Start()
	}
	defer func() {
		for _, r := range replicas {
			r.Stop()
		}
	}()

	waitAll(t, replicas)
	state, _, _ := store.Load(context.Background())
	if state.PromisedID.Less(promised) {
		t.Errorf("recovered promise %v was lowered to %v", promised, state.PromisedID)
	}
}

func TestWaitForDecisionStopped(t *testing.T) {
	_, replicas := newCluster(t, 3, nil)
	r := replicas[0]
	r.Start()

	errc := make(chan error, 1)
	go func() {
		_, err := r.WaitForDecision(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case err := <-errc:
		if !errors.Is(err, replica.ErrStopped) {
			t.Errorf("WaitForDecision() error = %v, want ErrStopped", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForDecision did not return after Stop")
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := nodeConfig("a", 3)
	cfg.QuorumSize = 0
	_, err := replica.New(cfg, storage.NewMemory(), func(network.Handler) network.Transport { return nil }, logging.Nop())
	if !errors.Is(err, node.ErrInvalidQuorum) {
		t.Errorf("New() error = %v, want ErrInvalidQuorum", err)
	}
}

// failingStore fails every save.
type failingStore struct {
	saves atomic.Int32
}

func (s *failingStore) Load(context.Context) (paxos.AcceptorState, bool, error) {
	return paxos.AcceptorState{}, false, nil
}

func (s *failingStore) Save(context.Context, paxos.AcceptorState) error {
	s.saves.Add(1)
	return errors.New("disk full")
}

func (s *failingStore) Close() error { return nil }

// blockingStore holds every save until release is closed.
type blockingStore struct {
	*storage.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, state paxos.AcceptorState) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Memory.Save(ctx, state)
}

// startFollower starts r1 in a cluster of three that never bids for leadership, and
// joins r2 to the hub as an observer that records what r1 sends.
func startFollower(t *testing.T, store storage.Store) (*replica.Replica, chan paxos.Message) {
	t.Helper()
	hub := network.NewHub(logging.New("hub"))
	observed := make(chan paxos.Message, 16)
	hub.Join("r2", func(msg paxos.Message) {
		select {
		case observed <- msg:
		default:
		}
	})

	cfg := nodeConfig("r1", 3)
	cfg.HeartbeatTimeout = time.Hour
	r, err := replica.New(cfg, store, func(h network.Handler) network.Transport {
		return hub.Join("r1", h)
	}, logging.New("r1"), replica.WithSaveTimeout(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	r.Start()
	t.Cleanup(func() { r.Stop() })
	return r, observed
}

func expectNothing(t *testing.T, observed chan paxos.Message, d time.Duration) {
	t.Helper()
	select {
	case msg := <-observed:
		t.Fatalf("%v was sent before the acceptor state was saved", msg)
	case <-time.After(d):
	}
}

func TestFailedSaveSendsNothing(t *testing.T) {
	store := &failingStore{}
	r, observed := startFollower(t, store)

	r.Deliver(paxos.PrepareMsg{From: "r2", ProposalID: paxos.ProposalID{Round: 5, UID: "r2"}})
	r.Deliver(paxos.AcceptMsg{From: "r2", ProposalID: paxos.ProposalID{Round: 5, UID: "r2"}, Value: "v"})

	deadline := time.Now().Add(5 * time.Second)
	for store.saves.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("the acceptor state was never saved")
		}
		time.Sleep(5 * time.Millisecond)
	}
	expectNothing(t, observed, 100*time.Millisecond)
}

func TestBlockedSaveHoldsReplies(t *testing.T) {
	store := &blockingStore{
		Memory:  storage.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r, observed := startFollower(t, store)

	prepare := paxos.ProposalID{Round: 5, UID: "r2"}
	r.Deliver(paxos.PrepareMsg{From: "r2", ProposalID: prepare})
	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("the acceptor state was never saved")
	}
	expectNothing(t, observed, 50*time.Millisecond)

	close(store.release)
	select {
	case msg := <-observed:
		promise, ok := msg.(paxos.PromiseMsg)
		if !ok || promise.ProposalID != prepare {
			t.Fatalf("received %v, want a promise for %v", msg, prepare)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("the promise was not sent after the save completed")
	}
	if state, _, _ := store.Load(context.Background()); state.PromisedID != prepare {
		t.Errorf("saved promise %v, want %v", state.PromisedID, prepare)
	}
}

func TestInactiveReplica(t *testing.T) {
	cfg := nodeConfig("r1", 1)
	hub := network.NewHub(logging.New("hub"))
	r, err := replica.New(cfg, storage.NewMemory(), func(h network.Handler) network.Transport {
		return hub.Join("r1", h)
	}, logging.New("r1"))
	if err != nil {
		t.Fatal(err)
	}
	r.SetActive(false)
	r.Propose("v")
	r.Start()
	defer r.Stop()

	time.Sleep(200 * time.Millisecond)
	if _, _, ok := r.Decision(); ok {
		t.Fatal("an inactive replica decided")
	}

	r.SetActive(true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := r.WaitForDecision(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Errorf("decided %q, want %q", v, "v")
	}
}

func TestStopWithoutStart(t *testing.T) {
	_, replicas := newCluster(t, 1, nil)
	done := make(chan error, 1)
	go func() { done <- replicas[0].Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a replica that was never started")
	}
}
