// Package replica hosts a Paxos node: it feeds the node with messages and timer ticks
// from a single event loop, persists the acceptor state, and sends the node's messages.
package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/core/eventloop"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
	"github.com/relab/paxos/node"
	"github.com/relab/paxos/storage"
	"go.uber.org/multierr"
)

// ErrStopped is returned by WaitForDecision when the replica stops before a value is chosen.
var ErrStopped = errors.New("replica stopped")

type (
	proposeEvent struct{ value paxos.Value }
	pollEvent    struct{}
	pulseEvent   struct{}
	resendEvent  struct{}
	activeEvent  struct{ active bool }
)

// DecisionEvent is added to the event loop when a value has been chosen.
type DecisionEvent struct {
	ProposalID paxos.ProposalID
	Value      paxos.Value
}

// Replica is a participant in the consensus protocol.
type Replica struct {
	logger    logging.Logger
	uid       string
	opts      *replicaOptions
	el        *eventloop.EventLoop
	node      *node.Node
	store     storage.Store
	transport network.Transport
	outbox    *outbox
	backoff   *backoff

	// holdUntil suppresses leadership bids after a rejected bid.
	holdUntil time.Time

	mut        sync.Mutex // protects the following:
	leader     string
	decided    bool
	decision   paxos.Value
	decisionID paxos.ProposalID

	started  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// New returns a new replica. dial is called once with the handler for inbound messages
// and must return the transport used to reach the other nodes.
func New(cfg node.Config, store storage.Store, dial func(network.Handler) network.Transport, logger logging.Logger, opts ...Option) (*Replica, error) {
	rOpt := newDefaultOpts()
	for _, opt := range opts {
		opt(rOpt)
	}

	r := &Replica{
		logger:  logger,
		uid:     cfg.UID,
		opts:    rOpt,
		el:      eventloop.New(logger, rOpt.eventBuffer),
		store:   store,
		leader:  cfg.LeaderUID,
		cancel:  func() {},
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	r.outbox = &outbox{r: r}

	n, err := node.New(cfg, r.outbox, logger)
	if err != nil {
		return nil, err
	}
	r.node = n

	if rOpt.resendInterval <= 0 {
		rOpt.resendInterval = n.HeartbeatPeriod()
	}
	if rOpt.pollInterval <= 0 {
		rOpt.pollInterval = n.HeartbeatPeriod()
	}
	if rOpt.backoffMax <= 0 {
		rOpt.backoffMax = n.HeartbeatTimeout()
	}
	r.backoff = newBackoff(n.HeartbeatPeriod(), rOpt.backoffMax, rOpt.backoffMul, rOpt.seed)

	r.registerHandlers()
	r.transport = dial(r.Deliver)
	return r, nil
}

// on registers a handler that runs with the durability barrier: the messages produced by
// the handler are released only after the acceptor state has been saved.
func on[T any](r *Replica, handle func(T)) {
	eventloop.Register(r.el, func(event T) {
		before := r.node.State()
		handle(event)
		r.afterEvent(before)
	})
}

func (r *Replica) registerHandlers() {
	n := r.node
	on(r, func(m paxos.PrepareMsg) { n.ReceivePrepare(m.From, m.ProposalID) })
	on(r, func(m paxos.PromiseMsg) {
		n.ReceivePromise(m.From, m.ProposalID, m.PrevAcceptedID, m.PrevAcceptedValue)
	})
	on(r, func(m paxos.AcceptMsg) { n.ReceiveAcceptRequest(m.From, m.ProposalID, m.Value) })
	on(r, func(m paxos.AcceptedMsg) { n.ReceiveAccepted(m.From, m.ProposalID, m.Value) })
	on(r, func(m paxos.PrepareNACKMsg) { n.ReceivePrepareNACK(m.From, m.ProposalID, m.PromisedID) })
	on(r, func(m paxos.AcceptNACKMsg) { n.ReceiveAcceptNACK(m.From, m.ProposalID, m.PromisedID) })
	on(r, func(m paxos.HeartbeatMsg) { n.ReceiveHeartbeat(m.From, m.ProposalID) })

	on(r, func(e proposeEvent) { n.SetProposal(e.value) })
	on(r, func(pollEvent) {
		if n.Now().Before(r.holdUntil) {
			return
		}
		n.PollLiveness()
	})
	on(r, func(pulseEvent) { n.Pulse() })
	// Resending continues after the decision, so nodes that missed it still learn the value.
	on(r, func(resendEvent) { n.ResendAccept() })
	on(r, func(e activeEvent) { n.SetActive(e.active) })

	eventloop.Register(r.el, func(e DecisionEvent) {
		r.logger.Infof("decided %.32q in %v", e.Value, e.ProposalID)
	})
}

func (r *Replica) afterEvent(before node.State) {
	after := r.node.State()
	if before == node.AcquiringLeadership && after == node.Follower && !r.node.IsLeaderAlive() {
		delay := r.backoff.Rejected()
		r.holdUntil = r.node.Now().Add(delay)
		r.logger.Debugf("leadership bid rejected, next bid in %v", delay)
	}

	if r.node.PersistenceRequired() {
		ctx, cancel := context.WithTimeout(r.el.Context(), r.opts.saveTimeout)
		err := r.store.Save(ctx, r.node.AcceptorState())
		cancel()
		if err != nil {
			// The node keeps its newer state and the save is retried after the next event.
			r.logger.Errorf("failed to save acceptor state: %v", err)
			r.outbox.drop()
			return
		}
		r.node.Persisted()
	}
	r.outbox.flush()
}

func (r *Replica) resolved(proposalID paxos.ProposalID, value paxos.Value) {
	r.mut.Lock()
	r.decided = true
	r.decision = value
	r.decisionID = proposalID
	r.mut.Unlock()
	r.el.AddEvent(DecisionEvent{ProposalID: proposalID, Value: value})
}

// Deliver hands a message received from a peer to the replica. It does not block.
func (r *Replica) Deliver(msg paxos.Message) {
	r.el.AddEvent(msg)
}

// Propose sets the value this replica proposes if it becomes leader.
// A leader sends it to the acceptors right away. Once a value has been set, or adopted
// from an earlier round, later calls have no effect.
func (r *Replica) Propose(value paxos.Value) {
	r.el.AddEvent(proposeEvent{value: value})
}

// SetActive enables or disables the protocol messages of the replica.
func (r *Replica) SetActive(active bool) {
	r.el.AddEvent(activeEvent{active: active})
}

// Decision returns the chosen value and the proposal it was chosen in, if any.
func (r *Replica) Decision() (paxos.Value, paxos.ProposalID, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.decision, r.decisionID, r.decided
}

// Leader returns the UID of the node this replica believes is leader, or an empty string.
func (r *Replica) Leader() string {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.leader
}

// UID returns the UID of the replica.
func (r *Replica) UID() string {
	return r.uid
}

// WaitForDecision blocks until a value has been chosen or ctx is done.
func (r *Replica) WaitForDecision(ctx context.Context) (paxos.Value, error) {
	decided, cancel := eventloop.ContextUntil[DecisionEvent](r.el)
	defer cancel()
	if v, _, ok := r.Decision(); ok {
		return v, nil
	}
	select {
	case <-decided.Done():
	case <-r.stopped:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if v, _, ok := r.Decision(); ok {
		return v, nil
	}
	return "", ErrStopped
}

// Run recovers the acceptor state from the store and runs the replica until ctx is canceled.
func (r *Replica) Run(ctx context.Context) error {
	defer r.stopOnce.Do(func() { close(r.stopped) })

	state, ok, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load acceptor state: %w", err)
	}
	if ok {
		if state.HasAccepted() {
			r.logger.Infof("recovered promise %v, accepted %.32q in %v", state.PromisedID, state.AcceptedValue, state.AcceptedID)
		} else {
			r.logger.Infof("recovered promise %v", state.PromisedID)
		}
		r.node.Recover(state.PromisedID, state.AcceptedID, state.AcceptedValue)
	}

	r.el.AddTicker(r.opts.pollInterval, func(time.Time) any { return pollEvent{} })
	r.el.AddTicker(r.node.HeartbeatPeriod(), func(time.Time) any { return pulseEvent{} })
	r.el.AddTicker(r.opts.resendInterval, func(time.Time) any { return resendEvent{} })

	r.el.Run(ctx)
	return nil
}

// Start runs the replica in a goroutine.
func (r *Replica) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	var ctx context.Context
	ctx, r.cancel = context.WithCancel(context.Background())
	go func() {
		defer close(r.done)
		if err := r.Run(ctx); err != nil {
			r.logger.Error(err)
		}
	}()
}

// Stop stops a replica started with Start and closes it.
// A replica that was never started is only closed.
func (r *Replica) Stop() error {
	if r.started.Load() {
		r.cancel()
		<-r.done
	}
	return r.Close()
}

// Close closes the transport and the store.
func (r *Replica) Close() error {
	return multierr.Combine(r.transport.Close(), r.store.Close())
}
