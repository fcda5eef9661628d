// Package simnet runs consensus nodes on a simulated network that drops, duplicates,
// delays and reorders messages. Time advances in discrete ticks and every random
// choice is drawn from a single seeded source, so a run is reproducible from its seed.
package simnet

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	wr "github.com/mroth/weightedrand"
	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/node"
)

type action int

const (
	deliver action = iota
	drop
	duplicate
)

// Faults sets the relative weights of the fate of each message.
type Faults struct {
	Deliver   uint
	Drop      uint
	Duplicate uint
	// MaxDelay is the largest number of ticks a message is held back.
	MaxDelay int
}

// Reliable delivers every message on the next tick.
var Reliable = Faults{Deliver: 1}

// Config describes a simulated cluster.
type Config struct {
	Nodes  int
	Seed   int64
	Faults Faults
	// Tick is the simulated time that passes per tick.
	Tick             time.Duration
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	// MaxHold is the largest number of ticks a node waits before bidding again
	// after its bid was rejected.
	MaxHold int
}

func (cfg *Config) setDefaults() {
	if cfg.Tick == 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.HeartbeatPeriod == 0 {
		cfg.HeartbeatPeriod = 2 * cfg.Tick
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 5 * cfg.HeartbeatPeriod
	}
	if cfg.MaxHold == 0 {
		cfg.MaxHold = 20
	}
}

type pendingMessage struct {
	msg paxos.Message
	to  string
	at  int
}

func (pm pendingMessage) String() string {
	return fmt.Sprintf("%s→%s: %v", pm.msg.Sender(), pm.to, pm.msg)
}

// Network is a simulated network of consensus nodes.
type Network struct {
	cfg     Config
	rnd     *rand.Rand
	chooser *wr.Chooser
	now     time.Time
	tick    int

	nodes   map[string]*simNode
	uids    []string
	down    map[string]bool
	pending []pendingMessage

	logger logging.Logger
	// the destination of the logger
	log strings.Builder
}

// New returns a network of cfg.Nodes nodes named n1, n2 and so on.
// Every node proposes its own value.
func New(cfg Config) (*Network, error) {
	cfg.setDefaults()
	if cfg.Faults.Deliver == 0 {
		return nil, fmt.Errorf("simnet: messages are never delivered")
	}
	chooser, err := wr.NewChooser(
		wr.Choice{Item: deliver, Weight: cfg.Faults.Deliver},
		wr.Choice{Item: drop, Weight: cfg.Faults.Drop},
		wr.Choice{Item: duplicate, Weight: cfg.Faults.Duplicate},
	)
	if err != nil {
		return nil, fmt.Errorf("simnet: %w", err)
	}
	n := &Network{
		cfg:     cfg,
		rnd:     rand.New(rand.NewSource(cfg.Seed)),
		chooser: chooser,
		now:     time.Unix(0, 0),
		nodes:   make(map[string]*simNode),
		down:    make(map[string]bool),
	}
	n.logger = logging.NewWithDest(&n.log, "simnet")

	for i := 1; i <= cfg.Nodes; i++ {
		uid := fmt.Sprintf("n%d", i)
		sn := &simNode{net: n, uid: uid}
		nd, err := node.New(node.Config{
			UID:              uid,
			ClusterSize:      cfg.Nodes,
			QuorumSize:       node.MajorityQuorum(cfg.Nodes),
			HeartbeatPeriod:  cfg.HeartbeatPeriod,
			HeartbeatTimeout: cfg.HeartbeatTimeout,
			PrepareWindow:    cfg.HeartbeatPeriod,
			Clock:            n.clock,
		}, sn, logging.NewWithDest(&n.log, uid))
		if err != nil {
			return nil, err
		}
		sn.node = nd
		nd.SetProposal(ProposedValue(uid))
		n.nodes[uid] = sn
		n.uids = append(n.uids, uid)
	}
	return n, nil
}

// ProposedValue returns the value proposed by the node with the given UID.
func ProposedValue(uid string) paxos.Value {
	return "value-" + uid
}

func (n *Network) clock() time.Time {
	return n.now
}

// Node returns the node with the given UID.
func (n *Network) Node(uid string) *node.Node {
	sn, ok := n.nodes[uid]
	if !ok {
		return nil
	}
	return sn.node
}

// UIDs returns the UIDs of the nodes in creation order.
func (n *Network) UIDs() []string {
	return n.uids
}

// Log returns everything logged during the run.
func (n *Network) Log() string {
	return n.log.String()
}

// Now returns the current simulated time.
func (n *Network) Now() time.Time {
	return n.now
}

// Crash stops a node from sending and receiving messages. Its state survives,
// as if it had been persisted before the crash.
func (n *Network) Crash(uid string) {
	n.logger.Infof("tick %d: %s crashed", n.tick, uid)
	n.down[uid] = true
}

// Restart brings a crashed node back.
func (n *Network) Restart(uid string) {
	n.logger.Infof("tick %d: %s restarted", n.tick, uid)
	delete(n.down, uid)
}

// Run advances the network by the given number of ticks, or until stop returns true.
// It returns the number of ticks that were run.
func (n *Network) Run(ticks int, stop func(*Network) bool) int {
	for i := 0; i < ticks; i++ {
		n.Tick()
		if stop != nil && stop(n) {
			return i + 1
		}
	}
	return ticks
}

// Tick delivers the messages that are due, in random order, and then drives
// the timers of every running node.
func (n *Network) Tick() {
	n.tick++
	n.now = n.now.Add(n.cfg.Tick)

	var due []pendingMessage
	rest := n.pending[:0]
	for _, pm := range n.pending {
		if pm.at <= n.tick {
			due = append(due, pm)
		} else {
			rest = append(rest, pm)
		}
	}
	n.pending = rest
	n.rnd.Shuffle(len(due), func(i, j int) { due[i], due[j] = due[j], due[i] })
	for _, pm := range due {
		n.deliver(pm)
	}

	periodTicks := max(1, int(n.cfg.HeartbeatPeriod/n.cfg.Tick))
	for _, uid := range n.uids {
		if n.down[uid] {
			continue
		}
		sn := n.nodes[uid]
		if n.tick >= sn.holdUntil {
			sn.observe(sn.node.PollLiveness)
		}
		if n.tick%periodTicks == 0 {
			sn.observe(sn.node.Pulse)
			sn.observe(sn.node.ResendAccept)
		}
	}
}

func (n *Network) deliver(pm pendingMessage) {
	if n.down[pm.to] || n.down[pm.msg.Sender()] {
		n.logger.Debugf("tick %d: lost %v", n.tick, pm)
		return
	}
	switch n.chooser.PickSource(n.rnd).(action) {
	case drop:
		n.logger.Debugf("tick %d: dropped %v", n.tick, pm)
		return
	case duplicate:
		n.logger.Debugf("tick %d: duplicated %v", n.tick, pm)
		n.enqueue(pm.to, pm.msg)
	}
	sn := n.nodes[pm.to]
	sn.observe(func() { dispatch(sn.node, pm.msg) })
}

func (n *Network) enqueue(to string, msg paxos.Message) {
	delay := 1
	if n.cfg.Faults.MaxDelay > 1 {
		delay += n.rnd.Intn(n.cfg.Faults.MaxDelay)
	}
	n.pending = append(n.pending, pendingMessage{msg: msg, to: to, at: n.tick + delay})
}

func dispatch(nd *node.Node, msg paxos.Message) {
	switch m := msg.(type) {
	case paxos.PrepareMsg:
		nd.ReceivePrepare(m.From, m.ProposalID)
	case paxos.PromiseMsg:
		nd.ReceivePromise(m.From, m.ProposalID, m.PrevAcceptedID, m.PrevAcceptedValue)
	case paxos.AcceptMsg:
		nd.ReceiveAcceptRequest(m.From, m.ProposalID, m.Value)
	case paxos.AcceptedMsg:
		nd.ReceiveAccepted(m.From, m.ProposalID, m.Value)
	case paxos.PrepareNACKMsg:
		nd.ReceivePrepareNACK(m.From, m.ProposalID, m.PromisedID)
	case paxos.AcceptNACKMsg:
		nd.ReceiveAcceptNACK(m.From, m.ProposalID, m.PromisedID)
	case paxos.HeartbeatMsg:
		nd.ReceiveHeartbeat(m.From, m.ProposalID)
	default:
		panic(fmt.Sprintf("simnet: unexpected message %T", msg))
	}
}

// Decisions returns the values learned so far, keyed by node UID.
func (n *Network) Decisions() map[string]paxos.Value {
	decisions := make(map[string]paxos.Value)
	for uid, sn := range n.nodes {
		if sn.decided {
			decisions[uid] = sn.decision
		}
	}
	return decisions
}

// AllDecided returns true if every node has learned a value.
func AllDecided(n *Network) bool {
	for _, sn := range n.nodes {
		if !sn.decided {
			return false
		}
	}
	return true
}

// Leaders returns the UIDs of the nodes that currently consider themselves leader.
func (n *Network) Leaders() []string {
	var leaders []string
	for _, uid := range n.uids {
		if n.nodes[uid].node.IsLeader() {
			leaders = append(leaders, uid)
		}
	}
	return leaders
}
