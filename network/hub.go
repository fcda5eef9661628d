package network

import (
	"sync"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/wire"
)

// Hub connects nodes running in the same process.
// Messages go through the wire encoding, so a node never shares memory with another.
type Hub struct {
	logger logging.Logger

	mut       sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub returns an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:    logger,
		endpoints: make(map[string]*Endpoint),
	}
}

// Endpoint is the Transport of a single node attached to a Hub.
type Endpoint struct {
	hub     *Hub
	uid     string
	handler Handler

	mut          sync.Mutex
	disconnected bool
}

// Join attaches the node with the given UID to the hub.
// A node that joins again replaces its previous endpoint.
func (h *Hub) Join(uid string, handler Handler) *Endpoint {
	e := &Endpoint{hub: h, uid: uid, handler: handler}
	h.mut.Lock()
	h.endpoints[uid] = e
	h.mut.Unlock()
	return e
}

// SetConnected connects or disconnects a node. A disconnected node
// neither sends nor receives messages.
func (h *Hub) SetConnected(uid string, connected bool) {
	h.mut.RLock()
	e, ok := h.endpoints[uid]
	h.mut.RUnlock()
	if !ok {
		return
	}
	e.mut.Lock()
	e.disconnected = !connected
	e.mut.Unlock()
}

func (e *Endpoint) connected() bool {
	e.mut.Lock()
	defer e.mut.Unlock()
	return !e.disconnected
}

func (h *Hub) deliver(from *Endpoint, to *Endpoint, b []byte) {
	if to == nil || !to.connected() || !from.connected() {
		return
	}
	msg, err := wire.Unmarshal(b)
	if err != nil {
		h.logger.Errorf("failed to decode message from %s: %v", from.uid, err)
		return
	}
	to.handler(msg)
}

func (e *Endpoint) Send(toUID string, msg paxos.Message) {
	b, err := wire.Marshal(msg)
	if err != nil {
		e.hub.logger.Errorf("failed to encode %v: %v", msg, err)
		return
	}
	e.hub.mut.RLock()
	to := e.hub.endpoints[toUID]
	e.hub.mut.RUnlock()
	e.hub.deliver(e, to, b)
}

func (e *Endpoint) Broadcast(msg paxos.Message) {
	b, err := wire.Marshal(msg)
	if err != nil {
		e.hub.logger.Errorf("failed to encode %v: %v", msg, err)
		return
	}
	e.hub.mut.RLock()
	peers := make([]*Endpoint, 0, len(e.hub.endpoints))
	for uid, to := range e.hub.endpoints {
		if uid != e.uid {
			peers = append(peers, to)
		}
	}
	e.hub.mut.RUnlock()
	for _, to := range peers {
		e.hub.deliver(e, to, b)
	}
}

// Close detaches the endpoint from the hub.
func (e *Endpoint) Close() error {
	e.hub.mut.Lock()
	defer e.hub.mut.Unlock()
	if e.hub.endpoints[e.uid] == e {
		delete(e.hub.endpoints, e.uid)
	}
	return nil
}
