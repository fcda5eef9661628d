// Package network carries protocol messages between nodes.
//
// Two transports are provided: GRPC connects nodes running in separate processes,
// and Hub connects nodes running in the same process.
// Both are fire-and-forget: Send and Broadcast never block on the network,
// and a message that cannot be delivered is dropped.
package network

import "github.com/relab/paxos"

// Handler is called for every message received from a peer.
// It is called from the transport's goroutines and must not block.
type Handler func(msg paxos.Message)

// Transport sends messages to the other nodes of the cluster.
type Transport interface {
	// Send sends msg to the node with the given UID.
	Send(toUID string, msg paxos.Message)
	// Broadcast sends msg to every other node.
	Broadcast(msg paxos.Message)
	// Close stops the transport.
	Close() error
}
