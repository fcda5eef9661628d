// Package paxos defines the core types and interfaces shared by the Paxos roles.
// The roles themselves live in the protocol packages, and they are composed into a
// single consensus node by the node package.
//
// The following diagram illustrates how the pieces fit together:
//
//	                 ReceivePrepare()-----------+
//	                 ReceiveAcceptRequest()--+  |               +--------------+
//	                                         |  |  +---------->|   Acceptor   |--SendPromise()/SendAccepted()/NACKs--+
//	                 ReceivePromise()-----+  |  |  |           +--------------+                                      |
//	                 ReceiveNACKs()----+  |  |  |  |                                                                  v
//	                                   v  v  v  v  |           +--------------+                           +-----------------+
//	+------------+                  +------------------+------>|   Proposer   |--SendPrepare()/Accept()-->|    Messenger    |
//	| event loop |--PollLiveness()->|       Node       |       +--------------+                           | (host supplied) |
//	|  (ticks)   |--Pulse()-------->|   (heartbeats)   |                                                  +-----------------+
//	|            |--ResendAccept()->|                  |------>+--------------+                                   ^
//	+------------+                  +------------------+       |   Learner    |--OnResolution()-------------------+
//	                                         ^                 +--------------+
//	                 ReceiveAccepted()-------+
//	                 ReceiveHeartbeat()------+
//
// The Node is the only entry point. It is not safe for concurrent use; the host must
// serialize every call, for example by running all calls on one event loop.
package paxos

// Value is the opaque value that the cluster agrees on.
type Value = string

// AcceptorState is the durable part of an acceptor.
// A zero PromisedID or AcceptedID means that nothing has been promised or accepted.
type AcceptorState struct {
	PromisedID    ProposalID
	AcceptedID    ProposalID
	AcceptedValue Value
}

// HasAccepted returns true if the state holds an accepted value.
func (s AcceptorState) HasAccepted() bool {
	return !s.AcceptedID.IsZero()
}
