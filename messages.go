package paxos

import "fmt"

// Message is a protocol message exchanged between nodes.
type Message interface {
	// Sender returns the UID of the node that sent the message.
	Sender() string
	// Proposal returns the proposal ID that the message refers to.
	Proposal() ProposalID
}

// PrepareMsg is broadcast by a proposer to start a round.
type PrepareMsg struct {
	From       string
	ProposalID ProposalID
}

// PromiseMsg is sent by an acceptor in response to a prepare request.
type PromiseMsg struct {
	From              string
	ProposalID        ProposalID
	PrevAcceptedID    ProposalID // zero if nothing was accepted
	PrevAcceptedValue Value
}

// AcceptMsg is broadcast by a proposer that has collected a quorum of promises.
type AcceptMsg struct {
	From       string
	ProposalID ProposalID
	Value      Value
}

// AcceptedMsg is broadcast by an acceptor to the learners.
type AcceptedMsg struct {
	From       string
	ProposalID ProposalID
	Value      Value
}

// PrepareNACKMsg rejects a prepare request. PromisedID is the proposal that blocked it.
type PrepareNACKMsg struct {
	From       string
	ProposalID ProposalID
	PromisedID ProposalID
}

// AcceptNACKMsg rejects an accept request. PromisedID is the proposal that blocked it.
type AcceptNACKMsg struct {
	From       string
	ProposalID ProposalID
	PromisedID ProposalID
}

// HeartbeatMsg is broadcast periodically by the leader.
type HeartbeatMsg struct {
	From       string
	ProposalID ProposalID
}

func (m PrepareMsg) Sender() string     { return m.From }
func (m PromiseMsg) Sender() string     { return m.From }
func (m AcceptMsg) Sender() string      { return m.From }
func (m AcceptedMsg) Sender() string    { return m.From }
func (m PrepareNACKMsg) Sender() string { return m.From }
func (m AcceptNACKMsg) Sender() string  { return m.From }
func (m HeartbeatMsg) Sender() string   { return m.From }

func (m PrepareMsg) Proposal() ProposalID     { return m.ProposalID }
func (m PromiseMsg) Proposal() ProposalID     { return m.ProposalID }
func (m AcceptMsg) Proposal() ProposalID      { return m.ProposalID }
func (m AcceptedMsg) Proposal() ProposalID    { return m.ProposalID }
func (m PrepareNACKMsg) Proposal() ProposalID { return m.ProposalID }
func (m AcceptNACKMsg) Proposal() ProposalID  { return m.ProposalID }
func (m HeartbeatMsg) Proposal() ProposalID   { return m.ProposalID }

func (m PrepareMsg) String() string {
	return fmt.Sprintf("Prepare{from: %s, id: %v}", m.From, m.ProposalID)
}

func (m PromiseMsg) String() string {
	return fmt.Sprintf("Promise{from: %s, id: %v, prev: %v}", m.From, m.ProposalID, m.PrevAcceptedID)
}

func (m AcceptMsg) String() string {
	return fmt.Sprintf("Accept{from: %s, id: %v, value: %.16q}", m.From, m.ProposalID, m.Value)
}

func (m AcceptedMsg) String() string {
	return fmt.Sprintf("Accepted{from: %s, id: %v, value: %.16q}", m.From, m.ProposalID, m.Value)
}

func (m PrepareNACKMsg) String() string {
	return fmt.Sprintf("PrepareNACK{from: %s, id: %v, promised: %v}", m.From, m.ProposalID, m.PromisedID)
}

func (m AcceptNACKMsg) String() string {
	return fmt.Sprintf("AcceptNACK{from: %s, id: %v, promised: %v}", m.From, m.ProposalID, m.PromisedID)
}

func (m HeartbeatMsg) String() string {
	return fmt.Sprintf("Heartbeat{from: %s, id: %v}", m.From, m.ProposalID)
}
