// Package wire encodes protocol messages and acceptor state in the protobuf wire format.
//
// A message is encoded as
//
//	1: kind        varint
//	2: from        string
//	3: proposal    ProposalID
//	4: other       ProposalID (previously accepted or promised ID)
//	5: value       bytes
//
// and a ProposalID as
//
//	1: round       varint
//	2: uid         string
//
// Zero-valued fields are omitted, so the zero ProposalID encodes to nothing.
package wire

import (
	"errors"
	"fmt"

	"github.com/relab/paxos"
	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies the type of an encoded message.
type Kind uint64

// Message kinds.
const (
	KindPrepare Kind = iota + 1
	KindPromise
	KindAccept
	KindAccepted
	KindPrepareNACK
	KindAcceptNACK
	KindHeartbeat
)

var (
	// ErrUnknownKind is returned when decoding a message of an unknown kind.
	ErrUnknownKind = errors.New("wire: unknown message kind")
	// ErrMalformed is returned when the input is not valid protobuf wire data.
	ErrMalformed = errors.New("wire: malformed message")
)

const (
	fieldKind     protowire.Number = 1
	fieldFrom     protowire.Number = 2
	fieldProposal protowire.Number = 3
	fieldOther    protowire.Number = 4
	fieldValue    protowire.Number = 5

	fieldRound protowire.Number = 1
	fieldUID   protowire.Number = 2

	fieldPromised      protowire.Number = 1
	fieldAccepted      protowire.Number = 2
	fieldAcceptedValue protowire.Number = 3
)

// fields is the decoded form shared by every message kind.
type fields struct {
	kind     Kind
	from     string
	proposal paxos.ProposalID
	other    paxos.ProposalID
	value    string
}

// Marshal encodes a protocol message.
func Marshal(msg paxos.Message) ([]byte, error) {
	var f fields
	switch m := msg.(type) {
	case paxos.PrepareMsg:
		f = fields{kind: KindPrepare, from: m.From, proposal: m.ProposalID}
	case paxos.PromiseMsg:
		f = fields{kind: KindPromise, from: m.From, proposal: m.ProposalID, other: m.PrevAcceptedID, value: m.PrevAcceptedValue}
	case paxos.AcceptMsg:
		f = fields{kind: KindAccept, from: m.From, proposal: m.ProposalID, value: m.Value}
	case paxos.AcceptedMsg:
		f = fields{kind: KindAccepted, from: m.From, proposal: m.ProposalID, value: m.Value}
	case paxos.PrepareNACKMsg:
		f = fields{kind: KindPrepareNACK, from: m.From, proposal: m.ProposalID, other: m.PromisedID}
	case paxos.AcceptNACKMsg:
		f = fields{kind: KindAcceptNACK, from: m.From, proposal: m.ProposalID, other: m.PromisedID}
	case paxos.HeartbeatMsg:
		f = fields{kind: KindHeartbeat, from: m.From, proposal: m.ProposalID}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.kind))
	b = appendString(b, fieldFrom, f.from)
	b = appendProposalID(b, fieldProposal, f.proposal)
	b = appendProposalID(b, fieldOther, f.other)
	b = appendString(b, fieldValue, f.value)
	return b, nil
}

// Unmarshal decodes a protocol message encoded by Marshal.
// Unknown fields are skipped.
func Unmarshal(b []byte) (paxos.Message, error) {
	var f fields
	err := parse(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.kind = Kind(v)
			return n, nil
		case num == fieldFrom && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.from = v
			return n, nil
		case num == fieldProposal && typ == protowire.BytesType:
			return consumeProposalID(b, &f.proposal)
		case num == fieldOther && typ == protowire.BytesType:
			return consumeProposalID(b, &f.other)
		case num == fieldValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.value = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}

	switch f.kind {
	case KindPrepare:
		return paxos.PrepareMsg{From: f.from, ProposalID: f.proposal}, nil
	case KindPromise:
		return paxos.PromiseMsg{From: f.from, ProposalID: f.proposal, PrevAcceptedID: f.other, PrevAcceptedValue: f.value}, nil
	case KindAccept:
		return paxos.AcceptMsg{From: f.from, ProposalID: f.proposal, Value: f.value}, nil
	case KindAccepted:
		return paxos.AcceptedMsg{From: f.from, ProposalID: f.proposal, Value: f.value}, nil
	case KindPrepareNACK:
		return paxos.PrepareNACKMsg{From: f.from, ProposalID: f.proposal, PromisedID: f.other}, nil
	case KindAcceptNACK:
		return paxos.AcceptNACKMsg{From: f.from, ProposalID: f.proposal, PromisedID: f.other}, nil
	case KindHeartbeat:
		return paxos.HeartbeatMsg{From: f.from, ProposalID: f.proposal}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, f.kind)
}

// MarshalState encodes the durable state of an acceptor.
func MarshalState(state paxos.AcceptorState) []byte {
	var b []byte
	b = appendProposalID(b, fieldPromised, state.PromisedID)
	b = appendProposalID(b, fieldAccepted, state.AcceptedID)
	b = appendString(b, fieldAcceptedValue, state.AcceptedValue)
	return b
}

// UnmarshalState decodes acceptor state encoded by MarshalState.
func UnmarshalState(b []byte) (paxos.AcceptorState, error) {
	var state paxos.AcceptorState
	err := parse(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldPromised && typ == protowire.BytesType:
			return consumeProposalID(b, &state.PromisedID)
		case num == fieldAccepted && typ == protowire.BytesType:
			return consumeProposalID(b, &state.AcceptedID)
		case num == fieldAcceptedValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			state.AcceptedValue = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return state, err
}

// parse calls field for every field in b. field returns the number of bytes
// it consumed, or a negative protowire error code.
func parse(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendProposalID(b []byte, num protowire.Number, id paxos.ProposalID) []byte {
	if id.IsZero() {
		return b
	}
	var inner []byte
	if id.Round != 0 {
		inner = protowire.AppendTag(inner, fieldRound, protowire.VarintType)
		inner = protowire.AppendVarint(inner, id.Round)
	}
	inner = appendString(inner, fieldUID, id.UID)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func consumeProposalID(b []byte, id *paxos.ProposalID) (int, error) {
	inner, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	err := parse(inner, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldRound && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			id.Round = v
			return n, nil
		case num == fieldUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			id.UID = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return n, err
}
