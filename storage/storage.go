// Package storage keeps the durable state of an acceptor.
//
// An acceptor must not answer a request before the state that the answer depends on
// has been saved, so Save returns only once the state is durable.
package storage

import (
	"context"
	"sync"

	"github.com/relab/paxos"
)

// Store saves and loads the state of a single acceptor.
type Store interface {
	// Load returns the last saved state. It returns false if nothing was saved.
	Load(ctx context.Context) (paxos.AcceptorState, bool, error)
	// Save makes the state durable.
	Save(ctx context.Context, state paxos.AcceptorState) error
	// Close releases the resources held by the store.
	Close() error
}

// Memory is a Store that keeps the state in memory. The state survives a restart of the
// node that uses it, but not of the process.
type Memory struct {
	mut   sync.Mutex
	state paxos.AcceptorState
	saved bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (paxos.AcceptorState, bool, error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.state, m.saved, nil
}

func (m *Memory) Save(_ context.Context, state paxos.AcceptorState) error {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.state = state
	m.saved = true
	return nil
}

func (m *Memory) Close() error {
	return nil
}
