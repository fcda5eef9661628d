package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/wire"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrConflict is returned by Etcd.Save when the key was written by someone else.
var ErrConflict = errors.New("storage: acceptor state was modified concurrently")

// Etcd is a Store that keeps the state under a key in etcd.
// Writes are conditional on the revision seen by the last Load or Save, so two processes
// that mistakenly share an acceptor key cannot silently overwrite each other.
type Etcd struct {
	client *clientv3.Client
	owned  bool
	key    string
	rev    int64
}

// DialEtcd connects to the given etcd endpoints and stores the state of acceptor uid
// under prefix. The connection is closed by Close.
func DialEtcd(endpoints []string, prefix, uid string, dialTimeout time.Duration) (*Etcd, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect to etcd: %w", err)
	}
	s := NewEtcd(client, prefix, uid)
	s.owned = true
	return s, nil
}

// NewEtcd returns a store that uses an existing client. Close does not close the client.
func NewEtcd(client *clientv3.Client, prefix, uid string) *Etcd {
	return &Etcd{
		client: client,
		key:    strings.TrimSuffix(prefix, "/") + "/acceptor/" + uid,
	}
}

// Key returns the etcd key of the state.
func (s *Etcd) Key() string {
	return s.key
}

func (s *Etcd) Load(ctx context.Context) (paxos.AcceptorState, bool, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return paxos.AcceptorState{}, false, fmt.Errorf("storage: get %s: %w", s.key, err)
	}
	if len(resp.Kvs) == 0 {
		s.rev = 0
		return paxos.AcceptorState{}, false, nil
	}
	kv := resp.Kvs[0]
	state, err := wire.UnmarshalState(kv.Value)
	if err != nil {
		return paxos.AcceptorState{}, false, fmt.Errorf("storage: decode %s: %w", s.key, err)
	}
	s.rev = kv.ModRevision
	return state, true, nil
}

func (s *Etcd) Save(ctx context.Context, state paxos.AcceptorState) error {
	cmp := clientv3.Compare(clientv3.ModRevision(s.key), "=", s.rev)
	put := clientv3.OpPut(s.key, string(wire.MarshalState(state)))
	resp, err := s.client.Txn(ctx).If(cmp).Then(put).Commit()
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", s.key, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrConflict, s.key)
	}
	s.rev = resp.Header.Revision
	return nil
}

func (s *Etcd) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
