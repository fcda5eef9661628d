// Package config holds the configuration of a replica process.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/relab/paxos/network"
	"github.com/relab/paxos/node"
	"github.com/relab/paxos/replica"
	"github.com/relab/paxos/storage"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
)

// Store types.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreEtcd   = "etcd"
)

// Config is the configuration of a replica process.
type Config struct {
	// UID identifies this replica. It must be a key in Peers.
	UID string
	// Peers maps the UID of every replica in the cluster, including this one, to its address.
	Peers map[string]string
	// Listen is the address to listen on. Defaults to the address of UID in Peers.
	Listen string
	// Quorum is the number of acceptors that must agree. Zero means a majority of Peers.
	Quorum int
	// Leader optionally names the initial leader.
	Leader string
	// Propose is the value this replica proposes.
	Propose string

	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	PrepareWindow    time.Duration

	// The intervals and the backoff bound default to values derived from the heartbeat.
	PollInterval      time.Duration
	ResendInterval    time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration
	EventBuffer       uint
	SaveTimeout       time.Duration

	// Store is one of StoreMemory, StoreFile or StoreEtcd.
	Store           string
	StorePath       string
	EtcdEndpoints   []string
	EtcdPrefix      string
	EtcdDialTimeout time.Duration

	// RateLimit is the maximum number of messages per second sent to each peer.
	// Zero or less disables the limit.
	RateLimit      float64
	RateBurst      int
	DialTimeout    time.Duration
	RetryDelay     time.Duration
	QueueSize      int
	MaxMessageSize int
	// TLSCert, TLSKey and TLSCA enable mutual TLS between replicas when all are set.
	TLSCert string
	TLSKey  string
	TLSCA   string

	LogLevel string
	// Output is the directory to write profiles to.
	Output        string
	CPUProfile    bool
	MemProfile    bool
	Trace         bool
	FgprofProfile bool
}

// ListenAddr returns the address the replica listens on.
func (c *Config) ListenAddr() string {
	if c.Listen != "" {
		return c.Listen
	}
	return c.Peers[c.UID]
}

// QuorumSize returns the configured quorum, or a majority of the cluster.
func (c *Config) QuorumSize() int {
	if c.Quorum > 0 {
		return c.Quorum
	}
	return node.MajorityQuorum(len(c.Peers))
}

// UIDs returns the sorted UIDs of the cluster.
func (c *Config) UIDs() []string {
	uids := make([]string, 0, len(c.Peers))
	for uid := range c.Peers {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// NodeConfig returns the configuration of the consensus node.
func (c *Config) NodeConfig() node.Config {
	return node.Config{
		UID:              c.UID,
		ClusterSize:      len(c.Peers),
		QuorumSize:       c.QuorumSize(),
		HeartbeatPeriod:  c.HeartbeatPeriod,
		HeartbeatTimeout: c.HeartbeatTimeout,
		PrepareWindow:    c.PrepareWindow,
		LeaderUID:        c.Leader,
	}
}

// ReplicaOptions returns the options of the replica. Unset values keep the replica's defaults.
func (c *Config) ReplicaOptions() []replica.Option {
	var opts []replica.Option
	if c.PollInterval > 0 {
		opts = append(opts, replica.WithPollInterval(c.PollInterval))
	}
	if c.ResendInterval > 0 {
		opts = append(opts, replica.WithResendInterval(c.ResendInterval))
	}
	if c.BackoffMultiplier > 0 || c.BackoffMax > 0 {
		mul := c.BackoffMultiplier
		if mul <= 0 {
			mul = replica.DefaultBackoffMultiplier
		}
		opts = append(opts, replica.WithBackoff(mul, c.BackoffMax))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, replica.WithEventBuffer(c.EventBuffer))
	}
	if c.SaveTimeout > 0 {
		opts = append(opts, replica.WithSaveTimeout(c.SaveTimeout))
	}
	return opts
}

// NetworkOptions returns the options of the gRPC transport.
func (c *Config) NetworkOptions() ([]network.Option, error) {
	var opts []network.Option
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, network.WithRateLimit(c.RateLimit, burst))
	}
	if c.DialTimeout > 0 {
		opts = append(opts, network.WithDialTimeout(c.DialTimeout))
	}
	if c.RetryDelay > 0 {
		opts = append(opts, network.WithRetryDelay(c.RetryDelay))
	}
	if c.QueueSize > 0 {
		opts = append(opts, network.WithQueueSize(c.QueueSize))
	}
	if c.MaxMessageSize > 0 {
		opts = append(opts, network.WithServerOptions(grpc.MaxRecvMsgSize(c.MaxMessageSize)))
	}
	if c.TLSCert != "" {
		creds, err := network.LoadTLS(c.TLSCert, c.TLSKey, c.TLSCA)
		if err != nil {
			return nil, err
		}
		opts = append(opts, network.WithTransportCredentials(creds))
	}
	return opts, nil
}

// OpenStore opens the acceptor store selected by the configuration.
func (c *Config) OpenStore() (storage.Store, error) {
	switch c.Store {
	case "", StoreMemory:
		return storage.NewMemory(), nil
	case StoreFile:
		s, err := storage.OpenFile(c.StorePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreEtcd:
		s, err := storage.DialEtcd(c.EtcdEndpoints, c.EtcdPrefix, c.UID, c.EtcdDialTimeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", c.Store)
}

// ProfilePath returns the path of a profile in the output directory, or an empty string
// if the profile is disabled.
func (c *Config) ProfilePath(enabled bool, name string) string {
	if !enabled {
		return ""
	}
	return filepath.Join(c.Output, fmt.Sprintf("%s.%s", c.UID, name))
}

// Validate returns all problems with the configuration.
func (c *Config) Validate() error {
	var err error
	if c.UID == "" {
		err = multierr.Append(err, errors.New("uid is required"))
	} else if _, ok := c.Peers[c.UID]; !ok {
		err = multierr.Append(err, fmt.Errorf("uid %q is not among the peers", c.UID))
	}
	for uid, addr := range c.Peers {
		if uid == "" || addr == "" {
			err = multierr.Append(err, fmt.Errorf("peer %q has no address or no uid", uid))
		}
	}
	if c.Listen == "" && c.Peers[c.UID] == "" {
		err = multierr.Append(err, errors.New("no address to listen on"))
	}
	if c.Leader != "" {
		if _, ok := c.Peers[c.Leader]; !ok {
			err = multierr.Append(err, fmt.Errorf("leader %q is not among the peers", c.Leader))
		}
	}
	if q := c.QuorumSize(); q < 1 || q > len(c.Peers) {
		err = multierr.Append(err, fmt.Errorf("quorum %d is invalid for %d peers", q, len(c.Peers)))
	}
	if c.HeartbeatPeriod < 0 || c.HeartbeatTimeout < 0 || c.PrepareWindow < 0 {
		err = multierr.Append(err, errors.New("durations must not be negative"))
	}
	for _, d := range []time.Duration{c.PollInterval, c.ResendInterval, c.BackoffMax, c.SaveTimeout, c.RetryDelay} {
		if d < 0 {
			err = multierr.Append(err, fmt.Errorf("interval %v must not be negative", d))
		}
	}
	if c.BackoffMultiplier != 0 && c.BackoffMultiplier < 1 {
		err = multierr.Append(err, fmt.Errorf("backoff multiplier %v must be at least 1", c.BackoffMultiplier))
	}
	if (c.TLSCert != "" || c.TLSKey != "" || c.TLSCA != "") && (c.TLSCert == "" || c.TLSKey == "" || c.TLSCA == "") {
		err = multierr.Append(err, errors.New("tls requires a certificate, a key and a CA"))
	}
	if c.HeartbeatPeriod > 0 && c.HeartbeatTimeout > 0 && c.HeartbeatTimeout <= c.HeartbeatPeriod {
		err = multierr.Append(err, fmt.Errorf("heartbeat timeout %v must exceed the period %v", c.HeartbeatTimeout, c.HeartbeatPeriod))
	}
	switch c.Store {
	case "", StoreMemory:
	case StoreFile:
		if c.StorePath == "" {
			err = multierr.Append(err, errors.New("file store requires a path"))
		}
	case StoreEtcd:
		if len(c.EtcdEndpoints) == 0 {
			err = multierr.Append(err, errors.New("etcd store requires endpoints"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Output == "" && (c.CPUProfile || c.MemProfile || c.Trace || c.FgprofProfile) {
		err = multierr.Append(err, errors.New("profiling requires an output directory"))
	}
	return err
}
