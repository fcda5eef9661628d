package node

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyUID is returned when a node is created without a UID.
	ErrEmptyUID = errors.New("node UID must not be empty")
	// ErrInvalidClusterSize is returned when the cluster has no members.
	ErrInvalidClusterSize = errors.New("cluster size must be at least 1")
	// ErrInvalidQuorum is returned when the quorum size is outside [1, cluster size].
	ErrInvalidQuorum = errors.New("quorum size must be between 1 and the cluster size")
	// ErrInvalidHeartbeat is returned when the heartbeat period or timeout is not positive.
	ErrInvalidHeartbeat = errors.New("heartbeat period and timeout must be positive")
)

// Default timing parameters.
const (
	DefaultHeartbeatPeriod  = time.Second
	DefaultHeartbeatTimeout = 5 * time.Second
)

// Config holds the construction-time parameters of a node.
type Config struct {
	// UID identifies the node. It must be unique in the cluster, and it breaks ties between proposals.
	UID string
	// ClusterSize is the number of acceptors in the cluster.
	ClusterSize int
	// QuorumSize is the number of acceptors that must agree; see MajorityQuorum.
	QuorumSize int
	// HeartbeatPeriod is how often the leader sends heartbeats.
	HeartbeatPeriod time.Duration
	// HeartbeatTimeout is how long followers trust the leader without hearing a heartbeat.
	HeartbeatTimeout time.Duration
	// PrepareWindow suppresses leadership bids for this long after another node's prepare was seen.
	// Zero disables the suppression.
	PrepareWindow time.Duration
	// LeaderUID optionally seeds the node with a known leader.
	LeaderUID string
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// MajorityQuorum returns the smallest majority of clusterSize.
func MajorityQuorum(clusterSize int) int {
	return clusterSize/2 + 1
}

func (cfg *Config) setDefaults() {
	if cfg.HeartbeatPeriod == 0 {
		cfg.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
}

func (cfg Config) validate() error {
	switch {
	case cfg.UID == "":
		return ErrEmptyUID
	case cfg.ClusterSize < 1:
		return fmt.Errorf("%w: got %d", ErrInvalidClusterSize, cfg.ClusterSize)
	case cfg.QuorumSize < 1 || cfg.QuorumSize > cfg.ClusterSize:
		return fmt.Errorf("%w: got quorum %d of %d", ErrInvalidQuorum, cfg.QuorumSize, cfg.ClusterSize)
	case cfg.HeartbeatPeriod < 0 || cfg.HeartbeatTimeout < 0:
		return ErrInvalidHeartbeat
	}
	return nil
}
