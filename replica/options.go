package replica

import "time"

type replicaOptions struct {
	resendInterval time.Duration
	pollInterval   time.Duration
	backoffMax     time.Duration
	backoffMul     float64
	eventBuffer    uint
	saveTimeout    time.Duration
	seed           int64
}

// DefaultBackoffMultiplier is the default growth factor of the delay after a rejected bid.
const DefaultBackoffMultiplier = 2

func newDefaultOpts() *replicaOptions {
	return &replicaOptions{
		backoffMul:  DefaultBackoffMultiplier,
		eventBuffer: 1024,
		saveTimeout: 5 * time.Second,
		seed:        time.Now().UnixNano(),
	}
}

// Option configures a Replica.
type Option func(*replicaOptions)

// WithResendInterval sets how often a leader repeats its accept request.
// The default is the heartbeat period.
func WithResendInterval(d time.Duration) Option {
	return func(ro *replicaOptions) {
		ro.resendInterval = d
	}
}

// WithPollInterval sets how often the liveness of the leader is checked.
// The default is the heartbeat period.
func WithPollInterval(d time.Duration) Option {
	return func(ro *replicaOptions) {
		ro.pollInterval = d
	}
}

// WithBackoff sets the growth factor and upper bound of the delay before a new
// leadership bid, after a bid was rejected. The default bound is the heartbeat timeout.
func WithBackoff(multiplier float64, max time.Duration) Option {
	return func(ro *replicaOptions) {
		ro.backoffMul = multiplier
		ro.backoffMax = max
	}
}

// WithEventBuffer sets the capacity of the event queue.
func WithEventBuffer(size uint) Option {
	return func(ro *replicaOptions) {
		ro.eventBuffer = size
	}
}

// WithSaveTimeout bounds the time spent saving the acceptor state.
func WithSaveTimeout(d time.Duration) Option {
	return func(ro *replicaOptions) {
		ro.saveTimeout = d
	}
}

// WithSeed seeds the randomized backoff.
func WithSeed(seed int64) Option {
	return func(ro *replicaOptions) {
		ro.seed = seed
	}
}
