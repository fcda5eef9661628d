package network

import (
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

type options struct {
	creds       credentials.TransportCredentials
	rateLimit   rate.Limit
	burst       int
	queueSize   int
	dialTimeout time.Duration
	retryDelay  time.Duration
	serverOpts  []grpc.ServerOption
}

func defaultOptions() options {
	return options{
		creds:       insecure.NewCredentials(),
		rateLimit:   rate.Inf,
		burst:       1,
		queueSize:   256,
		dialTimeout: 5 * time.Second,
		retryDelay:  100 * time.Millisecond,
	}
}

// Option configures a GRPC transport.
type Option func(*options)

// WithTransportCredentials sets the credentials used for both the server and the outgoing connections.
// The default is insecure.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return func(o *options) {
		o.creds = creds
	}
}

// WithRateLimit limits the number of messages per second sent to each peer.
func WithRateLimit(limit float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rate.Limit(limit)
		o.burst = burst
	}
}

// WithQueueSize sets the number of messages buffered for each peer.
// When the buffer is full, new messages are dropped.
func WithQueueSize(size int) Option {
	return func(o *options) {
		o.queueSize = size
	}
}

// WithDialTimeout sets the timeout for connecting to a peer.
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// WithRetryDelay sets how long to wait before reconnecting to a peer after a failure.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *options) {
		o.retryDelay = delay
	}
}

// WithServerOptions sets additional gRPC server options.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(o *options) {
		o.serverOpts = append(o.serverOpts, opts...)
	}
}
