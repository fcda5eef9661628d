package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/wire"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	deliverMethod = "/paxos.Transport/Deliver"
	idKey         = "id"
)

type deliverer interface {
	deliver(stream grpc.ServerStream) error
}

// Each node keeps one client stream open to every peer. Messages are sent as
// wrapperspb.BytesValue holding the wire encoding of the message.
var transportDesc = grpc.ServiceDesc{
	ServiceName: "paxos.Transport",
	HandlerType: (*deliverer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName: "Deliver",
		Handler: func(srv any, stream grpc.ServerStream) error {
			return srv.(deliverer).deliver(stream)
		},
		ClientStreams: true,
	}},
	Metadata: "paxos/transport",
}

// GRPC is a Transport that sends messages over gRPC.
type GRPC struct {
	logger  logging.Logger
	uid     string
	handler Handler
	opts    options

	server *grpc.Server
	lis    net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mut   sync.Mutex
	peers map[string]*peer
}

type peer struct {
	uid     string
	addr    string
	queue   chan []byte
	limiter *rate.Limiter

	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

// NewGRPC returns a transport for the node with the given UID.
// Received messages are passed to handler.
func NewGRPC(uid string, handler Handler, logger logging.Logger, opts ...Option) *GRPC {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GRPC{
		logger:  logger,
		uid:     uid,
		handler: handler,
		opts:    o,
		ctx:     ctx,
		cancel:  cancel,
		peers:   make(map[string]*peer),
	}
}

// Listen starts accepting messages on addr.
func (t *GRPC) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("network: listen on %s: %w", addr, err)
	}
	t.lis = lis
	t.server = grpc.NewServer(append([]grpc.ServerOption{grpc.Creds(t.opts.creds)}, t.opts.serverOpts...)...)
	t.server.RegisterService(&transportDesc, t)
	go func() {
		if err := t.server.Serve(lis); err != nil {
			t.logger.Errorf("gRPC server stopped: %v", err)
		}
	}()
	t.logger.Infof("listening on %s", lis.Addr())
	return nil
}

// Addr returns the address the transport listens on, or nil if Listen has not been called.
func (t *GRPC) Addr() net.Addr {
	if t.lis == nil {
		return nil
	}
	return t.lis.Addr()
}

// Connect adds the given peers, mapping UIDs to addresses.
// Connections are established in the background when the first message is sent.
func (t *GRPC) Connect(peers map[string]string) {
	t.mut.Lock()
	defer t.mut.Unlock()
	for uid, addr := range peers {
		if uid == t.uid {
			continue
		}
		if _, ok := t.peers[uid]; ok {
			continue
		}
		p := &peer{
			uid:     uid,
			addr:    addr,
			queue:   make(chan []byte, t.opts.queueSize),
			limiter: rate.NewLimiter(t.opts.rateLimit, t.opts.burst),
		}
		t.peers[uid] = p
		t.wg.Add(1)
		go t.runPeer(p)
	}
}

func (t *GRPC) Send(toUID string, msg paxos.Message) {
	t.mut.Lock()
	p, ok := t.peers[toUID]
	t.mut.Unlock()
	if !ok {
		t.logger.Warnf("dropped %v: unknown peer %q", msg, toUID)
		return
	}
	t.enqueue(p, msg)
}

func (t *GRPC) Broadcast(msg paxos.Message) {
	t.mut.Lock()
	peers := make([]*peer, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	t.mut.Unlock()
	for _, p := range peers {
		t.enqueue(p, msg)
	}
}

func (t *GRPC) enqueue(p *peer, msg paxos.Message) {
	b, err := wire.Marshal(msg)
	if err != nil {
		t.logger.Errorf("failed to encode %v: %v", msg, err)
		return
	}
	select {
	case p.queue <- b:
	default:
		t.logger.Debugf("queue to %s is full: dropped %v", p.uid, msg)
	}
}

func (t *GRPC) runPeer(p *peer) {
	defer t.wg.Done()
	defer p.close()
	for {
		var b []byte
		select {
		case <-t.ctx.Done():
			return
		case b = <-p.queue:
		}
		if err := p.limiter.Wait(t.ctx); err != nil {
			return
		}
		if err := t.send(p, b); err != nil {
			t.logger.Debugf("send to %s failed: %v", p.uid, err)
			p.reset()
			select {
			case <-time.After(t.opts.retryDelay):
			case <-t.ctx.Done():
				return
			}
		}
	}
}

func (t *GRPC) send(p *peer, b []byte) error {
	if p.stream == nil {
		if err := t.connect(p); err != nil {
			return err
		}
	}
	return p.stream.SendMsg(wrapperspb.Bytes(b))
}

func (t *GRPC) connect(p *peer) error {
	if p.conn == nil {
		ctx, cancel := context.WithTimeout(t.ctx, t.opts.dialTimeout)
		defer cancel()
		conn, err := grpc.DialContext(ctx, p.addr,
			grpc.WithTransportCredentials(t.opts.creds),
			grpc.WithBlock(),
		)
		if err != nil {
			return fmt.Errorf("dial %s: %w", p.addr, err)
		}
		p.conn = conn
	}
	// embed own UID to allow the peer to identify messages from this node
	md := metadata.New(map[string]string{idKey: t.uid})
	ctx := metadata.NewOutgoingContext(t.ctx, md)
	stream, err := p.conn.NewStream(ctx, &transportDesc.Streams[0], deliverMethod)
	if err != nil {
		return err
	}
	p.stream = stream
	return nil
}

func (p *peer) reset() {
	if p.stream != nil {
		_ = p.stream.CloseSend()
		p.stream = nil
	}
}

func (p *peer) close() {
	p.reset()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (t *GRPC) deliver(stream grpc.ServerStream) error {
	from, err := peerUID(stream.Context())
	if err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	for {
		var in wrapperspb.BytesValue
		if err := stream.RecvMsg(&in); err != nil {
			if errors.Is(err, io.EOF) {
				return stream.SendMsg(&emptypb.Empty{})
			}
			return err
		}
		msg, err := wire.Unmarshal(in.GetValue())
		if err != nil {
			t.logger.Infof("bad message from %s: %v", from, err)
			continue
		}
		if msg.Sender() != from {
			t.logger.Warnf("%s sent a message on behalf of %s", from, msg.Sender())
			continue
		}
		t.handler(msg)
	}
}

// peerUID returns the UID embedded in the metadata of an incoming stream.
func peerUID(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("metadata not available")
	}
	v := md.Get(idKey)
	if len(v) < 1 || v[0] == "" {
		return "", errors.New("id field not present")
	}
	return v[0], nil
}

// Close stops the server and closes all connections.
func (t *GRPC) Close() error {
	t.cancel()
	var err error
	if t.server != nil {
		t.server.Stop()
		// Stop closes the listener
		if cerr := t.lis.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	t.wg.Wait()
	return err
}
