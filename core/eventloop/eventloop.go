// Package eventloop serializes the handling of events.
//
// Every inbound message, client request and timer tick of a replica is added to a
// single event loop, so the handlers run one at a time and the consensus state
// needs no locking.
package eventloop

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/relab/paxos/logging"
)

type handlerOpts struct {
	runInAddEvent bool
	priority      bool
}

// HandlerOption sets configuration options for event handlers.
type HandlerOption func(*handlerOpts)

// Prioritize instructs the event loop to run the handler before handlers that do not have priority.
func Prioritize() HandlerOption {
	return func(ho *handlerOpts) {
		ho.priority = true
	}
}

// UnsafeRunInAddEvent instructs the event loop to run the handler as a part of AddEvent.
// Because AddEvent could be running outside the event loop, it is unsafe.
// Only thread-safe state can be used from a handler using this option.
func UnsafeRunInAddEvent() HandlerOption {
	return func(ho *handlerOpts) {
		ho.runInAddEvent = true
	}
}

// EventHandler processes an event.
type EventHandler func(event any)

type handler struct {
	callback EventHandler
	opts     handlerOpts
}

type ticker struct {
	interval time.Duration
	callback func(time.Time) any
}

type startTickerEvent struct {
	tickerID int
}

// EventLoop accepts events of any type and executes the handlers registered for the type.
type EventLoop struct {
	logger logging.Logger
	eventQ queue

	mut sync.Mutex // protects the following:

	ctx context.Context // set by Run

	handlers map[reflect.Type][]handler

	tickers  map[int]*ticker
	tickerID int
}

// New returns a new event loop with the requested buffer size.
// When the buffer is full, the oldest event is dropped.
func New(logger logging.Logger, bufferSize uint) *EventLoop {
	return &EventLoop{
		logger:   logger,
		ctx:      context.Background(),
		eventQ:   newQueue(bufferSize),
		handlers: make(map[reflect.Type][]handler),
		tickers:  make(map[int]*ticker),
	}
}

// Register registers a handler for events of type T and returns its id.
func Register[T any](el *EventLoop, handlerFunc func(T), opts ...HandlerOption) int {
	return el.registerHandler(typeOf[T](), opts, func(event any) {
		handlerFunc(event.(T))
	})
}

// Unregister removes the handler for events of type T with the given id.
func Unregister[T any](el *EventLoop, id int) {
	el.mut.Lock()
	defer el.mut.Unlock()
	handlers := el.handlers[typeOf[T]()]
	if id < len(handlers) {
		handlers[id].callback = nil
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (el *EventLoop) registerHandler(t reflect.Type, opts []HandlerOption, callback EventHandler) int {
	h := handler{callback: callback}
	for _, opt := range opts {
		opt(&h.opts)
	}

	el.mut.Lock()
	defer el.mut.Unlock()

	handlers := el.handlers[t]

	// search for a free slot for the handler
	i := 0
	for ; i < len(handlers); i++ {
		if handlers[i].callback == nil {
			break
		}
	}

	if i == len(handlers) {
		handlers = append(handlers, h)
	} else {
		handlers[i] = h
	}
	el.handlers[t] = handlers
	return i
}

// AddEvent adds an event to the event queue.
// Handlers registered with UnsafeRunInAddEvent run before AddEvent returns.
func (el *EventLoop) AddEvent(event any) {
	if event == nil {
		return
	}
	el.processEvent(event, true)
	if el.eventQ.push(event) {
		el.logger.Warn("event queue is full: dropped the oldest event")
	}
}

// Context returns the context passed to Run, or context.Background if Run has not been called.
func (el *EventLoop) Context() context.Context {
	el.mut.Lock()
	defer el.mut.Unlock()
	return el.ctx
}

func (el *EventLoop) setContext(ctx context.Context) {
	el.mut.Lock()
	defer el.mut.Unlock()
	el.ctx = ctx
}

// Run runs the event loop until ctx is canceled.
// Events that are queued when ctx is canceled are handled before Run returns.
func (el *EventLoop) Run(ctx context.Context) {
	el.setContext(ctx)

loop:
	for {
		event, ok := el.eventQ.pop()
		if !ok {
			select {
			case <-el.eventQ.ready():
				continue loop
			case <-ctx.Done():
				break loop
			}
		}
		el.handle(event)
	}

	l := el.eventQ.len()
	for i := 0; i < l; i++ {
		event, ok := el.eventQ.pop()
		if !ok {
			break
		}
		if _, ok := event.(startTickerEvent); ok {
			continue
		}
		el.processEvent(event, false)
	}
	el.logger.Debug("event loop stopped")
}

func (el *EventLoop) handle(event any) {
	if e, ok := event.(startTickerEvent); ok {
		el.startTicker(e.tickerID)
		return
	}
	el.processEvent(event, false)
}

var handlerListPool = newPool(func() []EventHandler { return make([]EventHandler, 0, 10) })

// processEvent dispatches the event to the registered handlers.
func (el *EventLoop) processEvent(event any, runningInAddEvent bool) {
	t := reflect.TypeOf(event)

	// Handlers are copied so that they can run after unlocking the mutex.
	priorityList := handlerListPool.Get()
	handlerList := handlerListPool.Get()

	el.mut.Lock()
	for _, h := range el.handlers[t] {
		if h.opts.runInAddEvent != runningInAddEvent || h.callback == nil {
			continue
		}
		if h.opts.priority {
			priorityList = append(priorityList, h.callback)
		} else {
			handlerList = append(handlerList, h.callback)
		}
	}
	el.mut.Unlock()

	for _, h := range priorityList {
		h(event)
	}
	handlerListPool.Put(priorityList[:0])

	for _, h := range handlerList {
		h(event)
	}
	handlerListPool.Put(handlerList[:0])
}

// AddTicker adds a ticker with the specified interval and returns the ticker id.
// The event returned by callback is added to the event loop on every tick,
// starting with one tick as soon as the ticker is started.
// The ticker is not started before the event loop is running.
func (el *EventLoop) AddTicker(interval time.Duration, callback func(tick time.Time) (event any)) int {
	el.mut.Lock()
	id := el.tickerID
	el.tickerID++
	el.tickers[id] = &ticker{
		interval: interval,
		callback: callback,
	}
	el.mut.Unlock()

	// The ticker inherits the context of the event loop,
	// so it must be started from the run loop.
	el.eventQ.push(startTickerEvent{id})
	return id
}

// startTicker starts the ticker with the given id. It stops when the context of Run is canceled.
func (el *EventLoop) startTicker(id int) {
	el.mut.Lock()
	defer el.mut.Unlock()
	t, ok := el.tickers[id]
	if !ok {
		return
	}
	go el.runTicker(el.ctx, t)
}

func (el *EventLoop) runTicker(ctx context.Context, t *ticker) {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	if ctx.Err() != nil {
		return
	}

	el.AddEvent(t.callback(time.Now()))

	for {
		select {
		case now := <-tick.C:
			el.AddEvent(t.callback(now))
		case <-ctx.Done():
			return
		}
	}
}
