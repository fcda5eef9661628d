package eventloop_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relab/paxos/core/eventloop"
	"github.com/relab/paxos/logging"
)

type testEvent int

func TestHandler(t *testing.T) {
	el := eventloop.New(logging.New("test"), 10)
	c := make(chan any)
	eventloop.Register(el, func(event testEvent) {
		c <- event
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go el.Run(ctx)

	want := testEvent(42)
	el.AddEvent(want)

	var event any
	select {
	case <-ctx.Done():
		t.Fatal("timed out")
	case event = <-c:
	}

	e, ok := event.(testEvent)
	if !ok {
		t.Fatalf("wrong type for event: got: %T, want: %T", event, want)
	}
	if e != want {
		t.Fatalf("wrong value for event: got: %v, want: %v", e, want)
	}
}

func TestPrioritize(t *testing.T) {
	type eventData struct {
		event   any
		handler bool
	}

	el := eventloop.New(logging.New("test"), 10)
	c := make(chan eventData)
	eventloop.Register(el, func(event testEvent) {
		c <- eventData{event: event, handler: true}
	})
	eventloop.Register(el, func(event testEvent) {
		c <- eventData{event: event, handler: false}
	}, eventloop.Prioritize())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go el.Run(ctx)

	el.AddEvent(testEvent(42))

	for i := 0; i < 2; i++ {
		var data eventData
		select {
		case <-ctx.Done():
			t.Fatal("timed out")
		case data = <-c:
		}
		if i == 0 && data.handler {
			t.Fatalf("expected prioritized handler to run first")
		}
		if i == 1 && !data.handler {
			t.Fatalf("expected standard handler to run second")
		}
	}
}

// drain handles the queued events and returns.
func drain(el *eventloop.EventLoop) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	el.Run(ctx)
}

func TestUnregister(t *testing.T) {
	el := eventloop.New(logging.New("test"), 10)
	count := 0
	id := eventloop.Register(el, func(testEvent) { count++ })

	el.AddEvent(testEvent(1))
	drain(el)
	eventloop.Unregister[testEvent](el, id)
	el.AddEvent(testEvent(1))
	drain(el)

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
}

func TestRunDrainsQueue(t *testing.T) {
	el := eventloop.New(logging.New("test"), 10)
	var got []testEvent
	eventloop.Register(el, func(event testEvent) { got = append(got, event) })
	for i := 1; i <= 3; i++ {
		el.AddEvent(testEvent(i))
	}
	drain(el)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("handled %v, want [1 2 3]", got)
	}
}

func TestTicker(t *testing.T) {
	if os.Getenv("GITHUB_ACTIONS") != "" {
		t.SkipNow()
		return
	}

	el := eventloop.New(logging.New("test"), 10)
	var count atomic.Int64
	eventloop.Register(el, func(event testEvent) {
		count.Add(int64(event))
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go el.Run(ctx)

	rate := 100 * time.Millisecond
	el.AddTicker(rate, func(_ time.Time) (_ any) { return testEvent(1) })

	// sleep a little less than 1 second to ensure we get the expected amount of ticks
	time.Sleep(time.Second - rate/4)
	if expected := int64(time.Second / rate); count.Load() != expected {
		t.Fatalf("ticker fired %d times in 1 second, expected %d", count.Load(), expected)
	}

	cancel()
	time.Sleep(rate / 2)
	old := count.Load()
	time.Sleep(rate)
	if old != count.Load() {
		t.Fatal("ticker was not stopped with the event loop")
	}
}

func BenchmarkEventLoopWithPrioritize(b *testing.B) {
	el := eventloop.New(logging.Nop(), 100)

	for i := 0; i < 100; i++ {
		eventloop.Register(el, func(event testEvent) {
			if event != 1 {
				panic("unexpected value")
			}
		}, eventloop.Prioritize())
	}

	for i := 0; i < b.N; i++ {
		el.AddEvent(testEvent(1))
		drain(el)
	}
}
