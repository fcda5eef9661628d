package eventloop

import "context"

// ContextUntil returns a context that is canceled as soon as an event of type T is added
// to the event loop, or when the event loop stops.
func ContextUntil[T any](el *EventLoop) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(el.Context())

	id := Register(el, func(T) {
		cancel()
	}, Prioritize(), UnsafeRunInAddEvent())

	return ctx, func() {
		Unregister[T](el, id)
		cancel()
	}
}
