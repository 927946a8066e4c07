package loop

import (
	"context"
	"sync"

	goeventloop "github.com/joeycumines/go-eventloop"
)

// Future is a value that becomes available on some later turn. It is a typed
// view of a [goeventloop.Promise]: continuations registered with Then
// are the promise's fulfillment handlers and run on the owning loop, in
// registration order.
// A Future that is never resolved keeps its continuations pending forever;
// there is no failure channel.
type Future[T any] struct {
	loop    *Loop
	promise *goeventloop.Promise
	settle  func(any)

	mu       sync.Mutex
	resolved bool
	value    T
	waiting  int
	done     chan struct{}
}

// NewFuture creates an unresolved future bound to l.
func NewFuture[T any](l *Loop) *Future[T] {
	p, resolve, _ := l.js.NewPromise()
	return &Future[T]{
		loop:    l,
		promise: p,
		settle:  func(v any) { resolve(v) },
		done:    make(chan struct{}),
	}
}

// Resolve stores v and schedules every registered continuation. Only the
// first call has any effect; it returns false afterwards. Continuations never
// run inside Resolve.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.value = v
	waiting := f.waiting
	f.waiting = 0
	close(f.done)
	f.mu.Unlock()

	l := f.loop
	l.hold(waiting)
	if l.InTask() {
		f.settle(v)
	} else {
		// The promise settles on the event loop goroutine.
		l.Post(func() { f.settle(v) })
	}
	return true
}

// Then registers fn to run with the value. If the future is already resolved,
// fn is scheduled behind the current task rather than called inline.
func (f *Future[T]) Then(fn func(T)) {
	l := f.loop
	if !l.InTask() {
		l.Post(func() { f.Then(fn) })
		return
	}

	f.mu.Lock()
	if f.resolved {
		l.hold(1)
	} else {
		f.waiting++
	}
	f.mu.Unlock()

	f.promise.Then(func(any) any {
		v, _ := f.Value()
		l.run(func() { fn(v) })
		return nil
	}, nil)
}

// Value returns the resolved value, if any.
func (f *Future[T]) Value() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.resolved
}

// Done is closed once the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. It must not be
// called from a loop task: the loop would never get to resolve it.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, _ := f.Value()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
