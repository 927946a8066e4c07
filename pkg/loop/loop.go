// Package loop provides the single-threaded cooperative executor every shim
// component runs on, and a Future type whose continuations are scheduled on
// that executor.
//
// The executor is a go-eventloop [goeventloop.Loop]: tasks are submitted to
// it, delayed callbacks are its JS timers, and futures are its chained
// promises. Loop adds a gate in front of it so that callers can step the
// loop deterministically with [Loop.Drain]; outside Drain or [Loop.Run],
// submitted work waits.
//
// A task posted with [Loop.Post] runs on a later turn, never inside the call
// that posted it. Tasks never interleave: within one task, state checked and
// then set cannot be observed half-updated by another task.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	goeventloop "github.com/joeycumines/go-eventloop"

	"github.com/go-drift/embedshim/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

// Loop schedules callbacks to run one at a time in FIFO order.
// Post is safe for concurrent use; tasks run on the event loop goroutine
// while some caller is inside [Loop.Run] or [Loop.Drain].
type Loop struct {
	el     *goeventloop.Loop
	js     *goeventloop.JS
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	open    int // callers currently letting tasks through
	pending int // posted tasks, armed timers and scheduled continuations
	ran     int
	closed  bool

	drainMu   sync.Mutex
	inTask    atomic.Bool
	closeOnce sync.Once
}

// New creates a loop and starts its event loop goroutine. Nothing posted to
// it runs until Run or Drain is called.
func New() (*Loop, error) {
	el, err := goeventloop.New()
	if err != nil {
		return nil, err
	}
	js, err := goeventloop.NewJS(el)
	if err != nil {
		el.Shutdown(context.Background())
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{el: el, js: js, cancel: cancel, done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go el.Run(ctx)
	return l, nil
}

// EventLoop returns the underlying event loop, for binding script runtimes
// to it.
func (l *Loop) EventLoop() *goeventloop.Loop {
	return l.el
}

// Post schedules task for a later turn. Returns false if the loop is closed
// or task is nil.
func (l *Loop) Post(task func()) bool {
	if task == nil || !l.hold(1) {
		return false
	}
	if err := l.el.Submit(func() { l.run(task) }); err != nil {
		l.release(false)
		return false
	}
	return true
}

// InTask reports whether the caller is running inside a loop task.
func (l *Loop) InTask() bool {
	return l.inTask.Load()
}

// Pending returns the number of tasks, timers and continuations that have
// been scheduled and not yet run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Drain lets queued work run, including work scheduled while draining, until
// nothing is pending. Armed timers count as pending, so Drain waits for them
// to fire. It returns the number of callbacks run. Calling Drain from inside
// a task is a no-op.
func (l *Loop) Drain() int {
	if l.inTask.Load() {
		return 0
	}
	l.drainMu.Lock()
	defer l.drainMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	start := l.ran
	l.open++
	l.cond.Broadcast()
	for l.pending > 0 && !l.closed {
		l.cond.Wait()
	}
	l.open--
	return l.ran - start
}

// Run lets tasks run as they arrive until ctx is done or the loop is
// closed.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.open++
	l.cond.Broadcast()
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.open--
		l.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return nil
	}
}

// Close stops accepting tasks and shuts the event loop down. Work already
// queued is dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.cond.Broadcast()
		l.mu.Unlock()
		close(l.done)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		l.el.Shutdown(ctx)
		l.cancel()
	})
}

// hold counts n callbacks as pending. It fails once the loop is closed.
func (l *Loop) hold(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.pending += n
	return true
}

func (l *Loop) release(ran bool) {
	l.mu.Lock()
	l.pending--
	if ran {
		l.ran++
	}
	l.cond.Broadcast()
	l.mu.Unlock()
}

// admit blocks the event loop goroutine until a Drain or Run lets work
// through. It returns false once the loop is closed.
func (l *Loop) admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.open == 0 && !l.closed {
		l.cond.Wait()
	}
	return !l.closed
}

// run executes a held callback and releases it.
func (l *Loop) run(task func()) {
	if !l.admit() {
		l.release(false)
		return
	}
	l.enter(task)
	l.settled()
}

// settled releases a callback that has run once the microtask checkpoint
// after it is over, so promise reactions it triggered count as its work.
func (l *Loop) settled() {
	if err := l.el.Submit(func() { l.release(true) }); err != nil {
		l.release(true)
	}
}

func (l *Loop) enter(task func()) {
	l.inTask.Store(true)
	defer l.inTask.Store(false)
	defer errors.Recover("loop.task")
	task()
}
