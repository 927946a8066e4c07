package loop

import "time"

// Timer is a callback scheduled with [Loop.AfterFunc].
type Timer struct {
	l      *Loop
	id     uint64
	native bool
	armed  bool
}

// AfterFunc runs fn on the loop once d has elapsed. A zero or negative d
// queues fn behind the tasks already posted. Delays longer than zero use the
// event loop's timer heap. An armed timer counts as pending work.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{l: l}
	if fn == nil {
		return t
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return t
	}
	l.pending++
	t.armed = true
	l.mu.Unlock()

	fire := func() {
		open := l.admit()
		l.mu.Lock()
		armed := t.armed
		t.armed = false
		l.mu.Unlock()
		if !armed {
			return
		}
		if !open {
			l.release(false)
			return
		}
		l.enter(fn)
		l.settled()
	}

	if d <= 0 {
		if err := l.el.Submit(fire); err != nil {
			t.Stop()
		}
		return t
	}
	id, err := l.js.SetTimeout(fire, int(d/time.Millisecond))
	if err != nil {
		t.Stop()
		return t
	}
	l.mu.Lock()
	t.id, t.native = id, true
	l.mu.Unlock()
	return t
}

// Stop cancels the timer. It reports whether the call kept fn from running.
func (t *Timer) Stop() bool {
	l := t.l
	l.mu.Lock()
	if !t.armed {
		l.mu.Unlock()
		return false
	}
	t.armed = false
	id, native := t.id, t.native
	l.pending--
	l.cond.Broadcast()
	l.mu.Unlock()

	if native {
		l.js.ClearTimeout(id)
	}
	return true
}
