package loop

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLoop_PostRunsOnLaterTurn(t *testing.T) {
	l := newLoop(t)
	var order []string

	l.Post(func() {
		order = append(order, "first")
		l.Post(func() { order = append(order, "third") })
		order = append(order, "second")
	})
	if len(order) != 0 {
		t.Fatal("task ran inside Post")
	}

	if n := l.Drain(); n != 2 {
		t.Errorf("Drain ran %d tasks, want 2", n)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoop_NothingRunsOutsideDrain(t *testing.T) {
	l := newLoop(t)
	ran := make(chan struct{}, 1)
	l.Post(func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("task ran without Drain or Run")
	case <-time.After(20 * time.Millisecond):
	}
	if got := l.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
	l.Drain()
	if got := l.Pending(); got != 0 {
		t.Errorf("Pending() after Drain = %d, want 0", got)
	}
}

func TestLoop_DrainInsideTaskIsNoop(t *testing.T) {
	l := newLoop(t)
	var nested int
	l.Post(func() { nested = l.Drain() })
	l.Drain()
	if nested != 0 {
		t.Errorf("nested Drain = %d, want 0", nested)
	}
}

func TestLoop_PanickingTaskDoesNotStopLoop(t *testing.T) {
	l := newLoop(t)
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Drain()
	if !ran {
		t.Error("task after panic did not run")
	}
	if l.InTask() {
		t.Error("InTask should be false after drain")
	}
}

func TestLoop_ClosedRejectsPost(t *testing.T) {
	l := newLoop(t)
	l.Close()
	if l.Post(func() {}) {
		t.Error("Post on closed loop should return false")
	}
	if l.Post(nil) {
		t.Error("Post(nil) should return false")
	}
	if n := l.Drain(); n != 0 {
		t.Errorf("Drain on closed loop ran %d tasks", n)
	}
}

func TestLoop_Run(t *testing.T) {
	l := newLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()

	got := make(chan int, 1)
	l.Post(func() { got <- 42 })
	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("got %d", v)
		}
	case <-ctx.Done():
		t.Fatal("task never ran")
	}

	l.Close()
	<-done
}

func TestLoop_AfterFuncOrdersWithPostedTasks(t *testing.T) {
	l := newLoop(t)
	var order []string
	l.Post(func() { order = append(order, "task") })
	l.AfterFunc(0, func() { order = append(order, "timer") })
	l.Post(func() { order = append(order, "later") })

	l.Drain()
	if diff := cmp.Diff([]string{"task", "timer", "later"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoop_DrainWaitsForDelayedTimer(t *testing.T) {
	l := newLoop(t)
	fired := false
	l.AfterFunc(10*time.Millisecond, func() { fired = true })

	l.Drain()
	if !fired {
		t.Error("Drain returned before the timer fired")
	}
}

func TestTimer_Stop(t *testing.T) {
	l := newLoop(t)
	fired := false
	timers := []*Timer{
		l.AfterFunc(0, func() { fired = true }),
		l.AfterFunc(time.Hour, func() { fired = true }),
	}
	for i, tm := range timers {
		if !tm.Stop() {
			t.Errorf("timer %d: Stop() = false, want true", i)
		}
		if tm.Stop() {
			t.Errorf("timer %d: second Stop() = true", i)
		}
	}
	if got := l.Pending(); got != 0 {
		t.Errorf("Pending() = %d after stopping every timer", got)
	}
	l.Drain()
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFuture_ContinuationsInOrder(t *testing.T) {
	l := newLoop(t)
	f := NewFuture[int](l)
	var got []int
	f.Then(func(v int) { got = append(got, v) })
	f.Then(func(v int) { got = append(got, v*10) })

	if !f.Resolve(3) {
		t.Fatal("first Resolve should succeed")
	}
	if f.Resolve(4) {
		t.Error("second Resolve should be ignored")
	}
	if len(got) != 0 {
		t.Fatal("continuations ran inside Resolve")
	}
	l.Drain()
	if diff := cmp.Diff([]int{3, 30}, got); diff != "" {
		t.Errorf("continuations mismatch (-want +got):\n%s", diff)
	}
}

func TestFuture_ResolvedInsideTask(t *testing.T) {
	l := newLoop(t)
	f := NewFuture[string](l)
	var order []string
	f.Then(func(v string) { order = append(order, "then:"+v) })
	l.Post(func() {
		f.Resolve("ok")
		order = append(order, "resolver")
	})
	l.Post(func() { order = append(order, "next") })

	l.Drain()
	want := []string{"resolver", "then:ok", "next"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFuture_ThenAfterResolveIsDeferred(t *testing.T) {
	l := newLoop(t)
	f := NewFuture[string](l)
	f.Resolve("ok")
	l.Drain()

	called := false
	f.Then(func(string) { called = true })
	if called {
		t.Fatal("Then ran inline")
	}
	l.Drain()
	if !called {
		t.Error("Then never ran")
	}
}

func TestFuture_UnresolvedDoesNotBlockDrain(t *testing.T) {
	l := newLoop(t)
	f := NewFuture[int](l)
	f.Then(func(int) { t.Error("continuation of unresolved future ran") })

	done := make(chan struct{})
	go func() {
		l.Drain()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Drain blocked on an unresolved future")
	}
}

func TestFuture_AwaitHonorsContext(t *testing.T) {
	l := newLoop(t)
	f := NewFuture[int](l)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Await(ctx); err == nil {
		t.Error("expected context error from unresolved future")
	}

	f.Resolve(7)
	v, err := f.Await(context.Background())
	if err != nil || v != 7 {
		t.Errorf("Await = %v, %v", v, err)
	}
}
