package reactor

import (
	"context"
	"testing"
	"time"
)

// waitFor polls cond until it is true or the deadline expires, failing t if
// it never becomes true. Tests in this package drive a live Run loop on a
// goroutine, so some synchronization against the loop's own pace is
// unavoidable; this keeps it bounded instead of sleeping a fixed duration.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestPriorityMonotonicity is P1: for a set of simultaneously pending
// handles, dispatch order equals sort-by-handle-index ascending.
func TestPriorityMonotonicity(t *testing.T) {
	r := New()
	var order []int

	done := make(chan struct{}, 1)
	var hHi, hMid, hLo Handle
	hHi = r.Register(func(uint32) { order = append(order, 0) }, High)
	hMid = r.Register(func(uint32) { order = append(order, 1) }, High)
	hLo = r.Register(func(uint32) {
		order = append(order, 2)
		done <- struct{}{}
	}, High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Notify out of priority order; dispatch must still run ascending by
	// handle index since all three share the High class.
	r.Notify(hLo, 0)
	r.Notify(hHi, 0)
	r.Notify(hMid, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	want := []int{0, 1, 2}
	waitFor(t, func() bool { return len(order) == 3 })
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestArgumentFreshness is P2: notify(h, a) then notify(h, b) before
// dispatch observes b.
func TestArgumentFreshness(t *testing.T) {
	r := New()
	seen := make(chan uint32, 1)
	h := r.Register(func(arg uint32) { seen <- arg }, High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Both notifications land before Run is started, so the dispatch loop
	// must still only observe the most recent argument.
	r.Notify(h, 1)
	r.Notify(h, 2)
	go r.Run(ctx)

	select {
	case arg := <-seen:
		if arg != 2 {
			t.Fatalf("handler observed %d, want 2", arg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

// TestHighBeforeLow is S2: a high-priority handler registered before a
// low-priority one runs first when both are notified from the same pass.
func TestHighBeforeLow(t *testing.T) {
	r := New()
	var order []string
	done := make(chan struct{}, 1)

	hHi := r.Register(func(uint32) { order = append(order, "hi") }, High)
	hLo := r.Register(func(uint32) {
		order = append(order, "lo")
		done <- struct{}{}
	}, Low)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.NotifyFromISR(hLo)
	r.NotifyFromISR(hHi)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	if len(order) != 2 || order[0] != "hi" || order[1] != "lo" {
		t.Fatalf("order = %v, want [hi lo]", order)
	}
}

// TestNotifyFromISRObservesNullArgument confirms the documented contract:
// NotifyFromISR delivers a zero argument, even after an earlier Notify
// stored a non-zero one.
func TestNotifyFromISRObservesNullArgument(t *testing.T) {
	r := New()
	seen := make(chan uint32, 1)
	h := r.Register(func(arg uint32) { seen <- arg }, High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Notify(h, 0xAA)
	select {
	case arg := <-seen:
		if arg != 0xAA {
			t.Fatalf("first dispatch observed %d, want 0xAA", arg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first dispatch")
	}

	r.NotifyFromISR(h)
	select {
	case arg := <-seen:
		if arg != 0 {
			t.Fatalf("NotifyFromISR delivered argument %d, want 0 (null)", arg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

// TestRegisterAfterRunIsFatal models spec.md §4.B: registering after the
// loop has started is a fatal assertion.
func TestRegisterAfterRunIsFatal(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	r.SetIdleHook(func() { close1(started) })
	go r.Run(ctx)
	<-started

	defer func() {
		if recover() == nil {
			t.Fatal("Register after Run did not panic")
		}
	}()
	r.Register(func(uint32) {}, High)
}

// close1 closes ch if it is not already closed, tolerating the idle hook
// firing more than once before the test observes it.
func close1(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// TestHandleTableExhaustion: registering past the point where the two
// allocation ends meet is fatal.
func TestHandleTableExhaustion(t *testing.T) {
	r := New()
	for i := 0; i < MaxHandles; i++ {
		func() {
			defer func() { recover() }()
			r.Register(func(uint32) {}, High)
		}()
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on handle table exhaustion")
		}
	}()
	r.Register(func(uint32) {}, High)
}

// TestYieldReEnqueuesSelf checks that a handler calling Yield causes its own
// handle to be notified again rather than running the callback reentrantly.
func TestYieldReEnqueuesSelf(t *testing.T) {
	r := New()
	var calls int
	done := make(chan struct{}, 1)

	r.Register(func(arg uint32) {
		calls++
		if calls < 3 {
			r.Yield(arg + 1)
			return
		}
		done <- struct{}{}
	}, High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// self-notify to kick off the first pass
	h := Handle(0)
	go r.Run(ctx)
	r.Notify(h, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for yield chain to complete")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

// TestWatchdogKickedAfterEveryHandler checks that the dispatch loop calls
// the installed watchdog hook once per handler invocation, never batching
// or skipping a kick.
func TestWatchdogKickedAfterEveryHandler(t *testing.T) {
	r := New()
	kicks := make(chan struct{}, 8)
	r.SetWatchdogKick(func() { kicks <- struct{}{} })

	h := r.Register(func(uint32) {}, High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	for i := 0; i < 3; i++ {
		r.Notify(h, 0)
		select {
		case <-kicks:
		case <-time.After(time.Second):
			t.Fatalf("no watchdog kick observed after dispatch %d", i)
		}
	}
}
