package pending

import (
	"context"
	"testing"
	"time"

	"github.com/adarwoo/asx-go/reactor"
)

// TestServedInPriorityOrder checks that the first of three requestors finds
// the resource idle and is served at once, and that the two queued behind
// it are then served lowest-handle-index-first.
func TestServedInPriorityOrder(t *testing.T) {
	r := reactor.New()
	arb := New(r)

	var order []int
	served := make(chan struct{}, 3)

	var handles [3]reactor.Handle
	for i := 0; i < 3; i++ {
		i := i
		handles[i] = r.Register(func(uint32) {
			order = append(order, i)
			served <- struct{}{}
			arb.OnComplete(OK)
		}, reactor.High)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	arb.Request(handles[2])
	arb.Request(handles[0])
	arb.Request(handles[1])

	for i := 0; i < 3; i++ {
		select {
		case <-served:
		case <-time.After(time.Second):
			t.Fatalf("only %d of 3 requestors served", i)
		}
	}

	if len(order) != 3 || order[0] != 2 || order[1] != 0 || order[2] != 1 {
		t.Fatalf("service order = %v, want [2 0 1]", order)
	}
}

// TestOnlyOneInFlight ensures a second request while the resource is busy
// is queued, not served immediately.
func TestOnlyOneInFlight(t *testing.T) {
	r := reactor.New()
	arb := New(r)

	release := make(chan struct{})
	secondRan := make(chan struct{}, 1)

	hFirst := r.Register(func(uint32) {
		<-release
		arb.OnComplete(OK)
	}, reactor.High)
	hSecond := r.Register(func(uint32) {
		secondRan <- struct{}{}
	}, reactor.Low)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	arb.Request(hFirst)
	time.Sleep(20 * time.Millisecond) // let the first requestor start and block
	arb.Request(hSecond)

	select {
	case <-secondRan:
		t.Fatal("second requestor ran while the resource was busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-secondRan:
	case <-time.After(time.Second):
		t.Fatal("second requestor was never served after completion")
	}
}

// TestCompletionCallbackReceivesStatus checks that OnComplete's status
// reaches the requestor's registered completion callback.
func TestCompletionCallbackReceivesStatus(t *testing.T) {
	r := reactor.New()
	arb := New(r)

	gotStatus := make(chan Status, 1)
	h := r.Register(func(uint32) {
		arb.OnComplete(ErrNACK)
	}, reactor.High)
	arb.SetCompletionCallback(h, func(s Status) { gotStatus <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	arb.Request(h)

	select {
	case s := <-gotStatus:
		if s != ErrNACK {
			t.Fatalf("completion status = %v, want ErrNACK", s)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback was never invoked")
	}
}
