package tracelog_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/adarwoo/asx-go/cobs"
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/drivers/simhw"
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
	"github.com/adarwoo/asx-go/tracelog"
)

func TestFlushTransmitsOneFrameAtATimeViaIdleHook(t *testing.T) {
	r := reactor.New()
	w := timer.New(r)
	clock := simhw.NewClock(r, w)

	cfg := drivers.UARTConfig{Baud: 9600, Width: 8, Stop: 1}
	tx := simhw.NewUART(r, w, clock, cfg)
	rx := simhw.NewUART(r, w, clock, cfg)
	tx.Loopback(rx)

	h := tracelog.NewHandler(r, tx, slog.LevelInfo)
	r.SetIdleHook(h.Flush)

	received := make(chan []byte, 8)
	var frame []byte
	rxHandle := r.Register(func(arg uint32) {
		b := byte(arg)
		if b == 0 {
			done := append([]byte(nil), frame...)
			done = append(done, 0)
			received <- done
			frame = nil
			return
		}
		frame = append(frame, b)
	}, reactor.High)
	rx.OnCharacterReceived(rxHandle)

	logger := slog.New(h)

	logger.Info("boot", "build", 7)
	logger.Warn("low voltage")

	if got := h.Queued(); got != 2 {
		t.Fatalf("queued = %d before Run starts, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	var got [][]byte
	for i := 0; i < 4000 && len(got) < 2; i++ {
		clock.Tick()
		select {
		case f := <-received:
			got = append(got, f)
		default:
		}
	}
	if len(got) != 2 {
		t.Fatalf("received %d frames, want 2", len(got))
	}

	decoded0, ok := cobs.Decode(got[0])
	if !ok {
		t.Fatalf("frame 0 failed to decode: %x", got[0])
	}
	if string(decoded0) == "" {
		t.Fatal("frame 0 decoded to empty payload")
	}

	decoded1, ok := cobs.Decode(got[1])
	if !ok {
		t.Fatalf("frame 1 failed to decode: %x", got[1])
	}
	if string(decoded1) == "" {
		t.Fatal("frame 1 decoded to empty payload")
	}
}

func TestHandleDropsOldestWhenQueueIsFull(t *testing.T) {
	r := reactor.New()
	w := timer.New(r)
	clock := simhw.NewClock(r, w)
	cfg := drivers.UARTConfig{Baud: 9600, Width: 8, Stop: 1}
	tx := simhw.NewUART(r, w, clock, cfg)

	h := tracelog.NewHandler(r, tx, slog.LevelInfo)
	logger := slog.New(h)

	for i := 0; i < tracelog.MaxQueued+5; i++ {
		logger.Info("spam")
	}

	if got := h.Queued(); got != tracelog.MaxQueued {
		t.Fatalf("queued = %d, want capped at %d", got, tracelog.MaxQueued)
	}
	if got := h.Dropped(); got != 5 {
		t.Fatalf("dropped = %d, want 5", got)
	}
}

func TestEnabledRespectsConfiguredLevel(t *testing.T) {
	r := reactor.New()
	cfg := drivers.UARTConfig{Baud: 9600, Width: 8, Stop: 1}
	w := timer.New(r)
	clock := simhw.NewClock(r, w)
	tx := simhw.NewUART(r, w, clock, cfg)

	h := tracelog.NewHandler(r, tx, slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Info should not be enabled when the floor is Warn")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("Error should be enabled when the floor is Warn")
	}
}
