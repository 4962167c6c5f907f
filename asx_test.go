package asx_test

import (
	"context"
	"testing"
	"time"

	"github.com/adarwoo/asx-go"
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/drivers/simhw"
	"github.com/adarwoo/asx-go/modbus"
	"github.com/adarwoo/asx-go/pending"
	"github.com/adarwoo/asx-go/reactor"
)

func TestRuntimeComposesReactorAndTimer(t *testing.T) {
	rt := asx.New()
	if rt.Reactor == nil || rt.Timer == nil {
		t.Fatal("New() did not populate both Reactor and Timer")
	}

	arbiter := rt.NewArbiter()
	if arbiter == nil {
		t.Fatal("NewArbiter() returned nil")
	}

	served := make(chan struct{}, 1)
	h := rt.Reactor.Register(func(uint32) {
		served <- struct{}{}
		arbiter.OnComplete(0)
	}, reactor.High)
	arbiter.SetCompletionCallback(h, func(pending.Status) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	arbiter.Request(h)

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("arbiter never dispatched the requestor")
	}
}

func TestRuntimeConstructsModbusMasterAndSlave(t *testing.T) {
	rt := asx.New()

	clock := simhw.NewClock(rt.Reactor, rt.Timer)
	cfg := drivers.UARTConfig{Baud: 1200, Width: 8, Stop: 1}
	masterUART := simhw.NewUART(rt.Reactor, rt.Timer, clock, cfg)
	slaveUART := simhw.NewUART(rt.Reactor, rt.Timer, clock, cfg)
	masterUART.Loopback(slaveUART)

	masterCT := simhw.NewCompareTimer(rt.Reactor, rt.Timer, clock)
	slaveCT := simhw.NewCompareTimer(rt.Reactor, rt.Timer, clock)

	master := rt.NewModbusMaster(masterUART, masterCT, modbus.NewFrame())
	if master == nil {
		t.Fatal("NewModbusMaster returned nil")
	}

	bank := &stubBank{}
	slave := rt.NewModbusSlave(slaveUART, slaveCT, modbus.NewFrame(), bank, 3)
	if slave == nil {
		t.Fatal("NewModbusSlave returned nil")
	}
}

func TestRuntimeSetWatchdogKicksAfterDispatch(t *testing.T) {
	rt := asx.New()
	wd := simhw.NewWatchdog()
	rt.SetWatchdog(wd)

	h := rt.Reactor.Register(func(uint32) {}, reactor.High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	rt.Reactor.Notify(h, 0)

	deadline := time.Now().Add(time.Second)
	for wd.Kicks() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if wd.Kicks() == 0 {
		t.Fatal("SetWatchdog did not wire the reactor's post-dispatch kick")
	}
}

type stubBank struct{}

func (stubBank) ReadHoldingRegisters(start, quantity uint16) ([]uint16, bool) {
	return make([]uint16, quantity), true
}

func (stubBank) WriteSingleRegister(addr, value uint16) bool { return true }
