// Package asx is the runtime composition root: it aggregates one
// reactor.Reactor and one timer.Wheel into a single Runtime value built in
// main, with helper constructors for the pending-request arbiters and
// Modbus state machines built on top of them. cmd/blinky builds on this
// package plus drivers/simhw; cmd/modbussim wires the reactor, timer and
// modbus packages directly, and cmd/eepromsim uses eeprom with
// drivers/simhw, neither going through this package.
package asx

import (
	"context"

	"github.com/adarwoo/asx-go/alert"
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/modbus"
	"github.com/adarwoo/asx-go/pending"
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

// Runtime is the single composed value a program builds in main: one
// Reactor, one Wheel bound to it, and the collaborators registered against
// both during setup.
type Runtime struct {
	Reactor *reactor.Reactor
	Timer   *timer.Wheel
}

// New constructs a Runtime. Every driver and state machine the program
// needs must be constructed against Reactor/Timer before Run is called,
// since registration is fatal once the reactor's dispatch loop starts.
func New() *Runtime {
	r := reactor.New()
	w := timer.New(r)
	return &Runtime{Reactor: r, Timer: w}
}

// Run delegates to the reactor's main loop; it never returns except when
// ctx is canceled.
func (rt *Runtime) Run(ctx context.Context) {
	rt.Reactor.Run(ctx)
}

// SetWatchdog wires w into the Runtime: the reactor's dispatch loop kicks
// it after every handler (spec.md §4.B step 3), and alert.Fatal disables it
// before halting so a debug session can inspect the panic without the
// watchdog resetting the device underneath it.
func (rt *Runtime) SetWatchdog(w drivers.Watchdog) {
	rt.Reactor.SetWatchdogKick(w.Kick)
	alert.SetWatchdogDisable(w.DisableForDebug)
}

// NewArbiter constructs a pending.Arbiter bound to this Runtime's reactor.
func (rt *Runtime) NewArbiter() *pending.Arbiter {
	return pending.New(rt.Reactor)
}

// NewModbusMaster constructs a modbus.MasterSM bound to this Runtime,
// deriving T1.5/T3.5/T4.0 timing from uart's configured byte duration.
func (rt *Runtime) NewModbusMaster(uart drivers.UART, ct drivers.CompareTimer, dg modbus.Datagram) *modbus.MasterSM {
	timing := modbus.ComputeTiming(uart)
	return modbus.NewMasterSM(rt.Reactor, rt.Timer, uart, ct, dg, timing)
}

// NewModbusSlave constructs a modbus.SlaveSM bound to this Runtime,
// listening at address and serving bank.
func (rt *Runtime) NewModbusSlave(uart drivers.UART, ct drivers.CompareTimer, dg modbus.Datagram, bank modbus.RegisterBank, address byte) *modbus.SlaveSM {
	timing := modbus.ComputeTiming(uart)
	return modbus.NewSlaveSM(rt.Reactor, rt.Timer, uart, ct, dg, timing, bank, address)
}
