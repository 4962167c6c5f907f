// Package alert implements the runtime's panic facility: the single choke
// point the "programmer bug" class errors in spec.md §7.1 flow through. In
// this module those are handle table exhaustion, registration after Run and
// a full timer ring; the simulated EEPROM queue is unbounded and the I2C
// drivers have no busy state, so neither raises an alert.
//
// Recoverable records the condition and continues; Fatal never returns.
package alert

import (
	"fmt"
	"log/slog"
)

// Sink receives the formatted message for a Recoverable or Fatal alert
// before any further action is taken. The zero Sink (nil) logs via the
// default slog logger.
type Sink func(msg string)

var (
	recoverableSink Sink
	fatalSink       Sink
	disableWatchdog func()
)

// SetRecoverableSink overrides where Recoverable alerts are reported.
func SetRecoverableSink(s Sink) { recoverableSink = s }

// SetFatalSink overrides where Fatal alerts are reported before halting.
func SetFatalSink(s Sink) { fatalSink = s }

// SetWatchdogDisable registers the hook Fatal calls, if any, before
// halting. This exists so a debug build can disable the hardware watchdog
// and leave the device attached to a debugger instead of letting the
// watchdog reset it mid-inspection. asx.Runtime.SetWatchdog registers the
// watchdog's DisableForDebug here in every build; there is no separate
// release-build path that leaves it unset.
func SetWatchdogDisable(f func()) { disableWatchdog = f }

// Recoverable reports cond == false as a transient alert and continues.
// Use for conditions spec.md classifies as recoverable: observed-but-not-
// fatal invariant deviations (e.g. checksum mismatch on persisted state,
// which is handled by reformatting with defaults rather than halting).
func Recoverable(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if recoverableSink != nil {
		recoverableSink(msg)
		return
	}
	slog.Warn("asx: recoverable alert", "msg", msg)
}

// FatalIf calls Fatal if cond is false. FatalIf never returns when cond is
// false.
func FatalIf(cond bool, format string, args ...any) {
	if !cond {
		Fatal(format, args...)
	}
}

// Fatal reports a programmer-bug class error and halts. On a hosted
// target this panics (the closest Go has to the "spin to trigger a
// watchdog reset" behavior: nothing recovers it, so the process halts);
// on a bare-metal tamago target a panic has the same effect, since there
// is no OS underneath to catch it and resume. Fatal never returns.
func Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if fatalSink != nil {
		fatalSink(msg)
	} else {
		slog.Error("asx: fatal alert", "msg", msg)
	}
	if disableWatchdog != nil {
		disableWatchdog()
	}
	panic("asx: fatal: " + msg)
}
