package modbus

import (
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/timer"
)

// Timing holds the T1.5/T3.5/T4.0 windows a Modbus RTU arbiter measures
// between received characters, plus the master's reply timeout.
//
// T1.5 (1.5 character times) separates a frame's last character from the
// start of the inter-frame gap; T3.5 (3.5 character times) is the minimum
// silence that closes a frame and makes it eligible for validation; T4.0
// is the minimum silence a master additionally enforces before it may send
// its next request, so a slow slave's trailing bytes can never be
// mistaken for the start of a new transaction.
type Timing struct {
	T15          timer.Tick
	T35          timer.Tick
	T40          timer.Tick
	ReplyTimeout timer.Tick
}

// ComputeTiming derives T1.5/T3.5/T4.0 from u's configured byte duration,
// and sets a default reply timeout of 50 byte-times, ample headroom for a
// single slave's turnaround at any baud rate this runtime targets.
func ComputeTiming(u drivers.UART) Timing {
	return Timing{
		T15:          u.ByteDuration(1.5),
		T35:          u.ByteDuration(3.5),
		T40:          u.ByteDuration(4.0),
		ReplyTimeout: u.ByteDuration(50),
	}
}
