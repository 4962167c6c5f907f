package simhw

// Watchdog is a simulated hardware watchdog satisfying drivers.Watchdog. It
// counts kicks and records whether DisableForDebug has been used, for tests
// asserting the reactor's dispatch loop kicks it after every handler, and
// for cmd/ examples wired up through Runtime.SetWatchdog.
type Watchdog struct {
	kicks    int
	disabled bool
}

// NewWatchdog constructs a simulated watchdog.
func NewWatchdog() *Watchdog { return &Watchdog{} }

func (w *Watchdog) Kick() { w.kicks++ }

func (w *Watchdog) DisableForDebug() { w.disabled = true }

// Kicks returns the number of times Kick has been called.
func (w *Watchdog) Kicks() int { return w.kicks }

// Disabled reports whether DisableForDebug has been called.
func (w *Watchdog) Disabled() bool { return w.disabled }
