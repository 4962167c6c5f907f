package simhw

import (
	"errors"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
)

// GPIO is a simulated output-only pin satisfying drivers.GPIO
// (periph.io's gpio.PinOut). It records every level write and a toggle
// count, which is exactly what scenario S1 (blinky) asserts against.
type GPIO struct {
	name    string
	level   gpio.Level
	toggles int
}

// NewGPIO constructs a simulated pin, initially Low.
func NewGPIO(name string) *GPIO {
	return &GPIO{name: name, level: gpio.Low}
}

func (p *GPIO) String() string { return p.name }

func (p *GPIO) Halt() error { return nil }

// Out sets the pin level, counting a toggle whenever it actually changes.
func (p *GPIO) Out(l gpio.Level) error {
	if l != p.level {
		p.toggles++
	}
	p.level = l
	return nil
}

// PWM is not supported by this simulated pin.
func (p *GPIO) PWM(duty gpio.Duty, freq physic.Frequency) error {
	return errors.New("simhw: GPIO does not support PWM")
}

// Level returns the pin's current simulated level.
func (p *GPIO) Level() gpio.Level { return p.level }

// Toggles returns the number of level transitions observed so far.
func (p *GPIO) Toggles() int { return p.toggles }
