// Command blinky demonstrates scenario S1: a repeating timer toggles a GPIO
// output pin once per period, driven entirely by a manually advanced
// simulated clock; it runs for ten periods, then logs the toggle and
// watchdog-kick counts and exits. Build with -tags tamago and swap the simhw
// clock/GPIO construction for a real board support package to run this on
// hardware; the Runtime and timer logic are identical either way.
package main

import (
	"context"
	"log"
	"time"

	"github.com/adarwoo/asx-go"
	"github.com/adarwoo/asx-go/drivers/simhw"
	"github.com/adarwoo/asx-go/reactor"
	"periph.io/x/periph/conn/gpio"
)

const blinkPeriod = 50 // ticks between toggles

func main() {
	rt := asx.New()
	clock := simhw.NewClock(rt.Reactor, rt.Timer)
	led := simhw.NewGPIO("led0")
	wd := simhw.NewWatchdog()
	rt.SetWatchdog(wd)

	level := gpio.Low
	hBlink := rt.Reactor.Register(func(uint32) {
		if level == gpio.Low {
			level = gpio.High
		} else {
			level = gpio.Low
		}
		led.Out(level)
	}, reactor.Low)

	rt.Timer.Arm(hBlink, rt.Timer.Now()+blinkPeriod, blinkPeriod, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	for i := 0; i < 10*blinkPeriod; i++ {
		clock.Tick()
		time.Sleep(time.Millisecond)
	}

	log.Printf("led0 toggled %d times, watchdog kicked %d times", led.Toggles(), wd.Kicks())
}
