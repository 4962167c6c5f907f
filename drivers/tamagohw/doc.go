// Package tamagohw is the //go:build tamago real-hardware backend for
// drivers.UART, drivers.CompareTimer, and the periodic hardware tick,
// built on TamaGo's bare-metal ARM/NXP runtime. drivers/simhw is the
// hosted counterpart every test and cmd/ example runs against by default;
// tamagohw only compiles with GOOS=tamago GOARCH=arm.
//
// GPIO and I2C need no adapter here: drivers.GPIO/drivers.I2C are already
// periph.io's own gpio.PinOut/i2c.Bus, so any periph.io-compatible board
// support package backs those two contracts directly, without going
// through this package.
package tamagohw
