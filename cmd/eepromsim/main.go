// Command eepromsim demonstrates scenario S6: a wear-leveled counter
// persists 130 increments across four 64-count banks, then recovers the
// same logical count from a freshly constructed Counter against the same
// backing page, modeling a power cycle.
package main

import (
	"log"

	"github.com/adarwoo/asx-go/drivers/simhw"
	"github.com/adarwoo/asx-go/eeprom"
)

func main() {
	q := simhw.NewEEPROMQueue(nil)
	page := simhw.NewEEPROMPage(64)

	counter := eeprom.NewCounter(q, page, 0)
	counter.LoadFromPage()
	log.Printf("blank device: count = %d", counter.Count())

	const increments = 130
	for i := 0; i < increments; i++ {
		counter.Increment()
		q.Drain()
	}
	log.Printf("after %d increments: count = %d", increments, counter.Count())

	reloaded := eeprom.NewCounter(q, page, 0)
	reloaded.LoadFromPage()
	log.Printf("after simulated power cycle: count = %d", reloaded.Count())
}
