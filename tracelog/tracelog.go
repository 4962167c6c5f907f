// Package tracelog implements the tracing facility: a log/slog.Handler
// that frames each record with COBS and queues it for transmission over a
// drivers.UART, without ever letting a log call block on UART
// availability. Flush, installed as the reactor's idle hook, is the only
// place queued frames actually leave: logging from deep inside a handler
// is always non-blocking, the same property alert.Fatal and the core
// operations themselves rely on.
package tracelog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adarwoo/asx-go/cobs"
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/reactor"
)

// MaxQueued bounds the number of framed records buffered awaiting
// transmission. Once full, Handle drops the oldest queued frame rather
// than grow unboundedly or block: a tracing backlog must never be allowed
// to starve the device it is meant to be diagnosing.
const MaxQueued = 32

// Handler is a log/slog.Handler that frames records for a byte-oriented
// UART sink.
type Handler struct {
	mu     sync.Mutex
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string

	uart    drivers.UART
	queue   [][]byte
	sending bool
	dropped int

	sendDone reactor.Handle
}

// NewHandler constructs a Handler transmitting over uart. r must not have
// started its Run loop yet, since this registers a reactor handle.
func NewHandler(r *reactor.Reactor, uart drivers.UART, level slog.Leveler) *Handler {
	h := &Handler{uart: uart, level: level}
	h.sendDone = r.Register(h.onSendComplete, reactor.Low)
	uart.OnSendComplete(h.sendDone)
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s", r.Level, r.Message)
	for _, group := range h.groups {
		fmt.Fprintf(&buf, " [%s]", group)
	}
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, " %s=%v", a.Key, a.Value)
		return true
	})

	framed := cobs.Encode(buf.Bytes())

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) >= MaxQueued {
		h.queue = h.queue[1:]
		h.dropped++
	}
	h.queue = append(h.queue, framed)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &Handler{uart: h.uart, level: h.level, sendDone: h.sendDone}
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	n.groups = h.groups
	return n
}

func (h *Handler) WithGroup(name string) slog.Handler {
	n := &Handler{uart: h.uart, level: h.level, sendDone: h.sendDone, attrs: h.attrs}
	n.groups = append(append([]string{}, h.groups...), name)
	return n
}

// Flush transmits the oldest queued frame if the UART is idle. Installed
// as the reactor's idle hook via Reactor.SetIdleHook; a no-op with nothing
// queued or a send already in flight.
func (h *Handler) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sending || len(h.queue) == 0 {
		return
	}
	next := h.queue[0]
	h.queue = h.queue[1:]
	h.sending = true
	h.uart.Send(next)
}

func (h *Handler) onSendComplete(uint32) {
	h.mu.Lock()
	h.sending = false
	h.mu.Unlock()
}

// Dropped returns the number of frames discarded because the queue was
// full when Handle was called.
func (h *Handler) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Queued returns the number of frames currently waiting for Flush.
func (h *Handler) Queued() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}
