// Package engine implements the four replay engines: NES, Genesis, N64, and
// Atari 2600. Each engine owns a set of GPIO pins (periph.io/x/periph's
// conn/gpio abstraction) and a single serialized Run loop that plays back
// queued controller frames onto those pins until the shared mode word
// leaves the engine's replay state.
//
// Real silicon dispatches pin-change and timer-alarm interrupts from a
// single-priority vector table, so no ISR ever preempts another. Here, one
// goroutine per watched pin blocks in WaitForEdge and posts an edge onto
// that pin's own unbuffered channel; the engine's Run loop selects over all
// of them, and because only one select case fires at a time, concurrent
// edges are handled one after another. Timers (the latch
// filter, the Genesis inter-frame alarm) are armed from inside Run and
// delivered back into the same select as another case, so the only
// goroutine that ever touches engine state is the one running Run.
package engine

import (
	"context"
	"time"

	"periph.io/x/periph/conn/gpio"

	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/curated"
	"github.com/bigbass1997/veritas/internal/mode"
)

// Pins is a marker interface implemented by each console's pin bundle
// (NESPins, GenesisPins, N64Pins, A2600Pins). Engine.Initialize type-asserts
// its argument to the bundle it expects; a mismatched bundle is a caller
// bug, not a runtime condition to recover from.
type Pins interface {
	isPins()
}

// Engine is implemented by each of the four replay engines.
type Engine interface {
	// Initialize programs GPIO direction on pins and primes the engine's
	// staging registers. pins must be the concrete Pins type the engine
	// expects.
	Initialize(pins Pins) error

	// Run blocks, replaying queued frames onto the engine's pins, until
	// ctx is cancelled or sys.Mode leaves the engine's own replay mode.
	// On return the engine must have released its pins and left the
	// console lines in a neutral state.
	Run(ctx context.Context, sys *core.System) error
}

// edge is what a pin watcher goroutine posts: which logical pin changed,
// and when. id is engine-private (e.g. a port index or a named role); it is
// never interpreted by this file.
type edge struct {
	id int
	at time.Time
}

// watchPin runs pin.WaitForEdge in a loop, posting an edge for every
// transition until ctx is cancelled. It is the "ISR" for one pin: a pure
// producer into ch, never touching engine state directly.
func watchPin(ctx context.Context, pin gpio.PinIn, id int, ch chan<- edge) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !pin.WaitForEdge(100 * time.Millisecond) {
			// timeout, not a real edge; loop to re-check ctx without
			// blocking forever on a pin that never changes again (e.g.
			// replay ended while this watcher was parked).
			continue
		}
		select {
		case ch <- edge{id: id, at: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

// modeLeft reports whether sys's mode has moved away from own, the signal
// every engine's Run loop polls for at each frame boundary to know it
// should stop.
func modeLeft(sys *core.System, own mode.Mode) bool {
	return sys.Mode.Load() != own
}

// neutralLevel is the active-low released level used whenever an output pin
// represents "button not pressed."
const neutralLevel = gpio.High

// engineErrf builds a curated error tagged Configuration, used for the pin
// setup/type-assertion failures an engine's Initialize can hit. These are
// caller bugs (wrong Pins bundle, a pin that refuses to change direction),
// not conditions a replay ever recovers from.
func engineErrf(pattern string, values ...interface{}) error {
	return curated.CategoryErrorf(curated.Configuration, pattern, values...)
}
