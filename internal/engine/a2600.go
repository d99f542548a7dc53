package engine

import (
	"context"
	"time"

	"periph.io/x/periph/conn/gpio"

	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
)

const a2600LogTag = "a2600"

// A2600 frame bit layout (active-low, matching the NES/Genesis convention
// used elsewhere in this module): bit 0 Up, bit 1 Down, bit 2 Left, bit 3
// Right, bit 4 Fire. Paddle potentiometer input is an explicit non-goal —
// see GenesisPins-style documentation on the engine below.
const (
	a2600BitUp = iota
	a2600BitDown
	a2600BitLeft
	a2600BitRight
	a2600BitFire
)

// A2600PortPins is one joystick port's direct digital lines. The 2600 has
// no latch/clock shift register: SWCHA/INPT are held steady and sampled by
// the console's own RIOT timer, so this engine just writes the current
// frame's bits to these pins on every queue pop.
type A2600PortPins struct {
	Up    gpio.PinOut
	Down  gpio.PinOut
	Left  gpio.PinOut
	Right gpio.PinOut
	Fire  gpio.PinOut
}

// A2600Pins bundles both joystick ports.
type A2600Pins struct {
	Port [2]A2600PortPins
}

func (A2600Pins) isPins() {}

// A2600Engine implements the joystick half of the 2600 controller port: no
// edges to watch, just a paced write of the current frame's bits on a
// latch-filter-equivalent interval. Paddle support is not implemented; a
// movie relying on paddle input will see constant neutral pot values.
type A2600Engine struct {
	pins A2600Pins
}

var _ Engine = (*A2600Engine)(nil)

func (e *A2600Engine) Initialize(pins Pins) error {
	p, ok := pins.(A2600Pins)
	if !ok {
		return engineErrf("A2600: Initialize called with %T, want A2600Pins", pins)
	}
	e.pins = p

	for i, port := range e.pins.Port {
		for name, out := range map[string]gpio.PinOut{"up": port.Up, "down": port.Down, "left": port.Left, "right": port.Right, "fire": port.Fire} {
			if err := out.Out(gpio.High); err != nil {
				return engineErrf("A2600: configure %s pin on port %d: %v", name, i, err)
			}
		}
	}
	return nil
}

func (e *A2600Engine) Run(ctx context.Context, sys *core.System) error {
	q, ok := sys.QueueFor(protocol.SystemA2600)
	if !ok {
		return engineErrf("A2600: no input queue registered")
	}

	interval := time.Duration(sys.Replay.LatchFilterUs()) * time.Microsecond
	if interval <= 0 {
		interval = nesClockFilter
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown(sys)
			return ctx.Err()
		case <-ticker.C:
			if modeLeft(sys, mode.ReplayA2600) {
				e.shutdown(sys)
				return nil
			}
			e.onFrameBoundary(sys, q)
			if modeLeft(sys, mode.ReplayA2600) {
				e.shutdown(sys)
				return nil
			}
		}
	}
}

func (e *A2600Engine) onFrameBoundary(sys *core.System, q interface {
	DequeueOrNeutral() []byte
}) {
	if tr, ok := sys.Replay.NextTransition(); ok {
		_ = tr // No reset line modeled for this engine; transitions are recorded but not actuated.
		return
	}

	frame := q.DequeueOrNeutral()
	e.applyFrame(frame[0], frame[1])

	if ended := sys.Replay.Advance(); ended {
		sys.Mode.Store(mode.Idle)
		logger.Log(a2600LogTag, "replay ended")
	}
}

// applyFrame writes port 0's joystick byte and port 1's joystick byte to
// their respective pin sets, matching the NES engine's one-byte-per-port
// convention rather than mirroring a single byte onto both ports.
func (e *A2600Engine) applyFrame(p0, p1 byte) {
	for i, b := range [2]byte{p0, p1} {
		port := e.pins.Port[i]
		port.Up.Out(bitLevel(b, a2600BitUp))
		port.Down.Out(bitLevel(b, a2600BitDown))
		port.Left.Out(bitLevel(b, a2600BitLeft))
		port.Right.Out(bitLevel(b, a2600BitRight))
		port.Fire.Out(bitLevel(b, a2600BitFire))
	}
}

func bitLevel(b byte, bit int) gpio.Level {
	if b>>uint(bit)&1 != 0 {
		return gpio.High
	}
	return gpio.Low
}

func (e *A2600Engine) shutdown(sys *core.System) {
	sys.EnterIdle()
	logger.Log(a2600LogTag, "stopped")
}
