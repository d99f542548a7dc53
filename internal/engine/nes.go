package engine

import (
	"context"
	"time"

	"periph.io/x/periph/conn/gpio"

	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
	"github.com/bigbass1997/veritas/internal/queue"
	"github.com/bigbass1997/veritas/internal/replaystate"
)

const nesLogTag = "nes"

// NES pin-level timing constants. clockFilter and the reset pulse widths
// are host-safe stand-ins for the original firmware's cycle-counted
// delays.
const (
	nesClockFilter      = 2 * time.Microsecond
	nesInitialResetHold = 50 * time.Millisecond
	nesInitialResetSettle = 5 * time.Millisecond
	nesSoftResetHold    = 33 * time.Millisecond
	nesSoftResetSettle  = 80 * time.Microsecond
	nesPollInterval     = 5 * time.Millisecond

	nesOverreadBit = 1
)

// NESPins is the pin bundle a NESEngine expects from Initialize: a shared
// latch line, one clock and one serial-out line per port, and a
// console-reset output.
type NESPins struct {
	Latch  gpio.PinIn
	Clock  [2]gpio.PinIn
	Serial [2]gpio.PinOut
	Reset  gpio.PinOut
}

func (NESPins) isPins() {}

// NESEngine replays a two-port NES controller stream: a shared latch pulse
// commits the next queued frame, and each port's clock line shifts that
// frame's bits out MSB-first with a fixed overread bit once the register is
// exhausted.
type NESEngine struct {
	pins NESPins

	workingInput [2]byte
	frameInput   [2]byte
}

var _ Engine = (*NESEngine)(nil)

// Initialize programs pin direction and primes the staging registers with
// the neutral frame; Run loads the first queued frame when it starts.
func (e *NESEngine) Initialize(pins Pins) error {
	p, ok := pins.(NESPins)
	if !ok {
		return engineErrf("NES: Initialize called with %T, want NESPins", pins)
	}
	e.pins = p

	if err := e.pins.Latch.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return engineErrf("NES: configure latch pin: %v", err)
	}
	for i, clk := range e.pins.Clock {
		if err := clk.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
			return engineErrf("NES: configure clock pin %d: %v", i, err)
		}
	}
	for i, ser := range e.pins.Serial {
		if err := ser.Out(gpio.High); err != nil {
			return engineErrf("NES: configure serial pin %d: %v", i, err)
		}
	}
	if err := e.pins.Reset.Out(gpio.Low); err != nil {
		return engineErrf("NES: configure reset pin: %v", err)
	}

	e.frameInput = [2]byte{0xFF, 0xFF}
	e.workingInput = e.frameInput
	return nil
}

// Run replays queued frames until mode leaves ReplayNes.
func (e *NESEngine) Run(ctx context.Context, sys *core.System) error {
	q, ok := sys.QueueFor(protocol.SystemNes)
	if !ok {
		return engineErrf("NES: no input queue registered")
	}

	if sys.Replay.UseInitialReset() {
		e.pins.Reset.Out(gpio.High)
		time.Sleep(nesInitialResetHold)
		e.pins.Reset.Out(gpio.Low)
		time.Sleep(nesInitialResetSettle)
	}

	frame := q.DequeueOrNeutral()
	copy(e.frameInput[:], frame)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	latchCh := make(chan edge)
	clockCh := [2]chan edge{make(chan edge), make(chan edge)}
	go watchPin(watchCtx, e.pins.Latch, 0, latchCh)
	go watchPin(watchCtx, e.pins.Clock[0], 0, clockCh[0])
	go watchPin(watchCtx, e.pins.Clock[1], 1, clockCh[1])

	poll := time.NewTicker(nesPollInterval)
	defer poll.Stop()

	var alarmActive bool
	var alarmC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			e.shutdown(sys)
			return ctx.Err()

		case <-latchCh:
			e.workingInput = e.frameInput
			for i, ser := range e.pins.Serial {
				if e.workingInput[i]&0x80 != 0 {
					ser.Out(gpio.High)
				} else {
					ser.Out(gpio.Low)
				}
			}
			if !alarmActive {
				alarmActive = true
				timer := time.NewTimer(time.Duration(sys.Replay.LatchFilterUs()) * time.Microsecond)
				alarmC = timer.C
			}

		case <-clockCh[0]:
			e.clock(0)
		case <-clockCh[1]:
			e.clock(1)

		case <-alarmC:
			alarmActive = false
			alarmC = nil
			if modeLeft(sys, mode.ReplayNes) {
				e.shutdown(sys)
				return nil
			}
			e.onFrameBoundary(sys, q)

		case <-poll.C:
			// Nothing new on the pins; still check for host-initiated
			// cancellation so an idle console doesn't strand this engine.
		}

		if modeLeft(sys, mode.ReplayNes) {
			e.shutdown(sys)
			return nil
		}
	}
}

func (e *NESEngine) clock(port int) {
	e.workingInput[port] <<= 1
	e.workingInput[port] |= nesOverreadBit
	time.Sleep(nesClockFilter)
	if e.workingInput[port]&0x80 != 0 {
		e.pins.Serial[port].Out(gpio.High)
	} else {
		e.pins.Serial[port].Out(gpio.Low)
	}
}

// onFrameBoundary applies a due transition if one exists; otherwise it
// loads the next queued frame and advances the replay cursor, matching the
// original firmware's frame-boundary alarm handler exactly: a transition
// consumes this alarm cycle on its own, without also advancing index_cur.
func (e *NESEngine) onFrameBoundary(sys *core.System, q *queue.Queue) {
	if tr, ok := sys.Replay.NextTransition(); ok {
		e.applyTransition(sys, tr)
		return
	}

	frame := q.DequeueOrNeutral()
	copy(e.frameInput[:], frame)

	if ended := sys.Replay.Advance(); ended {
		sys.Mode.Store(mode.Idle)
		logger.Log(nesLogTag, "replay ended")
	}
}

func (e *NESEngine) applyTransition(sys *core.System, tr replaystate.Transition) {
	switch tr.Kind {
	case replaystate.SoftReset:
		e.pins.Reset.Out(gpio.High)
		time.Sleep(nesSoftResetHold)
		e.pins.Reset.Out(gpio.Low)
		time.Sleep(nesSoftResetSettle)
		logger.Log(nesLogTag, "soft reset applied")
	default:
		// PowerReset and Unsupported are no-ops, matching the original
		// firmware's unhandled match arm.
	}
}

func (e *NESEngine) shutdown(sys *core.System) {
	e.pins.Reset.Out(gpio.Low)
	sys.EnterIdle()
	logger.Log(nesLogTag, "stopped")
}
