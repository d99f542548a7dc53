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

const n64LogTag = "n64"

// n64SymbolDuration is the width of one Joybus bit-cell. The real PIO
// program runs this at a clock divider tuned for microcontroller timing;
// this is a host-safe stand-in that preserves the encoding's shape (each
// data bit becomes four symbols) without claiming real-world accuracy.
const n64SymbolDuration = 1 * time.Microsecond

// n64SampleDelay is how long readByte waits after a falling edge before
// sampling the line, matching the PIO program's fixed wait-then-sample
// decode (a "1" bit's short low pulse has already released by the sample
// point; a "0" bit's long low pulse has not).
const n64SampleDelay = 2 * time.Microsecond

const n64EdgeTimeout = 50 * time.Millisecond

// n64StopBit is the fixed 32-bit symbol pattern sent after every response,
// signalling "no more data" to the console.
const n64StopBit uint32 = 0x3FFFFFFF

// N64Pins is a single bidirectional data line — the real hardware drives
// both directions through one PIO-controlled pin.
type N64Pins struct {
	Data gpio.PinIO
}

func (N64Pins) isPins() {}

// encodeJoybus expands one byte into the Joybus 1-wire encoding: each bit
// becomes four symbols, 0b0111 (a short low pulse) for a 1 bit, 0b0001 (a
// long low pulse) for a 0 bit, packed MSB-first into a 32-bit word.
func encodeJoybus(data byte) uint32 {
	var out uint32
	for i := 0; i < 8; i++ {
		out <<= 4
		if data&0x80 != 0 {
			out |= 0b0111
		} else {
			out |= 0b0001
		}
		data <<= 1
	}
	return out
}

// N64Engine implements the Joybus command/response loop: the console polls
// with a single command byte, the engine replies per spec §4.1.3's command
// table.
type N64Engine struct {
	pins N64Pins
}

var _ Engine = (*N64Engine)(nil)

func (e *N64Engine) Initialize(pins Pins) error {
	p, ok := pins.(N64Pins)
	if !ok {
		return engineErrf("N64: Initialize called with %T, want N64Pins", pins)
	}
	e.pins = p
	if err := e.pins.Data.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return engineErrf("N64: configure data pin: %v", err)
	}
	return nil
}

func (e *N64Engine) Run(ctx context.Context, sys *core.System) error {
	q, ok := sys.QueueFor(protocol.SystemN64)
	if !ok {
		return engineErrf("N64: no input queue registered")
	}

	for {
		if ctx.Err() != nil {
			e.shutdown(sys)
			return ctx.Err()
		}
		if modeLeft(sys, mode.ReplayN64) {
			e.shutdown(sys)
			return nil
		}

		cmd, ok := e.readByte(ctx)
		if !ok {
			continue
		}

		switch cmd {
		case 0xFF, 0x01:
			frame := q.DequeueOrNeutral()
			if tr, ok := sys.Replay.NextTransition(); ok {
				_ = tr // N64 has no reset line modeled; transitions are recorded but not actuated.
			} else if ended := sys.Replay.Advance(); ended {
				sys.Mode.Store(mode.Idle)
				logger.Log(n64LogTag, "replay ended")
			}
			e.writeBytes(frame[:4])

		case 0x00:
			e.writeBytes([]byte{0x05, 0x00, 0x02})

		case 0x02, 0x03:
			time.Sleep(150 * time.Microsecond)

		default:
			// unrecognised command: the console will time out and retry,
			// matching the original's silent no-op arm.
		}
	}
}

func (e *N64Engine) readByte(ctx context.Context) (byte, bool) {
	var b byte
	for i := 0; i < 8; i++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if !e.pins.Data.WaitForEdge(n64EdgeTimeout) {
			return 0, false
		}
		time.Sleep(n64SampleDelay)
		b <<= 1
		if e.pins.Data.Read() == gpio.High {
			b |= 1
		}
	}
	return b, true
}

func (e *N64Engine) writeWord(word uint32) {
	for i := 31; i >= 0; i-- {
		if (word>>uint(i))&1 != 0 {
			e.pins.Data.Out(gpio.High)
		} else {
			e.pins.Data.Out(gpio.Low)
		}
		time.Sleep(n64SymbolDuration)
	}
}

func (e *N64Engine) writeBytes(data []byte) {
	for _, b := range data {
		e.writeWord(encodeJoybus(b))
	}
	e.writeWord(n64StopBit)
	e.pins.Data.In(gpio.PullUp, gpio.FallingEdge)
}

func (e *N64Engine) shutdown(sys *core.System) {
	sys.EnterIdle()
	logger.Log(n64LogTag, "stopped")
}
