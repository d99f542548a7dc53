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

const genesisLogTag = "genesis"

// genesisInterFrameAlarm is the per-port SELECT inactivity timeout: if a
// port's SELECT line hasn't toggled for this long, that port's step counter
// resets. Port 0's firing additionally dequeues the next movie frame.
const genesisInterFrameAlarm = 1500 * time.Microsecond

// genesisMaxStep is the highest step calcState recognises; the original
// firmware's own comments flag anything past it as unreachable in
// practice, only ever logged if seen.
const genesisMaxStep = 20

// GenesisPortPins is one controller port's worth of output lines plus its
// SELECT input. B/A and C/Start are named for their 3-button roles; the
// unimplemented 6-button extension would reuse the same physical lines on
// steps 5-6 (see genesisLogTag's "6-button" log entry).
type GenesisPortPins struct {
	Select gpio.PinIn
	Up     gpio.PinOut
	Down   gpio.PinOut
	Left   gpio.PinOut
	Right  gpio.PinOut
	BA     gpio.PinOut
	CStart gpio.PinOut
}

// GenesisPins bundles both controller ports plus the shared console-reset
// output spec §4.1.2's Wiring line calls for (one line, same as the NES
// engine's Reset, not one per port).
type GenesisPins struct {
	Port  [2]GenesisPortPins
	Reset gpio.PinOut
}

func (GenesisPins) isPins() {}

type genesisState struct {
	up, down, left, right, ba, cstart gpio.Level
}

func genesisLevel(input byte, bit uint) gpio.Level {
	if input>>bit&1 != 0 {
		return gpio.High
	}
	return gpio.Low
}

// calcGenesisState computes the 6-line output state for port at the given
// step and SELECT edge polarity, from that port's latched 2-byte frame
// (standard 3-button byte, extended byte). Steps 5-6, the 6-button
// extension, fall through to the 3-button mapping: no hardware to validate
// the extended timing against, so this does not guess at it.
func calcGenesisState(latched [2]byte, step int, edgeHigh bool) genesisState {
	if step > genesisMaxStep {
		logger.Logf(genesisLogTag, "step %d past the known range, holding neutral", step)
		return genesisState{up: gpio.High, down: gpio.High, left: gpio.High, right: gpio.High, ba: gpio.High, cstart: gpio.High}
	}
	if step == 5 || step == 6 {
		logger.Log(genesisLogTag, "6-button extension not implemented, using 3-button mapping")
	}

	std := latched[0]
	if edgeHigh {
		return genesisState{
			cstart: genesisLevel(std, 0),
			ba:     genesisLevel(std, 1),
			right:  genesisLevel(std, 2),
			left:   genesisLevel(std, 3),
			down:   genesisLevel(std, 4),
			up:     genesisLevel(std, 5),
		}
	}
	return genesisState{
		cstart: genesisLevel(std, 6),
		ba:     genesisLevel(std, 7),
		right:  gpio.Low,
		left:   gpio.Low,
		down:   genesisLevel(std, 4),
		up:     genesisLevel(std, 5),
	}
}

func applyGenesisState(pins GenesisPortPins, st genesisState) {
	pins.Up.Out(st.up)
	pins.Down.Out(st.down)
	pins.Left.Out(st.left)
	pins.Right.Out(st.right)
	pins.BA.Out(st.ba)
	pins.CStart.Out(st.cstart)
}

// GenesisEngine replays a two-port 3-button Genesis/Mega Drive controller
// stream. Each port's SELECT edge applies a previously precomputed output
// state and immediately computes the next one, so the pin writes on the
// hot path never depend on a latch byte lookup at edge time.
type GenesisEngine struct {
	pins GenesisPins

	latched [2][2]byte
	steps   [2]int
	next    [2]genesisState
}

var _ Engine = (*GenesisEngine)(nil)

func (e *GenesisEngine) Initialize(pins Pins) error {
	p, ok := pins.(GenesisPins)
	if !ok {
		return engineErrf("Genesis: Initialize called with %T, want GenesisPins", pins)
	}
	e.pins = p

	for i, port := range e.pins.Port {
		if err := port.Select.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return engineErrf("Genesis: configure select pin %d: %v", i, err)
		}
		for name, out := range map[string]gpio.PinOut{"up": port.Up, "down": port.Down, "left": port.Left, "right": port.Right, "ba": port.BA, "cstart": port.CStart} {
			if err := out.Out(gpio.High); err != nil {
				return engineErrf("Genesis: configure %s pin on port %d: %v", name, i, err)
			}
		}
	}
	if err := e.pins.Reset.Out(gpio.Low); err != nil {
		return engineErrf("Genesis: configure reset pin: %v", err)
	}

	e.latched = [2][2]byte{{0xFF, 0xFF}, {0xFF, 0xFF}}
	e.steps = [2]int{0, 0}
	for p := range e.next {
		e.next[p] = calcGenesisState(e.latched[p], e.steps[p]+1, true)
	}
	return nil
}

func (e *GenesisEngine) Run(ctx context.Context, sys *core.System) error {
	q, ok := sys.QueueFor(protocol.SystemGenesis)
	if !ok {
		return engineErrf("Genesis: no input queue registered")
	}

	frame := q.DequeueOrNeutral()
	e.latched[0] = [2]byte{frame[0], frame[1]}
	e.latched[1] = [2]byte{frame[2], frame[3]}
	for p := range e.pins.Port {
		applyGenesisState(e.pins.Port[p], calcGenesisState(e.latched[p], 0, true))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	selectCh := [2]chan edge{make(chan edge), make(chan edge)}
	go watchPin(watchCtx, e.pins.Port[0].Select, 0, selectCh[0])
	go watchPin(watchCtx, e.pins.Port[1].Select, 1, selectCh[1])

	poll := time.NewTicker(nesPollInterval)
	defer poll.Stop()

	var alarm [2]*time.Timer
	var alarmC [2]<-chan time.Time
	for p := range alarm {
		alarm[p] = time.NewTimer(genesisInterFrameAlarm)
		alarmC[p] = alarm[p].C
	}
	defer func() {
		for _, t := range alarm {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			e.shutdown(sys)
			return ctx.Err()

		case <-selectCh[0]:
			e.onSelectEdge(0, alarm[0])
		case <-selectCh[1]:
			e.onSelectEdge(1, alarm[1])

		case <-alarmC[0]:
			e.onAlarm(0, sys, q)
			alarm[0].Reset(genesisInterFrameAlarm)
		case <-alarmC[1]:
			e.onAlarm(1, sys, q)
			alarm[1].Reset(genesisInterFrameAlarm)

		case <-poll.C:
		}

		if modeLeft(sys, mode.ReplayGenesis) {
			e.shutdown(sys)
			return nil
		}
	}
}

func (e *GenesisEngine) onSelectEdge(port int, alarm *time.Timer) {
	applyGenesisState(e.pins.Port[port], e.next[port])
	e.steps[port]++

	level := e.pins.Port[port].Select.Read() == gpio.High
	e.next[port] = calcGenesisState(e.latched[port], e.steps[port]+1, !level)

	alarm.Stop()
	alarm.Reset(genesisInterFrameAlarm)
}

// onAlarm fires when port's SELECT line has been idle past the inter-frame
// timeout. Port 0's firing is the one that advances the movie: it dequeues
// the next 4-byte frame (both ports' bytes at once, matching the wire
// layout) and applies the replay cursor exactly as the NES engine does.
func (e *GenesisEngine) onAlarm(port int, sys *core.System, q *queue.Queue) {
	e.steps[port] = 0

	if port == 0 {
		if tr, ok := sys.Replay.NextTransition(); ok {
			e.applyTransition(tr)
		} else {
			frame := q.DequeueOrNeutral()
			e.latched[0] = [2]byte{frame[0], frame[1]}
			e.latched[1] = [2]byte{frame[2], frame[3]}
			if ended := sys.Replay.Advance(); ended {
				sys.Mode.Store(mode.Idle)
				logger.Log(genesisLogTag, "replay ended")
			}
		}
	}

	e.next[port] = calcGenesisState(e.latched[port], e.steps[port]+1, true)
}

// applyTransition pulses the shared console-reset line for a SoftReset,
// the same way the NES engine's applyTransition does; PowerReset and
// Unsupported remain no-ops.
func (e *GenesisEngine) applyTransition(tr replaystate.Transition) {
	switch tr.Kind {
	case replaystate.SoftReset:
		e.pins.Reset.Out(gpio.High)
		time.Sleep(nesSoftResetHold)
		e.pins.Reset.Out(gpio.Low)
		time.Sleep(nesSoftResetSettle)
		logger.Log(genesisLogTag, "soft reset applied")
	default:
	}
}

func (e *GenesisEngine) shutdown(sys *core.System) {
	e.pins.Reset.Out(gpio.Low)
	sys.EnterIdle()
	logger.Log(genesisLogTag, "stopped")
}
