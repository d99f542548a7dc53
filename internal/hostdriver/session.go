package hostdriver

import (
	"context"
	"time"

	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/replaystate"
)

const logTag = "hostdriver"

// prefillSample is the chunk size the prefill loop settles into once the
// very first, deliberately tiny, chunk has told it how much room the
// device actually has (spec §4.5b).
const prefillSample = 16

// lowWaterSpace is the remaining_space threshold below which the prefill
// loop sleeps before its next send, to let the device drain rather than
// spinning against a nearly-full queue.
const lowWaterSpace = 128

// lowWaterSleep is how long the prefill loop waits at the low-water mark.
const lowWaterSleep = 5 * time.Millisecond

// Options configures a file-mode replay session.
type Options struct {
	LatchFilterUs  uint32
	DisableReset   bool
	RequestTimeout time.Duration
}

// replayMode maps a Console onto the mode.Mode the device is told to enter.
func replayMode(c Console) mode.Mode {
	switch c {
	case ConsoleNes:
		return mode.ReplayNes
	case ConsoleGenesis:
		return mode.ReplayGenesis
	case ConsoleN64:
		return mode.ReplayN64
	case ConsoleA2600:
		return mode.ReplayA2600
	default:
		return mode.Idle
	}
}

func toReplaystateKind(k TransitionKind) replaystate.TransitionKind {
	switch k {
	case SoftReset:
		return replaystate.SoftReset
	case PowerReset:
		return replaystate.PowerReset
	default:
		return replaystate.Unsupported
	}
}

// adjustTransitions halves every transition's index, per spec §4.5 step 3:
// the movie container double-counts each 2-byte NES frame as two indices,
// so the host driver must divide by two before handing indices to the
// device's single-index-per-frame cursor.
func adjustTransitions(in []TransitionRecord) []replaystate.Transition {
	out := make([]replaystate.Transition, len(in))
	for i, tr := range in {
		out[i] = replaystate.Transition{
			Index: uint32(tr.Index / 2),
			Kind:  toReplaystateKind(tr.Kind),
		}
	}
	return out
}

func chunkSize(previousRemainingSpace, frameWidth, bytesLeft int) int {
	want := previousRemainingSpace
	if prefillSample < want {
		want = prefillSample
	}
	if bytesLeft < want {
		want = bytesLeft
	}
	if want < frameWidth {
		want = frameWidth
	}
	if want > bytesLeft {
		want = bytesLeft
	}
	return want
}

// RunFile streams movie to the device under flow control: configure replay
// state, then loop sending chunks sized from the device's last reported
// free space until the whole input stream has been sent or ctx is
// cancelled, exactly per spec §4.5 step 5.
func RunFile(ctx context.Context, c *Client, movie Movie, opts Options) error {
	if err := c.Ping(); err != nil {
		return err
	}
	if opts.DisableReset {
		if err := c.UseInitialReset(false); err != nil {
			return err
		}
	}

	console := movie.Console()
	sys := console.System()
	frameWidth := sys.FrameWidth()

	stream := buildInputStream(console, movie.Chunks())
	transitions := adjustTransitions(movie.Transitions())
	totalFrames := uint64(len(stream) / frameWidth)

	if err := c.SetLatchFilter(opts.LatchFilterUs); err != nil {
		return err
	}
	if err := c.SetReplayLength(totalFrames); err != nil {
		return err
	}
	if err := c.ProvideTransitions(transitions); err != nil {
		return err
	}
	if status, err := c.GetStatus(); err == nil {
		logger.Log(logTag, "device status before streaming: "+status)
	}

	cursor := 0
	modeStarted := false
	// previousRemainingSpace starts at a single frame so the very first
	// chunk sent is exactly frameWidth bytes — "the smallest useful
	// amount" the rationale in spec §4.5 describes, letting the first
	// reply's remaining_space reveal actual device capacity before any
	// larger chunk is attempted.
	previousRemainingSpace := frameWidth

	for cursor < len(stream) {
		select {
		case <-ctx.Done():
			logger.Log(logTag, "interrupted, returning to Idle")
			return c.SetReplayMode(mode.Idle)
		default:
		}

		n := chunkSize(previousRemainingSpace, frameWidth, len(stream)-cursor)
		status, err := c.ProvideInput(sys, stream[cursor:cursor+n])
		if err != nil {
			return err
		}
		cursor += int(status.Written)
		previousRemainingSpace = int(status.RemainingSpace)

		if !modeStarted && status.RemainingSpace == 0 {
			if err := c.SetReplayMode(replayMode(console)); err != nil {
				return err
			}
			modeStarted = true
			logger.Log(logTag, "replay has started")
		}

		if previousRemainingSpace < lowWaterSpace {
			select {
			case <-ctx.Done():
			case <-time.After(lowWaterSleep):
			}
		}
	}

	if !modeStarted {
		// The whole movie fit in the queue in one go; nothing ever drove
		// remaining_space to zero, so replay must still be kicked off
		// explicitly here.
		if err := c.SetReplayMode(replayMode(console)); err != nil {
			return err
		}
		logger.Log(logTag, "replay has started")
	}

	return nil
}
