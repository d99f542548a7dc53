// Package comms implements the communications core: the side of the wire
// protocol that receives framed commands, mutates the shared core.System,
// and answers with exactly one framed response per command, per the
// protocol's device-side command table.
package comms

import (
	"context"
	"errors"
	"io"

	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
)

// logTag identifies this package's entries in the shared logger.
const logTag = "comms"

// Dispatch applies a single decoded request to sys and returns the response
// to send back. It never blocks and never returns an error: every failure
// mode the protocol defines is represented as an Err response instead, per
// the device-never-panics propagation rule.
func Dispatch(req protocol.Request, sys *core.System) protocol.Response {
	switch r := req.(type) {
	case protocol.Ping:
		return protocol.Pong{}

	case protocol.GetStatus:
		return protocol.DeviceStatus{Text: sys.StatusString()}

	case protocol.SetReplayMode:
		return dispatchSetReplayMode(r, sys)

	case protocol.SetReplayLength:
		sys.Replay.SetLength(uint32(r.Length))
		return protocol.Ok{}

	case protocol.SetLatchFilter:
		sys.Replay.SetLatchFilter(r.Microseconds)
		return protocol.Ok{}

	case protocol.UseInitialReset:
		sys.Replay.SetUseInitialReset(r.Flag)
		return protocol.Ok{}

	case protocol.ProvideTransitions:
		sys.Replay.AppendTransitions(r.Transitions)
		return protocol.Ok{}

	case protocol.ProvideInput:
		return dispatchProvideInput(r, sys)

	default:
		logger.Logf(logTag, "unknown request type %T", req)
		return protocol.Err{Message: "unknown command"}
	}
}

func dispatchSetReplayMode(r protocol.SetReplayMode, sys *core.System) protocol.Response {
	switch r.Mode {
	case mode.Idle:
		sys.EnterIdle()
	case mode.ReplayNes, mode.ReplayN64, mode.ReplayGenesis, mode.ReplayA2600:
		sys.Mode.Store(r.Mode)
		logger.Logf(logTag, "mode -> %s", r.Mode)
	default:
		return protocol.Err{Message: "unknown replay mode"}
	}
	return protocol.Ok{}
}

// dispatchProvideInput implements the three-step ProvideInput contract: the
// system must be a known console, and while a console is replaying it must
// be that console (input is accepted while Idle/Initial, for prefill);
// whole frames are consumed from the payload in order until the queue is
// full or the payload is exhausted; the reply reports written bytes and
// remaining free bytes.
func dispatchProvideInput(r protocol.ProvideInput, sys *core.System) protocol.Response {
	frameWidth := r.System.FrameWidth()
	if frameWidth == 0 {
		return protocol.Err{Message: "unknown system"}
	}
	// Prefill happens before SetReplayMode is issued (the host only flips
	// the mode once the queue first reports full), so ProvideInput must be
	// accepted while the device is still Idle/Initial. It is rejected only
	// once a *different* console's engine actually owns the mode word.
	current := sys.Mode.Load()
	if current.IsReplaying() && r.System.ReplayMode() != current {
		return protocol.Err{Message: "system mismatched to current replay mode"}
	}

	q, ok := sys.QueueFor(r.System)
	if !ok {
		return protocol.Err{Message: "unknown system"}
	}

	written := 0
	for written+frameWidth <= len(r.Data) {
		if !q.Enqueue(r.Data[written : written+frameWidth]) {
			break
		}
		written += frameWidth
	}

	freeFrames := q.Capacity() - q.Len()
	return protocol.BufferStatus{
		Written:        uint16(written),
		RemainingSpace: uint16(freeFrames * frameWidth),
	}
}

// Serve blocks reading one framed request at a time from rw, dispatches it
// against sys, and writes exactly one framed response. It returns nil when
// the peer closes the stream at a frame boundary, ctx.Err() when ctx is
// cancelled (checked between frames), or the error from a failed response
// write; read errors are logged and skipped. There is no read timeout here
// by design: the device side never times out, only the host does.
func Serve(ctx context.Context, rw io.ReadWriter, sys *core.System) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := protocol.ReadFrame(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Transport errors reset the device's receive state rather
			// than propagate; the next call to ReadFrame starts clean at
			// the next length header.
			logger.Logf(logTag, "transport read error, resetting: %v", err)
			continue
		}

		req, err := protocol.DecodeRequest(payload)
		var resp protocol.Response
		if err != nil {
			logger.Logf(logTag, "malformed request: %v", err)
			resp = protocol.Err{Message: "malformed command"}
		} else {
			resp = Dispatch(req, sys)
		}

		if err := protocol.WriteFrame(rw, protocol.EncodeResponse(resp)); err != nil {
			return err
		}
	}
}
