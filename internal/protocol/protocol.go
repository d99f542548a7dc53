// Package protocol is the single encode/decode module shared by the
// communications core (device side) and the host driver (host side), per
// the design's requirement that both halves of the wire protocol come from
// one piece of code. It defines the framing (a 4-byte big-endian length
// prefix followed by a tagged-union payload) and the full command/response
// set.
//
// Tag numbering here is private to this module: it only has to be
// symmetric between encode and decode and stable within a build, which a
// single shared package guarantees by construction.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bigbass1997/veritas/internal/curated"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/replaystate"
)

// System identifies which console frame format a ProvideInput payload (or a
// movie) is expressed in.
type System uint8

const (
	SystemNes System = iota + 1
	SystemGenesis
	SystemN64
	SystemA2600
	SystemUnknown System = 0xFF
)

// FrameWidth returns the fixed byte width of one controller frame for sys,
// or 0 if sys is not a known system.
func (sys System) FrameWidth() int {
	switch sys {
	case SystemNes:
		return 2
	case SystemGenesis:
		return 4
	case SystemN64:
		return 16
	case SystemA2600:
		return 2
	default:
		return 0
	}
}

// ReplayMode maps a System onto the mode it replays under, or mode.Idle if
// there is no such mapping.
func (sys System) ReplayMode() mode.Mode {
	switch sys {
	case SystemNes:
		return mode.ReplayNes
	case SystemGenesis:
		return mode.ReplayGenesis
	case SystemN64:
		return mode.ReplayN64
	case SystemA2600:
		return mode.ReplayA2600
	default:
		return mode.Idle
	}
}

func (sys System) String() string {
	switch sys {
	case SystemNes:
		return "Nes"
	case SystemGenesis:
		return "Genesis"
	case SystemN64:
		return "N64"
	case SystemA2600:
		return "A2600"
	default:
		return "Unknown"
	}
}

// USB identity used to build the device's CDC descriptor and for host-side
// auto-selection by serial string. The VID/PID pair is fixed and private to
// this build; board-level descriptor assembly itself is out of scope.
const (
	USBVendorID  = 0x16C0
	USBProductID = 0x27DD
	USBSerial    = "VeriTAS"
)

// Default host-side transport settings.
const (
	DefaultBaud    = 500000
	DefaultTimeout = 6 // seconds
)

type commandTag uint8

const (
	tagProvideInput commandTag = iota + 1
	tagProvideTransitions
	tagSetReplayMode
	tagSetReplayLength
	tagSetLatchFilter
	tagUseInitialReset
	tagGetStatus
	tagPing
)

type responseTag uint8

const (
	tagOk responseTag = iota + 1
	tagBufferStatus
	tagDeviceStatus
	tagPong
	tagErr responseTag = 0
)

// Request is the tagged union of commands the host may send. Concrete types
// are ProvideInput, ProvideTransitions, SetReplayMode, SetReplayLength,
// SetLatchFilter, UseInitialReset, GetStatus, and Ping.
type Request interface {
	commandTag() commandTag
}

// ProvideInput carries a raw byte stream of whole-or-partial frames for a
// single system. The device consumes as many whole frames as fit in its
// queue and reports the rest as unconsumed via BufferStatus.
type ProvideInput struct {
	System System
	Data   []byte
}

func (ProvideInput) commandTag() commandTag { return tagProvideInput }

// ProvideTransitions delivers the movie's full, ordered transition list in
// one message, ahead of streaming input.
type ProvideTransitions struct {
	Transitions []replaystate.Transition
}

func (ProvideTransitions) commandTag() commandTag { return tagProvideTransitions }

// SetReplayMode changes which engine owns the console-facing pins.
type SetReplayMode struct {
	Mode mode.Mode
}

func (SetReplayMode) commandTag() commandTag { return tagSetReplayMode }

// SetReplayLength sets the movie's total frame count.
type SetReplayLength struct {
	Length uint64
}

func (SetReplayLength) commandTag() commandTag { return tagSetReplayLength }

// SetLatchFilter sets the NES latch debounce window, in microseconds.
type SetLatchFilter struct {
	Microseconds uint32
}

func (SetLatchFilter) commandTag() commandTag { return tagSetLatchFilter }

// UseInitialReset toggles whether the engine pulses console reset before
// streaming the first frame.
type UseInitialReset struct {
	Flag bool
}

func (UseInitialReset) commandTag() commandTag { return tagUseInitialReset }

// GetStatus asks the device for a short human-readable status string.
type GetStatus struct{}

func (GetStatus) commandTag() commandTag { return tagGetStatus }

// Ping asks the device to prove it is alive and listening.
type Ping struct{}

func (Ping) commandTag() commandTag { return tagPing }

// Response is the tagged union of replies the device may send. Concrete
// types are Ok, BufferStatus, DeviceStatus, Pong, and Err.
type Response interface {
	responseTag() responseTag
}

// Ok acknowledges a command that has no data to report.
type Ok struct{}

func (Ok) responseTag() responseTag { return tagOk }

// BufferStatus answers ProvideInput: Written is the number of bytes
// actually consumed from the payload, RemainingSpace is the free byte
// capacity left in the queue (free frame slots * frame width) afterward.
type BufferStatus struct {
	Written        uint16
	RemainingSpace uint16
}

func (BufferStatus) responseTag() responseTag { return tagBufferStatus }

// DeviceStatus answers GetStatus with a short free-form string.
type DeviceStatus struct {
	Text string
}

func (DeviceStatus) responseTag() responseTag { return tagDeviceStatus }

// Pong answers Ping.
type Pong struct{}

func (Pong) responseTag() responseTag { return tagPong }

// Err answers any command the device could not honor: an unknown or
// malformed command, an unknown system, a system mismatched to the current
// replay mode, or a mis-sized payload.
type Err struct {
	Message string
}

func (Err) responseTag() responseTag { return tagErr }

// ErrIndexOverflow is returned by DecodeRequest when a wire transition's
// index does not fit in the 32-bit internal representation. The original
// firmware silently truncated this; this module rejects it instead (see the
// design notes on transition wire format).
var ErrIndexOverflow = curated.CategoryErrorf(curated.Protocol, "protocol: transition index overflows 32 bits")

// --- framing ---

// WriteFrame writes a length-prefixed frame: a 4-byte big-endian length
// followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return curated.CategoryErrorf(curated.Transport, "protocol: write frame length: %v", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return curated.CategoryErrorf(curated.Transport, "protocol: write frame payload: %v", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame's payload, blocking until the
// full length and payload have arrived. There is no device-side timeout by
// design; callers that need one should wrap r accordingly (the host does).
//
// A clean end of stream at a frame boundary is reported as io.EOF,
// unwrapped, so callers can tell "the peer hung up" apart from a framing
// error mid-message (which is wrapped as a curated Transport error, per the
// error taxonomy).
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, curated.CategoryErrorf(curated.Transport, "protocol: read frame length: %v", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, curated.CategoryErrorf(curated.Transport, "protocol: read frame payload: %v", err)
		}
	}
	return payload, nil
}

// --- request encode/decode ---

// EncodeRequest renders req as a tagged-union payload (no length prefix).
func EncodeRequest(req Request) []byte {
	buf := []byte{byte(req.commandTag())}

	switch r := req.(type) {
	case ProvideInput:
		buf = append(buf, byte(r.System))
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.Data)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r.Data...)
	case ProvideTransitions:
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.Transitions)))
		buf = append(buf, countBuf[:]...)
		for _, tr := range r.Transitions {
			buf = append(buf, encodeTransition(tr)...)
		}
	case SetReplayMode:
		buf = append(buf, byte(r.Mode))
	case SetReplayLength:
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], r.Length)
		buf = append(buf, lenBuf[:]...)
	case SetLatchFilter:
		var usBuf [4]byte
		binary.BigEndian.PutUint32(usBuf[:], r.Microseconds)
		buf = append(buf, usBuf[:]...)
	case UseInitialReset:
		if r.Flag {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case GetStatus, Ping:
		// no body
	}

	return buf
}

// DecodeRequest parses a tagged-union payload into a concrete Request.
func DecodeRequest(payload []byte) (Request, error) {
	if len(payload) < 1 {
		return nil, curated.CategoryErrorf(curated.Protocol, "protocol: empty request payload")
	}
	tag := commandTag(payload[0])
	body := payload[1:]

	switch tag {
	case tagProvideInput:
		if len(body) < 5 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: ProvideInput payload too short")
		}
		sys := System(body[0])
		length := binary.BigEndian.Uint32(body[1:5])
		data := body[5:]
		if uint32(len(data)) != length {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: ProvideInput length mismatch: header says %d, got %d", length, len(data))
		}
		return ProvideInput{System: sys, Data: data}, nil

	case tagProvideTransitions:
		if len(body) < 4 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: ProvideTransitions payload too short")
		}
		count := binary.BigEndian.Uint32(body[0:4])
		body = body[4:]
		trs := make([]replaystate.Transition, 0, count)
		for i := uint32(0); i < count; i++ {
			if len(body) < transitionWireSize {
				return nil, curated.CategoryErrorf(curated.Protocol, "protocol: ProvideTransitions truncated at entry %d", i)
			}
			tr, err := decodeTransition(body[:transitionWireSize])
			if err != nil {
				return nil, err
			}
			trs = append(trs, tr)
			body = body[transitionWireSize:]
		}
		return ProvideTransitions{Transitions: trs}, nil

	case tagSetReplayMode:
		if len(body) < 1 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: SetReplayMode payload too short")
		}
		return SetReplayMode{Mode: mode.Mode(body[0])}, nil

	case tagSetReplayLength:
		if len(body) < 8 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: SetReplayLength payload too short")
		}
		return SetReplayLength{Length: binary.BigEndian.Uint64(body[:8])}, nil

	case tagSetLatchFilter:
		if len(body) < 4 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: SetLatchFilter payload too short")
		}
		return SetLatchFilter{Microseconds: binary.BigEndian.Uint32(body[:4])}, nil

	case tagUseInitialReset:
		if len(body) < 1 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: UseInitialReset payload too short")
		}
		return UseInitialReset{Flag: body[0] != 0}, nil

	case tagGetStatus:
		return GetStatus{}, nil

	case tagPing:
		return Ping{}, nil

	default:
		return nil, curated.CategoryErrorf(curated.Protocol, "protocol: unknown command tag %d", tag)
	}
}

// --- response encode/decode ---

// EncodeResponse renders resp as a tagged-union payload (no length prefix).
func EncodeResponse(resp Response) []byte {
	buf := []byte{byte(resp.responseTag())}

	switch r := resp.(type) {
	case Ok:
		// no body
	case BufferStatus:
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], r.Written)
		binary.BigEndian.PutUint16(b[2:4], r.RemainingSpace)
		buf = append(buf, b[:]...)
	case DeviceStatus:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.Text)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r.Text...)
	case Pong:
		// no body
	case Err:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.Message)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r.Message...)
	}

	return buf
}

// DecodeResponse parses a tagged-union payload into a concrete Response.
func DecodeResponse(payload []byte) (Response, error) {
	if len(payload) < 1 {
		return nil, curated.CategoryErrorf(curated.Protocol, "protocol: empty response payload")
	}
	tag := responseTag(payload[0])
	body := payload[1:]

	switch tag {
	case tagOk:
		return Ok{}, nil
	case tagBufferStatus:
		if len(body) < 4 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: BufferStatus payload too short")
		}
		return BufferStatus{
			Written:        binary.BigEndian.Uint16(body[0:2]),
			RemainingSpace: binary.BigEndian.Uint16(body[2:4]),
		}, nil
	case tagDeviceStatus:
		if len(body) < 4 {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: DeviceStatus payload too short")
		}
		n := binary.BigEndian.Uint32(body[0:4])
		body = body[4:]
		if uint32(len(body)) < n {
			return nil, curated.CategoryErrorf(curated.Protocol, "protocol: DeviceStatus text truncated")
		}
		return DeviceStatus{Text: string(body[:n])}, nil
	case tagPong:
		return Pong{}, nil
	default:
		// anything else, including the explicit Err tag (0) and any tag
		// the decoder does not otherwise recognise, is treated as Err:
		// unknown/malformed responses are not protocol violations worth
		// failing the read over, they are exactly what Err means.
		msg := ""
		if len(body) >= 4 {
			n := binary.BigEndian.Uint32(body[0:4])
			rest := body[4:]
			if uint32(len(rest)) >= n {
				msg = string(rest[:n])
			}
		}
		return Err{Message: msg}, nil
	}
}

// transitionWireSize is the on-wire size of one transition record: an
// 8-byte index, a 1-byte index-kind (reserved, unused — see design notes),
// and a 1-byte transition kind.
const transitionWireSize = 10

func encodeTransition(tr replaystate.Transition) []byte {
	buf := make([]byte, transitionWireSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(tr.Index))
	buf[8] = 0 // index-kind: reserved, always written as 0
	buf[9] = byte(tr.Kind)
	return buf
}

func decodeTransition(wire []byte) (replaystate.Transition, error) {
	index := binary.BigEndian.Uint64(wire[0:8])
	if index > math.MaxUint32 {
		return replaystate.Transition{}, fmt.Errorf("%w: got %d", ErrIndexOverflow, index)
	}
	// wire[8] (index-kind) is reserved and intentionally ignored, matching
	// the protocol note that only transition_kind is currently consumed.
	kind := replaystate.TransitionKind(wire[9])
	return replaystate.Transition{Index: uint32(index), Kind: kind}, nil
}
