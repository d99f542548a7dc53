// Package hostdriver implements the host-side session described in the
// replay core design: ping the device, configure replay, stream a movie
// under flow control, and tear down on completion or interruption. It is
// the one half of the system that talks to the out-of-scope movie-format
// parsers, reached only through the Movie interface in this file. Device
// enumeration is the concrete serialenum.Enumerator in the serialenum
// subpackage; there is no enumerator interface.
package hostdriver

import "github.com/bigbass1997/veritas/internal/protocol"

// Console identifies which replay engine a movie targets. It mirrors
// protocol.System but is kept as its own type so movie sources don't need
// to import the wire-protocol package just to describe what they contain.
type Console int

const (
	ConsoleNes Console = iota
	ConsoleGenesis
	ConsoleN64
	ConsoleA2600
)

// System maps a Console onto the protocol.System used to address it over
// the wire.
func (c Console) System() protocol.System {
	switch c {
	case ConsoleNes:
		return protocol.SystemNes
	case ConsoleGenesis:
		return protocol.SystemGenesis
	case ConsoleN64:
		return protocol.SystemN64
	case ConsoleA2600:
		return protocol.SystemA2600
	default:
		return protocol.SystemUnknown
	}
}

func (c Console) String() string {
	return c.System().String()
}

// InputChunk is one port's worth of controller bytes from a movie, in
// per-port order (all of port 0's frames, then all of port 1's, and so on)
// rather than already interleaved into the wire's per-frame layout — that
// interleaving is this package's job, not the movie source's.
type InputChunk struct {
	Port  int
	Bytes []byte
}

// TransitionRecord is a movie-supplied transition before it has been
// adjusted for the wire (see adjustTransitions).
type TransitionRecord struct {
	Index uint64
	Kind  TransitionKind
}

// TransitionKind mirrors replaystate.TransitionKind without requiring movie
// sources to import internal/replaystate.
type TransitionKind uint8

const (
	SoftReset TransitionKind = iota
	PowerReset
	Unsupported
)

// Movie is the external collaborator that yields a parsed movie: which
// console it targets, its controller input in per-port chunks, and its
// ordered transitions. Production use supplies this from the out-of-scope
// TASD/BK2/FM2/GMV parsers; this module ships only a minimal fixture
// implementation (see the rawmovie subpackage) so the CLI and tests have
// something concrete to drive.
type Movie interface {
	Console() Console
	Chunks() []InputChunk
	Transitions() []TransitionRecord
}
