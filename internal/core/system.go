// Package core owns the process-wide peripheral state that would otherwise
// live as package-level globals shared between the two CPU cores: the mode
// word, the replay cursor, and one input queue per console. A single
// *System is constructed at startup and passed by pointer into the
// communications core and every replay engine, resolving the "no
// process-wide singletons" design note the protocol calls out.
package core

import (
	"fmt"

	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
	"github.com/bigbass1997/veritas/internal/queue"
	"github.com/bigbass1997/veritas/internal/replaystate"
)

// QueueCapacity is the fixed number of frames each console's input queue
// can hold, matching the firmware's statically-sized queue.
const QueueCapacity = 1024

// System bundles everything a replay engine or the communications core
// needs: which mode is active, the shared replay cursor, and the
// per-console input queues. The zero value is not usable; construct with
// New.
type System struct {
	Mode   *mode.Word
	Replay *replaystate.State

	queues map[protocol.System]*queue.Queue
}

// New creates a System with one queue per known console, all Idle, replay
// state zeroed.
func New() *System {
	s := &System{
		Mode:   mode.NewWord(),
		Replay: replaystate.New(),
		queues: make(map[protocol.System]*queue.Queue),
	}
	for _, sys := range []protocol.System{protocol.SystemNes, protocol.SystemGenesis, protocol.SystemN64, protocol.SystemA2600} {
		s.queues[sys] = queue.New(QueueCapacity, sys.FrameWidth())
	}
	s.Mode.Store(mode.Idle)
	return s
}

// QueueFor returns the input queue belonging to sys, or nil, false if sys is
// not a recognised console.
func (s *System) QueueFor(sys protocol.System) (*queue.Queue, bool) {
	q, ok := s.queues[sys]
	return q, ok
}

// ActiveQueue returns the input queue for the console currently replaying,
// or nil, false if the system is Idle or Initial.
func (s *System) ActiveQueue() (*queue.Queue, bool) {
	m := s.Mode.Load()
	if !m.IsReplaying() {
		return nil, false
	}
	for sys, q := range s.queues {
		if sys.ReplayMode() == m {
			return q, true
		}
	}
	return nil, false
}

// EnterIdle drains every queue and resets the replay cursor, then sets mode
// to Idle. Called when an engine's Run loop returns.
func (s *System) EnterIdle() {
	for _, q := range s.queues {
		q.Clear()
	}
	s.Replay.Reset()
	s.Mode.Store(mode.Idle)
	logger.Log("core", "system idle")
}

// StatusString renders a short human-readable summary, the payload of a
// GetStatus response.
func (s *System) StatusString() string {
	m := s.Mode.Load()
	if !m.IsReplaying() {
		return fmt.Sprintf("mode=%s", m)
	}
	return fmt.Sprintf("mode=%s index=%d/%d", m, s.Replay.IndexCur(), s.Replay.IndexLen())
}
