package core_test

import (
	"testing"

	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
)

func TestNewSystemStartsIdleWithAllQueues(t *testing.T) {
	s := core.New()
	if s.Mode.Load() != mode.Idle {
		t.Fatalf("got mode %s, want Idle", s.Mode.Load())
	}

	for _, sys := range []protocol.System{protocol.SystemNes, protocol.SystemGenesis, protocol.SystemN64, protocol.SystemA2600} {
		q, ok := s.QueueFor(sys)
		if !ok {
			t.Fatalf("missing queue for %s", sys)
		}
		if q.FrameWidth() != sys.FrameWidth() {
			t.Fatalf("%s: got frame width %d, want %d", sys, q.FrameWidth(), sys.FrameWidth())
		}
		if q.Capacity() != core.QueueCapacity {
			t.Fatalf("%s: got capacity %d, want %d", sys, q.Capacity(), core.QueueCapacity)
		}
	}
}

func TestQueueForUnknownSystem(t *testing.T) {
	s := core.New()
	if _, ok := s.QueueFor(protocol.SystemUnknown); ok {
		t.Fatal("expected no queue for SystemUnknown")
	}
}

func TestActiveQueueTracksMode(t *testing.T) {
	s := core.New()
	if _, ok := s.ActiveQueue(); ok {
		t.Fatal("expected no active queue while Idle")
	}

	s.Mode.Store(mode.ReplayNes)
	q, ok := s.ActiveQueue()
	if !ok {
		t.Fatal("expected an active queue while ReplayNes")
	}
	if q.FrameWidth() != protocol.SystemNes.FrameWidth() {
		t.Fatalf("got frame width %d, want %d", q.FrameWidth(), protocol.SystemNes.FrameWidth())
	}
}

func TestEnterIdleDrainsAndResets(t *testing.T) {
	s := core.New()
	s.Mode.Store(mode.ReplayNes)
	q, _ := s.QueueFor(protocol.SystemNes)
	q.Enqueue([]byte{0, 0})
	s.Replay.SetLength(10)
	s.Replay.Advance()

	s.EnterIdle()

	if s.Mode.Load() != mode.Idle {
		t.Fatalf("got mode %s, want Idle", s.Mode.Load())
	}
	if !q.IsEmpty() {
		t.Fatal("expected queue to be drained")
	}
	if s.Replay.IndexCur() != 0 {
		t.Fatalf("got IndexCur %d, want 0", s.Replay.IndexCur())
	}
}

func TestStatusString(t *testing.T) {
	s := core.New()
	if got := s.StatusString(); got != "mode=Idle" {
		t.Fatalf("got %q", got)
	}

	s.Mode.Store(mode.ReplayGenesis)
	s.Replay.SetLength(100)
	s.Replay.Advance()
	if got := s.StatusString(); got != "mode=ReplayGenesis index=1/100" {
		t.Fatalf("got %q", got)
	}
}
