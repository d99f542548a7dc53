// Package replaystate implements the replay cursor shared between the
// communications core and the active replay engine: how many frames have
// been consumed, the movie's total length, and the ordered list of pending
// transitions (soft resets and the like) the engine must apply as it
// crosses particular frame boundaries.
package replaystate

import (
	"sort"
	"sync"
	"sync/atomic"
)

// TransitionKind identifies the effect a Transition has when it fires.
type TransitionKind uint8

const (
	// SoftReset pulses the console's reset line for long enough to
	// emulate a press of the physical reset button.
	SoftReset TransitionKind = iota
	// PowerReset is reserved; the original firmware narrows it to an
	// unsupported no-op and so does this engine.
	PowerReset
	// Unsupported marks a transition kind the decoder did not recognise.
	Unsupported
)

// Transition is a single scheduled event: when index_cur advances to Index,
// Kind fires before the next frame's bits reach the pins.
//
// Index is narrowed to 32 bits to match the original firmware's internal
// representation (see the wire format note in protocol). This is a
// deliberate, documented choice, not the original's silent truncation: the
// wire decoder rejects indices that don't fit instead of wrapping them.
type Transition struct {
	Index uint32
	Kind  TransitionKind
}

// State is the mutable replay cursor. The zero value is ready to use.
//
// Scalar fields (IndexCur, IndexLen, TransitionPtr, UseInitialReset) are
// atomics so an engine's ISR-equivalent goroutine can read/write them
// without a lock. Transitions itself is a plain, mutex-guarded slice: per
// the design, structural mutation (appending/replacing transitions) only
// ever happens while the owning engine is not running (mode Idle), so the
// mutex is there for safety against misuse, not to satisfy a concurrency
// requirement the hot path depends on.
type State struct {
	indexCur        atomic.Uint32
	indexLen        atomic.Uint32
	transitionPtr   atomic.Uint32
	useInitialReset atomic.Bool
	latchFilterUs   atomic.Uint32

	mu          sync.Mutex
	transitions []Transition
}

// New creates a State with no transitions, zero length, and the default
// latch filter disabled (0 — callers must SetLatchFilter before replaying a
// latch-based console).
func New() *State {
	return &State{}
}

// IndexCur returns the number of frames consumed so far.
func (s *State) IndexCur() uint32 { return s.indexCur.Load() }

// IndexLen returns the total number of frames in the movie.
func (s *State) IndexLen() uint32 { return s.indexLen.Load() }

// SetLength sets the total frame count. Called by the communications core
// before replay starts.
func (s *State) SetLength(n uint32) { s.indexLen.Store(n) }

// UseInitialReset reports whether the engine must pulse console reset
// before streaming the first frame.
func (s *State) UseInitialReset() bool { return s.useInitialReset.Load() }

// SetUseInitialReset sets the initial-reset flag.
func (s *State) SetUseInitialReset(v bool) { s.useInitialReset.Store(v) }

// LatchFilterUs returns the configured latch debounce window, in
// microseconds.
func (s *State) LatchFilterUs() uint32 { return s.latchFilterUs.Load() }

// SetLatchFilter sets the latch debounce window, in microseconds.
func (s *State) SetLatchFilter(us uint32) { s.latchFilterUs.Store(us) }

// AppendTransitions adds ts to the pending list and re-sorts it ascending
// by Index, so transitions are in the order the engine will encounter them.
// Entries with equal Index are kept, not merged. Must only be
// called while the owning engine is not replaying.
func (s *State) AppendTransitions(ts []Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions = append(s.transitions, ts...)
	sort.Slice(s.transitions, func(i, j int) bool {
		return s.transitions[i].Index < s.transitions[j].Index
	})
}

// Transitions returns a copy of the pending transition list, for inspection
// (e.g. GetStatus reporting).
func (s *State) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Advance is called by the replay engine after it has loaded the frame at
// the current index_cur into its staging register. It increments index_cur
// and reports whether the movie has now ended (index_cur == index_len).
func (s *State) Advance() (ended bool) {
	next := s.indexCur.Add(1)
	return next >= s.indexLen.Load()
}

// NextTransition returns the transition due at the engine's current
// index_cur, if any, advancing the internal transition cursor so the same
// transition is never returned twice. The engines call it at each frame
// boundary before loading the next frame, so it is checked against the
// *pre-advance* index_cur; when it returns a transition, the engine applies
// it in place of that boundary's frame load and Advance.
func (s *State) NextTransition() (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ptr := s.transitionPtr.Load()
	if int(ptr) >= len(s.transitions) {
		return Transition{}, false
	}

	cur := s.indexCur.Load()
	tr := s.transitions[ptr]
	if tr.Index != cur {
		return Transition{}, false
	}

	s.transitionPtr.Store(ptr + 1)
	return tr, true
}

// Reset returns the cursor to its initial state: index_cur and the
// transition pointer both zero, and the transition list emptied. The movie
// length and latch filter are left untouched — those are configuration, not
// cursor state, and are expected to be reset explicitly (or reused) by the
// next SetLength/SetLatchFilter call.
func (s *State) Reset() {
	s.indexCur.Store(0)
	s.transitionPtr.Store(0)

	s.mu.Lock()
	s.transitions = s.transitions[:0]
	s.mu.Unlock()
}
