package mode_test

import (
	"testing"

	"github.com/bigbass1997/veritas/internal/mode"
)

func TestWordDefault(t *testing.T) {
	w := mode.NewWord()
	if w.Load() != mode.Initial {
		t.Fatalf("got %v, want Initial", w.Load())
	}
}

func TestWordStoreLoad(t *testing.T) {
	w := mode.NewWord()
	w.Store(mode.ReplayNes)
	if w.Load() != mode.ReplayNes {
		t.Fatalf("got %v, want ReplayNes", w.Load())
	}
}

func TestIsReplaying(t *testing.T) {
	cases := map[mode.Mode]bool{
		mode.Initial:       false,
		mode.Idle:          false,
		mode.ReplayNes:     true,
		mode.ReplayN64:     true,
		mode.ReplayGenesis: true,
		mode.ReplayA2600:   true,
	}
	for m, want := range cases {
		if got := m.IsReplaying(); got != want {
			t.Errorf("%v.IsReplaying() = %v, want %v", m, got, want)
		}
	}
}

func TestCompareAndSwap(t *testing.T) {
	w := mode.NewWord()
	w.Store(mode.Idle)

	if !w.CompareAndSwap(mode.Idle, mode.ReplayGenesis) {
		t.Fatal("expected CompareAndSwap to succeed")
	}
	if w.Load() != mode.ReplayGenesis {
		t.Fatalf("got %v", w.Load())
	}
	if w.CompareAndSwap(mode.Idle, mode.ReplayNes) {
		t.Fatal("expected CompareAndSwap to fail when old doesn't match")
	}
}
