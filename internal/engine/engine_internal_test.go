package engine

import (
	"testing"

	"periph.io/x/periph/conn/gpio"
)

func TestEncodeJoybus(t *testing.T) {
	cases := []struct {
		in   byte
		want uint32
	}{
		{0x00, 0x11111111},
		{0xFF, 0x77777777},
		{0x80, 0x71111111},
		{0x01, 0x11111117},
	}
	for _, c := range cases {
		if got := encodeJoybus(c.in); got != c.want {
			t.Fatalf("encodeJoybus(0x%02X) = 0x%08X, want 0x%08X", c.in, got, c.want)
		}
	}
}

func TestGenesisLevel(t *testing.T) {
	if got := genesisLevel(0b0000_0001, 0); got != gpio.High {
		t.Fatalf("bit 0 set: got %v, want High", got)
	}
	if got := genesisLevel(0b0000_0001, 1); got != gpio.Low {
		t.Fatalf("bit 1 clear: got %v, want Low", got)
	}
}

func TestCalcGenesisStateStandardButtons(t *testing.T) {
	// Up+B held: bit 5 (up) and bit 1 (B, on the ba line while SELECT is
	// high) clear in the standard byte, rest set.
	latched := [2]byte{0xFF &^ (1 << 5) &^ (1 << 1), 0xFF}

	highEdge := calcGenesisState(latched, 0, true)
	if highEdge.up != gpio.Low {
		t.Fatalf("edgeHigh up: got %v, want Low", highEdge.up)
	}
	if highEdge.ba != gpio.Low {
		t.Fatalf("edgeHigh ba: got %v, want Low", highEdge.ba)
	}
	if highEdge.down != gpio.High || highEdge.left != gpio.High || highEdge.right != gpio.High {
		t.Fatalf("edgeHigh: unexpected released line state: %+v", highEdge)
	}

	lowEdge := calcGenesisState(latched, 1, false)
	if lowEdge.left != gpio.Low || lowEdge.right != gpio.Low {
		t.Fatalf("edgeLow: left/right must be forced low (the Genesis 3-button tell), got %+v", lowEdge)
	}
}

func TestCalcGenesisStatePastMaxStepHoldsNeutral(t *testing.T) {
	st := calcGenesisState([2]byte{0x00, 0x00}, genesisMaxStep+1, true)
	want := genesisState{up: gpio.High, down: gpio.High, left: gpio.High, right: gpio.High, ba: gpio.High, cstart: gpio.High}
	if st != want {
		t.Fatalf("got %+v, want all-neutral %+v", st, want)
	}
}

func TestCalcGenesisStateSixButtonStepsFallThrough(t *testing.T) {
	latched := [2]byte{0xFF &^ 1, 0xFF}
	viaStub := calcGenesisState(latched, 5, true)
	viaStandard := calcGenesisState(latched, 0, true)
	if viaStub != viaStandard {
		t.Fatalf("step 5 should fall through to the 3-button mapping: got %+v, want %+v", viaStub, viaStandard)
	}
}

func TestBitLevel(t *testing.T) {
	if got := bitLevel(1<<a2600BitUp, a2600BitUp); got != gpio.High {
		t.Fatalf("bit set: got %v, want High", got)
	}
	if got := bitLevel(0, a2600BitUp); got != gpio.Low {
		t.Fatalf("bit clear: got %v, want Low", got)
	}
}
