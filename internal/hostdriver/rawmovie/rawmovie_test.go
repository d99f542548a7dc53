package rawmovie_test

import (
	"bytes"
	"testing"

	"github.com/bigbass1997/veritas/internal/hostdriver"
	"github.com/bigbass1997/veritas/internal/hostdriver/rawmovie"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := rawmovie.New(
		hostdriver.ConsoleNes,
		[]hostdriver.InputChunk{
			{Port: 0, Bytes: []byte{0x7F, 0xBF}},
			{Port: 1, Bytes: []byte{0xFF, 0xFF}},
		},
		[]hostdriver.TransitionRecord{
			{Index: 10, Kind: hostdriver.SoftReset},
		},
	)

	var buf bytes.Buffer
	if err := rawmovie.Encode(&buf, in); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, err := rawmovie.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if out.Console() != in.Console() {
		t.Fatalf("got console %v, want %v", out.Console(), in.Console())
	}
	if len(out.Chunks()) != len(in.Chunks()) {
		t.Fatalf("got %d chunks, want %d", len(out.Chunks()), len(in.Chunks()))
	}
	for i, c := range out.Chunks() {
		want := in.Chunks()[i]
		if c.Port != want.Port || !bytes.Equal(c.Bytes, want.Bytes) {
			t.Fatalf("chunk %d: got %+v, want %+v", i, c, want)
		}
	}
	if len(out.Transitions()) != 1 || out.Transitions()[0].Index != 10 {
		t.Fatalf("got transitions %+v, want one at index 10", out.Transitions())
	}
}

func TestDecodeTruncatedIsError(t *testing.T) {
	_, err := rawmovie.Decode(bytes.NewReader([]byte{byte(hostdriver.ConsoleNes)}))
	if err == nil {
		t.Fatal("expected an error decoding a truncated fixture")
	}
}
