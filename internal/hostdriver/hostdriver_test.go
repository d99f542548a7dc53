package hostdriver_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bigbass1997/veritas/internal/comms"
	"github.com/bigbass1997/veritas/internal/core"
	"github.com/bigbass1997/veritas/internal/hostdriver"
	"github.com/bigbass1997/veritas/internal/mode"
)

type pipeReadWriter struct {
	r io.Reader
	w io.Writer
}

func (p *pipeReadWriter) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeReadWriter) Write(b []byte) (int, error) { return p.w.Write(b) }

type fixtureMovie struct {
	console     hostdriver.Console
	chunks      []hostdriver.InputChunk
	transitions []hostdriver.TransitionRecord
}

func (m fixtureMovie) Console() hostdriver.Console                { return m.console }
func (m fixtureMovie) Chunks() []hostdriver.InputChunk            { return m.chunks }
func (m fixtureMovie) Transitions() []hostdriver.TransitionRecord { return m.transitions }

// wirePipe connects a hostdriver.Client on one end to a live comms.Serve
// loop over a core.System on the other, the same harness shape the comms
// package itself uses for its round-trip test.
func wirePipe(t *testing.T) (*hostdriver.Client, *core.System, func()) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	serverRW := &pipeReadWriter{r: serverR, w: serverW}
	clientRW := &pipeReadWriter{r: clientR, w: clientW}

	sys := core.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- comms.Serve(ctx, serverRW, sys) }()

	client := hostdriver.NewClient(clientRW, time.Second)
	return client, sys, func() {
		cancel()
		clientW.Close()
		<-done
	}
}

func TestRunFileShortMovieStartsReplay(t *testing.T) {
	client, sys, cleanup := wirePipe(t)
	defer cleanup()

	movie := fixtureMovie{
		console: hostdriver.ConsoleNes,
		chunks: []hostdriver.InputChunk{
			{Port: 0, Bytes: []byte{0x7F, 0xBF, 0xFF}},
			{Port: 1, Bytes: []byte{0xFF, 0xFF, 0xFF}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hostdriver.RunFile(ctx, client, movie, hostdriver.Options{LatchFilterUs: 8000}); err != nil {
		t.Fatalf("RunFile: %v", err)
	}

	if sys.Mode.Load() != mode.ReplayNes {
		t.Fatalf("got mode %s, want ReplayNes", sys.Mode.Load())
	}
	if got := sys.Replay.IndexLen(); got != 3 {
		t.Fatalf("got IndexLen %d, want 3", got)
	}
}

func TestRunFileHonorsDisableReset(t *testing.T) {
	client, sys, cleanup := wirePipe(t)
	defer cleanup()

	movie := fixtureMovie{
		console: hostdriver.ConsoleNes,
		chunks: []hostdriver.InputChunk{
			{Port: 0, Bytes: []byte{0x7F}},
			{Port: 1, Bytes: []byte{0xFF}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hostdriver.RunFile(ctx, client, movie, hostdriver.Options{DisableReset: true}); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if sys.Replay.UseInitialReset() {
		t.Fatal("expected UseInitialReset to be false")
	}
}

func TestRunFileCancellationReturnsIdle(t *testing.T) {
	client, sys, cleanup := wirePipe(t)
	defer cleanup()

	// A large movie so the prefill loop has many iterations to observe
	// the cancellation on.
	bytes0 := make([]byte, 4000)
	bytes1 := make([]byte, 4000)
	for i := range bytes0 {
		bytes0[i] = 0x7F
		bytes1[i] = 0xFF
	}
	movie := fixtureMovie{
		console: hostdriver.ConsoleNes,
		chunks: []hostdriver.InputChunk{
			{Port: 0, Bytes: bytes0},
			{Port: 1, Bytes: bytes1},
		},
	}

	sys.Mode.Store(mode.ReplayGenesis)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hostdriver.RunFile(ctx, client, movie, hostdriver.Options{}); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if sys.Mode.Load() != mode.Idle {
		t.Fatalf("got mode %s, want Idle", sys.Mode.Load())
	}
}
