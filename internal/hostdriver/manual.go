package hostdriver

import (
	"bufio"
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/bigbass1997/veritas/internal/logger"
	"github.com/bigbass1997/veritas/internal/mode"
)

// KeyMap associates a single keystroke with the fixed frame bitmap it sends
// every time it is pressed, per spec §4.5 step 4's "keystroke loop mapping
// keys to fixed frame bitmaps."
type KeyMap map[rune][]byte

// NesKeyMap is the default manual-mode key layout for a single NES port:
// arrow-like WASD for the d-pad, J/K for A/B, Enter/Space for Start/Select.
// Bits are active-low, matching the wire format.
var NesKeyMap = KeyMap{
	'w': {0xFF ^ (1 << 3), 0xFF}, // Up
	's': {0xFF ^ (1 << 2), 0xFF}, // Down
	'a': {0xFF ^ (1 << 1), 0xFF}, // Left
	'd': {0xFF ^ (1 << 0), 0xFF}, // Right
	'j': {0xFF ^ (1 << 7), 0xFF}, // A
	'k': {0xFF ^ (1 << 6), 0xFF}, // B
	' ': {0xFF ^ (1 << 5), 0xFF}, // Select
	'\r': {0xFF ^ (1 << 4), 0xFF}, // Start
}

// GenesisKeyMap is the default manual-mode key layout for a single Genesis
// 3-button port.
var GenesisKeyMap = KeyMap{
	'w': {0xFF ^ (1 << 5), 0xFF, 0xFF, 0xFF}, // Up
	's': {0xFF ^ (1 << 4), 0xFF, 0xFF, 0xFF}, // Down
	'a': {0xFF ^ (1 << 3), 0xFF, 0xFF, 0xFF}, // Left
	'd': {0xFF ^ (1 << 2), 0xFF, 0xFF, 0xFF}, // Right
	'j': {0xFF ^ (1 << 7), 0xFF, 0xFF, 0xFF}, // A
	'k': {0xFF ^ (1 << 1), 0xFF, 0xFF, 0xFF}, // B
	'l': {0xFF ^ (1 << 0), 0xFF, 0xFF, 0xFF}, // C
	'\r': {0xFF ^ (1 << 6), 0xFF, 0xFF, 0xFF}, // Start
}

// RunManual implements spec §4.5 step 4: put the device into the given
// console's replay mode, then read single keystrokes from in (stdin in raw
// mode) and forward each mapped key's fixed frame bitmap with ProvideInput,
// until ctx is cancelled or 'q' is pressed — at which point the device is
// returned to Idle.
func RunManual(ctx context.Context, c *Client, console Console, keys KeyMap, latchFilterUs uint32, in *os.File) error {
	if err := c.Ping(); err != nil {
		return err
	}
	if err := c.SetReplayMode(replayMode(console)); err != nil {
		return err
	}
	if err := c.SetLatchFilter(latchFilterUs); err != nil {
		return err
	}
	defer func() {
		_ = c.SetReplayMode(mode.Idle)
		logger.Log(logTag, "manual session ended")
	}()

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	sys := console.System()
	reader := bufio.NewReader(in)

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()

	for {
		select {
		case <-done:
			// SIGINT or an external cancellation: exit cleanly, matching
			// spec §6's "exit code 0 on normal completion or SIGINT."
			return nil
		default:
		}

		r, _, err := reader.ReadRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if r == 'q' {
			return nil
		}

		frame, ok := keys[r]
		if !ok {
			continue
		}
		if _, err := c.ProvideInput(sys, frame); err != nil {
			return err
		}
	}
}
