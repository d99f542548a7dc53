package hostdriver

import "github.com/bigbass1997/veritas/internal/queue"

// numPorts returns how many controller ports a console's wire frame is
// divided into, matching the byte layout in the data model (NES/Genesis/
// A2600: 2 ports; N64: up to 4, though only port 0 is ever replayed).
func numPorts(c Console) int {
	switch c {
	case ConsoleNes, ConsoleGenesis, ConsoleA2600:
		return 2
	case ConsoleN64:
		return 4
	default:
		return 1
	}
}

// buildInputStream concatenates a movie's per-port chunks into the single
// byte stream ProvideInput expects: one frame-width group per frame, ports
// interleaved in port order. Per spec §6, a short port is padded to the
// length of port 0 with the neutral, active-low-released mask (0xFF) before
// interleaving — stated for Genesis specifically, applied generally here
// since the same electrical convention (all-released is all-ones) holds for
// every console this module drives.
func buildInputStream(c Console, chunks []InputChunk) []byte {
	ports := numPorts(c)
	frameWidth := c.System().FrameWidth()
	if ports == 0 || frameWidth == 0 {
		return nil
	}
	bytesPerPortFrame := frameWidth / ports

	byPort := make([][]byte, ports)
	for _, chunk := range chunks {
		if chunk.Port < 0 || chunk.Port >= ports {
			continue
		}
		byPort[chunk.Port] = append(byPort[chunk.Port], chunk.Bytes...)
	}

	refLen := len(byPort[0])
	for i := range byPort {
		if len(byPort[i]) < refLen {
			padded := make([]byte, refLen)
			copy(padded, byPort[i])
			for j := len(byPort[i]); j < refLen; j++ {
				padded[j] = queue.NeutralByte
			}
			byPort[i] = padded
		}
	}

	numFrames := refLen / bytesPerPortFrame
	out := make([]byte, 0, numFrames*frameWidth)
	for f := 0; f < numFrames; f++ {
		for p := 0; p < ports; p++ {
			start := f * bytesPerPortFrame
			out = append(out, byPort[p][start:start+bytesPerPortFrame]...)
		}
	}
	return out
}
