// Package rawmovie is a minimal, self-describing binary fixture format that
// implements hostdriver.Movie without pulling in any of the out-of-scope
// TASD/BK2/FM2/GMV parsers. It exists purely so the CLI and tests have a
// concrete movie source to drive; production deployments are expected to
// hand RunFile a Movie backed by one of those real parsers instead.
//
// Layout (all integers big-endian):
//
//	console        u8
//	chunkCount     u32
//	  chunk[i]: port u8, length u32, bytes []byte
//	transitionCount u32
//	  transition[i]: index u64, kind u8
package rawmovie

import (
	"encoding/binary"
	"io"

	"github.com/bigbass1997/veritas/internal/curated"
	"github.com/bigbass1997/veritas/internal/hostdriver"
)

// Movie is the in-memory decoded fixture.
type Movie struct {
	console     hostdriver.Console
	chunks      []hostdriver.InputChunk
	transitions []hostdriver.TransitionRecord
}

var _ hostdriver.Movie = Movie{}

func (m Movie) Console() hostdriver.Console                { return m.console }
func (m Movie) Chunks() []hostdriver.InputChunk            { return m.chunks }
func (m Movie) Transitions() []hostdriver.TransitionRecord { return m.transitions }

// New builds a Movie directly from already-decoded parts, for callers (and
// tests) that don't need the on-disk format.
func New(console hostdriver.Console, chunks []hostdriver.InputChunk, transitions []hostdriver.TransitionRecord) Movie {
	return Movie{console: console, chunks: chunks, transitions: transitions}
}

// Decode reads one Movie from r in the layout documented above.
func Decode(r io.Reader) (Movie, error) {
	var consoleByte [1]byte
	if _, err := io.ReadFull(r, consoleByte[:]); err != nil {
		return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read console byte: %v", err)
	}

	chunkCount, err := readU32(r)
	if err != nil {
		return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read chunk count: %v", err)
	}
	chunks := make([]hostdriver.InputChunk, 0, chunkCount)
	for i := uint32(0); i < chunkCount; i++ {
		var portByte [1]byte
		if _, err := io.ReadFull(r, portByte[:]); err != nil {
			return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read chunk %d port: %v", i, err)
		}
		length, err := readU32(r)
		if err != nil {
			return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read chunk %d length: %v", i, err)
		}
		bytes := make([]byte, length)
		if _, err := io.ReadFull(r, bytes); err != nil {
			return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read chunk %d bytes: %v", i, err)
		}
		chunks = append(chunks, hostdriver.InputChunk{Port: int(portByte[0]), Bytes: bytes})
	}

	transitionCount, err := readU32(r)
	if err != nil {
		return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read transition count: %v", err)
	}
	transitions := make([]hostdriver.TransitionRecord, 0, transitionCount)
	for i := uint32(0); i < transitionCount; i++ {
		var indexBuf [8]byte
		if _, err := io.ReadFull(r, indexBuf[:]); err != nil {
			return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read transition %d index: %v", i, err)
		}
		var kindByte [1]byte
		if _, err := io.ReadFull(r, kindByte[:]); err != nil {
			return Movie{}, curated.CategoryErrorf(curated.Transport, "rawmovie: read transition %d kind: %v", i, err)
		}
		transitions = append(transitions, hostdriver.TransitionRecord{
			Index: binary.BigEndian.Uint64(indexBuf[:]),
			Kind:  hostdriver.TransitionKind(kindByte[0]),
		})
	}

	return Movie{
		console:     hostdriver.Console(consoleByte[0]),
		chunks:      chunks,
		transitions: transitions,
	}, nil
}

// Encode writes m to w in the layout Decode understands, for tests and for
// any tooling that wants to produce fixtures.
func Encode(w io.Writer, m Movie) error {
	if _, err := w.Write([]byte{byte(m.console)}); err != nil {
		return curated.CategoryErrorf(curated.Transport, "rawmovie: write console byte: %v", err)
	}
	if err := writeU32(w, uint32(len(m.chunks))); err != nil {
		return err
	}
	for _, chunk := range m.chunks {
		if _, err := w.Write([]byte{byte(chunk.Port)}); err != nil {
			return curated.CategoryErrorf(curated.Transport, "rawmovie: write chunk port: %v", err)
		}
		if err := writeU32(w, uint32(len(chunk.Bytes))); err != nil {
			return err
		}
		if _, err := w.Write(chunk.Bytes); err != nil {
			return curated.CategoryErrorf(curated.Transport, "rawmovie: write chunk bytes: %v", err)
		}
	}
	if err := writeU32(w, uint32(len(m.transitions))); err != nil {
		return err
	}
	for _, tr := range m.transitions {
		var indexBuf [8]byte
		binary.BigEndian.PutUint64(indexBuf[:], tr.Index)
		if _, err := w.Write(indexBuf[:]); err != nil {
			return curated.CategoryErrorf(curated.Transport, "rawmovie: write transition index: %v", err)
		}
		if _, err := w.Write([]byte{byte(tr.Kind)}); err != nil {
			return curated.CategoryErrorf(curated.Transport, "rawmovie: write transition kind: %v", err)
		}
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return curated.CategoryErrorf(curated.Transport, "rawmovie: write u32: %v", err)
	}
	return nil
}
